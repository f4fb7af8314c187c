// Package backend wraps the remote create/update endpoints that persist
// finalized forms. The core serializes a payload, hands it off, and reads
// back either the persisted record or a structured error. Transport
// concerns beyond a request timeout (retries, auth) live outside this
// module.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brushworks-app/brushworks/internal/billing"
	"github.com/brushworks-app/brushworks/internal/shared"
	"github.com/brushworks-app/brushworks/internal/upload"
)

// Payload is the serialized form sent to the backend. Subtotal and grand
// total are the authoritative values recomputed at submission time.
type Payload struct {
	ClientName    string                  `json:"client_name"`
	ClientAddress string                  `json:"client_address"`
	DocNumber     string                  `json:"doc_number"`
	IssueDate     string                  `json:"issue_date"`
	Items         []billing.LineItem      `json:"items"`
	ExtraWork     []billing.ExtraWorkItem `json:"extra_work,omitempty"`
	Discount      float64                 `json:"discount"`
	Note          string                  `json:"note,omitempty"`
	Terms         []string                `json:"terms,omitempty"`
	Subtotal      float64                 `json:"subtotal"`
	GrandTotal    float64                 `json:"grand_total"`
	Images        []upload.Asset          `json:"images,omitempty"`
}

// Record is the persisted document returned by the backend.
type Record struct {
	ID int64 `json:"id"`
	Payload
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// API is the boundary the form controller submits through.
type API interface {
	Create(ctx context.Context, form shared.FormType, p Payload) (*Record, error)
	Update(ctx context.Context, form shared.FormType, id int64, p Payload) (*Record, error)
}

// Client is the default JSON-over-HTTP API implementation.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Create implements API.
func (c *Client) Create(ctx context.Context, form shared.FormType, p Payload) (*Record, error) {
	url := c.baseURL + form.ResourcePath()
	return c.send(ctx, http.MethodPost, url, p)
}

// Update implements API.
func (c *Client) Update(ctx context.Context, form shared.FormType, id int64, p Payload) (*Record, error) {
	url := fmt.Sprintf("%s%s/%d", c.baseURL, form.ResourcePath(), id)
	return c.send(ctx, http.MethodPut, url, p)
}

func (c *Client) send(ctx context.Context, method, url string, p Payload) (*Record, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		// Best-effort decode; an empty or unreadable body still yields a
		// usable error. The transport status wins over any status field in
		// the body.
		apiErr := &APIError{}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		apiErr.Status = resp.StatusCode
		return nil, apiErr
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
