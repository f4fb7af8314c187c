// Package upload wraps the external file upload service. The core only
// ever stores and forwards the two opaque identifiers the service returns;
// file contents are never interpreted here.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Asset identifies an uploaded file.
type Asset struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// Uploader sends a binary file to the upload service.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (Asset, error)
}

// Client is the default HTTP Uploader.
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

// Upload posts the file as multipart form data and returns its references.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (Asset, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Asset{}, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return Asset{}, err
	}
	if err := writer.Close(); err != nil {
		return Asset{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/upload", c.baseURL), body)
	if err != nil {
		return Asset{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Asset{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return Asset{}, fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return Asset{}, fmt.Errorf("decode upload response: %w", err)
	}
	return asset, nil
}
