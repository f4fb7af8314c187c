// Package forms owns the editable state of one document form session:
// the ordered item collections, totals recomputation, validation, draft
// scheduling and submission hand-off.
package forms

import (
	"github.com/brushworks-app/brushworks/internal/billing"
	"github.com/brushworks-app/brushworks/internal/upload"
)

// DateFormat is the fixed calendar format for document dates.
const DateFormat = "2006-01-02"

// Mode distinguishes creating a new record from editing a persisted one.
// Drafts exist only for create-mode sessions.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// State is the form session lifecycle.
type State string

const (
	StateEmpty      State = "EMPTY"
	StateEditing    State = "EDITING"
	StateInvalid    State = "INVALID"
	StateSubmitting State = "SUBMITTING"
	StateSubmitted  State = "SUBMITTED"
)

// PendingFile is a file picked in the form but not yet uploaded. Content
// is deliberately dropped from draft snapshots; only the filename survives
// and the file is re-requested from the user on restore.
type PendingFile struct {
	Filename string `json:"filename"`
	Content  []byte `json:"-"`
}

// Form is the full editable snapshot of a document. Totals are outputs of
// recomputation, never user input.
type Form struct {
	ClientName    string                  `json:"client_name" validate:"required"`
	ClientAddress string                  `json:"client_address" validate:"required"`
	DocNumber     string                  `json:"doc_number" validate:"required"`
	IssueDate     string                  `json:"issue_date" validate:"required"`
	Items         []billing.LineItem      `json:"items"`
	ExtraWork     []billing.ExtraWorkItem `json:"extra_work,omitempty"`
	Discount      float64                 `json:"discount" validate:"gte=0"`
	Note          string                  `json:"note,omitempty"`
	Terms         []string                `json:"terms,omitempty"`
	Images        []upload.Asset          `json:"images,omitempty"`
	Pending       []PendingFile           `json:"pending_files,omitempty"`
	Totals        billing.Totals          `json:"totals"`
}

func (f Form) clone() Form {
	f.Items = append([]billing.LineItem(nil), f.Items...)
	f.ExtraWork = append([]billing.ExtraWorkItem(nil), f.ExtraWork...)
	f.Terms = append([]string(nil), f.Terms...)
	f.Images = append([]upload.Asset(nil), f.Images...)
	f.Pending = append([]PendingFile(nil), f.Pending...)
	return f
}

// ItemPatch carries field edits for one line item. Nil fields are left
// untouched; the Clear flags reset optional fields to absent.
type ItemPatch struct {
	Description *string
	Area        *float64
	ClearArea   bool
	Rate        *float64
	Total       *float64
	ClearTotal  bool
	Note        *string
}

// ExtraWorkPatch carries field edits for one extra-work row.
type ExtraWorkPatch struct {
	Description *string
	Total       *float64
	ClearTotal  bool
	Note        *string
}

// DetailsPatch carries edits to the top-level document fields.
type DetailsPatch struct {
	ClientName    *string
	ClientAddress *string
	DocNumber     *string
	IssueDate     *string
	Note          *string
	Terms         *[]string
}
