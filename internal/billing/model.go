package billing

import "github.com/google/uuid"

// LineItem is a billable row on a quotation, project or invoice. Its total
// is either derived from the measured area and unit rate, or entered
// manually when no derivation is possible.
type LineItem struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Area        *float64 `json:"area,omitempty"`
	Rate        float64  `json:"rate"`
	Total       *float64 `json:"total,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// NewLineItem returns an empty row with a stable identity. The identity
// survives draft round-trips so rows can be matched after a restore.
func NewLineItem() LineItem {
	return LineItem{ID: uuid.NewString()}
}

// Derivable reports whether the row total is computed from area and rate.
// When it is, any stored Total is overwritten on the next recompute.
func (li LineItem) Derivable() bool {
	return li.Area != nil && *li.Area > 0 && li.Rate > 0
}

// ExtraWorkItem is an always-manual billable row used for work outside the
// quoted scope. Projects and invoices carry them; quotations may too.
type ExtraWorkItem struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Total       *float64 `json:"total,omitempty"`
	Note        string   `json:"note,omitempty"`
}

// NewExtraWorkItem returns an empty extra-work row with a stable identity.
func NewExtraWorkItem() ExtraWorkItem {
	return ExtraWorkItem{ID: uuid.NewString()}
}

// Totals are outputs of Calculate, never user input.
type Totals struct {
	Subtotal   float64 `json:"subtotal"`
	GrandTotal float64 `json:"grand_total"`
}
