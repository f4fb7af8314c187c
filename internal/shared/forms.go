package shared

import "fmt"

// FormType identifies which editable document a form session belongs to.
// Drafts are keyed per form type, and the backend resource path is derived
// from it.
type FormType string

const (
	FormTypeQuotation FormType = "quotation"
	FormTypeProject   FormType = "project"
	FormTypeInvoice   FormType = "invoice"
)

// Valid reports whether the form type is one of the known documents.
func (f FormType) Valid() bool {
	switch f {
	case FormTypeQuotation, FormTypeProject, FormTypeInvoice:
		return true
	}
	return false
}

// ResourcePath returns the backend collection path for the form type.
func (f FormType) ResourcePath() string {
	return fmt.Sprintf("/api/%ss", string(f))
}
