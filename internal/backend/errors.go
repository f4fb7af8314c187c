package backend

import "fmt"

// APIError is a structured rejection from the backend. Details, when
// present, map field paths to messages so the form can surface them next
// to the offending inputs.
type APIError struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.Status)
}
