package draft

import (
	"encoding/json"
	"time"
)

// Record is a locally persisted snapshot of an in-progress create-mode
// form. The form payload stays opaque to the store; the controller that
// scheduled the save knows how to decode it. In-memory file contents are
// never part of a record, only upload references and filenames.
type Record struct {
	SavedAt time.Time       `json:"saved_at"`
	Form    json.RawMessage `json:"form"`
}

// Decode unmarshals the snapshot payload into v.
func (r *Record) Decode(v any) error {
	return json.Unmarshal(r.Form, v)
}
