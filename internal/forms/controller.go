package forms

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/brushworks-app/brushworks/internal/backend"
	"github.com/brushworks-app/brushworks/internal/billing"
	"github.com/brushworks-app/brushworks/internal/draft"
	"github.com/brushworks-app/brushworks/internal/shared"
	"github.com/brushworks-app/brushworks/internal/upload"
)

// Config collects the collaborators and session parameters for a
// Controller. Default terms are injected here rather than hardcoded so
// the core stays free of business copy.
type Config struct {
	Logger       *slog.Logger
	FormType     shared.FormType
	Mode         Mode
	Backend      backend.API
	Uploads      upload.Uploader
	Drafts       *draft.Store
	DefaultTerms []string

	// Edit mode only: the persisted record being edited, as fetched from
	// the backend by the caller.
	RecordID int64
	Existing *Form
}

// Controller exclusively owns the item collections for one editing
// session. All mutation goes through its methods; each mutating method
// recomputes totals and, in create mode, schedules a debounced draft save.
type Controller struct {
	logger   *slog.Logger
	formType shared.FormType
	mode     Mode
	backend  backend.API
	uploads  upload.Uploader
	drafts   *draft.Store
	validate *validator.Validate

	form        Form
	state       State
	fieldErrors FieldErrors
	recordID    int64

	mu       sync.Mutex
	inFlight bool
}

// NewController constructs a session. Create-mode forms start with one
// empty line item, since a document must always carry at least one.
func NewController(cfg Config) (*Controller, error) {
	if !cfg.FormType.Valid() {
		return nil, fmt.Errorf("forms: unknown form type %q", cfg.FormType)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeCreate
	}
	if cfg.Backend == nil {
		return nil, errors.New("forms: backend API is required")
	}
	if cfg.Mode == ModeEdit && cfg.Existing == nil {
		return nil, errors.New("forms: edit mode requires the existing record")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		logger:   logger,
		formType: cfg.FormType,
		mode:     cfg.Mode,
		backend:  cfg.Backend,
		uploads:  cfg.Uploads,
		validate: validator.New(),
	}

	if cfg.Mode == ModeEdit {
		c.form = cfg.Existing.clone()
		c.recordID = cfg.RecordID
		c.state = StateEditing
	} else {
		c.drafts = cfg.Drafts
		c.form = Form{
			Items: []billing.LineItem{billing.NewLineItem()},
			Terms: append([]string(nil), cfg.DefaultTerms...),
		}
		c.state = StateEmpty
	}
	c.RecomputeAll()
	return c, nil
}

// Form returns a copy of the current snapshot for rendering.
func (c *Controller) Form() Form {
	return c.form.clone()
}

// State returns the session state.
func (c *Controller) State() State {
	return c.state
}

// Mode returns the session mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Errors returns the field errors recorded by the last Validate or failed
// submission.
func (c *Controller) Errors() FieldErrors {
	out := FieldErrors{}
	for k, v := range c.fieldErrors {
		out[k] = v
	}
	return out
}

// RecomputeAll resolves every line total and rewrites the aggregate
// totals. Derivable rows have area*rate written through destructively,
// discarding any manually entered value. Synchronous: totals are settled
// before the call returns.
func (c *Controller) RecomputeAll() {
	for i := range c.form.Items {
		if c.form.Items[i].Derivable() {
			v := billing.ResolveLineTotal(c.form.Items[i])
			c.form.Items[i].Total = &v
		}
	}
	c.form.Totals = billing.Calculate(c.form.Items, c.form.ExtraWork, c.form.Discount)
}

func (c *Controller) afterChange() {
	if c.state != StateSubmitting {
		c.state = StateEditing
	}
	c.RecomputeAll()
	c.scheduleDraft()
}

func (c *Controller) scheduleDraft() {
	if c.mode != ModeCreate || c.drafts == nil {
		return
	}
	c.drafts.ScheduleSave(c.form)
}

// AddItem appends an empty line item.
func (c *Controller) AddItem() {
	c.form.Items = append(c.form.Items, billing.NewLineItem())
	c.afterChange()
}

// CanRemoveItem reports whether a line item may be removed. The last
// remaining item may not be; callers surface this as a disabled control.
func (c *Controller) CanRemoveItem() bool {
	return len(c.form.Items) > 1
}

// RemoveItem drops the line item at index. Removing the last remaining
// item, or an out-of-range index, is a no-op.
func (c *Controller) RemoveItem(index int) {
	if !c.CanRemoveItem() {
		return
	}
	if index < 0 || index >= len(c.form.Items) {
		return
	}
	c.form.Items = append(c.form.Items[:index], c.form.Items[index+1:]...)
	c.afterChange()
}

// AddExtraWork appends an empty extra-work row.
func (c *Controller) AddExtraWork() {
	c.form.ExtraWork = append(c.form.ExtraWork, billing.NewExtraWorkItem())
	c.afterChange()
}

// RemoveExtraWork drops the extra-work row at index. Extra work has no
// minimum count.
func (c *Controller) RemoveExtraWork(index int) {
	if index < 0 || index >= len(c.form.ExtraWork) {
		return
	}
	c.form.ExtraWork = append(c.form.ExtraWork[:index], c.form.ExtraWork[index+1:]...)
	c.afterChange()
}

// UpdateItem applies a field patch to the line item at index and
// recomputes. If the patch makes the row derivable, the next recompute
// overwrites any manual total with area*rate.
func (c *Controller) UpdateItem(index int, patch ItemPatch) error {
	if index < 0 || index >= len(c.form.Items) {
		return fmt.Errorf("forms: item index %d out of range", index)
	}
	item := &c.form.Items[index]
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.ClearArea {
		item.Area = nil
	} else if patch.Area != nil {
		v := *patch.Area
		item.Area = &v
	}
	if patch.Rate != nil {
		item.Rate = *patch.Rate
	}
	if patch.ClearTotal {
		item.Total = nil
	} else if patch.Total != nil {
		v := *patch.Total
		item.Total = &v
	}
	if patch.Note != nil {
		item.Note = *patch.Note
	}
	c.afterChange()
	return nil
}

// UpdateExtraWork applies a field patch to the extra-work row at index.
func (c *Controller) UpdateExtraWork(index int, patch ExtraWorkPatch) error {
	if index < 0 || index >= len(c.form.ExtraWork) {
		return fmt.Errorf("forms: extra work index %d out of range", index)
	}
	extra := &c.form.ExtraWork[index]
	if patch.Description != nil {
		extra.Description = *patch.Description
	}
	if patch.ClearTotal {
		extra.Total = nil
	} else if patch.Total != nil {
		v := *patch.Total
		extra.Total = &v
	}
	if patch.Note != nil {
		extra.Note = *patch.Note
	}
	c.afterChange()
	return nil
}

// UpdateDetails applies edits to the top-level document fields.
func (c *Controller) UpdateDetails(patch DetailsPatch) {
	if patch.ClientName != nil {
		c.form.ClientName = *patch.ClientName
	}
	if patch.ClientAddress != nil {
		c.form.ClientAddress = *patch.ClientAddress
	}
	if patch.DocNumber != nil {
		c.form.DocNumber = *patch.DocNumber
	}
	if patch.IssueDate != nil {
		c.form.IssueDate = *patch.IssueDate
	}
	if patch.Note != nil {
		c.form.Note = *patch.Note
	}
	if patch.Terms != nil {
		c.form.Terms = append([]string(nil), (*patch.Terms)...)
	}
	c.afterChange()
}

// UpdateDiscount sets the discount and recomputes the aggregate totals.
func (c *Controller) UpdateDiscount(value float64) {
	c.form.Discount = value
	c.afterChange()
}

// AttachFile stages a file for upload at submission time. Only the
// filename survives a draft save; the content stays in memory.
func (c *Controller) AttachFile(filename string, content []byte) {
	c.form.Pending = append(c.form.Pending, PendingFile{Filename: filename, Content: content})
	c.afterChange()
}

// Hydrate replaces the form with a restored draft and recomputes.
// Persisted totals are never trusted: they are re-derived so the
// resolution rule holds even if the snapshot predates a rule change.
// Restoration is user-confirmed; callers invoke this only after the user
// accepts the offered draft.
func (c *Controller) Hydrate(rec *draft.Record) error {
	if c.mode != ModeCreate {
		return errors.New("forms: drafts apply to create-mode sessions only")
	}
	if rec == nil {
		return errors.New("forms: nil draft record")
	}
	var restored Form
	if err := rec.Decode(&restored); err != nil {
		return fmt.Errorf("forms: decode draft: %w", err)
	}
	if len(restored.Items) == 0 {
		restored.Items = []billing.LineItem{billing.NewLineItem()}
	}
	// File contents never survive persistence; the user re-attaches them.
	restored.Pending = nil
	c.form = restored
	c.state = StateEditing
	c.RecomputeAll()
	return nil
}
