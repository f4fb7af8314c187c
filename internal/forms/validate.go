package forms

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a field path (e.g. "items.2.rate") to a message.
// An empty map means the form is valid.
type FieldErrors map[string]string

// ValidationError aggregates per-field failures blocking a submission.
type ValidationError struct {
	Fields FieldErrors
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(e.Fields))
}

// Validate runs all field-level and cross-field rules and records the
// result on the session. Rows are checked by position so messages land
// next to the offending inputs.
func (c *Controller) Validate() FieldErrors {
	errs := FieldErrors{}

	if err := c.validate.Struct(c.form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			switch fieldErr.Field() {
			case "ClientName":
				errs["client_name"] = "client name is required"
			case "ClientAddress":
				errs["client_address"] = "client address is required"
			case "DocNumber":
				errs["doc_number"] = "document number is required"
			case "IssueDate":
				errs["issue_date"] = "issue date is required"
			case "Discount":
				errs["discount"] = "discount must be zero or positive"
			}
		}
	}
	if c.form.IssueDate != "" {
		if _, err := time.Parse(DateFormat, c.form.IssueDate); err != nil {
			errs["issue_date"] = "issue date must match " + DateFormat
		}
	}

	for i, item := range c.form.Items {
		path := fmt.Sprintf("items.%d", i)
		if strings.TrimSpace(item.Description) == "" {
			errs[path+".description"] = "description is required"
		}
		if item.Rate < 0 {
			errs[path+".rate"] = "rate must be zero or positive"
		}
		if item.Area != nil && *item.Area < 0 {
			errs[path+".area"] = "area must be zero or positive"
		}
		if item.Derivable() {
			// Total is display-only here; the derived value wins.
			continue
		}
		if item.Total == nil {
			errs[path+".total"] = "total is required when it cannot be derived from area and rate"
		} else if *item.Total < 0 {
			errs[path+".total"] = "total must be zero or positive"
		}
	}

	for i, extra := range c.form.ExtraWork {
		path := fmt.Sprintf("extra_work.%d", i)
		if strings.TrimSpace(extra.Description) == "" {
			errs[path+".description"] = "description is required"
		}
		if extra.Total == nil {
			errs[path+".total"] = "total is required"
		} else if *extra.Total < 0 {
			errs[path+".total"] = "total must be zero or positive"
		}
	}

	c.fieldErrors = errs
	if len(errs) > 0 {
		c.state = StateInvalid
	} else if c.state == StateInvalid {
		c.state = StateEditing
	}
	return errs
}
