package forms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/brushworks-app/brushworks/internal/backend"
	"github.com/brushworks-app/brushworks/internal/upload"
)

// Submit validates, recomputes authoritatively, resolves pending uploads
// and hands the serialized form to the backend. A duplicate call while a
// submission is in flight is ignored and returns (nil, nil). On failure
// the draft is kept so the user's work survives for a retry; on success
// the create-mode draft is discarded.
func (c *Controller) Submit(ctx context.Context) (*backend.Record, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, nil
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	if errs := c.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	c.state = StateSubmitting
	c.RecomputeAll()

	assets, err := c.resolveUploads(ctx)
	if err != nil {
		c.state = StateEditing
		return nil, fmt.Errorf("resolve uploads: %w", err)
	}

	payload := c.payload(assets)

	var rec *backend.Record
	if c.mode == ModeEdit {
		rec, err = c.backend.Update(ctx, c.formType, c.recordID, payload)
	} else {
		rec, err = c.backend.Create(ctx, c.formType, payload)
	}
	if err != nil {
		c.state = StateEditing
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
			merged := FieldErrors{}
			for field, msg := range apiErr.Details {
				merged[field] = msg
			}
			c.fieldErrors = merged
		}
		return nil, err
	}

	c.form.Images = append(c.form.Images, assets...)
	c.form.Pending = nil
	c.fieldErrors = nil
	c.state = StateSubmitted

	if c.mode == ModeCreate && c.drafts != nil {
		if derr := c.drafts.Discard(ctx); derr != nil {
			c.logger.Warn("discard draft after submit", slog.Any("error", derr))
		}
	}
	return rec, nil
}

func (c *Controller) resolveUploads(ctx context.Context) ([]upload.Asset, error) {
	if len(c.form.Pending) == 0 {
		return nil, nil
	}
	if c.uploads == nil {
		return nil, errors.New("forms: no uploader configured for pending files")
	}

	assets := make([]upload.Asset, len(c.form.Pending))
	g, ctx := errgroup.WithContext(ctx)
	for i, pending := range c.form.Pending {
		if len(pending.Content) == 0 {
			// Restored from a draft: the binary was dropped on persist.
			return nil, fmt.Errorf("file %q must be re-attached before submitting", pending.Filename)
		}
		g.Go(func() error {
			asset, err := c.uploads.Upload(ctx, pending.Filename, bytes.NewReader(pending.Content))
			if err != nil {
				return fmt.Errorf("upload %s: %w", pending.Filename, err)
			}
			assets[i] = asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}

func (c *Controller) payload(newAssets []upload.Asset) backend.Payload {
	snapshot := c.form.clone()
	images := append(snapshot.Images, newAssets...)
	return backend.Payload{
		ClientName:    snapshot.ClientName,
		ClientAddress: snapshot.ClientAddress,
		DocNumber:     snapshot.DocNumber,
		IssueDate:     snapshot.IssueDate,
		Items:         snapshot.Items,
		ExtraWork:     snapshot.ExtraWork,
		Discount:      snapshot.Discount,
		Note:          snapshot.Note,
		Terms:         snapshot.Terms,
		Subtotal:      snapshot.Totals.Subtotal,
		GrandTotal:    snapshot.Totals.GrandTotal,
		Images:        images,
	}
}
