package forms_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brushworks-app/brushworks/internal/backend"
	"github.com/brushworks-app/brushworks/internal/billing"
	"github.com/brushworks-app/brushworks/internal/draft"
	"github.com/brushworks-app/brushworks/internal/forms"
	"github.com/brushworks-app/brushworks/internal/platform/kv"
	"github.com/brushworks-app/brushworks/internal/shared"
	"github.com/brushworks-app/brushworks/internal/upload"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

// ============================================================================
// MOCKS
// ============================================================================

type mockAPI struct {
	mu          sync.Mutex
	createCalls int
	updateCalls int
	lastForm    shared.FormType
	lastID      int64
	lastPayload backend.Payload
	record      *backend.Record
	err         error

	// When set, Create blocks until released after signalling entered.
	entered  chan struct{}
	released chan struct{}
}

func (m *mockAPI) Create(ctx context.Context, form shared.FormType, p backend.Payload) (*backend.Record, error) {
	m.mu.Lock()
	m.createCalls++
	m.lastForm = form
	m.lastPayload = p
	entered, released := m.entered, m.released
	m.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-released
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.record != nil {
		return m.record, nil
	}
	return &backend.Record{ID: 1, Payload: p}, nil
}

func (m *mockAPI) Update(ctx context.Context, form shared.FormType, id int64, p backend.Payload) (*backend.Record, error) {
	m.mu.Lock()
	m.updateCalls++
	m.lastForm = form
	m.lastID = id
	m.lastPayload = p
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &backend.Record{ID: id, Payload: p}, nil
}

type mockUploader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockUploader) Upload(ctx context.Context, filename string, content io.Reader) (upload.Asset, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return upload.Asset{}, m.err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return upload.Asset{}, err
	}
	if len(data) == 0 {
		return upload.Asset{}, errors.New("empty upload")
	}
	return upload.Asset{URL: "https://cdn.example/" + filename, PublicID: filename}, nil
}

// ============================================================================
// HELPERS
// ============================================================================

func newDraftStore(t *testing.T) (*draft.Store, kv.Store) {
	t.Helper()
	backing := kv.NewMemory()
	store := draft.NewStore(nil, backing, "test:draft:", shared.FormTypeQuotation, 10*time.Millisecond)
	t.Cleanup(store.Close)
	return store, backing
}

func newController(t *testing.T, cfg forms.Config) *forms.Controller {
	t.Helper()
	if cfg.FormType == "" {
		cfg.FormType = shared.FormTypeQuotation
	}
	if cfg.Backend == nil {
		cfg.Backend = &mockAPI{}
	}
	c, err := forms.NewController(cfg)
	require.NoError(t, err)
	return c
}

func fillValid(c *forms.Controller) {
	c.UpdateDetails(forms.DetailsPatch{
		ClientName:    s("Jansen Schilderwerken"),
		ClientAddress: s("Dorpsstraat 1, Utrecht"),
		DocNumber:     s("Q-2026-014"),
		IssueDate:     s("2026-08-25"),
	})
	_ = c.UpdateItem(0, forms.ItemPatch{
		Description: s("Exterior walls, two coats"),
		Area:        f(100),
		Rate:        f(50),
	})
}

// ============================================================================
// CONSTRUCTION AND STRUCTURAL EDITS
// ============================================================================

func TestNewCreateSessionStartsWithOneItem(t *testing.T) {
	c := newController(t, forms.Config{DefaultTerms: []string{"Valid 30 days", "50% advance"}})

	form := c.Form()
	assert.Equal(t, forms.StateEmpty, c.State())
	require.Len(t, form.Items, 1)
	assert.Equal(t, []string{"Valid 30 days", "50% advance"}, form.Terms)
	assert.Equal(t, 0.0, form.Totals.GrandTotal)
}

func TestNewControllerRejectsUnknownFormType(t *testing.T) {
	_, err := forms.NewController(forms.Config{FormType: "ledger", Backend: &mockAPI{}})
	require.Error(t, err)
}

func TestRemoveLastItemIsNoOp(t *testing.T) {
	c := newController(t, forms.Config{})

	assert.False(t, c.CanRemoveItem())
	c.RemoveItem(0)
	assert.Len(t, c.Form().Items, 1)

	c.AddItem()
	assert.True(t, c.CanRemoveItem())
	c.RemoveItem(1)
	assert.Len(t, c.Form().Items, 1)
}

func TestRemoveExtraWorkHasNoMinimum(t *testing.T) {
	c := newController(t, forms.Config{})

	c.AddExtraWork()
	require.Len(t, c.Form().ExtraWork, 1)
	c.RemoveExtraWork(0)
	assert.Empty(t, c.Form().ExtraWork)
}

func TestUpdateItemOutOfRange(t *testing.T) {
	c := newController(t, forms.Config{})
	require.Error(t, c.UpdateItem(5, forms.ItemPatch{Rate: f(10)}))
	require.Error(t, c.UpdateExtraWork(0, forms.ExtraWorkPatch{Total: f(10)}))
}

// ============================================================================
// RECOMPUTATION
// ============================================================================

func TestDerivedTotalOverridesManualEntry(t *testing.T) {
	c := newController(t, forms.Config{})

	require.NoError(t, c.UpdateItem(0, forms.ItemPatch{
		Description: s("Touch-up work"),
		Rate:        f(0),
		Total:       f(2000),
	}))
	assert.Equal(t, 2000.0, c.Form().Totals.Subtotal)

	// Both area and rate turn positive: the manual 2000 is discarded.
	require.NoError(t, c.UpdateItem(0, forms.ItemPatch{Area: f(40), Rate: f(10)}))

	form := c.Form()
	require.NotNil(t, form.Items[0].Total)
	assert.Equal(t, 400.0, *form.Items[0].Total)
	assert.Equal(t, 400.0, form.Totals.Subtotal)
	assert.Equal(t, forms.StateEditing, c.State())
}

func TestDiscountRecomputesAndFloorsAtZero(t *testing.T) {
	c := newController(t, forms.Config{})
	fillValid(c)

	c.UpdateDiscount(500)
	assert.Equal(t, 4500.0, c.Form().Totals.GrandTotal)

	c.UpdateDiscount(9000)
	assert.Equal(t, 5000.0, c.Form().Totals.Subtotal)
	assert.Equal(t, 0.0, c.Form().Totals.GrandTotal)
}

func TestRecomputeAllIsIdempotent(t *testing.T) {
	c := newController(t, forms.Config{})
	fillValid(c)

	c.RecomputeAll()
	first := c.Form().Totals
	c.RecomputeAll()
	assert.Equal(t, first, c.Form().Totals)
}

// ============================================================================
// VALIDATION
// ============================================================================

func TestValidateEmptyForm(t *testing.T) {
	c := newController(t, forms.Config{})

	errs := c.Validate()
	assert.Contains(t, errs, "client_name")
	assert.Contains(t, errs, "client_address")
	assert.Contains(t, errs, "doc_number")
	assert.Contains(t, errs, "issue_date")
	assert.Contains(t, errs, "items.0.description")
	assert.Contains(t, errs, "items.0.total")
	assert.Equal(t, forms.StateInvalid, c.State())

	fillValid(c)
	assert.Empty(t, c.Validate())
	assert.Equal(t, forms.StateEditing, c.State())
}

func TestValidateDateFormat(t *testing.T) {
	c := newController(t, forms.Config{})
	fillValid(c)

	c.UpdateDetails(forms.DetailsPatch{IssueDate: s("25-08-2026")})
	errs := c.Validate()
	assert.Contains(t, errs, "issue_date")
}

func TestValidateNegativeNumbers(t *testing.T) {
	c := newController(t, forms.Config{})
	fillValid(c)

	require.NoError(t, c.UpdateItem(0, forms.ItemPatch{Area: f(-5), Rate: f(-1), Total: f(-10)}))
	errs := c.Validate()
	assert.Contains(t, errs, "items.0.area")
	assert.Contains(t, errs, "items.0.rate")
	assert.Contains(t, errs, "items.0.total")

	c.UpdateDiscount(-1)
	assert.Contains(t, c.Validate(), "discount")
}

func TestValidateManualTotalRequiredOnlyWhenNotDerivable(t *testing.T) {
	c := newController(t, forms.Config{})
	fillValid(c)

	// Derivable row: no manual total needed.
	assert.NotContains(t, c.Validate(), "items.0.total")

	// Clearing the area makes the stored total authoritative; it is still
	// present (the last derived value), so validation passes.
	require.NoError(t, c.UpdateItem(0, forms.ItemPatch{ClearArea: true}))
	assert.NotContains(t, c.Validate(), "items.0.total")

	// Dropping the total as well makes the row incomplete.
	require.NoError(t, c.UpdateItem(0, forms.ItemPatch{ClearTotal: true}))
	assert.Contains(t, c.Validate(), "items.0.total")
}

func TestValidateExtraWork(t *testing.T) {
	c := newController(t, forms.Config{})
	fillValid(c)

	c.AddExtraWork()
	errs := c.Validate()
	assert.Contains(t, errs, "extra_work.0.description")
	assert.Contains(t, errs, "extra_work.0.total")

	require.NoError(t, c.UpdateExtraWork(0, forms.ExtraWorkPatch{
		Description: s("Repair rotten window frame"),
		Total:       f(350),
	}))
	assert.Empty(t, c.Validate())
	assert.Equal(t, 5350.0, c.Form().Totals.Subtotal)
}

// ============================================================================
// SUBMISSION
// ============================================================================

func TestSubmitInvalidFormNeverReachesBackend(t *testing.T) {
	api := &mockAPI{}
	c := newController(t, forms.Config{Backend: api})

	rec, err := c.Submit(context.Background())
	assert.Nil(t, rec)

	var vErr *forms.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.NotEmpty(t, vErr.Fields)
	assert.Zero(t, api.createCalls)
	assert.Equal(t, forms.StateInvalid, c.State())
}

func TestSubmitSuccessDiscardsDraft(t *testing.T) {
	api := &mockAPI{}
	store, backing := newDraftStore(t)
	c := newController(t, forms.Config{Backend: api, Drafts: store})

	fillValid(c)
	require.NoError(t, store.Flush(context.Background()))
	rec, err := store.LoadIfPresent(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec, "editing must have produced a draft")

	result, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, api.createCalls)
	assert.Equal(t, shared.FormTypeQuotation, api.lastForm)
	assert.Equal(t, forms.StateSubmitted, c.State())

	// Payload carries the authoritative totals.
	assert.Equal(t, 5000.0, api.lastPayload.Subtotal)
	assert.Equal(t, 5000.0, api.lastPayload.GrandTotal)

	rec, err = store.LoadIfPresent(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)

	// No stale debounce write resurrects the draft.
	time.Sleep(50 * time.Millisecond)
	_, ok, err := backing.Get(context.Background(), store.Key())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubmitBackendErrorKeepsDraft(t *testing.T) {
	api := &mockAPI{err: &backend.APIError{
		Status:  422,
		Message: "validation failed",
		Details: map[string]string{"doc_number": "number already in use"},
	}}
	store, _ := newDraftStore(t)
	c := newController(t, forms.Config{Backend: api, Drafts: store})

	fillValid(c)
	require.NoError(t, store.Flush(context.Background()))

	rec, err := c.Submit(context.Background())
	assert.Nil(t, rec)

	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "number already in use", c.Errors()["doc_number"])
	assert.Equal(t, forms.StateEditing, c.State())

	saved, err := store.LoadIfPresent(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, saved, "draft must survive a failed submission")
}

func TestDuplicateSubmitIsIgnored(t *testing.T) {
	api := &mockAPI{
		entered:  make(chan struct{}, 1),
		released: make(chan struct{}),
	}
	c := newController(t, forms.Config{Backend: api})
	fillValid(c)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-api.entered

	// Second call while the first is in flight: silent no-op.
	rec, err := c.Submit(context.Background())
	assert.Nil(t, rec)
	assert.NoError(t, err)

	close(api.released)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.createCalls)
}

// ============================================================================
// DRAFT RESTORE AND EDIT MODE
// ============================================================================

func TestHydrateRestoresSavedForm(t *testing.T) {
	api := &mockAPI{}
	store, _ := newDraftStore(t)

	first := newController(t, forms.Config{Backend: api, Drafts: store, DefaultTerms: []string{"Valid 30 days"}})
	fillValid(first)
	first.AddExtraWork()
	require.NoError(t, first.UpdateExtraWork(0, forms.ExtraWorkPatch{Description: s("Scaffolding"), Total: f(750)}))
	require.NoError(t, store.Flush(context.Background()))
	saved := first.Form()

	rec, err := store.LoadIfPresent(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)

	second := newController(t, forms.Config{Backend: api, Drafts: store})
	require.NoError(t, second.Hydrate(rec))

	restored := second.Form()
	assert.Equal(t, saved.ClientName, restored.ClientName)
	assert.Equal(t, saved.DocNumber, restored.DocNumber)
	assert.Equal(t, saved.Items, restored.Items)
	assert.Equal(t, saved.ExtraWork, restored.ExtraWork)
	assert.Equal(t, saved.Terms, restored.Terms)
	assert.Equal(t, forms.StateEditing, second.State())
}

func TestHydrateNeverTrustsPersistedTotals(t *testing.T) {
	c := newController(t, forms.Config{})

	form := forms.Form{
		ClientName: "Peeters",
		Items: []billing.LineItem{
			{ID: "a", Description: "Walls", Area: f(100), Rate: 50, Total: f(9999)},
		},
		Totals: billing.Totals{Subtotal: 1, GrandTotal: 1},
	}
	data, err := json.Marshal(form)
	require.NoError(t, err)

	require.NoError(t, c.Hydrate(&draft.Record{SavedAt: time.Now(), Form: data}))

	restored := c.Form()
	assert.Equal(t, 5000.0, restored.Totals.Subtotal)
	assert.Equal(t, 5000.0, *restored.Items[0].Total)
}

func TestEditModeNeverTouchesDrafts(t *testing.T) {
	api := &mockAPI{}
	store, backing := newDraftStore(t)

	existing := forms.Form{
		ClientName:    "Mulder",
		ClientAddress: "Kerkweg 8",
		DocNumber:     "Q-2026-002",
		IssueDate:     "2026-07-01",
		Items:         []billing.LineItem{{ID: "a", Description: "Ceilings", Rate: 0, Total: f(1200)}},
	}
	c := newController(t, forms.Config{
		Mode:     forms.ModeEdit,
		Backend:  api,
		Drafts:   store,
		RecordID: 42,
		Existing: &existing,
	})

	c.UpdateDiscount(100)
	require.NoError(t, store.Flush(context.Background()))
	_, ok, err := backing.Get(context.Background(), store.Key())
	require.NoError(t, err)
	assert.False(t, ok, "edit sessions must not write drafts")

	require.Error(t, c.Hydrate(&draft.Record{}))

	rec, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 0, api.createCalls)
	assert.Equal(t, 1, api.updateCalls)
	assert.Equal(t, int64(42), api.lastID)
	assert.Equal(t, 1100.0, api.lastPayload.GrandTotal)
}

func TestSubmitAfterEditAllowsResubmission(t *testing.T) {
	api := &mockAPI{}
	c := newController(t, forms.Config{Backend: api})
	fillValid(c)

	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, forms.StateSubmitted, c.State())

	c.UpdateDiscount(250)
	assert.Equal(t, forms.StateEditing, c.State())

	_, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, api.createCalls)
}

// ============================================================================
// FILE UPLOADS
// ============================================================================

func TestSubmitResolvesPendingUploads(t *testing.T) {
	api := &mockAPI{}
	uploader := &mockUploader{}
	c := newController(t, forms.Config{Backend: api, Uploads: uploader})
	fillValid(c)

	c.AttachFile("before.jpg", []byte("jpeg-bytes"))
	c.AttachFile("after.jpg", []byte("jpeg-bytes"))

	rec, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, uploader.calls)

	require.Len(t, api.lastPayload.Images, 2)
	assert.Equal(t, "before.jpg", api.lastPayload.Images[0].PublicID)
	assert.Equal(t, "after.jpg", api.lastPayload.Images[1].PublicID)

	// Resolved uploads moved into the form's image references.
	form := c.Form()
	assert.Empty(t, form.Pending)
	assert.Len(t, form.Images, 2)
}

func TestSubmitUploadFailureAbortsBeforeBackend(t *testing.T) {
	api := &mockAPI{}
	uploader := &mockUploader{err: errors.New("service unavailable")}
	store, _ := newDraftStore(t)
	c := newController(t, forms.Config{Backend: api, Uploads: uploader, Drafts: store})
	fillValid(c)
	c.AttachFile("site.jpg", []byte("jpeg-bytes"))
	require.NoError(t, store.Flush(context.Background()))

	rec, err := c.Submit(context.Background())
	assert.Nil(t, rec)
	require.Error(t, err)
	assert.Zero(t, api.createCalls)
	assert.Equal(t, forms.StateEditing, c.State())

	saved, err := store.LoadIfPresent(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, saved)
}

func TestDraftSnapshotDropsFileContents(t *testing.T) {
	store, _ := newDraftStore(t)
	c := newController(t, forms.Config{Drafts: store})
	fillValid(c)
	c.AttachFile("site.jpg", []byte("jpeg-bytes"))
	require.NoError(t, store.Flush(context.Background()))

	rec, err := store.LoadIfPresent(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotContains(t, string(rec.Form), "jpeg-bytes")
	assert.Contains(t, string(rec.Form), "site.jpg")

	// A restored pending file has no content and must be re-attached.
	second := newController(t, forms.Config{Drafts: store})
	require.NoError(t, second.Hydrate(rec))
	assert.Empty(t, second.Form().Pending)
}

var errBackendDown = errors.New("backend unavailable")

func TestSubmitPlainErrorSurfacedWithoutFieldDetails(t *testing.T) {
	api := &mockAPI{err: errBackendDown}
	c := newController(t, forms.Config{Backend: api})
	fillValid(c)

	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, errBackendDown)
	assert.Equal(t, forms.StateEditing, c.State())
}
