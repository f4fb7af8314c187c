// Package draft persists in-progress form snapshots locally, independent of
// the remote backend. Saves are debounced so a burst of edits collapses
// into a single write; the record survives until it is discarded or the
// form is successfully submitted.
package draft

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/brushworks-app/brushworks/internal/platform/kv"
	"github.com/brushworks-app/brushworks/internal/shared"
)

const writeTimeout = 5 * time.Second

// Store owns the draft record for one form type. There is exactly one
// storage key per form type; every save overwrites the previous record.
type Store struct {
	logger *slog.Logger
	store  kv.Store
	key    string
	delay  time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *Record
	// gen advances on every ScheduleSave, Flush, Discard and Close. A
	// debounced write whose timer fired before one of those ran carries a
	// stale generation and must not reach the store: a discarded draft
	// stays discarded and an older snapshot never overwrites a newer one.
	gen uint64
}

// NewStore constructs a Store writing under prefix+formType. The delay is
// the debounce window: a new ScheduleSave within the window cancels and
// replaces the pending write.
func NewStore(logger *slog.Logger, store kv.Store, prefix string, form shared.FormType, delay time.Duration) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		store:  store,
		key:    prefix + string(form),
		delay:  delay,
	}
}

// Key returns the fixed storage key for this store.
func (s *Store) Key() string {
	return s.key
}

// ScheduleSave snapshots the form now and arms the debounce timer. The
// snapshot is taken at call time so later mutations of the form do not
// leak into the pending record.
func (s *Store) ScheduleSave(form any) {
	data, err := json.Marshal(form)
	if err != nil {
		s.logger.Error("draft snapshot failed", slog.Any("error", err))
		return
	}
	rec := Record{SavedAt: time.Now().UTC(), Form: data}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.pending = &rec
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.savePending)
}

func (s *Store) savePending() {
	s.mu.Lock()
	rec := s.pending
	gen := s.gen
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()
	if rec == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	// Re-take the lock for the write itself. If the generation moved while
	// this goroutine was between the timer firing and here, a Discard,
	// Flush or newer save superseded this snapshot and it must be dropped.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	if err := s.writeLocked(ctx, *rec); err != nil {
		s.logger.Warn("draft save failed", slog.Any("error", err))
	}
}

// writeLocked requires s.mu to be held.
func (s *Store) writeLocked(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, s.key, string(data))
}

// Flush writes any pending snapshot immediately, cancelling the timer.
// Used on shutdown so a scheduled save is not lost.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	rec := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if rec == nil {
		return nil
	}
	return s.writeLocked(ctx, *rec)
}

// LoadIfPresent returns the stored record, or nil when no draft exists.
// An unreadable stored value is treated as absent and cleared; it never
// blocks normal form use.
func (s *Store) LoadIfPresent(ctx context.Context) (*Record, error) {
	val, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		s.logger.Warn("discarding unreadable draft", slog.String("key", s.key), slog.Any("error", err))
		if delErr := s.store.Delete(ctx, s.key); delErr != nil {
			s.logger.Warn("clear unreadable draft failed", slog.Any("error", delErr))
		}
		return nil, nil
	}
	return &rec, nil
}

// Discard removes the stored record and cancels any pending save.
// Discarding an absent draft is a no-op.
func (s *Store) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// Deleting under the lock means an in-flight debounced write either
	// completed before this delete or is dropped by the generation check.
	return s.store.Delete(ctx, s.key)
}

// Close stops the debounce timer without writing. Pending work can be
// preserved by calling Flush first.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
