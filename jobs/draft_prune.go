package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/brushworks-app/brushworks/internal/draft"
)

// DraftPruner removes form drafts whose last save is older than the
// configured retention. Unreadable records are removed as well; the form
// treats them as absent anyway.
type DraftPruner struct {
	logger *slog.Logger
	client *redis.Client
}

// NewDraftPruner constructs the pruner.
func NewDraftPruner(client *redis.Client, logger *slog.Logger) *DraftPruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftPruner{logger: logger, client: client}
}

// Handle processes TaskDraftPrune tasks.
func (p *DraftPruner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DraftPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention, err := time.ParseDuration(payload.Retention)
	if err != nil || retention <= 0 {
		return asynq.SkipRetry
	}

	removed, err := p.Prune(ctx, payload.Prefix, retention)
	if err != nil {
		return err
	}
	if removed > 0 {
		p.logger.Info("pruned drafts", slog.Int("removed", removed), slog.String("prefix", payload.Prefix))
	}
	return nil
}

// Prune scans the draft key space once and returns how many records were
// removed.
func (p *DraftPruner) Prune(ctx context.Context, prefix string, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)
	removed := 0

	iter := p.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := p.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return removed, err
		}

		var rec draft.Record
		stale := false
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			stale = true
			p.logger.Warn("removing unreadable draft", slog.String("key", key))
		} else if rec.SavedAt.Before(cutoff) {
			stale = true
		}
		if !stale {
			continue
		}
		if err := p.client.Del(ctx, key).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}
