package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDraftPrune is the task type for removing stale form drafts.
	TaskDraftPrune = "draft:prune"
)

// DraftPrunePayload describes which draft keys to scan and how old a
// record must be before it is removed.
type DraftPrunePayload struct {
	Prefix    string `json:"prefix"`
	Retention string `json:"retention"`
}

// NewDraftPruneTask constructs an Asynq task.
func NewDraftPruneTask(prefix string, retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(DraftPrunePayload{
		Prefix:    prefix,
		Retention: retention.String(),
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDraftPrune, data), nil
}
