package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/masig/pricebook/internal/activity"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskActivityRecord persists one activity log entry.
	TaskActivityRecord = "activity:record"
	// TaskActivityPrune removes activity entries past the retention window.
	TaskActivityPrune = "activity:prune"
)

// ActivityPrunePayload configures the retention window in days.
type ActivityPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewActivityRecordTask wraps entry in an Asynq task. The entry ID doubles
// as the task ID so a duplicate enqueue is rejected by the queue. Audit
// writes are attempted once.
func NewActivityRecordTask(entry activity.Entry) (*asynq.Task, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskActivityRecord, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(entry.ID.String()),
		asynq.MaxRetry(0),
	), nil
}

// NewActivityPruneTask builds the periodic retention task.
func NewActivityPruneTask(retentionDays int) (*asynq.Task, error) {
	body, err := json.Marshal(ActivityPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskActivityPrune, body, asynq.Queue(QueueDefault)), nil
}
