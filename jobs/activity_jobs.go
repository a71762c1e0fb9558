package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/masig/pricebook/internal/activity"
	jobmetrics "github.com/masig/pricebook/internal/jobs"
)

// Enqueuer submits tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ActivityQueue is an activity.Sink that hands entries to the worker
// instead of writing them in the request process.
type ActivityQueue struct {
	enqueuer Enqueuer
}

// NewActivityQueue constructs the queued sink.
func NewActivityQueue(enqueuer Enqueuer) *ActivityQueue {
	return &ActivityQueue{enqueuer: enqueuer}
}

// Insert enqueues entry for persistence.
func (q *ActivityQueue) Insert(ctx context.Context, entry activity.Entry) error {
	task, err := NewActivityRecordTask(entry)
	if err != nil {
		return err
	}
	if _, err := q.enqueuer.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("jobs: enqueue %s: %w", TaskActivityRecord, err)
	}
	return nil
}

var _ activity.Sink = (*ActivityQueue)(nil)

// ActivityRecordJob writes queued activity entries to storage.
type ActivityRecordJob struct {
	Sink    activity.Sink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewActivityRecordJob wires the record handler.
func NewActivityRecordJob(sink activity.Sink, logger *slog.Logger, metrics *jobmetrics.Metrics) *ActivityRecordJob {
	return &ActivityRecordJob{Sink: sink, Logger: logger, Metrics: metrics}
}

// Handle processes TaskActivityRecord tasks. A failed write is logged and
// counted, then dropped without retry.
func (j *ActivityRecordJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sink == nil {
		return errors.New("activity record: sink not configured")
	}
	var entry activity.Entry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("activity record: decode: %v: %w", err, asynq.SkipRetry)
	}
	if _, err := activity.ParseAction(string(entry.Action)); err != nil || entry.UserEmail == "" {
		return fmt.Errorf("activity record: invalid entry %s: %w", entry.ID, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskActivityRecord)
	err := j.Sink.Insert(ctx, entry)
	if err != nil {
		j.logger().Error("persist activity", slog.String("id", entry.ID.String()), slog.Any("error", err))
		j.Metrics.AddEntries("dropped", 1)
		return fmt.Errorf("activity record: %w: %w", tracker.End(err), asynq.SkipRetry)
	}
	j.Metrics.AddEntries("recorded", 1)
	return tracker.End(nil)
}

func (j *ActivityRecordJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// Pruner deletes old activity entries.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ActivityPruneJob enforces the activity retention window.
type ActivityPruneJob struct {
	Repo    Pruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewActivityPruneJob constructs the prune handler.
func NewActivityPruneJob(repo Pruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *ActivityPruneJob {
	return &ActivityPruneJob{
		Repo:    repo,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskActivityPrune tasks. A non-positive retention keeps
// everything.
func (j *ActivityPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Repo == nil {
		return errors.New("activity prune: repository not configured")
	}
	var payload ActivityPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("activity prune: decode: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RetentionDays <= 0 {
		return nil
	}

	tracker := j.Metrics.Track(TaskActivityPrune)
	cutoff := j.clock().AddDate(0, 0, -payload.RetentionDays)
	removed, err := j.Repo.PruneBefore(ctx, cutoff)
	if err != nil {
		j.logger().Error("prune activity", slog.Time("cutoff", cutoff), slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddEntries("pruned", int(removed))
	j.logger().Info("activity pruned", slog.Time("cutoff", cutoff), slog.Int64("removed", removed))
	return tracker.End(nil)
}

func (j *ActivityPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
