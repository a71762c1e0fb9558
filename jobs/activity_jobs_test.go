package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/masig/pricebook/internal/activity"
	jobmetrics "github.com/masig/pricebook/internal/jobs"
)

type stubEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type stubSink struct {
	entries []activity.Entry
	err     error
}

func (s *stubSink) Insert(ctx context.Context, e activity.Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

type stubPruner struct {
	cutoff  time.Time
	removed int64
}

func (s *stubPruner) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.removed, nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func sampleEntry() activity.Entry {
	code := "P001"
	return activity.Entry{
		ID:          uuid.New(),
		UserID:      uuid.NullUUID{UUID: uuid.New(), Valid: true},
		UserEmail:   "ana@masig.test",
		Action:      activity.ActionEdited,
		ProductCode: &code,
		Details:     map[string]any{"from": "10.00", "to": "12.00"},
		CreatedAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestActivityQueueRoundTrip(t *testing.T) {
	enq := &stubEnqueuer{}
	queue := NewActivityQueue(enq)
	entry := sampleEntry()

	require.NoError(t, queue.Insert(context.Background(), entry))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskActivityRecord, enq.tasks[0].Type())

	sink := &stubSink{}
	job := NewActivityRecordJob(sink, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), enq.tasks[0]))
	require.Len(t, sink.entries, 1)
	require.Equal(t, entry.ID, sink.entries[0].ID)
	require.Equal(t, "P001", *sink.entries[0].ProductCode)
	require.Nil(t, sink.entries[0].ProductName)
	require.True(t, entry.CreatedAt.Equal(sink.entries[0].CreatedAt))
}

func TestActivityQueueDuplicateIsNotAnError(t *testing.T) {
	queue := NewActivityQueue(&stubEnqueuer{err: asynq.ErrTaskIDConflict})
	require.NoError(t, queue.Insert(context.Background(), sampleEntry()))

	queue = NewActivityQueue(&stubEnqueuer{err: errors.New("redis down")})
	require.Error(t, queue.Insert(context.Background(), sampleEntry()))
}

func TestActivityRecordJobRejectsBadPayload(t *testing.T) {
	job := NewActivityRecordJob(&stubSink{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskActivityRecord, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	bad := sampleEntry()
	bad.Action = "exploded"
	body, _ := json.Marshal(bad)
	err = job.Handle(context.Background(), asynq.NewTask(TaskActivityRecord, body))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestActivityRecordJobDropsStorageFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := NewActivityRecordJob(&stubSink{err: errors.New("db down")}, nil, jobmetrics.NewMetrics(reg))
	task, err := NewActivityRecordTask(sampleEntry())
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, 1.0, counterValue(t, reg, "pricebook_jobs_failures_total"))
	require.Equal(t, 1.0, counterValue(t, reg, "pricebook_activity_entries_total"))
}

func TestActivityPruneJob(t *testing.T) {
	pruner := &stubPruner{removed: 4}
	job := NewActivityPruneJob(pruner, nil, nil)
	job.clock = func() time.Time { return time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC) }

	task, err := NewActivityPruneTask(30)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC), pruner.cutoff)

	pruner.cutoff = time.Time{}
	task, err = NewActivityPruneTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.True(t, pruner.cutoff.IsZero())
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"retry":0,"archived":0}`, rr.Body.String())
}

type stubStore struct {
	stubSink
	stubPruner
}

func TestNewWorkerSchedulesPruneOnlyWithRetention(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	require.Error(t, err)

	opts := asynq.RedisClientOpt{Addr: "127.0.0.1:0"}
	w, err := NewWorker(WorkerConfig{RedisOpts: opts, Store: &stubStore{}})
	require.NoError(t, err)
	require.Nil(t, w.scheduler)

	w, err = NewWorker(WorkerConfig{RedisOpts: opts, Store: &stubStore{}, RetentionDays: 30})
	require.NoError(t, err)
	require.NotNil(t, w.scheduler)
}
