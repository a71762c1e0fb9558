package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/masig/pricebook/internal/shared"
)

// Sink persists activity entries.
type Sink interface {
	Insert(ctx context.Context, entry Entry) error
}

// FailureCounter counts writes that could not be persisted.
type FailureCounter interface {
	Inc()
}

// Recorder writes activity entries in the background. Callers never wait
// for the write and never observe its failure.
type Recorder struct {
	sink     Sink
	logger   *slog.Logger
	failures FailureCounter
	timeout  time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewRecorder constructs a Recorder. failures may be nil.
func NewRecorder(sink Sink, logger *slog.Logger, failures FailureCounter) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		sink:     sink,
		logger:   logger,
		failures: failures,
		timeout:  5 * time.Second,
		now:      time.Now,
	}
}

// Record schedules an entry for the given actor. Without an actor nothing
// is recorded.
func (r *Recorder) Record(ctx context.Context, actor *shared.Session, p Params) {
	if r == nil || actor == nil {
		return
	}
	entry := r.entryFor(actor, p)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		if err := r.sink.Insert(writeCtx, entry); err != nil {
			r.logger.Error("record activity",
				slog.String("action", string(entry.Action)),
				slog.String("user_email", entry.UserEmail),
				slog.Any("error", err))
			if r.failures != nil {
				r.failures.Inc()
			}
		}
	}()
}

// Wait blocks until all scheduled writes have finished.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

func (r *Recorder) entryFor(actor *shared.Session, p Params) Entry {
	email := actor.Email
	if email == "" {
		email = UnknownEmail
	}
	return Entry{
		ID:          uuid.New(),
		UserID:      uuid.NullUUID{UUID: actor.UserID, Valid: actor.UserID != uuid.Nil},
		UserEmail:   email,
		Action:      p.Action,
		ProductCode: optional(p.ProductCode),
		ProductName: optional(p.ProductName),
		Details:     p.Details,
		CreatedAt:   r.now().UTC(),
	}
}
