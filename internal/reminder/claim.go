// Package reminder implements the claim-and-dispatch pipeline: an atomic
// claim of due reminder rows followed by a time-boxed worker pool that sends
// the emails and records per-row delivery state.
package reminder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"campusevents/internal/model"
	"campusevents/pkg/metrics"
)

const (
	// WindowHalfWidth is the half-width of the due window around now+offset.
	WindowHalfWidth = 5 * time.Minute
	// BatchPerType caps how many rows one invocation claims per reminder type.
	BatchPerType = 10
)

// Store is the reminder persistence surface the pipeline needs. ClaimDue must
// be atomic with respect to concurrent callers: two overlapping invocations
// must never receive the same row.
type Store interface {
	ClaimDue(ctx context.Context, reminderType model.ReminderType, windowStart, windowEnd time.Time, batchSize int) ([]model.ClaimedReminder, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, lastError string) error
}

// ClaimEngine computes due windows and claims batches of reminder rows.
type ClaimEngine struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewClaimEngine(store Store, logger *zap.Logger) *ClaimEngine {
	return &ClaimEngine{store: store, logger: logger, now: time.Now}
}

// ClaimDue claims up to BatchPerType rows of the given type whose event
// starts within WindowHalfWidth of now+offset. A claim failure aborts the
// whole batch for this type; nothing is swallowed at this layer.
func (e *ClaimEngine) ClaimDue(ctx context.Context, reminderType model.ReminderType) ([]model.ClaimedReminder, error) {
	due := e.now().Add(reminderType.Offset())
	windowStart := due.Add(-WindowHalfWidth)
	windowEnd := due.Add(WindowHalfWidth)

	claimed, err := e.store.ClaimDue(ctx, reminderType, windowStart, windowEnd, BatchPerType)
	if err != nil {
		return nil, err
	}

	metrics.ClaimBatchSize.WithLabelValues(string(reminderType)).Observe(float64(len(claimed)))
	e.logger.Debug("Claimed due reminders",
		zap.String("reminder_type", string(reminderType)),
		zap.Int("count", len(claimed)),
		zap.Time("window_start", windowStart),
		zap.Time("window_end", windowEnd),
	)
	return claimed, nil
}
