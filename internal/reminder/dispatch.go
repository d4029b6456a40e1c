package reminder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	mqcontracts "campusevents/contracts/mq"
	"campusevents/internal/mailer"
	"campusevents/internal/model"
	"campusevents/pkg/metrics"
)

const (
	// MaxTotalSend caps sends per invocation across both reminder types.
	MaxTotalSend = 8
	// Concurrency is the fixed size of the dispatch worker pool.
	Concurrency = 3
	// HardDeadline is the wall-clock budget for one whole invocation.
	HardDeadline = 4700 * time.Millisecond
	// SendTimeout bounds one email provider call.
	SendTimeout = 1100 * time.Millisecond
	// StoreTimeout bounds one reminder state update.
	StoreTimeout = 550 * time.Millisecond

	// SkipReasonNonGmail is recorded on rows rejected by the recipient filter.
	SkipReasonNonGmail = "skipped_non_gmail"

	lastErrorMaxLen = 300
)

// EventPublisher publishes pipeline events; satisfied by mq.Publisher.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// Summary is the per-invocation report returned to the scheduler.
type Summary struct {
	ClaimedOneHour  int   `json:"claimed_1_hour"`
	ClaimedOneDay   int   `json:"claimed_1_day"`
	Sent            int   `json:"sent"`
	SkippedNonGmail int   `json:"skipped_non_gmail"`
	Failed          int   `json:"failed"`
	TimedOutEarly   bool  `json:"timed_out_early"`
	DurationMS      int64 `json:"duration_ms"`
}

// Dispatcher claims due reminders and drains them through a fixed worker
// pool raced against a hard deadline.
type Dispatcher struct {
	store     Store
	mailer    mailer.Mailer
	claim     *ClaimEngine
	publisher EventPublisher
	logger    *zap.Logger

	concurrency  int
	maxTotal     int
	deadline     time.Duration
	sendTimeout  time.Duration
	storeTimeout time.Duration
}

func NewDispatcher(store Store, m mailer.Mailer, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:        store,
		mailer:       m,
		claim:        NewClaimEngine(store, logger),
		logger:       logger,
		concurrency:  Concurrency,
		maxTotal:     MaxTotalSend,
		deadline:     HardDeadline,
		sendTimeout:  SendTimeout,
		storeTimeout: StoreTimeout,
	}
}

// WithPublisher emits reminder.sent events after successful deliveries.
func (d *Dispatcher) WithPublisher(p EventPublisher) *Dispatcher {
	d.publisher = p
	return d
}

func (d *Dispatcher) WithConcurrency(n int) *Dispatcher {
	d.concurrency = n
	return d
}

func (d *Dispatcher) WithMaxTotal(n int) *Dispatcher {
	d.maxTotal = n
	return d
}

func (d *Dispatcher) WithDeadline(dl time.Duration) *Dispatcher {
	d.deadline = dl
	return d
}

func (d *Dispatcher) WithSendTimeout(t time.Duration) *Dispatcher {
	d.sendTimeout = t
	return d
}

func (d *Dispatcher) WithStoreTimeout(t time.Duration) *Dispatcher {
	d.storeTimeout = t
	return d
}

// Run performs one invocation: claim both reminder types, drain the queue,
// report. A claim failure aborts the invocation; per-row failures do not.
func (d *Dispatcher) Run(ctx context.Context) (*Summary, error) {
	startedAt := time.Now()
	deadlineAt := startedAt.Add(d.deadline)

	oneHour, err := d.claim.ClaimDue(ctx, model.ReminderOneHour)
	if err != nil {
		return nil, err
	}
	oneDay, err := d.claim.ClaimDue(ctx, model.ReminderOneDay)
	if err != nil {
		return nil, err
	}

	rows := append(append([]model.ClaimedReminder{}, oneHour...), oneDay...)
	if len(rows) > d.maxTotal {
		// Global throughput cap; the overflow stays claimed and is picked up
		// by a later run once its lock goes stale.
		rows = rows[:d.maxTotal]
	}

	q := &rowQueue{rows: rows}
	t := &tally{}

	var wg sync.WaitGroup
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx, q, deadlineAt, t)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Race the pool against the deadline. Per-worker checks cover the common
	// case; this guards against pathological scheduling where a worker never
	// reaches its next check in time. Workers are not cancelled: an in-flight
	// send finishes or hits its own timeout, we just stop waiting for it.
	timedOut := false
	timer := time.NewTimer(time.Until(deadlineAt))
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		timedOut = true
	case <-ctx.Done():
		timedOut = true
	}

	sent, skipped, failed, deadlineHit := t.snapshot()
	timedOut = timedOut || deadlineHit
	if timedOut {
		metrics.DispatchDeadlineHits.Inc()
	}

	duration := time.Since(startedAt)
	metrics.DispatchDuration.Observe(float64(duration.Milliseconds()))

	summary := &Summary{
		ClaimedOneHour:  len(oneHour),
		ClaimedOneDay:   len(oneDay),
		Sent:            sent,
		SkippedNonGmail: skipped,
		Failed:          failed,
		TimedOutEarly:   timedOut,
		DurationMS:      duration.Milliseconds(),
	}

	d.logger.Info("Reminder dispatch completed",
		zap.Int("claimed_1_hour", summary.ClaimedOneHour),
		zap.Int("claimed_1_day", summary.ClaimedOneDay),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped_non_gmail", summary.SkippedNonGmail),
		zap.Int("failed", summary.Failed),
		zap.Bool("timed_out_early", summary.TimedOutEarly),
		zap.Int64("duration_ms", summary.DurationMS),
	)
	return summary, nil
}

// worker drains the shared queue until it is empty or the deadline passes.
// Deadline checks happen between rows only; rows abandoned here stay locked
// for a later run.
func (d *Dispatcher) worker(ctx context.Context, q *rowQueue, deadlineAt time.Time, t *tally) {
	for {
		row, ok := q.pop()
		if !ok {
			return
		}
		if time.Now().After(deadlineAt) {
			t.markDeadlineHit()
			return
		}
		d.process(ctx, row, t)
	}
}

func (d *Dispatcher) process(ctx context.Context, row model.ClaimedReminder, t *tally) {
	log := d.logger.With(
		zap.String("reminder_id", row.ID),
		zap.String("reminder_type", string(row.ReminderType)),
	)

	if !mailer.EligibleRecipient(row.Email) {
		d.recordFailure(ctx, row, SkipReasonNonGmail)
		t.addSkipped()
		metrics.RemindersSkipped.WithLabelValues(string(row.ReminderType)).Inc()
		return
	}

	subject, html, err := mailer.RenderReminder(row)
	if err != nil {
		d.recordFailure(ctx, row, truncateError(err))
		t.addFailed()
		metrics.RemindersFailed.WithLabelValues(string(row.ReminderType)).Inc()
		log.Error("Reminder render failed", zap.Error(err))
		return
	}

	sendCtx, cancelSend := context.WithTimeout(ctx, d.sendTimeout)
	err = d.mailer.Send(sendCtx, row.Email, subject, html)
	cancelSend()
	if err != nil {
		d.recordFailure(ctx, row, truncateError(err))
		t.addFailed()
		metrics.RemindersFailed.WithLabelValues(string(row.ReminderType)).Inc()
		log.Warn("Reminder send failed", zap.Error(err))
		return
	}

	markCtx, cancelMark := context.WithTimeout(ctx, d.storeTimeout)
	err = d.store.MarkSent(markCtx, row.ID)
	cancelMark()
	if err != nil {
		// The email already went out. The row stays locked with sent=false so
		// no retry can double-send before the stale-lock policy reclaims it.
		d.recordFailure(ctx, row, "mark_sent_failed: "+truncateError(err))
		t.addFailed()
		metrics.RemindersFailed.WithLabelValues(string(row.ReminderType)).Inc()
		log.Error("Reminder mark-sent failed after successful send", zap.Error(err))
		return
	}

	t.addSent()
	metrics.RemindersSent.WithLabelValues(string(row.ReminderType)).Inc()
	d.publishSent(row, log)
}

// recordFailure writes last_error, leaving processing_at untouched.
func (d *Dispatcher) recordFailure(ctx context.Context, row model.ClaimedReminder, reason string) {
	markCtx, cancel := context.WithTimeout(ctx, d.storeTimeout)
	defer cancel()
	if err := d.store.MarkFailed(markCtx, row.ID, reason); err != nil {
		d.logger.Warn("Failed to record reminder failure",
			zap.String("reminder_id", row.ID),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) publishSent(row model.ClaimedReminder, log *zap.Logger) {
	if d.publisher == nil {
		return
	}
	payload := mqcontracts.ReminderSentPayload{
		UserID:       row.UserID,
		EventID:      row.EventID,
		ReminderType: string(row.ReminderType),
		EventTitle:   row.EventTitle,
		StartTime:    row.StartTime,
	}
	if err := d.publisher.Publish(mqcontracts.RoutingKeyReminderSent, payload); err != nil {
		log.Warn("Failed to publish reminder.sent event", zap.Error(err))
	}
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > lastErrorMaxLen {
		msg = msg[:lastErrorMaxLen]
	}
	return msg
}

// rowQueue is the shared FIFO the pool drains. Each row is popped exactly
// once; cooperative pops under one mutex, no preemption.
type rowQueue struct {
	mu   sync.Mutex
	rows []model.ClaimedReminder
	next int
}

func (q *rowQueue) pop() (model.ClaimedReminder, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.rows) {
		return model.ClaimedReminder{}, false
	}
	row := q.rows[q.next]
	q.next++
	return row, true
}

// tally collects invocation counters across workers.
type tally struct {
	mu          sync.Mutex
	sent        int
	skipped     int
	failed      int
	deadlineHit bool
}

func (t *tally) addSent() {
	t.mu.Lock()
	t.sent++
	t.mu.Unlock()
}

func (t *tally) addSkipped() {
	t.mu.Lock()
	t.skipped++
	t.mu.Unlock()
}

func (t *tally) addFailed() {
	t.mu.Lock()
	t.failed++
	t.mu.Unlock()
}

func (t *tally) markDeadlineHit() {
	t.mu.Lock()
	t.deadlineHit = true
	t.mu.Unlock()
}

func (t *tally) snapshot() (sent, skipped, failed int, deadlineHit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent, t.skipped, t.failed, t.deadlineHit
}
