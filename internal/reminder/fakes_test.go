package reminder

import (
	"context"
	"sync"
	"time"

	"campusevents/internal/model"
)

// fakeRow mirrors the delivery-state columns of an event_reminders row.
type fakeRow struct {
	claim        model.ClaimedReminder
	sent         bool
	sentAt       *time.Time
	processingAt *time.Time
	lastError    *string
}

// fakeStore is an in-memory Store with the same locking semantics as the
// real claim: one mutex makes ClaimDue atomic, claimed rows are excluded
// from later claims.
type fakeStore struct {
	mu sync.Mutex

	rows []*fakeRow

	claimErr    error
	markSentErr error

	markFailedCalls map[string]string
}

func newFakeStore(claims ...model.ClaimedReminder) *fakeStore {
	s := &fakeStore{markFailedCalls: make(map[string]string)}
	for _, c := range claims {
		s.rows = append(s.rows, &fakeRow{claim: c})
	}
	return s
}

func (s *fakeStore) ClaimDue(ctx context.Context, reminderType model.ReminderType, windowStart, windowEnd time.Time, batchSize int) ([]model.ClaimedReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return nil, s.claimErr
	}

	now := time.Now()
	var out []model.ClaimedReminder
	for _, r := range s.rows {
		if len(out) >= batchSize {
			break
		}
		if r.claim.ReminderType != reminderType || r.sent || r.processingAt != nil {
			continue
		}
		if r.claim.StartTime.Before(windowStart) || r.claim.StartTime.After(windowEnd) {
			continue
		}
		t := now
		r.processingAt = &t
		out = append(out, r.claim)
	}
	return out, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markSentErr != nil {
		return s.markSentErr
	}
	for _, r := range s.rows {
		if r.claim.ID == id {
			now := time.Now()
			r.sent = true
			r.sentAt = &now
			r.processingAt = nil
			r.lastError = nil
			return nil
		}
	}
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markFailedCalls[id] = lastError
	for _, r := range s.rows {
		if r.claim.ID == id {
			msg := lastError
			r.lastError = &msg
		}
	}
	return nil
}

func (s *fakeStore) row(id string) *fakeRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.claim.ID == id {
			return r
		}
	}
	return nil
}

func (s *fakeStore) countSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.sent {
			n++
		}
	}
	return n
}

// fakeMailer records send attempts per recipient. Attempts are counted on
// entry so timed-out sends still register as attempted.
type fakeMailer struct {
	mu    sync.Mutex
	delay time.Duration
	err   error
	calls map[string]int
	total int
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{calls: make(map[string]int)}
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	m.calls[to]++
	m.total++
	delay := m.delay
	err := m.err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *fakeMailer) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

func (m *fakeMailer) callsFor(to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[to]
}

// fakePublisher records published events.
type fakePublisher struct {
	mu       sync.Mutex
	payloads []any
	keys     []string
}

func (p *fakePublisher) Publish(routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// makeClaims builds n due rows of one type, events starting exactly at
// now+offset so they land mid-window.
func makeClaims(reminderType model.ReminderType, n int, idPrefix string) []model.ClaimedReminder {
	due := time.Now().Add(reminderType.Offset())
	out := make([]model.ClaimedReminder, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.ClaimedReminder{
			ID:           idPrefix + string(rune('a'+i)),
			UserID:       "user-" + idPrefix + string(rune('a'+i)),
			EventID:      "event-1",
			ReminderType: reminderType,
			Email:        idPrefix + string(rune('a'+i)) + "@gmail.com",
			EventTitle:   "Robotics Club Demo Night",
			StartTime:    due,
			Location:     "Engineering Hall 204",
		})
	}
	return out
}
