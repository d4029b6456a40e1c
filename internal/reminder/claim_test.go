package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusevents/internal/model"
	"campusevents/pkg/logger"
)

// recordingStore captures the claim window the engine computed.
type recordingStore struct {
	fakeStore
	windowStart time.Time
	windowEnd   time.Time
	batchSize   int
}

func (s *recordingStore) ClaimDue(ctx context.Context, reminderType model.ReminderType, windowStart, windowEnd time.Time, batchSize int) ([]model.ClaimedReminder, error) {
	s.windowStart = windowStart
	s.windowEnd = windowEnd
	s.batchSize = batchSize
	return nil, nil
}

func TestClaimEngine_WindowBounds(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		reminderType model.ReminderType
		offset       time.Duration
	}{
		{model.ReminderOneHour, time.Hour},
		{model.ReminderOneDay, 24 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(string(tc.reminderType), func(t *testing.T) {
			store := &recordingStore{}
			e := NewClaimEngine(store, logger.NewLogger("test"))
			e.now = func() time.Time { return now }

			_, err := e.ClaimDue(context.Background(), tc.reminderType)
			require.NoError(t, err)

			due := now.Add(tc.offset)
			assert.Equal(t, due.Add(-WindowHalfWidth), store.windowStart)
			assert.Equal(t, due.Add(WindowHalfWidth), store.windowEnd)
			assert.Equal(t, BatchPerType, store.batchSize)
		})
	}
}

func TestClaimEngine_ConcurrentClaimsAreDisjoint(t *testing.T) {
	store := newFakeStore(makeClaims(model.ReminderOneHour, 20, "h")...)
	e := NewClaimEngine(store, logger.NewLogger("test"))

	var wg sync.WaitGroup
	results := make([][]model.ClaimedReminder, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.ClaimDue(context.Background(), model.ReminderOneHour)
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	seen := make(map[string]bool)
	for _, batch := range results {
		assert.LessOrEqual(t, len(batch), BatchPerType)
		for _, c := range batch {
			assert.False(t, seen[c.ID], "row %s claimed twice", c.ID)
			seen[c.ID] = true
		}
	}
	assert.Len(t, seen, 2*BatchPerType)
}

func TestClaimEngine_ErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.claimErr = errors.New("deadlock detected")
	e := NewClaimEngine(store, logger.NewLogger("test"))

	_, err := e.ClaimDue(context.Background(), model.ReminderOneDay)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
}
