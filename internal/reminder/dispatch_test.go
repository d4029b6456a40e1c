package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mqcontracts "campusevents/contracts/mq"
	"campusevents/internal/model"
	"campusevents/pkg/logger"
)

func testDispatcher(store Store, m *fakeMailer) *Dispatcher {
	return NewDispatcher(store, m, logger.NewLogger("test"))
}

func TestDispatcher_QueueTruncation(t *testing.T) {
	// 10 claimed per type, global cap 8: exactly 8 dispatched.
	claims := append(makeClaims(model.ReminderOneHour, 10, "h"), makeClaims(model.ReminderOneDay, 10, "d")...)
	store := newFakeStore(claims...)
	m := newFakeMailer()

	summary, err := testDispatcher(store, m).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, summary.ClaimedOneHour)
	assert.Equal(t, 10, summary.ClaimedOneDay)
	assert.Equal(t, 8, summary.Sent)
	assert.Equal(t, 8, m.totalCalls())
	assert.Equal(t, 8, store.countSent())
	assert.False(t, summary.TimedOutEarly)

	// The overflow stays claimed but untouched: no error, no send.
	untouched := 0
	for _, c := range claims {
		r := store.row(c.ID)
		if !r.sent && r.lastError == nil {
			require.NotNil(t, r.processingAt, "claimed rows stay locked")
			untouched++
		}
	}
	assert.Equal(t, 12, untouched)
}

func TestDispatcher_SentRowsNeverLookLocked(t *testing.T) {
	store := newFakeStore(makeClaims(model.ReminderOneHour, 4, "h")...)
	m := newFakeMailer()

	summary, err := testDispatcher(store, m).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, summary.Sent)

	for _, r := range store.rows {
		require.True(t, r.sent)
		assert.Nil(t, r.processingAt, "sent rows must not look like stuck locks")
		assert.NotNil(t, r.sentAt)
		assert.Nil(t, r.lastError)
	}
}

func TestDispatcher_DeadlineCutsPoolOff(t *testing.T) {
	store := newFakeStore(makeClaims(model.ReminderOneHour, 6, "h")...)
	m := newFakeMailer()
	m.delay = 200 * time.Millisecond

	summary, err := testDispatcher(store, m).
		WithDeadline(50 * time.Millisecond).
		Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.TimedOutEarly)
	assert.Less(t, summary.Sent, 6)
}

func TestDispatcher_SkipsNonGmailRecipients(t *testing.T) {
	claims := makeClaims(model.ReminderOneHour, 2, "h")
	claims[0].Email = "someone@university.edu"
	store := newFakeStore(claims...)
	m := newFakeMailer()

	summary, err := testDispatcher(store, m).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SkippedNonGmail)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 0, m.callsFor("someone@university.edu"))
	assert.Equal(t, SkipReasonNonGmail, store.markFailedCalls[claims[0].ID])

	r := store.row(claims[0].ID)
	assert.False(t, r.sent)
	assert.NotNil(t, r.processingAt, "skipped rows stay locked until the stale policy reclaims them")
}

func TestDispatcher_SendFailureLeavesRowLocked(t *testing.T) {
	claims := makeClaims(model.ReminderOneHour, 1, "h")
	store := newFakeStore(claims...)
	m := newFakeMailer()
	m.err = errors.New("provider unavailable")

	summary, err := testDispatcher(store, m).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Sent)

	r := store.row(claims[0].ID)
	assert.False(t, r.sent)
	assert.NotNil(t, r.processingAt)
	require.NotNil(t, r.lastError)
	assert.Contains(t, *r.lastError, "provider unavailable")
}

func TestDispatcher_SendTimeoutRecordedAsFailure(t *testing.T) {
	claims := makeClaims(model.ReminderOneHour, 1, "h")
	store := newFakeStore(claims...)
	m := newFakeMailer()
	m.delay = 200 * time.Millisecond

	summary, err := testDispatcher(store, m).
		WithSendTimeout(20 * time.Millisecond).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)

	r := store.row(claims[0].ID)
	assert.False(t, r.sent)
	assert.NotNil(t, r.processingAt)
	require.NotNil(t, r.lastError)
	assert.Contains(t, *r.lastError, "context deadline exceeded")
}

func TestDispatcher_MarkSentFailureNeverDoubleSends(t *testing.T) {
	claims := makeClaims(model.ReminderOneHour, 1, "h")
	store := newFakeStore(claims...)
	store.markSentErr = errors.New("update timed out")
	m := newFakeMailer()

	d := testDispatcher(store, m)
	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	// The email went out but the row could not be marked; it must stay
	// sent=false and locked.
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, m.callsFor(claims[0].Email))

	r := store.row(claims[0].ID)
	assert.False(t, r.sent)
	assert.NotNil(t, r.processingAt)
	require.NotNil(t, r.lastError)
	assert.Contains(t, *r.lastError, "mark_sent_failed")

	// A second invocation cannot reclaim the locked row, so the recipient
	// never gets a second email from it.
	store.markSentErr = nil
	_, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.callsFor(claims[0].Email))
}

func TestDispatcher_ClaimFailureAbortsInvocation(t *testing.T) {
	store := newFakeStore()
	store.claimErr = errors.New("claim rpc failed")
	m := newFakeMailer()

	summary, err := testDispatcher(store, m).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Equal(t, 0, m.totalCalls())
}

func TestDispatcher_PublishesSentEvents(t *testing.T) {
	claims := makeClaims(model.ReminderOneHour, 3, "h")
	store := newFakeStore(claims...)
	m := newFakeMailer()
	pub := &fakePublisher{}

	summary, err := testDispatcher(store, m).WithPublisher(pub).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Sent)

	require.Equal(t, 3, pub.count())
	for _, key := range pub.keys {
		assert.Equal(t, mqcontracts.RoutingKeyReminderSent, key)
	}
	payload, ok := pub.payloads[0].(mqcontracts.ReminderSentPayload)
	require.True(t, ok)
	assert.Equal(t, "1_hour", payload.ReminderType)
	assert.Equal(t, "Robotics Club Demo Night", payload.EventTitle)
}
