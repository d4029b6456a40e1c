package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mqcontracts "campusevents/contracts/mq"
	"campusevents/internal/model"
	"campusevents/pkg/logger"
)

type fakeNotificationStore struct {
	inserted []*model.Notification
	err      error
}

func (s *fakeNotificationStore) Insert(ctx context.Context, n *model.Notification) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.inserted = append(s.inserted, n)
	return "notif-1", nil
}

func sentPayload(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mqcontracts.ReminderSentPayload{
		UserID:       "user-1",
		EventID:      "event-7",
		ReminderType: "1_hour",
		EventTitle:   "Career Fair",
	})
	require.NoError(t, err)
	return raw
}

func TestFanout_InsertsNotificationAndNudgesChannel(t *testing.T) {
	store := &fakeNotificationStore{}
	var nudged []string
	f := NewFanout(store, func(ctx context.Context, userID string) error {
		nudged = append(nudged, userID)
		return nil
	}, logger.NewLogger("test"))

	require.NoError(t, f.Handle(context.Background(), sentPayload(t)))

	require.Len(t, store.inserted, 1)
	n := store.inserted[0]
	assert.Equal(t, "user-1", n.UserID)
	assert.Equal(t, model.NotificationEvent, n.Type)
	assert.Contains(t, n.Message, "Career Fair")
	assert.Contains(t, n.Message, "in 1 hour")
	require.NotNil(t, n.RelatedID)
	assert.Equal(t, "event-7", *n.RelatedID)

	assert.Equal(t, []string{"user-1"}, nudged)
}

func TestFanout_InsertFailureRequeues(t *testing.T) {
	store := &fakeNotificationStore{err: errors.New("db down")}
	f := NewFanout(store, func(ctx context.Context, userID string) error { return nil },
		logger.NewLogger("test"))

	err := f.Handle(context.Background(), sentPayload(t))
	require.Error(t, err, "insert failures must propagate so the message is redelivered")
}

func TestFanout_NudgeFailureDoesNotRequeue(t *testing.T) {
	store := &fakeNotificationStore{}
	f := NewFanout(store, func(ctx context.Context, userID string) error {
		return errors.New("redis down")
	}, logger.NewLogger("test"))

	assert.NoError(t, f.Handle(context.Background(), sentPayload(t)),
		"the row exists; clients reconcile on their next refresh")
}

func TestFanout_BadPayloadFails(t *testing.T) {
	f := NewFanout(&fakeNotificationStore{}, nil, logger.NewLogger("test"))
	require.Error(t, f.Handle(context.Background(), json.RawMessage(`{not json`)))
}
