package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "campusevents/contracts/mq"
	"campusevents/internal/model"
)

// NotificationStore is the insert surface the fanout needs.
type NotificationStore interface {
	Insert(ctx context.Context, n *model.Notification) (string, error)
}

// ChangeNotifier nudges a user's realtime channel; wired to PublishChange.
type ChangeNotifier func(ctx context.Context, userID string) error

// Fanout consumes reminder.sent events, materializes a notification row for
// the recipient, and pokes their realtime channel.
type Fanout struct {
	store    NotificationStore
	notifier ChangeNotifier
	logger   *zap.Logger
}

func NewFanout(store NotificationStore, notifier ChangeNotifier, logger *zap.Logger) *Fanout {
	return &Fanout{store: store, notifier: notifier, logger: logger}
}

// Handle is the MQ handler for reminder.sent. Insert failures return an
// error so the message is redelivered; a failed channel nudge does not, the
// row exists and the client reconciles on its next refresh.
func (f *Fanout) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.ReminderSentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		f.logger.Error("Failed to unmarshal ReminderSentPayload", zap.Error(err))
		return err
	}

	var lead string
	if p.ReminderType == string(model.ReminderOneHour) {
		lead = "in 1 hour"
	} else {
		lead = "tomorrow"
	}

	n := &model.Notification{
		UserID:    p.UserID,
		Title:     "Upcoming event",
		Message:   fmt.Sprintf("%s starts %s", p.EventTitle, lead),
		Type:      model.NotificationEvent,
		RelatedID: &p.EventID,
	}

	id, err := f.store.Insert(ctx, n)
	if err != nil {
		f.logger.Error("Failed to insert reminder notification",
			zap.String("user_id", p.UserID),
			zap.Error(err),
		)
		return err
	}

	if err := f.notifier(ctx, p.UserID); err != nil {
		f.logger.Warn("Failed to nudge notification channel",
			zap.String("user_id", p.UserID),
			zap.String("notification_id", id),
			zap.Error(err),
		)
	}
	return nil
}
