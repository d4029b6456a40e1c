// Package notify implements realtime notification delivery: a per-user
// change feed over Redis pub/sub and a resilient client channel session that
// mirrors one user's notifications with debounced, deduplicated fetches.
package notify

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Status is the lifecycle state reported by a feed subscription.
type Status string

const (
	StatusSubscribed   Status = "subscribed"
	StatusTimedOut     Status = "timed_out"
	StatusChannelError Status = "channel_error"
	StatusClosed       Status = "closed"
)

// Subscription is one live per-user change feed. Events carries a signal per
// upstream change; Statuses carries connection lifecycle transitions.
type Subscription struct {
	events   <-chan struct{}
	statuses <-chan Status
	closeFn  func()
}

func NewSubscription(events <-chan struct{}, statuses <-chan Status, closeFn func()) *Subscription {
	return &Subscription{events: events, statuses: statuses, closeFn: closeFn}
}

func (s *Subscription) Events() <-chan struct{} { return s.events }

func (s *Subscription) Statuses() <-chan Status { return s.statuses }

func (s *Subscription) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Feed opens change subscriptions scoped to one user.
type Feed interface {
	Subscribe(ctx context.Context, userID string) (*Subscription, error)
}

// UserChannel is the per-user pub/sub channel key.
func UserChannel(userID string) string {
	return "notify:user:" + userID
}

// PublishChange nudges the user's channel after their notification rows
// changed. The payload carries no data; subscribers refetch.
func PublishChange(ctx context.Context, rdb *redis.Client, userID string) error {
	return rdb.Publish(ctx, UserChannel(userID), "changed").Err()
}

// RedisFeed implements Feed over Redis pub/sub.
type RedisFeed struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(rdb *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, logger: logger}
}

func (f *RedisFeed) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	pubsub := f.rdb.Subscribe(ctx, UserChannel(userID))

	events := make(chan struct{}, 8)
	statuses := make(chan Status, 4)

	go func() {
		// Wait for the broker to confirm before reporting subscribed.
		if _, err := pubsub.Receive(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				pushStatus(statuses, StatusTimedOut)
			} else {
				pushStatus(statuses, StatusChannelError)
			}
			_ = pubsub.Close()
			return
		}
		pushStatus(statuses, StatusSubscribed)

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				pushStatus(statuses, StatusClosed)
				_ = pubsub.Close()
				return
			case _, ok := <-ch:
				if !ok {
					pushStatus(statuses, StatusChannelError)
					return
				}
				select {
				case events <- struct{}{}:
				default:
					// Subscriber is behind; it refetches on the next signal
					// anyway, so dropping here loses nothing.
				}
			}
		}
	}()

	return NewSubscription(events, statuses, func() { _ = pubsub.Close() }), nil
}

// pushStatus never blocks: a torn-down session may have stopped reading.
func pushStatus(ch chan Status, st Status) {
	select {
	case ch <- st:
	default:
	}
}
