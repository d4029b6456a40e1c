package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"campusevents/internal/model"
	"campusevents/pkg/util"
)

const (
	// DebounceDelay is the trailing debounce applied to refresh requests.
	DebounceDelay = 250 * time.Millisecond
	// FetchTimeout force-aborts a hung fetch.
	FetchTimeout = 10 * time.Second
	// FetchLimit is how many notifications one refresh pulls.
	FetchLimit = 20

	// BackoffBase is the first reconnect delay; each retry doubles it.
	BackoffBase = time.Second
	// MaxBackoffTries caps the exponent, MaxBackoffDelay caps the delay.
	MaxBackoffTries = 6
	MaxBackoffDelay = 30 * time.Second
)

// Snapshot is one consistent view of a user's notification state.
type Snapshot struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

// Fetcher loads the current notification snapshot for a user.
type Fetcher interface {
	FetchNotifications(ctx context.Context, userID string, limit int) (*Snapshot, error)
}

// BackoffDelay returns the reconnect delay for the given attempt number:
// 1s, 2s, 4s, 8s, 16s, then capped at 30s.
func BackoffDelay(tries int) time.Duration {
	return backoffDelay(BackoffBase, tries)
}

func backoffDelay(base time.Duration, tries int) time.Duration {
	if tries < 1 {
		tries = 1
	}
	if tries > MaxBackoffTries {
		tries = MaxBackoffTries
	}
	d := base << (tries - 1)
	if d > MaxBackoffDelay {
		d = MaxBackoffDelay
	}
	return d
}

// ChannelSession keeps an eventually consistent local mirror of one user's
// notifications. Invariants: at most one fetch in flight, request ids are
// monotonic and stale completions are discarded, bursts of change events
// collapse into at most one trailing refetch, and teardown leaves no timers,
// subscriptions, or in-flight requests behind.
type ChannelSession struct {
	feed       Feed
	fetcher    Fetcher
	logger     *zap.Logger
	onSnapshot func(*Snapshot)

	ctx    context.Context
	cancel context.CancelFunc

	debounce     time.Duration
	fetchTimeout time.Duration
	backoffBase  time.Duration
	limit        int

	mu             sync.Mutex
	userID         string
	closed         bool
	loading        bool
	pendingReload  bool
	reqID          uint64
	cancelFetch    context.CancelFunc
	tries          int
	sub            *Subscription
	debounceTimer  *time.Timer
	reconnectTimer *time.Timer
}

func NewChannelSession(userID string, feed Feed, fetcher Fetcher, logger *zap.Logger, onSnapshot func(*Snapshot)) *ChannelSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChannelSession{
		userID:       userID,
		feed:         feed,
		fetcher:      fetcher,
		logger:       logger,
		onSnapshot:   onSnapshot,
		ctx:          ctx,
		cancel:       cancel,
		debounce:     DebounceDelay,
		fetchTimeout: FetchTimeout,
		backoffBase:  BackoffBase,
		limit:        FetchLimit,
	}
}

func (s *ChannelSession) WithDebounce(d time.Duration) *ChannelSession {
	s.debounce = d
	return s
}

func (s *ChannelSession) WithFetchTimeout(d time.Duration) *ChannelSession {
	s.fetchTimeout = d
	return s
}

func (s *ChannelSession) WithBackoffBase(d time.Duration) *ChannelSession {
	s.backoffBase = d
	return s
}

func (s *ChannelSession) WithLimit(n int) *ChannelSession {
	s.limit = n
	return s
}

// Start subscribes to the user's change feed. Call once; reconnects are
// handled internally.
func (s *ChannelSession) Start() {
	s.connect()
}

func (s *ChannelSession) connect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	old := s.sub
	s.sub = nil
	userID := s.userID
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	sub, err := s.feed.Subscribe(s.ctx, userID)
	if err != nil {
		if transient, kind := util.IsTransientError(err); !transient {
			s.logger.Warn("Notification feed subscribe failed",
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
		s.scheduleReconnect()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Close()
		return
	}
	s.sub = sub
	s.mu.Unlock()

	go s.pump(sub)
}

// pump consumes one subscription until it terminates.
func (s *ChannelSession) pump(sub *Subscription) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case _, ok := <-sub.Events():
			if !ok {
				s.scheduleReconnect()
				return
			}
			s.ScheduleRefresh()
		case st, ok := <-sub.Statuses():
			if !ok {
				s.scheduleReconnect()
				return
			}
			if st == StatusSubscribed {
				s.mu.Lock()
				s.tries = 0
				s.mu.Unlock()
				s.ScheduleRefresh()
				continue
			}
			// timed_out, channel_error, closed
			sub.Close()
			s.scheduleReconnect()
			return
		}
	}
}

// ScheduleRefresh requests a debounced snapshot refresh. Calls landing while
// one is already scheduled coalesce into it.
func (s *ChannelSession) ScheduleRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.debounceTimer != nil {
		return
	}
	s.debounceTimer = time.AfterFunc(s.debounce, s.refresh)
}

// OnVisible triggers a refresh when the consumer returns to the foreground,
// covering change events missed while it was not watching.
func (s *ChannelSession) OnVisible() {
	s.ScheduleRefresh()
}

func (s *ChannelSession) refresh() {
	s.mu.Lock()
	s.debounceTimer = nil
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.loading {
		// One fetch at a time: remember that state moved under it and drain
		// with a single trailing refetch once it completes.
		s.pendingReload = true
		s.mu.Unlock()
		return
	}
	if s.cancelFetch != nil {
		// A superseded fetch may still be unwinding; abort it.
		s.cancelFetch()
	}
	s.loading = true
	s.reqID++
	id := s.reqID
	userID := s.userID
	ctx, cancel := context.WithTimeout(s.ctx, s.fetchTimeout)
	s.cancelFetch = cancel
	s.mu.Unlock()

	go s.fetch(ctx, cancel, id, userID)
}

func (s *ChannelSession) fetch(ctx context.Context, cancel context.CancelFunc, id uint64, userID string) {
	defer cancel()
	snap, err := s.fetcher.FetchNotifications(ctx, userID, s.limit)

	s.mu.Lock()
	if s.closed || id != s.reqID {
		// A newer request owns the session state; this result is stale.
		s.mu.Unlock()
		return
	}
	s.loading = false
	pending := s.pendingReload
	s.pendingReload = false
	s.mu.Unlock()

	if err != nil {
		if transient, kind := util.IsTransientError(err); transient {
			s.logger.Debug("Notification fetch aborted", zap.String("kind", kind))
		} else {
			s.logger.Error("Notification fetch failed",
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
	} else if s.onSnapshot != nil {
		s.onSnapshot(snap)
	}

	if pending {
		s.ScheduleRefresh()
	}
}

func (s *ChannelSession) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.reconnectTimer != nil {
		return
	}
	if s.tries < MaxBackoffTries {
		s.tries++
	}
	delay := backoffDelay(s.backoffBase, s.tries)
	s.logger.Info("Scheduling notification feed reconnect",
		zap.Int("tries", s.tries),
		zap.Duration("delay", delay),
	)
	s.reconnectTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.reconnectTimer = nil
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			s.connect()
		}
	})
}

// Reset reinitializes the session when the signed-in user changes: pending
// work and the retry counter are dropped and a fresh subscription and fetch
// begin. A fetch still in flight keeps running but its completion is
// discarded by request id.
func (s *ChannelSession) Reset(userID string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	s.tries = 0
	s.loading = false
	s.pendingReload = false
	s.reqID++
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	s.connect()
	s.ScheduleRefresh()
}

// Close tears the session down: timers stopped, in-flight fetch aborted,
// subscription closed. Safe to call more than once.
func (s *ChannelSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	s.cancel()
}
