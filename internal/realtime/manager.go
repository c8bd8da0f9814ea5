package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/types"
)

var (
	// ErrAlreadyWatching is returned when the global feed is requested twice.
	ErrAlreadyWatching = errors.New("global feed already active")
	// ErrManagerClosed is returned after Close.
	ErrManagerClosed = errors.New("realtime manager closed")
)

const (
	defaultRetryBase = 500 * time.Millisecond
	defaultRetryMax  = 30 * time.Second
)

// Listener receives the deliveries of one watch.
// OnResync runs after the watch recovers from a dropped or failed subscription,
// so the owner can refetch whatever it missed. Callbacks run on the watch goroutine
// and must not call back into the Manager.
type Listener struct {
	OnInsert func(ctx context.Context, record types.StoredMessageRecord)
	OnResync func(ctx context.Context)
}

type watch struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (w *watch) stop() {
	w.cancel()
	<-w.done
}

// Manager owns the global subscription and at most one conversation subscription.
type Manager struct {
	feed      Feed
	logger    *logrus.Logger
	retryBase time.Duration
	retryMax  time.Duration

	mu             sync.Mutex
	global         *watch
	conversation   *watch
	conversationID string
	closed         bool
}

// NewManager creates a Manager. Zero durations fall back to the defaults.
func NewManager(feed Feed, logger *logrus.Logger, retryBase, retryMax time.Duration) *Manager {
	if retryBase <= 0 {
		retryBase = defaultRetryBase
	}
	if retryMax <= 0 {
		retryMax = defaultRetryMax
	}
	return &Manager{
		feed:      feed,
		logger:    logger,
		retryBase: retryBase,
		retryMax:  retryMax,
	}
}

// WatchAll opens the session-wide subscription. A failed first attempt is returned
// but the watch stays registered and keeps retrying in the background.
func (m *Manager) WatchAll(ctx context.Context, l Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if m.global != nil {
		return ErrAlreadyWatching
	}

	w, err := m.start(ctx, Filter{}, l)
	m.global = w
	return err
}

// WatchConversation replaces the conversation subscription. The previous one is
// fully released before the new one is opened.
func (m *Manager) WatchConversation(ctx context.Context, conversationID string, l Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	m.stopConversationLocked()

	w, err := m.start(ctx, Filter{ConversationID: conversationID}, l)
	m.conversation = w
	m.conversationID = conversationID
	return err
}

// StopConversation releases the conversation subscription, if any.
func (m *Manager) StopConversation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopConversationLocked()
}

// WatchedConversation returns the conversation currently subscribed, or "".
func (m *Manager) WatchedConversation() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversationID
}

// Close releases every subscription. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopConversationLocked()
	if m.global != nil {
		m.global.stop()
		m.global = nil
	}
	m.closed = true
}

func (m *Manager) stopConversationLocked() {
	if m.conversation == nil {
		return
	}
	m.conversation.stop()
	m.logger.WithField("conversation_id", m.conversationID).Debug("conversation feed released")
	m.conversation = nil
	m.conversationID = ""
}

func (m *Manager) start(parent context.Context, filter Filter, l Listener) (*watch, error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	w := &watch{cancel: cancel, done: make(chan struct{})}

	h := func(rec types.StoredMessageRecord) {
		if ctx.Err() != nil || l.OnInsert == nil {
			return
		}
		l.OnInsert(ctx, rec)
	}

	sub, err := m.feed.Subscribe(ctx, filter, h)
	if err != nil {
		m.logger.WithError(err).WithField("conversation_id", filter.ConversationID).Warn("feed subscribe failed, retrying")
		sub = nil
	}

	go m.supervise(ctx, filter, h, l, sub, w.done)
	return w, err
}

// supervise keeps a subscription alive until ctx ends, resubscribing with backoff
// whenever the feed drops it.
func (m *Manager) supervise(ctx context.Context, filter Filter, h Handler, l Listener, sub Subscription, done chan struct{}) {
	defer close(done)
	log := m.logger.WithField("conversation_id", filter.ConversationID)

	for {
		if sub != nil {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			case <-sub.Done():
				if ctx.Err() != nil {
					return
				}
				if sub.Err() == nil {
					log.Debug("feed closed subscription")
					return
				}
				log.WithError(sub.Err()).Warn("feed subscription dropped")
			}
		}

		sub = nil
		err := retry.Do(ctx, m.backoff(), func(ctx context.Context) error {
			s, err := m.feed.Subscribe(ctx, filter, h)
			if err != nil {
				log.WithError(err).Debug("feed resubscribe failed")
				return retry.RetryableError(err)
			}
			sub = s
			return nil
		})
		if err != nil {
			return
		}

		log.Info("feed subscription restored")
		if l.OnResync != nil && ctx.Err() == nil {
			l.OnResync(ctx)
		}
	}
}

func (m *Manager) backoff() retry.Backoff {
	return retry.WithCappedDuration(m.retryMax, retry.NewExponential(m.retryBase))
}
