// Package realtime bridges chat history change feeds to the inbox stores.
package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/petparadise/chat-backend/internal/types"
)

// ErrNotListening is returned by feeds that cannot accept subscriptions while their
// upstream connection is down.
var ErrNotListening = errors.New("feed not listening")

// Filter narrows a subscription. The zero value matches every insert.
type Filter struct {
	ConversationID string
}

// Matches reports whether the record passes the filter.
func (f Filter) Matches(conversationID string) bool {
	return f.ConversationID == "" || f.ConversationID == conversationID
}

// Handler receives inserted records.
type Handler func(record types.StoredMessageRecord)

// Subscription is a live feed registration.
//
// Done is closed once the subscription ends. Err is nil when the subscriber
// unsubscribed (or the feed shut down cleanly) and non-nil when the feed dropped it.
type Subscription interface {
	Done() <-chan struct{}
	Err() error
	Unsubscribe()
}

// Feed delivers inserts on the chat history table.
type Feed interface {
	Subscribe(ctx context.Context, filter Filter, h Handler) (Subscription, error)
}

// Handle is a Subscription implementation shared by the feed drivers.
type Handle struct {
	once    sync.Once
	done    chan struct{}
	mu      sync.Mutex
	err     error
	release func()
}

// NewHandle returns a handle that runs release exactly once when it ends.
func NewHandle(release func()) *Handle {
	return &Handle{
		done:    make(chan struct{}),
		release: release,
	}
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) Unsubscribe() {
	h.end(nil)
}

// Fail ends the subscription with err.
func (h *Handle) Fail(err error) {
	h.end(err)
}

// Active reports whether the handle has not ended yet.
func (h *Handle) Active() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *Handle) end(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		if h.release != nil {
			h.release()
		}
		close(h.done)
	})
}
