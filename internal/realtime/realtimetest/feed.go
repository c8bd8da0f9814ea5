// Package realtimetest provides an in-memory change feed for tests.
package realtimetest

import (
	"context"
	"errors"
	"sync"

	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/types"
)

// ErrInjected is returned by Subscribe while failures are queued.
var ErrInjected = errors.New("injected subscribe failure")

type subscriber struct {
	filter  realtime.Filter
	handler realtime.Handler
	handle  *realtime.Handle
}

// Feed delivers published records synchronously to matching subscribers.
type Feed struct {
	mu         sync.Mutex
	subs       map[*subscriber]struct{}
	failNext   int
	subscribes int
}

func New() *Feed {
	return &Feed{subs: make(map[*subscriber]struct{})}
}

func (f *Feed) Subscribe(_ context.Context, filter realtime.Filter, h realtime.Handler) (realtime.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscribes++
	if f.failNext > 0 {
		f.failNext--
		return nil, ErrInjected
	}

	s := &subscriber{filter: filter, handler: h}
	s.handle = realtime.NewHandle(func() {
		f.mu.Lock()
		delete(f.subs, s)
		f.mu.Unlock()
	})
	f.subs[s] = struct{}{}
	return s.handle, nil
}

// Publish delivers rec to every active subscriber whose filter matches.
func (f *Feed) Publish(rec types.StoredMessageRecord) {
	f.mu.Lock()
	var targets []*subscriber
	for s := range f.subs {
		if s.filter.Matches(rec.ConversationID) {
			targets = append(targets, s)
		}
	}
	f.mu.Unlock()

	for _, s := range targets {
		s.handler(rec)
	}
}

// Drop ends every active subscription with err.
func (f *Feed) Drop(err error) {
	f.mu.Lock()
	targets := make([]*subscriber, 0, len(f.subs))
	for s := range f.subs {
		targets = append(targets, s)
	}
	f.mu.Unlock()

	for _, s := range targets {
		s.handle.Fail(err)
	}
}

// FailSubscribes makes the next n Subscribe calls fail.
func (f *Feed) FailSubscribes(n int) {
	f.mu.Lock()
	f.failNext = n
	f.mu.Unlock()
}

// Active returns the number of live subscriptions.
func (f *Feed) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// ActiveFor returns the number of live subscriptions filtered to conversationID.
// An empty id counts unfiltered subscriptions.
func (f *Feed) ActiveFor(conversationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for s := range f.subs {
		if s.filter.ConversationID == conversationID {
			n++
		}
	}
	return n
}

// Subscribes returns how many times Subscribe was called.
func (f *Feed) Subscribes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}
