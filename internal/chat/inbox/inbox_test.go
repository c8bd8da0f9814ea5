package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/realtime/realtimetest"
	"github.com/petparadise/chat-backend/internal/types"
)

var (
	errStorage = errors.New("storage unavailable")
	baseTime   = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strptr(s string) *string { return &s }

func record(id int64, conv, payload string) types.StoredMessageRecord {
	return types.StoredMessageRecord{
		ID:             id,
		ConversationID: conv,
		Payload:        json.RawMessage(payload),
		CreatedAt:      baseTime.Add(time.Duration(id) * time.Minute),
	}
}

func profile(session, name, phone string) types.ClientProfile {
	p := types.ClientProfile{SessionID: session}
	if name != "" {
		p.Name = strptr(name)
	}
	if phone != "" {
		p.Phone = strptr(phone)
	}
	return p
}

// fakeStorage serves every repository interface from memory.
type fakeStorage struct {
	mu       sync.Mutex
	ids      []string
	profiles []types.ClientProfile
	history  map[string][]types.StoredMessageRecord
	err      error

	// gates block ListByConversation for a conversation until closed.
	gates   map[string]chan struct{}
	entered chan string

	// duringLatest runs inside LatestByConversations, before it returns.
	duringLatest func()
	// duringHistory runs inside ListByConversation, before it returns.
	duringHistory func(conversationID string)
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		history: make(map[string][]types.StoredMessageRecord),
		gates:   make(map[string]chan struct{}),
		entered: make(chan string, 8),
	}
}

func (f *fakeStorage) add(recs ...types.StoredMessageRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range recs {
		f.history[r.ConversationID] = append(f.history[r.ConversationID], r)
	}
}

func (f *fakeStorage) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeStorage) ListIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.ids...), nil
}

func (f *fakeStorage) ListBySessions(_ context.Context, ids []string) ([]types.ClientProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []types.ClientProfile
	for _, p := range f.profiles {
		if want[p.SessionID] && p.Phone != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStorage) LatestByConversations(_ context.Context, ids []string) (map[string]types.StoredMessageRecord, error) {
	f.mu.Lock()
	out := make(map[string]types.StoredMessageRecord)
	for _, id := range ids {
		if recs := f.history[id]; len(recs) > 0 {
			out[id] = recs[len(recs)-1]
		}
	}
	hook := f.duringLatest
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeStorage) ListByConversation(_ context.Context, id string) ([]types.StoredMessageRecord, error) {
	f.mu.Lock()
	gate := f.gates[id]
	f.mu.Unlock()

	if gate != nil {
		f.entered <- id
		<-gate
	}

	f.mu.Lock()
	err := f.err
	recs := append([]types.StoredMessageRecord(nil), f.history[id]...)
	hook := f.duringHistory
	f.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (l *eventLog) Notify(e realtime.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) ofType(t realtime.EventType) []realtime.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []realtime.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSender) SendMessage(_ context.Context, phone, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, phone+":"+text)
	return nil
}

func newManager(feed *realtimetest.Feed) *realtime.Manager {
	return realtime.NewManager(feed, testLogger(), time.Millisecond, 5*time.Millisecond)
}

func texts(msgs []types.ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}
