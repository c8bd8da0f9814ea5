package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/petparadise/chat-backend/internal/chat/inbox"
	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/realtime/realtimetest"
	"github.com/petparadise/chat-backend/internal/service"
	"github.com/petparadise/chat-backend/internal/service/bot"
	"github.com/petparadise/chat-backend/internal/types"
)

func strptr(s string) *string { return &s }

type fakeRepo struct {
	mu       sync.Mutex
	ids      []string
	profiles []types.ClientProfile
	history  map[string][]types.StoredMessageRecord
	err      error
}

func (f *fakeRepo) ListIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids, f.err
}

func (f *fakeRepo) ListBySessions(context.Context, []string) ([]types.ClientProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles, f.err
}

func (f *fakeRepo) LatestByConversations(_ context.Context, ids []string) (map[string]types.StoredMessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]types.StoredMessageRecord)
	for _, id := range ids {
		if recs := f.history[id]; len(recs) > 0 {
			out[id] = recs[len(recs)-1]
		}
	}
	return out, f.err
}

func (f *fakeRepo) ListByConversation(_ context.Context, id string) ([]types.StoredMessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.history[id], nil
}

func (f *fakeRepo) GetBySession(_ context.Context, id string) (*types.ClientProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.profiles {
		if p.SessionID == id {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
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

type fakeBot struct {
	lastPause *time.Duration
	err       error
}

func (b *fakeBot) Pause(_ context.Context, phone string, d *time.Duration) (bot.Status, error) {
	if phone == "" {
		return bot.Status{}, bot.ErrNoPhone
	}
	if b.err != nil {
		return bot.Status{}, b.err
	}
	b.lastPause = d
	return bot.Status{Phone: phone, Paused: d != nil}, nil
}

func (b *fakeBot) Start(_ context.Context, phone string) (bot.Status, error) {
	if phone == "" {
		return bot.Status{}, bot.ErrNoPhone
	}
	return bot.Status{Phone: phone}, b.err
}

func (b *fakeBot) Status(_ context.Context, phone string) (bot.Status, error) {
	return bot.Status{Phone: phone}, b.err
}

type testEnv struct {
	echo    *echo.Echo
	server  *Server
	repo    *fakeRepo
	feed    *realtimetest.Feed
	sender  *fakeSender
	bot     *fakeBot
	hub     *realtime.Hub
	session *inbox.Session
}

func newTestEnv(t *testing.T, auth *service.AuthService) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := &fakeRepo{
		ids: []string{"s1", "s2"},
		profiles: []types.ClientProfile{
			{ID: 1, SessionID: "s1", Name: strptr("Ana"), Phone: strptr("5511900000001")},
			{ID: 2, SessionID: "s2", Name: strptr("Bruno"), Phone: strptr("5511900000002"), PetName: strptr("Rex")},
		},
		history: map[string][]types.StoredMessageRecord{
			"s1": {
				{ID: 1, ConversationID: "s1", Payload: json.RawMessage(`{"type":"human","content":"oi"}`), CreatedAt: time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)},
				{ID: 3, ConversationID: "s1", Payload: json.RawMessage(`{"type":"ai","content":"Olá, Ana!"}`), CreatedAt: time.Date(2024, 5, 15, 12, 1, 0, 0, time.UTC)},
			},
		},
	}
	feed := realtimetest.New()
	hub := realtime.NewHub(logger)
	sender := &fakeSender{}
	session := inbox.NewSession(inbox.SessionConfig{
		Conversations: repo,
		History:       repo,
		Profiles:      repo,
		Watcher:       realtime.NewManager(feed, logger, time.Millisecond, 5*time.Millisecond),
		Sender:        sender,
		Notifier:      hub,
		Logger:        logger,
		Location:      time.UTC,
	})
	t.Cleanup(session.Close)
	require.NoError(t, session.Start(context.Background()))

	b := &fakeBot{}
	s := NewServer(auth, session, repo, b, hub, logger)
	e := echo.New()
	s.RegisterRoutes(e)

	return &testEnv{echo: e, server: s, repo: repo, feed: feed, sender: sender, bot: b, hub: hub, session: session}
}

func (env *testEnv) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
