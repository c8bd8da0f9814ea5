package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path        string
	contentType string
	body        map[string]any
}

type recorder struct {
	mu    sync.Mutex
	calls []captured
}

func (r *recorder) all() []captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]captured(nil), r.calls...)
}

func newServer(t *testing.T, status int) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		rec.mu.Lock()
		rec.calls = append(rec.calls, captured{path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: body})
		rec.mu.Unlock()

		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestSendMessage(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK)
	c := NewClient(srv.URL+"/webhook/", time.Second)

	require.NoError(t, c.SendMessage(context.Background(), "5511999990000", "Olá!"))

	got := calls.all()
	require.Len(t, got, 1)
	call := got[0]
	assert.Equal(t, "/webhook/envia_mensagem", call.path)
	assert.Equal(t, "application/json", call.contentType)
	assert.Equal(t, map[string]any{"message": "Olá!", "phoneNumber": "5511999990000"}, call.body)
}

func TestPauseBot(t *testing.T) {
	srv, calls := newServer(t, http.StatusNoContent)
	c := NewClient(srv.URL, time.Second)

	d := 90 * time.Second
	require.NoError(t, c.PauseBot(context.Background(), "5511", &d))
	require.NoError(t, c.PauseBot(context.Background(), "5511", nil))

	got := calls.all()
	require.Len(t, got, 2)
	assert.Equal(t, "/pausa_bot", got[0].path)
	assert.Equal(t, map[string]any{"phoneNumber": "5511", "duration": float64(90), "unit": "seconds"}, got[0].body)
	assert.Equal(t, map[string]any{"phoneNumber": "5511", "duration": nil, "unit": "seconds"}, got[1].body)
}

func TestStartBot(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK)
	c := NewClient(srv.URL, time.Second)

	require.NoError(t, c.StartBot(context.Background(), "5511"))
	got := calls.all()
	require.Len(t, got, 1)
	assert.Equal(t, "/inicia_bot", got[0].path)
	assert.Equal(t, map[string]any{"phoneNumber": "5511"}, got[0].body)
}

func TestNon2xxIsStatusError(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadGateway)
	c := NewClient(srv.URL, time.Second)

	err := c.StartBot(context.Background(), "5511")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "inicia_bot", statusErr.Webhook)
}

func TestContextCancelled(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK)
	c := NewClient(srv.URL, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.SendMessage(ctx, "5511", "oi"))
	assert.Empty(t, calls.all())
}
