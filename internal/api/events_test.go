package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/types"
)

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.heartbeat = 10 * time.Millisecond
	srv := httptest.NewServer(env.echo)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/inbox/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)

	first := readEvent(t, r)
	assert.Equal(t, string(realtime.EventConversationsReplaced), first.name)
	var convs []types.Conversation
	require.NoError(t, json.Unmarshal([]byte(first.data), &convs))
	assert.Len(t, convs, 2)

	second := readEvent(t, r)
	assert.Equal(t, string(realtime.EventMessagesReplaced), second.name)

	require.Eventually(t, func() bool { return env.hub.Len() == 1 }, time.Second, time.Millisecond)
	env.feed.Publish(types.StoredMessageRecord{ID: 7, ConversationID: "s2", Payload: json.RawMessage(`"novidade"`)})

	update := readEvent(t, r)
	assert.Equal(t, string(realtime.EventConversationUpdated), update.name)
	var conv types.Conversation
	require.NoError(t, json.Unmarshal([]byte(update.data), &conv))
	assert.Equal(t, "s2", conv.ID)
	assert.Equal(t, 1, conv.UnreadCount)

	cancel()
	require.Eventually(t, func() bool { return env.hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func drain(ch <-chan realtime.Event) []realtime.Event {
	var out []realtime.Event
	for len(ch) > 0 {
		out = append(out, <-ch)
	}
	return out
}

func TestSnapshotCoversEventsQueuedBeforeIt(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/inbox/conversations/s1/select", "").Code)

	client := env.hub.NewClient()
	defer env.hub.RemoveClient(client)
	env.feed.Publish(types.StoredMessageRecord{ID: 4, ConversationID: "s1", Payload: json.RawMessage(`"antes do snapshot"`)})

	snapshot, cursor := env.server.snapshot()
	transcript := snapshot[1].Data.(MessagesResponse)
	assert.Equal(t, "antes do snapshot", transcript.Messages[len(transcript.Messages)-1].Text)

	queued := drain(client.Outbound)
	require.Len(t, queued, 2)
	for _, e := range queued {
		assert.True(t, cursor.covers(e), e.Type)
	}

	env.feed.Publish(types.StoredMessageRecord{ID: 5, ConversationID: "s1", Payload: json.RawMessage(`"depois do snapshot"`)})
	later := drain(client.Outbound)
	require.Len(t, later, 2)
	for _, e := range later {
		assert.False(t, cursor.covers(e), e.Type)
	}
	assert.False(t, cursor.covers(realtime.Event{Type: realtime.EventNotice}))
}
