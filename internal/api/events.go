package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/petparadise/chat-backend/internal/realtime"
)

// streamCursor holds the store versions a stream's opening snapshot reflects.
type streamCursor struct {
	conversations uint64
	messages      uint64
}

// covers reports whether the snapshot already reflects e.
func (c streamCursor) covers(e realtime.Event) bool {
	switch e.Type {
	case realtime.EventConversationsReplaced, realtime.EventConversationUpdated:
		return e.Version <= c.conversations
	case realtime.EventMessagesReplaced, realtime.EventMessagesAppended:
		return e.Version <= c.messages
	default:
		return false
	}
}

func (s *Server) snapshot() ([]realtime.Event, streamCursor) {
	convs, convVersion := s.session.Conversations().Snapshot()
	transcript := s.session.Messages().Snapshot()
	return []realtime.Event{
		{Type: realtime.EventConversationsReplaced, Data: convs, Version: convVersion},
		{Type: realtime.EventMessagesReplaced, Data: transcriptResponse(transcript), Version: transcript.Version},
	}, streamCursor{conversations: convVersion, messages: transcript.Version}
}

// Events streams store changes as server-sent events. The stream opens with the
// current conversation list and transcript. The client registers before the
// snapshot is taken and queued events the snapshot reflects are skipped.
func (s *Server) Events(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := s.hub.NewClient()
	defer s.hub.RemoveClient(client)

	log := s.logger.WithField("client_id", client.ID)
	snapshot, cursor := s.snapshot()
	for _, e := range snapshot {
		if err := writeEvent(w, e); err != nil {
			log.WithError(err).Debug("event stream write failed")
			return nil
		}
	}
	w.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case e, ok := <-client.Outbound:
			if !ok {
				return nil
			}
			if cursor.covers(e) {
				continue
			}
			if err := writeEvent(w, e); err != nil {
				log.WithError(err).Debug("event stream write failed")
				return nil
			}
			w.Flush()
		}
	}
}

func writeEvent(w *echo.Response, e realtime.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
