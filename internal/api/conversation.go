package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petparadise/chat-backend/internal/chat/inbox"
	"github.com/petparadise/chat-backend/internal/types"
)

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []types.Conversation `json:"conversations"`
	ActiveID      string               `json:"active_id,omitempty"`
}

// MessagesResponse is the transcript of the selected conversation.
type MessagesResponse struct {
	ConversationID string              `json:"conversation_id,omitempty"`
	Selected       bool                `json:"selected"`
	Messages       []types.ChatMessage `json:"messages"`
}

func (s *Server) conversationsResponse() ListConversationsResponse {
	active, _ := s.session.Messages().Active()
	return ListConversationsResponse{
		Conversations: s.session.Conversations().List(),
		ActiveID:      active,
	}
}

func (s *Server) messagesResponse() MessagesResponse {
	return transcriptResponse(s.session.Messages().Snapshot())
}

func transcriptResponse(t inbox.Transcript) MessagesResponse {
	msgs := t.Messages
	if msgs == nil {
		msgs = []types.ChatMessage{}
	}
	return MessagesResponse{ConversationID: t.ConversationID, Selected: t.Selected, Messages: msgs}
}

// ListConversations returns the conversation list as currently held in memory.
func (s *Server) ListConversations(c echo.Context) error {
	return c.JSON(http.StatusOK, s.conversationsResponse())
}

// RefreshConversations refetches the conversation list from storage.
func (s *Server) RefreshConversations(c echo.Context) error {
	if err := s.session.Conversations().FetchAll(c.Request().Context()); err != nil {
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "failed to fetch conversations"})
	}
	return c.JSON(http.StatusOK, s.conversationsResponse())
}

// SelectConversation makes a conversation active and returns its transcript.
func (s *Server) SelectConversation(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
	}

	if err := s.session.Select(c.Request().Context(), &id); err != nil {
		s.logger.WithError(err).WithField("conversation_id", id).Error("failed to select conversation")
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "failed to fetch messages"})
	}
	return c.JSON(http.StatusOK, s.messagesResponse())
}

// ClearSelection deselects the active conversation.
func (s *Server) ClearSelection(c echo.Context) error {
	if err := s.session.Select(c.Request().Context(), nil); err != nil {
		s.logger.WithError(err).Error("failed to clear selection")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to clear selection"})
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// MarkRead resets the unread counter of a conversation.
func (s *Server) MarkRead(c echo.Context) error {
	if err := s.session.Conversations().MarkRead(c.Param("id")); err != nil {
		if errors.Is(err, inbox.ErrConversationNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		}
		s.logger.WithError(err).Error("failed to mark conversation read")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to mark conversation read"})
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
