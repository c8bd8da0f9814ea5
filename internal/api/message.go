package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/chat/inbox"
)

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// ListMessages handles GET /inbox/messages
func (s *Server) ListMessages(c echo.Context) error {
	return c.JSON(http.StatusOK, s.messagesResponse())
}

// SendMessage handles POST /inbox/messages
func (s *Server) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	msg, err := s.session.SendMessage(c.Request().Context(), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, inbox.ErrEmptyMessage):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		case errors.Is(err, inbox.ErrNoSelection):
			return c.JSON(http.StatusConflict, ErrorResponse{Error: "no conversation selected"})
		case errors.Is(err, inbox.ErrConversationNotFound):
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		case errors.Is(err, inbox.ErrNoPhone):
			return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "conversation has no phone number"})
		}
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "failed to send message"})
	}

	conversationID, _ := s.session.Messages().Active()
	s.logger.WithFields(logrus.Fields{
		"operator":        GetOperator(c),
		"conversation_id": conversationID,
	}).Info("operator message sent")
	return c.JSON(http.StatusCreated, msg)
}
