package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetClient handles GET /inbox/clients/:session_id
func (s *Server) GetClient(c echo.Context) error {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid session id"})
	}

	client, err := s.clients.GetBySession(c.Request().Context(), sessionID)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("failed to get client")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get client"})
	}
	if client == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "client not found"})
	}
	return c.JSON(http.StatusOK, client)
}
