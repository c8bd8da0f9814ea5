package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/service/bot"
)

// PauseBotRequest is the request body for pausing the bot.
type PauseBotRequest struct {
	PhoneNumber     string `json:"phone_number"`
	DurationSeconds *int64 `json:"duration_seconds"`
}

// StartBotRequest is the request body for starting the bot.
type StartBotRequest struct {
	PhoneNumber string `json:"phone_number"`
}

const maxPauseSeconds = int64(bot.MaxPause / time.Second)

func (s *Server) botError(c echo.Context, err error, action string) error {
	switch {
	case errors.Is(err, bot.ErrNoPhone):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "phone_number is required"})
	case errors.Is(err, bot.ErrInvalidDuration):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "duration_seconds must be between 1 and " + strconv.FormatInt(maxPauseSeconds, 10)})
	}
	s.logger.WithError(err).Error("failed to " + action + " bot")
	return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "failed to " + action + " bot"})
}

// PauseBot handles POST /inbox/bot/pause
func (s *Server) PauseBot(c echo.Context) error {
	var req PauseBotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	var duration *time.Duration
	if req.DurationSeconds != nil {
		if *req.DurationSeconds < 1 || *req.DurationSeconds > maxPauseSeconds {
			return s.botError(c, bot.ErrInvalidDuration, "pause")
		}
		d := time.Duration(*req.DurationSeconds) * time.Second
		duration = &d
	}

	status, err := s.bot.Pause(c.Request().Context(), req.PhoneNumber, duration)
	if err != nil {
		return s.botError(c, err, "pause")
	}
	s.logger.WithFields(logrus.Fields{
		"operator": GetOperator(c),
		"phone":    req.PhoneNumber,
		"paused":   status.Paused,
	}).Info("bot paused")
	return c.JSON(http.StatusOK, status)
}

// StartBot handles POST /inbox/bot/start
func (s *Server) StartBot(c echo.Context) error {
	var req StartBotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	status, err := s.bot.Start(c.Request().Context(), req.PhoneNumber)
	if err != nil {
		return s.botError(c, err, "start")
	}
	s.logger.WithFields(logrus.Fields{
		"operator": GetOperator(c),
		"phone":    req.PhoneNumber,
	}).Info("bot started")
	return c.JSON(http.StatusOK, status)
}

// BotStatus handles GET /inbox/bot/:phone
func (s *Server) BotStatus(c echo.Context) error {
	status, err := s.bot.Status(c.Request().Context(), c.Param("phone"))
	if err != nil {
		if errors.Is(err, bot.ErrNoPhone) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "phone is required"})
		}
		s.logger.WithError(err).Error("failed to get bot status")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get bot status"})
	}
	return c.JSON(http.StatusOK, status)
}
