package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/chat/inbox"
	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/service"
	"github.com/petparadise/chat-backend/internal/service/bot"
	"github.com/petparadise/chat-backend/internal/types"
)

const defaultHeartbeat = 15 * time.Second

// ClientReader looks up client profiles.
type ClientReader interface {
	GetBySession(ctx context.Context, sessionID string) (*types.ClientProfile, error)
}

// BotService pauses and resumes the bot for a phone.
type BotService interface {
	Pause(ctx context.Context, phone string, duration *time.Duration) (bot.Status, error)
	Start(ctx context.Context, phone string) (bot.Status, error)
	Status(ctx context.Context, phone string) (bot.Status, error)
}

// Server holds API dependencies.
type Server struct {
	authService *service.AuthService
	session     *inbox.Session
	clients     ClientReader
	bot         BotService
	hub         *realtime.Hub
	logger      *logrus.Logger
	heartbeat   time.Duration
}

// NewServer creates a new API server. A nil authService leaves the inbox routes open.
func NewServer(authService *service.AuthService, session *inbox.Session, clients ClientReader, botService BotService, hub *realtime.Hub, logger *logrus.Logger) *Server {
	return &Server{
		authService: authService,
		session:     session,
		clients:     clients,
		bot:         botService,
		hub:         hub,
		logger:      logger,
		heartbeat:   defaultHeartbeat,
	}
}

// RegisterRoutes mounts the inbox routes on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/inbox", s.AuthMiddleware)
	g.GET("/conversations", s.ListConversations)
	g.POST("/conversations/refresh", s.RefreshConversations)
	g.POST("/conversations/:id/select", s.SelectConversation)
	g.DELETE("/conversations/selection", s.ClearSelection)
	g.POST("/conversations/:id/read", s.MarkRead)
	g.GET("/messages", s.ListMessages)
	g.POST("/messages", s.SendMessage)
	g.POST("/bot/pause", s.PauseBot)
	g.POST("/bot/start", s.StartBot)
	g.GET("/bot/:phone", s.BotStatus)
	g.GET("/clients/:session_id", s.GetClient)
	g.GET("/events", s.Events)
}
