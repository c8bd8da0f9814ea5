package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/api"
	"github.com/petparadise/chat-backend/internal/cache/redis"
	"github.com/petparadise/chat-backend/internal/chat/inbox"
	"github.com/petparadise/chat-backend/internal/config"
	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/realtime/pgnotify"
	"github.com/petparadise/chat-backend/internal/realtime/redisfeed"
	"github.com/petparadise/chat-backend/internal/service"
	"github.com/petparadise/chat-backend/internal/service/bot"
	"github.com/petparadise/chat-backend/internal/storage/postgres"
	"github.com/petparadise/chat-backend/internal/webhook"
)

const listenerReadyTimeout = 10 * time.Second

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	// Configure log format
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	logger.Info("starting chat-backend server")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to database
	db, err := postgres.New(ctx, cfg.Database.DSN, cfg.Database.Migrate, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis client
	redisClient, err := redis.New(cfg.Redis.URI)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	// Initialize repositories
	convRepo := postgres.NewConversationRepository(db.Pool())
	msgRepo := postgres.NewMessageRepository(db.Pool())
	clientRepo := postgres.NewClientRepository(db.Pool())

	// Pick the change feed
	var feed realtime.Feed
	switch cfg.Feed.Driver {
	case config.FeedRedis:
		feed = redisfeed.New(redisClient, logger)
	default:
		pgFeed := pgnotify.New(db.Pool(), msgRepo, logger, cfg.Feed.RetryBase, cfg.Feed.RetryMax)
		go func() {
			_ = pgFeed.Run(ctx)
		}()
		select {
		case <-pgFeed.Ready():
		case <-time.After(listenerReadyTimeout):
			logger.Warn("notify listener not ready, subscriptions will retry")
		}
		feed = pgFeed
	}
	logger.WithField("driver", cfg.Feed.Driver).Info("change feed configured")

	// Initialize services
	var authService *service.AuthService
	if cfg.AuthEnabled() {
		authService = service.NewAuthService(cfg.Server.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set, inbox routes are unauthenticated")
	}

	webhookClient := webhook.NewClient(cfg.Webhook.BaseURL, cfg.Webhook.Timeout)
	botService := bot.NewService(webhookClient, redisClient, logger)

	hub := realtime.NewHub(logger)
	manager := realtime.NewManager(feed, logger, cfg.Feed.RetryBase, cfg.Feed.RetryMax)

	session := inbox.NewSession(inbox.SessionConfig{
		Conversations: convRepo,
		History:       msgRepo,
		Profiles:      clientRepo,
		Watcher:       manager,
		Sender:        webhookClient,
		Notifier:      hub,
		Logger:        logger,
		Location:      cfg.Location(),
	})
	defer session.Close()

	if err := session.Start(ctx); err != nil {
		logger.WithError(err).Warn("inbox started with errors")
	}

	// Initialize API server
	server := api.NewServer(authService, session, clientRepo, botService, hub, logger)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Add middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).Info("request")
			return nil
		},
	}))

	// Health check endpoint (public)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	// Inbox routes (authenticated when JWT_SECRET is set)
	server.RegisterRoutes(e)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.WithField("addr", addr).Info("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Event streams never finish on their own
	hub.Close()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}

	session.Close()
	stop()

	logger.Info("server stopped")
}
