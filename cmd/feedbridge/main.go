// Command feedbridge relays chat history inserts announced by Postgres to Redis
// pub/sub, for API instances running with FEED_DRIVER=redis.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/cache/redis"
	"github.com/petparadise/chat-backend/internal/config"
	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/realtime/pgnotify"
	"github.com/petparadise/chat-backend/internal/realtime/redisfeed"
	"github.com/petparadise/chat-backend/internal/storage/postgres"
	"github.com/petparadise/chat-backend/internal/types"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadBridge()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN, cfg.Database.Migrate, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	redisClient, err := redis.New(cfg.Redis.URI)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	feed := pgnotify.New(db.Pool(), postgres.NewMessageRepository(db.Pool()), logger, cfg.Feed.RetryBase, cfg.Feed.RetryMax)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = feed.Run(ctx)
	}()

	select {
	case <-feed.Ready():
	case <-ctx.Done():
	}

	manager := realtime.NewManager(feed, logger, cfg.Feed.RetryBase, cfg.Feed.RetryMax)
	defer manager.Close()

	err = manager.WatchAll(ctx, realtime.Listener{
		OnInsert: func(ctx context.Context, rec types.StoredMessageRecord) {
			if err := redisfeed.Publish(ctx, redisClient, rec); err != nil {
				logger.WithError(err).WithField("record_id", rec.ID).Error("failed to relay record")
			}
		},
		OnResync: func(context.Context) {
			logger.Warn("relay resubscribed, inserts during the outage were not relayed")
		},
	})
	if err != nil {
		logger.WithError(err).Warn("relay subscription failed, retrying")
	}

	logger.Info("relaying chat history inserts to redis")
	<-ctx.Done()
	manager.Close()
	<-done
	logger.Info("feedbridge stopped")
}
