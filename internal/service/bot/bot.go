package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/cache/redis"
)

// pausedKeyPrefix prefixes the Redis key that marks a phone's bot as paused.
const pausedKeyPrefix = "inbox:bot:paused:"

var (
	ErrNoPhone         = errors.New("phone number is required")
	ErrInvalidDuration = errors.New("pause duration must be between one second and one year")
)

// MaxPause is the longest pause the service accepts.
const MaxPause = 365 * 24 * time.Hour

// Controller is the webhook side of the bot.
type Controller interface {
	PauseBot(ctx context.Context, phone string, duration *time.Duration) error
	StartBot(ctx context.Context, phone string) error
}

// StateStore keeps the pause markers.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Status describes whether the bot answers a phone.
type Status struct {
	Phone  string     `json:"phone"`
	Paused bool       `json:"paused"`
	Until  *time.Time `json:"until,omitempty"`
}

// Service pauses and resumes the bot per client phone.
type Service struct {
	controller Controller
	state      StateStore
	logger     *logrus.Logger
	now        func() time.Time
}

// NewService creates a bot service. A nil state store disables pause tracking.
func NewService(controller Controller, state StateStore, logger *logrus.Logger) *Service {
	return &Service{
		controller: controller,
		state:      state,
		logger:     logger,
		now:        time.Now,
	}
}

func pausedKey(phone string) string {
	return pausedKeyPrefix + phone
}

// Pause asks the webhook to silence the bot for phone. The pause is tracked
// until it expires. A nil duration is forwarded as is and not tracked.
func (s *Service) Pause(ctx context.Context, phone string, duration *time.Duration) (Status, error) {
	if phone == "" {
		return Status{}, ErrNoPhone
	}
	if duration != nil && (*duration < time.Second || *duration > MaxPause) {
		return Status{}, ErrInvalidDuration
	}

	if err := s.controller.PauseBot(ctx, phone, duration); err != nil {
		return Status{}, fmt.Errorf("pause bot: %w", err)
	}

	log := s.logger.WithField("phone", phone)
	if duration == nil {
		log.Info("bot pause requested without duration")
		return Status{Phone: phone}, nil
	}

	until := s.now().Add(*duration).UTC()
	if s.state != nil {
		if err := s.state.Set(ctx, pausedKey(phone), until.Format(time.RFC3339), *duration); err != nil {
			log.WithError(err).Warn("failed to record bot pause")
		}
	}
	log.WithField("until", until).Info("bot paused")
	return Status{Phone: phone, Paused: true, Until: &until}, nil
}

// Start asks the webhook to resume the bot for phone.
func (s *Service) Start(ctx context.Context, phone string) (Status, error) {
	if phone == "" {
		return Status{}, ErrNoPhone
	}
	if err := s.controller.StartBot(ctx, phone); err != nil {
		return Status{}, fmt.Errorf("start bot: %w", err)
	}

	if s.state != nil {
		if err := s.state.Delete(ctx, pausedKey(phone)); err != nil {
			s.logger.WithError(err).WithField("phone", phone).Warn("failed to clear bot pause")
		}
	}
	s.logger.WithField("phone", phone).Info("bot started")
	return Status{Phone: phone}, nil
}

// Status reports the tracked pause for phone.
func (s *Service) Status(ctx context.Context, phone string) (Status, error) {
	if phone == "" {
		return Status{}, ErrNoPhone
	}
	if s.state == nil {
		return Status{Phone: phone}, nil
	}

	value, err := s.state.Get(ctx, pausedKey(phone))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return Status{Phone: phone}, nil
		}
		return Status{}, fmt.Errorf("get bot state: %w", err)
	}

	until, err := time.Parse(time.RFC3339, value)
	if err != nil {
		s.logger.WithError(err).WithField("phone", phone).Warn("invalid bot pause marker")
		return Status{Phone: phone, Paused: true}, nil
	}
	if !until.After(s.now()) {
		return Status{Phone: phone}, nil
	}
	return Status{Phone: phone, Paused: true, Until: &until}, nil
}
