// Package redisfeed implements the chat history change feed on Redis pub/sub.
//
// Publishers send each inserted record as JSON to AllChannel and to the
// conversation channel returned by ConversationChannel, so conversation
// subscriptions are filtered by Redis itself.
package redisfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/types"
)

// AllChannel carries every insert.
const AllChannel = "chat:history"

// ErrChannelClosed ends a subscription whose pub/sub channel closed underneath it.
var ErrChannelClosed = errors.New("redis pub/sub channel closed")

// PubSub is the part of the Redis client the feed needs.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
}

// ConversationChannel returns the channel for one conversation.
func ConversationChannel(conversationID string) string {
	return AllChannel + ":" + conversationID
}

func channelFor(filter realtime.Filter) string {
	if filter.ConversationID == "" {
		return AllChannel
	}
	return ConversationChannel(filter.ConversationID)
}

// Feed is a realtime.Feed backed by Redis pub/sub.
type Feed struct {
	client PubSub
	logger *logrus.Logger
}

// New creates a Feed.
func New(client PubSub, logger *logrus.Logger) *Feed {
	return &Feed{client: client, logger: logger}
}

// Subscribe opens a pub/sub subscription for filter.
func (f *Feed) Subscribe(ctx context.Context, filter realtime.Filter, h realtime.Handler) (realtime.Subscription, error) {
	channel := channelFor(filter)

	ps, err := f.client.Subscribe(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	handle := realtime.NewHandle(func() { _ = ps.Close() })
	go f.forward(ps.Channel(), filter, h, handle)
	return handle, nil
}

func (f *Feed) forward(ch <-chan *goredis.Message, filter realtime.Filter, h realtime.Handler, handle *realtime.Handle) {
	for {
		select {
		case <-handle.Done():
			return
		case m, ok := <-ch:
			if !ok || m == nil {
				handle.Fail(ErrChannelClosed)
				return
			}
			rec, err := decode(m.Payload)
			if err != nil {
				f.logger.WithError(err).WithField("channel", m.Channel).Warn("bad redis chat history payload")
				continue
			}
			if !filter.Matches(rec.ConversationID) {
				continue
			}
			h(rec)
		}
	}
}

func decode(payload string) (types.StoredMessageRecord, error) {
	var rec types.StoredMessageRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return rec, err
	}
	if rec.ID <= 0 || rec.ConversationID == "" {
		return rec, errors.New("record missing id or session_id")
	}
	return rec, nil
}

// Publish announces an inserted record on both the global and conversation channels.
func Publish(ctx context.Context, client PubSub, rec types.StoredMessageRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := client.Publish(ctx, AllChannel, raw); err != nil {
		return fmt.Errorf("publish %s: %w", AllChannel, err)
	}
	channel := ConversationChannel(rec.ConversationID)
	if err := client.Publish(ctx, channel, raw); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}
