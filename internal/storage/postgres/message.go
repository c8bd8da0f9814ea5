package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petparadise/chat-backend/internal/storage/postgres/queries"
	"github.com/petparadise/chat-backend/internal/types"
)

// MessageRepository reads the chat history table.
type MessageRepository struct {
	q *queries.Queries
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{
		q: queries.New(pool),
	}
}

// ListByConversation returns all records of a conversation in ascending id order.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]types.StoredMessageRecord, error) {
	msgs, err := r.q.GetMessagesBySessionID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return recordsFromDB(msgs), nil
}

// LatestByConversations returns the newest record of each conversation, keyed by id.
// Conversations without history are absent from the map.
func (r *MessageRepository) LatestByConversations(ctx context.Context, conversationIDs []string) (map[string]types.StoredMessageRecord, error) {
	result := make(map[string]types.StoredMessageRecord, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return result, nil
	}

	msgs, err := r.q.GetLatestMessagesBySessionIDs(ctx, conversationIDs)
	if err != nil {
		return nil, fmt.Errorf("get latest messages: %w", err)
	}
	for _, rec := range recordsFromDB(msgs) {
		result[rec.ConversationID] = rec
	}
	return result, nil
}

// GetByID returns a single record.
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*types.StoredMessageRecord, error) {
	if id <= 0 || id > math.MaxInt32 {
		return nil, ErrNotFound
	}

	msg, err := r.q.GetMessageByID(ctx, int32(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return recordFromDB(msg), nil
}
