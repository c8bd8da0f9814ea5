package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petparadise/chat-backend/internal/storage/postgres/queries"
)

// ErrNotFound is returned when a resource is not found.
var ErrNotFound = errors.New("not found")

// ConversationRepository lists the conversations present in chat history.
type ConversationRepository struct {
	q *queries.Queries
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{
		q: queries.New(pool),
	}
}

// ListIDs returns every distinct session id, most recently active first.
func (r *ConversationRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.ListConversationIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversation ids: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.SessionID)
	}
	return ids, nil
}
