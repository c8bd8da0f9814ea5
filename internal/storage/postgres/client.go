package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petparadise/chat-backend/internal/storage/postgres/queries"
	"github.com/petparadise/chat-backend/internal/types"
)

// ClientRepository reads client profiles.
type ClientRepository struct {
	q *queries.Queries
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{q: queries.New(pool)}
}

// ListBySessions returns the profiles linked to the given session ids that have a phone number.
func (r *ClientRepository) ListBySessions(ctx context.Context, sessionIDs []string) ([]types.ClientProfile, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	clients, err := r.q.ListClientsBySessionIDs(ctx, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clientsFromDB(clients), nil
}

// GetBySession returns the profile linked to a session id. Returns nil if no row exists.
func (r *ClientRepository) GetBySession(ctx context.Context, sessionID string) (*types.ClientProfile, error) {
	client, err := r.q.GetClientBySessionID(ctx, stringToPgtext(sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return clientFromDB(client), nil
}
