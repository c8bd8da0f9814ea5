package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petparadise/chat-backend/internal/storage/postgres/queries"
)

func TestRecordFromDB(t *testing.T) {
	created := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	hora := created.Add(-time.Hour)

	rec := recordFromDB(&queries.N8nChatHistory{
		ID:        42,
		SessionID: "5511999990000",
		Message:   []byte(`{"type":"human","content":"oi"}`),
		Data:      pgtype.Timestamptz{Time: created, Valid: true},
		Hora:      pgtype.Timestamptz{Time: hora, Valid: true},
	})
	require.NotNil(t, rec)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, "5511999990000", rec.ConversationID)
	assert.JSONEq(t, `{"type":"human","content":"oi"}`, string(rec.Payload))
	assert.Equal(t, created, rec.CreatedAt)
	require.NotNil(t, rec.PreferredTimestamp)
	assert.Equal(t, hora, rec.Timestamp())

	noHora := recordFromDB(&queries.N8nChatHistory{ID: 1, Data: pgtype.Timestamptz{Time: created, Valid: true}})
	assert.Nil(t, noHora.PreferredTimestamp)
	assert.Equal(t, created, noHora.Timestamp())

	assert.Nil(t, recordFromDB(nil))
}

func TestRecordsFromDBSkipsNil(t *testing.T) {
	recs := recordsFromDB([]*queries.N8nChatHistory{{ID: 1}, nil, {ID: 2}})
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[1].ID)
}

func TestClientFromDB(t *testing.T) {
	c := clientFromDB(&queries.DadosCliente{
		ID:        7,
		Telefone:  stringToPgtext("5511999990000"),
		Nome:      stringToPgtext("Ana"),
		Sessionid: stringToPgtext("sess-1"),
		NomePet:   stringToPgtext("Thor"),
	})
	require.NotNil(t, c)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, "sess-1", c.SessionID)
	assert.Equal(t, "Ana", *c.Name)
	assert.Equal(t, "Thor", *c.PetName)
	assert.Nil(t, c.Email)
	assert.Nil(t, c.PetBreed)
}

func TestGetByIDOutOfRange(t *testing.T) {
	r := &MessageRepository{}
	_, err := r.GetByID(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.GetByID(context.Background(), 1<<40)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyBatchesSkipQueries(t *testing.T) {
	latest, err := (&MessageRepository{}).LatestByConversations(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, latest)

	clients, err := (&ClientRepository{}).ListBySessions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, clients)
}
