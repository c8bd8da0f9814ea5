package postgres

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/petparadise/chat-backend/internal/storage/postgres/queries"
	"github.com/petparadise/chat-backend/internal/types"
)

// Text conversions

func stringToPgtext(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func pgtextToStringPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func pgtextToString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// Timestamptz conversions

func pgtimestamptzToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

func pgtimestamptzToTimePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

// Model conversions

func recordFromDB(m *queries.N8nChatHistory) *types.StoredMessageRecord {
	if m == nil {
		return nil
	}
	return &types.StoredMessageRecord{
		ID:                 int64(m.ID),
		ConversationID:     m.SessionID,
		Payload:            json.RawMessage(m.Message),
		CreatedAt:          pgtimestamptzToTime(m.Data),
		PreferredTimestamp: pgtimestamptzToTimePtr(m.Hora),
	}
}

func recordsFromDB(ms []*queries.N8nChatHistory) []types.StoredMessageRecord {
	result := make([]types.StoredMessageRecord, 0, len(ms))
	for _, m := range ms {
		if rec := recordFromDB(m); rec != nil {
			result = append(result, *rec)
		}
	}
	return result
}

func clientFromDB(c *queries.DadosCliente) *types.ClientProfile {
	if c == nil {
		return nil
	}
	return &types.ClientProfile{
		ID:        int64(c.ID),
		SessionID: pgtextToString(c.Sessionid),
		Name:      pgtextToStringPtr(c.Nome),
		Phone:     pgtextToStringPtr(c.Telefone),
		Email:     pgtextToStringPtr(c.Email),
		CPFCNPJ:   pgtextToStringPtr(c.CpfCnpj),
		PetName:   pgtextToStringPtr(c.NomePet),
		PetSize:   pgtextToStringPtr(c.PortePet),
		PetBreed:  pgtextToStringPtr(c.RacaPet),
	}
}

func clientsFromDB(cs []*queries.DadosCliente) []types.ClientProfile {
	result := make([]types.ClientProfile, 0, len(cs))
	for _, c := range cs {
		if p := clientFromDB(c); p != nil {
			result = append(result, *p)
		}
	}
	return result
}
