package types

import (
	"encoding/json"
	"time"
)

// Speaker identifies which side of the chat produced a message.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
	SpeakerUnknown   Speaker = "unknown"
)

// StoredMessageRecord is one row of the chat history written by the automation backend.
type StoredMessageRecord struct {
	ID                 int64           `json:"id"`
	ConversationID     string          `json:"session_id"`
	Payload            json.RawMessage `json:"message"`
	CreatedAt          time.Time       `json:"data"`
	PreferredTimestamp *time.Time      `json:"hora,omitempty"`
}

// Timestamp returns the preferred timestamp when present, otherwise the creation time.
func (r StoredMessageRecord) Timestamp() time.Time {
	if r.PreferredTimestamp != nil && !r.PreferredTimestamp.IsZero() {
		return *r.PreferredTimestamp
	}
	return r.CreatedAt
}

// ChatMessage is a normalized message extracted from a StoredMessageRecord.
// RecordID is zero for messages composed locally.
type ChatMessage struct {
	RecordID    int64   `json:"record_id,omitempty"`
	Speaker     Speaker `json:"speaker"`
	Text        string  `json:"text"`
	DisplayTime string  `json:"display_time"`
}

// Conversation is one chat thread enriched with the client's profile.
type Conversation struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	PetName            string `json:"pet_name"`
	PetSize            string `json:"pet_size"`
	PetBreed           string `json:"pet_breed"`
	UnreadCount        int    `json:"unread_count"`
	LastMessagePreview string `json:"last_message"`
	LastMessageTime    string `json:"last_message_time"`
	LastRecordID       int64  `json:"last_record_id"`
}

// ClientProfile is a row of the client registry.
type ClientProfile struct {
	ID        int64   `json:"id"`
	SessionID string  `json:"session_id"`
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	CPFCNPJ   *string `json:"cpf_cnpj,omitempty"`
	PetName   *string `json:"pet_name,omitempty"`
	PetSize   *string `json:"pet_size,omitempty"`
	PetBreed  *string `json:"pet_breed,omitempty"`
}
