// Package parser decodes chat history payloads into normalized chat messages.
//
// The automation backend stores payloads without a schema. A payload is one of:
// a plain string, a string holding JSON {type, content}, an object {type, content},
// an object with a messages list of {role, content}, or an object {role, content}.
// Decode never fails; anything it cannot classify becomes Unrecognized.
package parser

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/petparadise/chat-backend/internal/types"
)

const displayTimeLayout = "15:04"

// Payload is the decoded form of a stored payload.
type Payload interface {
	isPayload()
}

// PlainText is a payload that is not JSON, taken verbatim.
type PlainText struct {
	Text string
}

// Typed is a {type, content} payload, either encoded in a string or stored as an object.
type Typed struct {
	Type    string
	Content string
}

// MultiMessage is an object carrying an embedded list of sub-messages.
type MultiMessage struct {
	Entries []Entry
}

// Entry is one element of a MultiMessage. Only entries with both fields are kept.
type Entry struct {
	Role    string
	Content string
}

// RoleContent is a {role, content} object.
type RoleContent struct {
	Role    string
	Content string
}

// ContentOnly is an object with content but no role or type. It yields no messages
// but still contributes preview text.
type ContentOnly struct {
	Content string
}

// Unrecognized is any payload that matches no known shape.
type Unrecognized struct{}

func (PlainText) isPayload()    {}
func (Typed) isPayload()        {}
func (MultiMessage) isPayload() {}
func (RoleContent) isPayload()  {}
func (ContentOnly) isPayload()  {}
func (Unrecognized) isPayload() {}

// Decode classifies a raw payload.
func Decode(raw json.RawMessage) Payload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Unrecognized{}
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		// Column held bytes that were never JSON.
		return PlainText{Text: string(raw)}
	}

	switch t := v.(type) {
	case string:
		return decodeString(t)
	case map[string]any:
		return decodeObject(t)
	default:
		return Unrecognized{}
	}
}

func decodeString(s string) Payload {
	if len(bytes.TrimSpace([]byte(s))) == 0 {
		return Unrecognized{}
	}

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return PlainText{Text: s}
	}

	switch t := v.(type) {
	case map[string]any:
		typ, content := stringField(t, "type"), stringField(t, "content")
		if typ != "" && content != "" {
			return Typed{Type: typ, Content: content}
		}
		return Unrecognized{}
	case []any:
		return Unrecognized{}
	default:
		// "42" or "true" parse as JSON but carry no type or content.
		return Unrecognized{}
	}
}

func decodeObject(obj map[string]any) Payload {
	content := stringField(obj, "content")

	if typ := stringField(obj, "type"); typ != "" && content != "" {
		return Typed{Type: typ, Content: content}
	}

	if list, ok := obj["messages"].([]any); ok {
		entries := make([]Entry, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			role, c := stringField(m, "role"), stringField(m, "content")
			if role == "" || c == "" {
				continue
			}
			entries = append(entries, Entry{Role: role, Content: c})
		}
		return MultiMessage{Entries: entries}
	}

	if role := stringField(obj, "role"); role != "" && content != "" {
		return RoleContent{Role: role, Content: content}
	}

	if content != "" {
		return ContentOnly{Content: content}
	}
	return Unrecognized{}
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// Part is a speaker/text pair extracted from a payload.
type Part struct {
	Speaker types.Speaker
	Text    string
}

// Parts expands a payload into its messages, preserving embedded order.
func Parts(p Payload) []Part {
	switch t := p.(type) {
	case PlainText:
		return []Part{{Speaker: types.SpeakerUnknown, Text: t.Text}}
	case Typed:
		return []Part{{Speaker: speakerFromType(t.Type), Text: t.Content}}
	case MultiMessage:
		parts := make([]Part, 0, len(t.Entries))
		for _, e := range t.Entries {
			parts = append(parts, Part{Speaker: speakerFromRole(e.Role), Text: e.Content})
		}
		return parts
	case RoleContent:
		return []Part{{Speaker: speakerFromRole(t.Role), Text: t.Content}}
	default:
		return nil
	}
}

// Preview returns the text shown in the conversation list for a payload, or ""
// when the payload has nothing displayable.
func Preview(p Payload) string {
	switch t := p.(type) {
	case PlainText:
		return t.Text
	case Typed:
		return t.Content
	case RoleContent:
		return t.Content
	case ContentOnly:
		return t.Content
	case MultiMessage:
		if len(t.Entries) == 0 {
			return ""
		}
		return t.Entries[len(t.Entries)-1].Content
	default:
		return ""
	}
}

// Parse expands a stored record into chat messages stamped with the record's display time.
// A nil location formats in UTC.
func Parse(record types.StoredMessageRecord, loc *time.Location) []types.ChatMessage {
	parts := Parts(Decode(record.Payload))
	if len(parts) == 0 {
		return nil
	}

	displayTime := DisplayTime(record.Timestamp(), loc)
	msgs := make([]types.ChatMessage, 0, len(parts))
	for _, p := range parts {
		msgs = append(msgs, types.ChatMessage{
			RecordID:    record.ID,
			Speaker:     p.Speaker,
			Text:        p.Text,
			DisplayTime: displayTime,
		})
	}
	return msgs
}

// DisplayTime formats t as HH:mm in loc. The zero time formats as "".
func DisplayTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(displayTimeLayout)
}

func speakerFromType(typ string) types.Speaker {
	if typ == "human" {
		return types.SpeakerUser
	}
	return types.SpeakerAssistant
}

func speakerFromRole(role string) types.Speaker {
	switch role {
	case "user", "human":
		return types.SpeakerUser
	case "assistant", "ai":
		return types.SpeakerAssistant
	default:
		return types.SpeakerUnknown
	}
}
