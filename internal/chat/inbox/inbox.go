// Package inbox keeps the operator's conversation list and active transcript in
// sync with the chat history table.
package inbox

import (
	"context"
	"errors"
	"slices"

	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/types"
)

var (
	ErrNoSelection          = errors.New("no conversation selected")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoPhone              = errors.New("conversation has no phone number")
	ErrEmptyMessage         = errors.New("message is empty")
)

// Dashboard placeholders for missing data.
const (
	DefaultName      = "Cliente sem nome"
	DefaultEmail     = "Sem email"
	DefaultPetField  = "Não informado"
	DefaultPreview   = "Sem mensagem"
	DefaultListTime  = "Recente"
	noticeLevelError = "error"
)

// ConversationLister lists conversation ids, most recently active first.
type ConversationLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// HistoryReader reads chat history records.
type HistoryReader interface {
	ListByConversation(ctx context.Context, conversationID string) ([]types.StoredMessageRecord, error)
	LatestByConversations(ctx context.Context, conversationIDs []string) (map[string]types.StoredMessageRecord, error)
}

// ProfileReader reads client profiles that have a phone number.
type ProfileReader interface {
	ListBySessions(ctx context.Context, sessionIDs []string) ([]types.ClientProfile, error)
}

// Watcher opens and releases change feed subscriptions.
type Watcher interface {
	WatchAll(ctx context.Context, l realtime.Listener) error
	WatchConversation(ctx context.Context, conversationID string, l realtime.Listener) error
	StopConversation()
	Close()
}

// Sender delivers an operator message to a client's phone.
type Sender interface {
	SendMessage(ctx context.Context, phone, text string) error
}

func errorNotice(title, description string) realtime.Event {
	return realtime.Event{
		Type: realtime.EventNotice,
		Data: realtime.Notice{Level: noticeLevelError, Title: title, Description: description},
	}
}

// recordSetLimit bounds how many record ids a recordSet remembers.
const recordSetLimit = 1024

// recordSet remembers which record ids were applied. Feed deliveries follow
// commit order, which is not id order, so a lower id can still be new. Once
// the set is full the oldest half is folded into floor and treated as seen.
type recordSet struct {
	ids   map[int64]struct{}
	floor int64
}

func newRecordSet() *recordSet {
	return &recordSet{ids: make(map[int64]struct{})}
}

// add records id and reports whether it was new.
func (r *recordSet) add(id int64) bool {
	if id <= r.floor {
		return false
	}
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	if len(r.ids) > recordSetLimit {
		r.evict()
	}
	return true
}

func (r *recordSet) evict() {
	ids := make([]int64, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids[:len(ids)-recordSetLimit/2] {
		delete(r.ids, id)
		r.floor = id
	}
}
