package inbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/chat/parser"
	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/types"
)

// ConversationStore owns the conversation list. Every mutation goes through it.
type ConversationStore struct {
	lister   ConversationLister
	history  HistoryReader
	profiles ProfileReader
	notifier realtime.Notifier
	logger   *logrus.Logger
	loc      *time.Location
	now      func() time.Time

	mu            sync.Mutex
	conversations []types.Conversation
	index         map[string]int
	seen          map[string]*recordSet
	active        string
	version       uint64
	generation    uint64
	inflight      int
	pending       []types.StoredMessageRecord
}

// NewConversationStore creates an empty store. A nil notifier discards events.
func NewConversationStore(lister ConversationLister, history HistoryReader, profiles ProfileReader, notifier realtime.Notifier, logger *logrus.Logger, loc *time.Location) *ConversationStore {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ConversationStore{
		lister:   lister,
		history:  history,
		profiles: profiles,
		notifier: notifier,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
		index:    make(map[string]int),
		seen:     make(map[string]*recordSet),
	}
}

// FetchAll reloads the whole list. On success the previous list is replaced and
// unread counters start from zero. On failure the previous list is kept.
// A fetch overtaken by a newer one is discarded.
func (s *ConversationStore) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.inflight++
	s.mu.Unlock()

	convs, err := s.load(ctx)

	s.mu.Lock()
	s.inflight--
	pending := s.pending
	if s.inflight == 0 {
		s.pending = nil
	}

	if err != nil {
		s.mu.Unlock()
		s.logger.WithError(err).Error("failed to fetch conversations")
		s.notifier.Notify(errorNotice("Erro ao carregar conversas", "Ocorreu um erro ao carregar as conversas."))
		return err
	}
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.WithField("generation", gen).Debug("discarding superseded conversation fetch")
		return nil
	}

	s.conversations = convs
	s.index = make(map[string]int, len(convs))
	s.seen = make(map[string]*recordSet, len(convs))
	for i, c := range convs {
		s.index[c.ID] = i
		set := newRecordSet()
		if c.LastRecordID > 0 {
			set.add(c.LastRecordID)
		}
		s.seen[c.ID] = set
	}
	replayed := 0
	for _, rec := range pending {
		if _, ok := s.applyLocked(rec); ok {
			replayed++
		}
	}
	snapshot := s.listLocked()
	s.version++
	version := s.version
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"conversations": len(snapshot),
		"replayed":      replayed,
	}).Info("conversations loaded")
	s.notifier.Notify(realtime.Event{Type: realtime.EventConversationsReplaced, Data: snapshot, Version: version})
	return nil
}

func (s *ConversationStore) load(ctx context.Context) ([]types.Conversation, error) {
	ids, err := s.lister.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if len(ids) == 0 {
		return []types.Conversation{}, nil
	}

	profiles, err := s.profiles.ListBySessions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list client profiles: %w", err)
	}
	bySession := make(map[string]types.ClientProfile, len(profiles))
	for _, p := range profiles {
		if p.Phone == nil || *p.Phone == "" {
			continue
		}
		if _, seen := bySession[p.SessionID]; !seen {
			bySession[p.SessionID] = p
		}
	}

	kept := make([]string, 0, len(bySession))
	for _, id := range ids {
		if _, ok := bySession[id]; ok {
			kept = append(kept, id)
		}
	}

	latest, err := s.history.LatestByConversations(ctx, kept)
	if err != nil {
		return nil, fmt.Errorf("latest messages: %w", err)
	}

	now := s.now()
	convs := make([]types.Conversation, 0, len(kept))
	for _, id := range kept {
		conv := fromProfile(bySession[id])
		if rec, ok := latest[id]; ok {
			s.setPreview(&conv, rec, now)
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func fromProfile(p types.ClientProfile) types.Conversation {
	return types.Conversation{
		ID:                 p.SessionID,
		Name:               orDefault(p.Name, DefaultName),
		Phone:              orDefault(p.Phone, ""),
		Email:              orDefault(p.Email, DefaultEmail),
		PetName:            orDefault(p.PetName, DefaultPetField),
		PetSize:            orDefault(p.PetSize, DefaultPetField),
		PetBreed:           orDefault(p.PetBreed, DefaultPetField),
		LastMessagePreview: DefaultPreview,
		LastMessageTime:    DefaultListTime,
	}
}

func orDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func (s *ConversationStore) setPreview(c *types.Conversation, rec types.StoredMessageRecord, now time.Time) {
	preview := parser.Preview(parser.Decode(rec.Payload))
	if preview == "" {
		preview = DefaultPreview
	}
	c.LastMessagePreview = preview
	c.LastMessageTime = FormatListTime(rec.Timestamp(), now, s.loc)
	c.LastRecordID = rec.ID
}

// ApplyIncomingRecord folds a realtime insert into its conversation. Every
// distinct record counts once as unread; the preview follows the highest id.
// Records for unknown conversations and records already applied are ignored.
func (s *ConversationStore) ApplyIncomingRecord(rec types.StoredMessageRecord) {
	s.mu.Lock()
	if s.inflight > 0 {
		s.pending = append(s.pending, rec)
	}
	conv, ok := s.applyLocked(rec)
	if ok {
		s.version++
	}
	version := s.version
	s.mu.Unlock()

	if !ok {
		return
	}
	s.notifier.Notify(realtime.Event{Type: realtime.EventConversationUpdated, Data: conv, Version: version})
}

func (s *ConversationStore) applyLocked(rec types.StoredMessageRecord) (types.Conversation, bool) {
	i, ok := s.index[rec.ConversationID]
	if !ok {
		return types.Conversation{}, false
	}
	set, ok := s.seen[rec.ConversationID]
	if !ok {
		set = newRecordSet()
		s.seen[rec.ConversationID] = set
	}
	if !set.add(rec.ID) {
		return types.Conversation{}, false
	}

	c := &s.conversations[i]
	changed := false
	if rec.ID > c.LastRecordID {
		s.setPreview(c, rec, s.now())
		changed = true
	}
	if c.ID != s.active {
		c.UnreadCount++
		changed = true
	}
	return *c, changed
}

// MarkRead resets the unread counter of a conversation.
func (s *ConversationStore) MarkRead(conversationID string) error {
	s.mu.Lock()
	i, ok := s.index[conversationID]
	if !ok {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	c := &s.conversations[i]
	changed := c.UnreadCount != 0
	c.UnreadCount = 0
	conv := *c
	if changed {
		s.version++
	}
	version := s.version
	s.mu.Unlock()

	if changed {
		s.notifier.Notify(realtime.Event{Type: realtime.EventConversationUpdated, Data: conv, Version: version})
	}
	return nil
}

// SetActive records the selected conversation. Inserts for it do not count as unread.
// An empty id clears the selection.
func (s *ConversationStore) SetActive(conversationID string) {
	s.mu.Lock()
	s.active = conversationID
	s.mu.Unlock()
}

// List returns a copy of the conversations in display order.
func (s *ConversationStore) List() []types.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

// Snapshot returns the list together with the version it reflects.
func (s *ConversationStore) Snapshot() ([]types.Conversation, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(), s.version
}

func (s *ConversationStore) listLocked() []types.Conversation {
	out := make([]types.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Get returns one conversation.
func (s *ConversationStore) Get(conversationID string) (types.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[conversationID]
	if !ok {
		return types.Conversation{}, false
	}
	return s.conversations[i], true
}

// Listener routes global feed deliveries into the store and refetches after a reconnect.
func (s *ConversationStore) Listener() realtime.Listener {
	return realtime.Listener{
		OnInsert: func(_ context.Context, rec types.StoredMessageRecord) {
			s.ApplyIncomingRecord(rec)
		},
		OnResync: func(ctx context.Context) {
			_ = s.FetchAll(ctx)
		},
	}
}
