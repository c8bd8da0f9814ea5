package inbox

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/chat/parser"
	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/types"
)

// MessageReader reads the history of one conversation in ascending id order.
type MessageReader interface {
	ListByConversation(ctx context.Context, conversationID string) ([]types.StoredMessageRecord, error)
}

// MessagesEvent is the payload of messages.replaced and messages.appended events.
type MessagesEvent struct {
	ConversationID string              `json:"conversation_id"`
	Messages       []types.ChatMessage `json:"messages"`
}

// MessageStore holds the transcript of the selected conversation.
type MessageStore struct {
	history  MessageReader
	watcher  Watcher
	notifier realtime.Notifier
	logger   *logrus.Logger
	loc      *time.Location

	// selectMu orders the teardown and setup of the conversation feed.
	selectMu sync.Mutex

	mu           sync.Mutex
	active       string
	selected     bool
	generation   uint64
	loading      bool
	buffered     []types.StoredMessageRecord
	localPending []types.ChatMessage
	messages     []types.ChatMessage
	seen         *recordSet
	version      uint64
}

// Transcript is a consistent view of the MessageStore.
type Transcript struct {
	ConversationID string
	Selected       bool
	Messages       []types.ChatMessage
	Version        uint64
}

// NewMessageStore creates a store with nothing selected. A nil notifier discards events.
func NewMessageStore(history MessageReader, watcher Watcher, notifier realtime.Notifier, logger *logrus.Logger, loc *time.Location) *MessageStore {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MessageStore{
		history:  history,
		watcher:  watcher,
		notifier: notifier,
		logger:   logger,
		loc:      loc,
		seen:     newRecordSet(),
	}
}

// Select switches the transcript to conversationID, or clears it when nil.
// The previous conversation feed is released before anything else happens.
// Inserts arriving while the history loads are applied once it lands.
func (s *MessageStore) Select(ctx context.Context, conversationID *string) error {
	s.selectMu.Lock()
	s.watcher.StopConversation()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.messages = nil
	s.buffered = nil
	s.localPending = nil
	s.seen = newRecordSet()
	s.version++
	if conversationID == nil {
		s.active, s.selected, s.loading = "", false, false
		version := s.version
		s.mu.Unlock()
		s.selectMu.Unlock()

		s.notifier.Notify(realtime.Event{Type: realtime.EventMessagesReplaced, Data: MessagesEvent{Messages: []types.ChatMessage{}}, Version: version})
		return nil
	}
	id := *conversationID
	s.active, s.selected, s.loading = id, true, true
	s.mu.Unlock()

	if err := s.watcher.WatchConversation(ctx, id, s.listener()); err != nil {
		s.logger.WithError(err).WithField("conversation_id", id).Warn("conversation feed unavailable, retrying in background")
	}
	s.selectMu.Unlock()

	return s.load(ctx, gen, id)
}

func (s *MessageStore) load(ctx context.Context, gen uint64, id string) error {
	records, err := s.history.ListByConversation(ctx, id)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.WithField("conversation_id", id).Debug("discarding superseded message fetch")
		return nil
	}
	s.loading = false
	buffered := s.buffered
	local := s.localPending
	s.buffered, s.localPending = nil, nil

	if err != nil {
		for _, rec := range buffered {
			s.insertLocked(rec)
		}
		s.messages = append(s.messages, local...)
		s.version++
		snapshot := MessagesEvent{ConversationID: id, Messages: s.messagesLocked()}
		version := s.version
		s.mu.Unlock()
		s.logger.WithError(err).WithField("conversation_id", id).Error("failed to fetch messages")
		s.notifier.Notify(realtime.Event{Type: realtime.EventMessagesReplaced, Data: snapshot, Version: version})
		s.notifier.Notify(errorNotice("Erro ao carregar mensagens", "Ocorreu um erro ao carregar as mensagens."))
		return fmt.Errorf("fetch messages for %s: %w", id, err)
	}

	seen := newRecordSet()
	merged := make([]types.StoredMessageRecord, 0, len(records)+len(buffered))
	for _, rec := range append(records, buffered...) {
		if seen.add(rec.ID) {
			merged = append(merged, rec)
		}
	}
	slices.SortStableFunc(merged, func(a, b types.StoredMessageRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})

	msgs := make([]types.ChatMessage, 0, len(merged))
	for _, rec := range merged {
		msgs = append(msgs, parser.Parse(rec, s.loc)...)
	}
	s.messages = append(msgs, local...)
	s.seen = seen
	s.version++
	snapshot := MessagesEvent{ConversationID: id, Messages: s.messagesLocked()}
	version := s.version
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"conversation_id": id,
		"records":         len(records),
		"messages":        len(snapshot.Messages),
	}).Debug("messages loaded")
	s.notifier.Notify(realtime.Event{Type: realtime.EventMessagesReplaced, Data: snapshot, Version: version})
	return nil
}

// Reload refetches the transcript of the current selection, keeping the
// conversation feed as is.
func (s *MessageStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	if !s.selected {
		s.mu.Unlock()
		return ErrNoSelection
	}
	s.generation++
	gen := s.generation
	id := s.active
	s.loading = true
	s.buffered = nil
	s.mu.Unlock()

	return s.load(ctx, gen, id)
}

// AppendIncoming adds a realtime insert when it belongs to the selection.
// Records already applied are dropped. A record that commits after a higher
// id is placed at its id position and the transcript is re-sent whole.
func (s *MessageStore) AppendIncoming(rec types.StoredMessageRecord) {
	s.mu.Lock()
	if !s.selected || rec.ConversationID != s.active {
		s.mu.Unlock()
		return
	}
	if s.loading {
		s.buffered = append(s.buffered, rec)
		s.mu.Unlock()
		return
	}

	msgs, appended := s.insertLocked(rec)
	if len(msgs) == 0 {
		s.mu.Unlock()
		return
	}
	id := s.active
	s.version++
	version := s.version
	var snapshot []types.ChatMessage
	if !appended {
		snapshot = s.messagesLocked()
	}
	s.mu.Unlock()

	if appended {
		s.notifier.Notify(realtime.Event{Type: realtime.EventMessagesAppended, Data: MessagesEvent{ConversationID: id, Messages: msgs}, Version: version})
		return
	}
	s.notifier.Notify(realtime.Event{Type: realtime.EventMessagesReplaced, Data: MessagesEvent{ConversationID: id, Messages: snapshot}, Version: version})
}

// insertLocked places the messages of rec before every message with a higher
// record id. Local messages carry no id and are stepped over.
func (s *MessageStore) insertLocked(rec types.StoredMessageRecord) (msgs []types.ChatMessage, appended bool) {
	if !s.seen.add(rec.ID) {
		return nil, false
	}
	msgs = parser.Parse(rec, s.loc)
	if len(msgs) == 0 {
		return nil, false
	}

	i := len(s.messages)
	for j := len(s.messages); j > 0; j-- {
		id := s.messages[j-1].RecordID
		if id == 0 {
			continue
		}
		if id < rec.ID {
			break
		}
		i = j - 1
	}
	appended = i == len(s.messages)
	s.messages = slices.Insert(s.messages, i, msgs...)
	return msgs, appended
}

// AppendLocal appends a message composed by the operator without waiting for
// the feed to echo it.
func (s *MessageStore) AppendLocal(msg types.ChatMessage) error {
	s.mu.Lock()
	if !s.selected {
		s.mu.Unlock()
		return ErrNoSelection
	}
	if s.loading {
		s.localPending = append(s.localPending, msg)
	} else {
		s.messages = append(s.messages, msg)
	}
	id := s.active
	s.version++
	version := s.version
	s.mu.Unlock()

	s.notifier.Notify(realtime.Event{Type: realtime.EventMessagesAppended, Data: MessagesEvent{ConversationID: id, Messages: []types.ChatMessage{msg}}, Version: version})
	return nil
}

// Messages returns a copy of the transcript.
func (s *MessageStore) Messages() []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesLocked()
}

func (s *MessageStore) messagesLocked() []types.ChatMessage {
	out := make([]types.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Snapshot returns the selection and transcript as of one version.
func (s *MessageStore) Snapshot() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Transcript{
		ConversationID: s.active,
		Selected:       s.selected,
		Messages:       s.messagesLocked(),
		Version:        s.version,
	}
}

// Active returns the selected conversation id.
func (s *MessageStore) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.selected
}

func (s *MessageStore) listener() realtime.Listener {
	return realtime.Listener{
		OnInsert: func(_ context.Context, rec types.StoredMessageRecord) {
			s.AppendIncoming(rec)
		},
		OnResync: func(ctx context.Context) {
			_ = s.Reload(ctx)
		},
	}
}
