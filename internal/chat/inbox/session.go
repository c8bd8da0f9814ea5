package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/chat/parser"
	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/types"
)

// Session is one operator's view of the inbox: the conversation list, the
// selected transcript and the feeds that keep both current.
type Session struct {
	conversations *ConversationStore
	messages      *MessageStore
	watcher       Watcher
	sender        Sender
	notifier      realtime.Notifier
	logger        *logrus.Logger
	loc           *time.Location
	now           func() time.Time
}

// SessionConfig holds the collaborators of a Session.
type SessionConfig struct {
	Conversations ConversationLister
	History       HistoryReader
	Profiles      ProfileReader
	Watcher       Watcher
	Sender        Sender
	Notifier      realtime.Notifier
	Logger        *logrus.Logger
	Location      *time.Location
}

// NewSession builds both stores around one watcher.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Notifier == nil {
		cfg.Notifier = realtime.NopNotifier{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Session{
		conversations: NewConversationStore(cfg.Conversations, cfg.History, cfg.Profiles, cfg.Notifier, cfg.Logger, cfg.Location),
		messages:      NewMessageStore(cfg.History, cfg.Watcher, cfg.Notifier, cfg.Logger, cfg.Location),
		watcher:       cfg.Watcher,
		sender:        cfg.Sender,
		notifier:      cfg.Notifier,
		logger:        cfg.Logger,
		loc:           cfg.Location,
		now:           time.Now,
	}
}

// Conversations returns the conversation store.
func (s *Session) Conversations() *ConversationStore {
	return s.conversations
}

// Messages returns the message store.
func (s *Session) Messages() *MessageStore {
	return s.messages
}

// Start opens the global feed and then loads the conversation list, so inserts
// committed during the load are replayed onto it. Both are attempted even if
// one fails; the feed keeps retrying in the background.
func (s *Session) Start(ctx context.Context) error {
	watchErr := s.watcher.WatchAll(ctx, s.conversations.Listener())
	if watchErr != nil {
		watchErr = fmt.Errorf("watch chat history: %w", watchErr)
	}

	fetchErr := s.conversations.FetchAll(ctx)
	return errors.Join(watchErr, fetchErr)
}

// Select makes conversationID the active conversation and marks it read. Nil
// clears the selection.
func (s *Session) Select(ctx context.Context, conversationID *string) error {
	if conversationID == nil {
		s.conversations.SetActive("")
		return s.messages.Select(ctx, nil)
	}

	s.conversations.SetActive(*conversationID)
	if err := s.conversations.MarkRead(*conversationID); err != nil && !errors.Is(err, ErrConversationNotFound) {
		return err
	}
	return s.messages.Select(ctx, conversationID)
}

// SendMessage sends text to the selected conversation's phone and appends it to
// the transcript once the webhook accepts it.
func (s *Session) SendMessage(ctx context.Context, text string) (types.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.ChatMessage{}, ErrEmptyMessage
	}

	id, ok := s.messages.Active()
	if !ok {
		return types.ChatMessage{}, ErrNoSelection
	}
	conv, ok := s.conversations.Get(id)
	if !ok {
		return types.ChatMessage{}, ErrConversationNotFound
	}
	if conv.Phone == "" {
		return types.ChatMessage{}, ErrNoPhone
	}

	if err := s.sender.SendMessage(ctx, conv.Phone, text); err != nil {
		s.logger.WithError(err).WithField("conversation_id", id).Error("failed to send message")
		s.notifier.Notify(errorNotice("Erro ao enviar mensagem", "Não foi possível enviar sua mensagem. Tente novamente."))
		return types.ChatMessage{}, fmt.Errorf("send message: %w", err)
	}

	msg := types.ChatMessage{
		Speaker:     types.SpeakerAssistant,
		Text:        text,
		DisplayTime: parser.DisplayTime(s.now(), s.loc),
	}
	if err := s.messages.AppendLocal(msg); err != nil {
		return types.ChatMessage{}, err
	}
	return msg, nil
}

// Close releases every feed subscription.
func (s *Session) Close() {
	s.watcher.Close()
}
