// Package pgnotify implements the chat history change feed on Postgres LISTEN/NOTIFY.
//
// An insert trigger on n8n_chat_histories notifies Channel with {"id", "session_id"}.
// The feed holds one dedicated connection, loads each announced row by id and
// hands it to the subscribers whose filter matches.
package pgnotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/petparadise/chat-backend/internal/realtime"
	"github.com/petparadise/chat-backend/internal/types"
)

// Channel is the notification channel used by the insert trigger migration.
const Channel = "chat_history_inserted"

const loadTimeout = 5 * time.Second

// ErrConnectionLost ends subscriptions when the listening connection drops.
var ErrConnectionLost = errors.New("notify connection lost")

// RecordLoader fetches a full record by id.
type RecordLoader interface {
	GetByID(ctx context.Context, id int64) (*types.StoredMessageRecord, error)
}

type notification struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
}

type subscriber struct {
	filter  realtime.Filter
	handler realtime.Handler
	handle  *realtime.Handle
}

// Feed is a realtime.Feed backed by LISTEN/NOTIFY.
type Feed struct {
	pool      *pgxpool.Pool
	loader    RecordLoader
	logger    *logrus.Logger
	retryBase time.Duration
	retryMax  time.Duration

	mu        sync.Mutex
	subs      map[*subscriber]struct{}
	listening bool

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a Feed. Run must be started for subscriptions to be accepted.
func New(pool *pgxpool.Pool, loader RecordLoader, logger *logrus.Logger, retryBase, retryMax time.Duration) *Feed {
	if retryBase <= 0 {
		retryBase = time.Second
	}
	if retryMax <= 0 {
		retryMax = 30 * time.Second
	}
	return &Feed{
		pool:      pool,
		loader:    loader,
		logger:    logger,
		retryBase: retryBase,
		retryMax:  retryMax,
		subs:      make(map[*subscriber]struct{}),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the first LISTEN succeeds.
func (f *Feed) Ready() <-chan struct{} {
	return f.ready
}

// Subscribe registers h for inserts matching filter. It fails with
// realtime.ErrNotListening while the listening connection is down.
func (f *Feed) Subscribe(_ context.Context, filter realtime.Filter, h realtime.Handler) (realtime.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.listening {
		return nil, realtime.ErrNotListening
	}

	s := &subscriber{filter: filter, handler: h}
	s.handle = realtime.NewHandle(func() {
		f.mu.Lock()
		delete(f.subs, s)
		f.mu.Unlock()
	})
	f.subs[s] = struct{}{}
	return s.handle, nil
}

// Run listens until ctx ends, reconnecting with backoff. Every outage ends the
// current subscriptions with ErrConnectionLost so their owners resubscribe and resync.
func (f *Feed) Run(ctx context.Context) error {
	for {
		var conn *pgx.Conn
		err := retry.Do(ctx, f.backoff(), func(ctx context.Context) error {
			c, err := f.connect(ctx)
			if err != nil {
				f.logger.WithError(err).Warn("notify listener connect failed")
				return retry.RetryableError(err)
			}
			conn = c
			return nil
		})
		if err != nil {
			f.endAll(nil)
			return nil
		}

		f.setListening(true)
		f.logger.WithField("channel", Channel).Info("listening for chat history inserts")

		err = f.listen(ctx, conn)
		f.setListening(false)
		_ = conn.Close(context.Background())

		if ctx.Err() != nil {
			f.endAll(nil)
			return nil
		}
		f.logger.WithError(err).Warn("notify listener dropped")
		f.endAll(fmt.Errorf("%w: %v", ErrConnectionLost, err))
	}
}

func (f *Feed) connect(ctx context.Context) (*pgx.Conn, error) {
	pc, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	conn := pc.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen: %w", err)
	}
	return conn, nil
}

func (f *Feed) listen(ctx context.Context, conn *pgx.Conn) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		f.dispatch(ctx, n.Payload)
	}
}

func (f *Feed) dispatch(ctx context.Context, payload string) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		f.logger.WithError(err).WithField("payload", payload).Warn("bad chat history notification")
		return
	}

	targets := f.matching(n.SessionID)
	if len(targets) == 0 {
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	rec, err := f.loader.GetByID(loadCtx, n.ID)
	if err != nil {
		f.logger.WithError(err).WithField("record_id", n.ID).Warn("failed to load notified record")
		return
	}

	for _, s := range targets {
		if s.handle.Active() {
			s.handler(*rec)
		}
	}
}

func (f *Feed) matching(conversationID string) []*subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()

	var targets []*subscriber
	for s := range f.subs {
		if s.filter.Matches(conversationID) {
			targets = append(targets, s)
		}
	}
	return targets
}

func (f *Feed) setListening(v bool) {
	f.mu.Lock()
	f.listening = v
	f.mu.Unlock()

	if v {
		f.readyOnce.Do(func() { close(f.ready) })
	}
}

func (f *Feed) endAll(err error) {
	f.mu.Lock()
	targets := make([]*subscriber, 0, len(f.subs))
	for s := range f.subs {
		targets = append(targets, s)
	}
	f.mu.Unlock()

	for _, s := range targets {
		s.handle.Fail(err)
	}
}

func (f *Feed) backoff() retry.Backoff {
	return retry.WithCappedDuration(f.retryMax, retry.NewExponential(f.retryBase))
}
