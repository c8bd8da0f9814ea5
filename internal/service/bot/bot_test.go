package bot

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petparadise/chat-backend/internal/cache/redis"
)

type fakeController struct {
	paused   []string
	started  []string
	duration *time.Duration
	err      error
}

func (f *fakeController) PauseBot(_ context.Context, phone string, d *time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.paused = append(f.paused, phone)
	f.duration = d
	return nil
}

func (f *fakeController) StartBot(_ context.Context, phone string) error {
	if f.err != nil {
		return f.err
	}
	f.started = append(f.started, phone)
	return nil
}

type entry struct {
	value string
	ttl   time.Duration
}

type fakeState struct {
	data   map[string]entry
	getErr error
}

func newFakeState() *fakeState {
	return &fakeState{data: make(map[string]entry)}
}

func (f *fakeState) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	e, ok := f.data[key]
	if !ok {
		return "", redis.ErrNil
	}
	return e.value, nil
}

func (f *fakeState) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.data[key] = entry{value: value, ttl: ttl}
	return nil
}

func (f *fakeState) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func newTestService(c Controller, state StateStore) *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewService(c, state, logger)
	s.now = func() time.Time { return time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestPauseRecordsState(t *testing.T) {
	ctrl := &fakeController{}
	state := newFakeState()
	s := newTestService(ctrl, state)

	d := 10 * time.Minute
	st, err := s.Pause(context.Background(), "5511", &d)
	require.NoError(t, err)
	assert.True(t, st.Paused)
	assert.Equal(t, time.Date(2024, 5, 15, 12, 10, 0, 0, time.UTC), *st.Until)

	assert.Equal(t, []string{"5511"}, ctrl.paused)
	assert.Equal(t, d, state.data["inbox:bot:paused:5511"].ttl)

	got, err := s.Status(context.Background(), "5511")
	require.NoError(t, err)
	assert.True(t, got.Paused)
	assert.Equal(t, *st.Until, *got.Until)
}

func TestPauseWithoutDurationIsNotTracked(t *testing.T) {
	ctrl := &fakeController{}
	state := newFakeState()
	s := newTestService(ctrl, state)

	st, err := s.Pause(context.Background(), "5511", nil)
	require.NoError(t, err)
	assert.False(t, st.Paused)
	assert.Nil(t, ctrl.duration)
	assert.Empty(t, state.data)
}

func TestPauseValidation(t *testing.T) {
	s := newTestService(&fakeController{}, newFakeState())

	_, err := s.Pause(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNoPhone)

	for _, d := range []time.Duration{0, 500 * time.Millisecond, MaxPause + time.Second} {
		_, err = s.Pause(context.Background(), "5511", &d)
		assert.ErrorIs(t, err, ErrInvalidDuration, d)
	}

	d := MaxPause
	_, err = s.Pause(context.Background(), "5511", &d)
	assert.NoError(t, err)
}

func TestPauseWebhookFailureLeavesStateAlone(t *testing.T) {
	state := newFakeState()
	s := newTestService(&fakeController{err: assert.AnError}, state)

	d := time.Minute
	_, err := s.Pause(context.Background(), "5511", &d)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, state.data)
}

func TestStartClearsState(t *testing.T) {
	ctrl := &fakeController{}
	state := newFakeState()
	s := newTestService(ctrl, state)

	d := time.Hour
	_, err := s.Pause(context.Background(), "5511", &d)
	require.NoError(t, err)

	_, err = s.Start(context.Background(), "5511")
	require.NoError(t, err)
	assert.Equal(t, []string{"5511"}, ctrl.started)

	st, err := s.Status(context.Background(), "5511")
	require.NoError(t, err)
	assert.False(t, st.Paused)
}

func TestStatusExpiredMarker(t *testing.T) {
	state := newFakeState()
	state.data["inbox:bot:paused:5511"] = entry{value: "2024-05-15T11:00:00Z"}
	s := newTestService(&fakeController{}, state)

	st, err := s.Status(context.Background(), "5511")
	require.NoError(t, err)
	assert.False(t, st.Paused)
}

func TestStatusStoreError(t *testing.T) {
	state := newFakeState()
	state.getErr = assert.AnError
	s := newTestService(&fakeController{}, state)

	_, err := s.Status(context.Background(), "5511")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestStatusWithoutStore(t *testing.T) {
	s := newTestService(&fakeController{}, nil)

	st, err := s.Status(context.Background(), "5511")
	require.NoError(t, err)
	assert.False(t, st.Paused)
}
