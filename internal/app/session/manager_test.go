package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tunedeckv1 "github.com/osa030/tunedeck/internal/api/tunedeckv1"
	"github.com/osa030/tunedeck/internal/app/notification"
	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/domain/user"
	"github.com/osa030/tunedeck/internal/infra/audio"
)

type memTracks map[string]track.Track

func (m memTracks) GetMany(_ context.Context, ids []string) ([]track.Track, error) {
	var out []track.Track
	for _, id := range ids {
		if t, ok := m[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

type memPrefs map[string]user.Preferences

func (m memPrefs) Get(_ context.Context, userID string) (user.Preferences, error) {
	if p, ok := m[userID]; ok {
		return p, nil
	}
	return user.Preferences{}, errors.New("no preferences")
}

type eventStream struct {
	mu     sync.Mutex
	events []*tunedeckv1.PlaybackEvent
}

func (s *eventStream) Send(e *tunedeckv1.PlaybackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *eventStream) types() []tunedeckv1.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tunedeckv1.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func testTracks() memTracks {
	return memTracks{
		"t1": {ID: "t1", Title: "One", Duration: 120, URI: "mem://t1", Source: track.SourceCatalog},
		"t2": {ID: "t2", Title: "Two", Duration: 200, URI: "mem://t2", Source: track.SourceCatalog},
		"t3": {ID: "t3", Title: "Three", Duration: 90, URI: "mem://t3", Source: track.SourceUpload},
	}
}

func newTestManager(t *testing.T, prefs PreferenceSource) *Manager {
	t.Helper()
	m := NewManager(Config{
		Playback: playback.DefaultConfig(),
		Audio:    audio.Config{Tick: 10 * time.Millisecond},
	}, notification.NewManager(), testTracks(), prefs)
	t.Cleanup(m.Close)
	return m
}

func TestManager_GetReusesSession(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	a, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	b, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	c, err := m.Get(ctx, "u2")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, m.Count())

	_, ok := m.Lookup("u3")
	assert.False(t, ok)
}

func TestManager_Resolve(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	got, err := m.Resolve(ctx, []string{"t3", "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t1"}, track.IDs(got))

	_, err = m.Resolve(ctx, []string{"t1", "missing"})
	assert.ErrorIs(t, err, ErrTrackNotFound)

	empty, err := m.Resolve(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestManager_PublishesEventsToUserTopic(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	own := &eventStream{}
	other := &eventStream{}
	m.Notification().Subscribe("u1", own)
	m.Notification().Subscribe("u2", other)

	s, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	tracks, err := m.Resolve(ctx, []string{"t1", "t2"})
	require.NoError(t, err)
	require.NoError(t, s.PlayPlaylist(tracks, 0))

	require.Eventually(t, func() bool {
		for _, typ := range own.types() {
			if typ == tunedeckv1.EventTypeTrackChanged {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, other.types())

	// The clock reports Loaded on the next tick.
	require.Eventually(t, func() bool {
		return !s.Controller.Snapshot().IsLoading
	}, time.Second, 10*time.Millisecond)
	assert.True(t, s.Controller.Snapshot().IsPlaying)
}

func TestManager_AppliesDefaultRepeat(t *testing.T) {
	prefs := memPrefs{"u1": {UserID: "u1", DefaultRepeat: "all"}}
	m := newTestManager(t, prefs)
	ctx := context.Background()

	s, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, playback.RepeatAll, s.Controller.Snapshot().RepeatMode)

	// Missing preferences fall back to the controller default.
	s2, err := m.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, playback.RepeatOff, s2.Controller.Snapshot().RepeatMode)
}

func TestManager_Sweep(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	stale, err := m.Get(ctx, "stale")
	require.NoError(t, err)
	stale.mu.Lock()
	stale.lastActive = time.Now().Add(-3 * time.Hour)
	stale.mu.Unlock()

	_, err = m.Get(ctx, "fresh")
	require.NoError(t, err)

	assert.Equal(t, 1, m.Sweep(time.Hour))
	assert.Equal(t, 1, m.Count())

	select {
	case <-stale.Done():
	case <-time.After(time.Second):
		t.Fatal("event loop did not stop")
	}
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	s, err := m.Get(ctx, "u1")
	require.NoError(t, err)

	m.Close()

	<-s.Done()
	assert.Equal(t, 0, m.Count())
	_, err = m.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_GetAfterCloseCreatesNothing(t *testing.T) {
	m := newTestManager(t, nil)
	m.Close()
	m.Close()

	_, err := m.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, m.Count())
	_, ok := m.Lookup("u1")
	assert.False(t, ok)
}

func TestManager_ConcurrentGetAndClose(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got []*Session
	)
	start := make(chan struct{})
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s, err := m.Get(ctx, fmt.Sprintf("u%d", i))
			if err != nil {
				assert.ErrorIs(t, err, ErrClosed)
				return
			}
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}()
	}
	close(start)
	m.Close()
	wg.Wait()

	assert.Equal(t, 0, m.Count())
	for _, s := range got {
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatalf("session %s outlived Close", s.UserID)
		}
	}
}
