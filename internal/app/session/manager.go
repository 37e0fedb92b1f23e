// Package session provides the per-user playback session manager.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	tunedeckv1 "github.com/osa030/tunedeck/internal/api/tunedeckv1"
	"github.com/osa030/tunedeck/internal/app/notification"
	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/domain/user"
	"github.com/osa030/tunedeck/internal/infra/audio"
)

var (
	ErrTrackNotFound = errors.New("track not found")
	ErrClosed        = errors.New("session manager is closed")
)

// TrackSource loads tracks by ID.
type TrackSource interface {
	GetMany(ctx context.Context, ids []string) ([]track.Track, error)
}

// PreferenceSource loads the stored preferences of a user.
type PreferenceSource interface {
	Get(ctx context.Context, userID string) (user.Preferences, error)
}

// Config represents session manager configuration.
type Config struct {
	Playback      playback.Config
	Audio         audio.Config
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Session is one user's playback session.
type Session struct {
	UserID     string
	Controller *playback.Controller
	Player     *audio.Clock
	CreatedAt  time.Time

	mu         sync.Mutex
	lastActive time.Time
	done       chan struct{}
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive returns the time of the last recorded activity.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// PlayTrack primes the player with the queue durations and plays t.
func (s *Session) PlayTrack(t track.Track, queue []track.Track) error {
	s.Touch()
	s.Player.Prime(t)
	s.Player.Prime(queue...)
	return s.Controller.PlayTrack(t, queue)
}

// PlayPlaylist primes the player and plays tracks from startIndex.
func (s *Session) PlayPlaylist(tracks []track.Track, startIndex int) error {
	s.Touch()
	s.Player.Prime(tracks...)
	return s.Controller.PlayPlaylist(tracks, startIndex)
}

// Enqueue primes the player and appends t to the queue.
func (s *Session) Enqueue(t track.Track) {
	s.Touch()
	s.Player.Prime(t)
	s.Controller.AddToQueue(t)
}

// Done is closed once the event pump has drained.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// close stops the player, then the controller, and waits for the pump.
func (s *Session) close() {
	s.Player.Close()
	s.Controller.Close()
	<-s.done
}

// Manager manages one playback session per user.
type Manager struct {
	config       Config
	sessions     *registry
	notification *notification.Manager
	tracks       TrackSource
	prefs        PreferenceSource
}

// NewManager creates a new session manager. prefs may be nil.
func NewManager(cfg Config, notif *notification.Manager, tracks TrackSource, prefs PreferenceSource) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Manager{
		config:       cfg,
		sessions:     newRegistry(),
		notification: notif,
		tracks:       tracks,
		prefs:        prefs,
	}
}

// Get returns the session for userID, creating it on first use.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	s, created, err := m.sessions.getOrCreate(userID, func() *Session {
		return m.newSession(userID)
	})
	if err != nil {
		return nil, err
	}
	if created {
		m.applyPreferences(ctx, s)
		zlog.Info().Msgf("session created: user_id=%s", userID)
	}
	s.Touch()
	return s, nil
}

// Lookup returns the session for userID if one exists.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	return m.sessions.lookup(userID)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.sessions.count()
}

// Notification returns the notification manager events are published to.
func (m *Manager) Notification() *notification.Manager {
	return m.notification
}

// Resolve loads tracks by ID, preserving the order of ids.
func (m *Manager) Resolve(ctx context.Context, ids []string) ([]track.Track, error) {
	if len(ids) == 0 {
		return []track.Track{}, nil
	}
	found, err := m.tracks.GetMany(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tracks")
	}
	byID := make(map[string]track.Track, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	result := make([]track.Track, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, errors.Wrapf(ErrTrackNotFound, "track_id=%s", id)
		}
		result = append(result, t)
	}
	return result, nil
}

// Sweep closes sessions idle for longer than idle and returns how many were closed.
func (m *Manager) Sweep(idle time.Duration) int {
	removed := m.sessions.removeIdle(time.Now().Add(-idle))
	for _, s := range removed {
		s.close()
		zlog.Info().Msgf("session expired: user_id=%s idle_since=%v", s.UserID, s.LastActive())
	}
	return len(removed)
}

// Run sweeps idle sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.config.IdleTimeout); n > 0 {
				zlog.Debug().Msgf("swept idle sessions: count=%d remaining=%d", n, m.Count())
			}
		}
	}
}

// Close stops every session. Subsequent Get calls fail with ErrClosed.
func (m *Manager) Close() {
	sessions, ok := m.sessions.close()
	if !ok {
		return
	}
	for _, s := range sessions {
		s.close()
	}
	m.notification.Close()
}

func (m *Manager) newSession(userID string) *Session {
	player := audio.NewClock(m.config.Audio)
	ctrl := playback.NewController(player, m.config.Playback)
	player.OnStatus(ctrl.HandleStatus)

	now := time.Now()
	s := &Session{
		UserID:     userID,
		Controller: ctrl,
		Player:     player,
		CreatedAt:  now,
		lastActive: now,
		done:       make(chan struct{}),
	}
	go m.eventLoop(s)
	return s
}

// applyPreferences seeds the repeat mode from the user's stored preferences.
func (m *Manager) applyPreferences(ctx context.Context, s *Session) {
	if m.prefs == nil {
		return
	}
	prefs, err := m.prefs.Get(ctx, s.UserID)
	if err != nil {
		zlog.Warn().Msgf("failed to load preferences: user_id=%s error=%v", s.UserID, err)
		return
	}
	mode, err := playback.ParseRepeatMode(prefs.DefaultRepeat)
	if err != nil {
		zlog.Warn().Msgf("ignoring stored repeat mode: user_id=%s error=%v", s.UserID, err)
		return
	}
	s.Controller.SetRepeat(mode)
}

// eventLoop forwards controller events to the user's notification topic
// until the controller closes its event channel.
func (m *Manager) eventLoop(s *Session) {
	defer close(s.done)
	for event := range s.Controller.Events() {
		m.handleEvent(s.UserID, event)
	}
}

func (m *Manager) handleEvent(userID string, event playback.Event) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("event handler panicked: user_id=%s type=%s panic=%v", userID, event.Type, r)
		}
	}()

	if event.Type == playback.EventError {
		zlog.Warn().Msgf("playback error: user_id=%s error=%v", userID, event.Err)
	} else {
		zlog.Debug().Msgf("playback event: user_id=%s type=%s", userID, event.Type)
	}
	m.notification.Publish(userID, tunedeckv1.FromEvent(event))
}
