package playback

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/domain/track"
)

// Errors
var (
	ErrNoTrack         = errors.New("no track loaded")
	ErrQueueEmpty      = errors.New("queue is empty")
	ErrIndexOutOfRange = errors.New("start index out of range")
)

// Config holds controller configuration.
type Config struct {
	RestartThreshold time.Duration // Previous restarts the current track past this position
	EventBuffer      int           // Size of the event channel buffer
}

// DefaultConfig returns the configuration used by the mobile client.
func DefaultConfig() Config {
	return Config{
		RestartThreshold: 3 * time.Second,
		EventBuffer:      32,
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) {
		c.rand = r
	}
}

// Controller owns the playback queue and transport state for one listener.
// All operations are serialised by an internal mutex.
type Controller struct {
	mu sync.Mutex

	player Player

	// Queue management: queue is the play order, originalQueue the pre-shuffle order.
	queue         []track.Track
	originalQueue []track.Track
	currentIndex  int

	// Transport state
	currentTrack *track.Track
	isPlaying    bool
	isLoading    bool
	positionMs   int64
	durationMs   int64
	isShuffled   bool
	repeat       RepeatMode

	// generation counts Bind calls, matched against Status.Generation.
	generation uint64

	config Config
	rand   *rand.Rand

	eventCh chan Event
	closed  bool
}

// NewController creates a new playback controller bound to player.
func NewController(player Player, config Config, opts ...Option) *Controller {
	if config.RestartThreshold <= 0 {
		config.RestartThreshold = DefaultConfig().RestartThreshold
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultConfig().EventBuffer
	}
	c := &Controller{
		player:       player,
		queue:        make([]track.Track, 0),
		currentIndex: -1,
		config:       config,
		eventCh:      make(chan Event, config.EventBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rand == nil {
		seed := uint64(time.Now().UnixNano())
		c.rand = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return c
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// PlayTrack replaces the queue with playlist (or just t when playlist is empty)
// and starts t. If t is not part of playlist the first entry is played instead.
// The new queue is played in order; shuffle is turned off.
func (c *Controller) PlayTrack(t track.Track, playlist []track.Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tracks := playlist
	if len(tracks) == 0 {
		tracks = []track.Track{t}
	}
	c.setQueueLocked(tracks)

	idx := track.IndexOf(c.queue, t.ID)
	if idx < 0 {
		idx = 0
	}
	return c.loadTrackLocked(idx)
}

// PlayPlaylist replaces the queue with tracks and starts tracks[startIndex].
// Shuffle is turned off.
// An empty list or an out-of-range index leaves the state untouched.
func (c *Controller) PlayPlaylist(tracks []track.Track, startIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(tracks) == 0 {
		return ErrQueueEmpty
	}
	if startIndex < 0 || startIndex >= len(tracks) {
		return errors.Wrapf(ErrIndexOutOfRange, "index=%d len=%d", startIndex, len(tracks))
	}

	c.setQueueLocked(tracks)
	return c.loadTrackLocked(startIndex)
}

// TogglePlayPause pauses a playing track or resumes a paused one.
func (c *Controller) TogglePlayPause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentTrack == nil {
		return ErrNoTrack
	}

	if c.isPlaying {
		if err := c.player.Pause(); err != nil {
			return c.failLocked("pause", err)
		}
		c.isPlaying = false
	} else {
		if err := c.player.Play(); err != nil {
			return c.failLocked("play", err)
		}
		c.isPlaying = true
	}

	c.sendEventLocked(Event{Type: EventStateChanged, State: c.snapshotLocked()})
	return nil
}

// SeekTo moves the playhead. The position is not clamped; the player is
// expected to clamp out-of-range values itself.
func (c *Controller) SeekTo(positionMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentTrack == nil {
		return ErrNoTrack
	}
	return c.seekLocked(positionMs)
}

// PlayNext advances to the next track. At the end of the queue it wraps to
// the first track with repeat all and does nothing otherwise.
func (c *Controller) PlayNext() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil
	}

	next := c.currentIndex + 1
	if next >= len(c.queue) {
		if c.repeat != RepeatAll {
			return nil
		}
		next = 0
	}
	return c.loadTrackLocked(next)
}

// PlayPrevious restarts the current track when it has played past the restart
// threshold, otherwise steps back one track. Before the first track it wraps
// with repeat all and stays on the first track otherwise.
func (c *Controller) PlayPrevious() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil
	}

	if c.positionMs > c.config.RestartThreshold.Milliseconds() {
		return c.seekLocked(0)
	}

	prev := c.currentIndex - 1
	if prev < 0 {
		if c.repeat == RepeatAll {
			prev = len(c.queue) - 1
		} else {
			prev = 0
		}
	}
	return c.loadTrackLocked(prev)
}

// ToggleShuffle switches shuffle on or off.
// Turning it on keeps the current track first and shuffles the rest; turning
// it off restores the original order and relocates the current track by ID.
func (c *Controller) ToggleShuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isShuffled = !c.isShuffled

	if c.isShuffled {
		c.shuffleLocked()
	} else {
		c.unshuffleLocked()
	}

	zlog.Debug().Msgf("playback: shuffle toggled: shuffled=%v index=%d len=%d", c.isShuffled, c.currentIndex, len(c.queue))
	c.sendEventLocked(Event{Type: EventQueueChanged, State: c.snapshotLocked()})
	return c.isShuffled
}

// ToggleRepeat cycles the repeat mode off -> all -> one -> off.
func (c *Controller) ToggleRepeat() RepeatMode {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.repeat = c.repeat.Next()
	c.sendEventLocked(Event{Type: EventStateChanged, State: c.snapshotLocked()})
	return c.repeat
}

// SetRepeat sets the repeat mode directly.
func (c *Controller) SetRepeat(m RepeatMode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repeat == m {
		return
	}
	c.repeat = m
	c.sendEventLocked(Event{Type: EventStateChanged, State: c.snapshotLocked()})
}

// AddToQueue appends t to the end of both the play order and the original
// order. A shuffled queue does not place it at a random position.
func (c *Controller) AddToQueue(t track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = append(c.queue, t)
	c.originalQueue = append(c.originalQueue, t)
	c.sendEventLocked(Event{Type: EventQueueChanged, State: c.snapshotLocked()})
}

// HandleStatus consumes a status report from the player.
func (c *Controller) HandleStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentTrack == nil {
		return
	}
	if s.Generation != 0 && s.Generation != c.generation {
		zlog.Debug().Msgf("playback: dropping stale status: generation=%d current=%d", s.Generation, c.generation)
		return
	}

	c.positionMs = int64(s.CurrentTimeSec * 1000)
	if s.DurationSec > 0 {
		c.durationMs = int64(s.DurationSec * 1000)
	}

	changed := false
	if s.Loaded && c.isLoading {
		c.isLoading = false
		changed = true
	}

	if s.DidJustFinish {
		c.onTrackEndLocked()
		return
	}

	if s.Playing != c.isPlaying && !c.isLoading {
		c.isPlaying = s.Playing
		changed = true
	}

	if changed {
		c.sendEventLocked(Event{Type: EventStateChanged, State: c.snapshotLocked()})
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CurrentTrack returns the current track.
func (c *Controller) CurrentTrack() (track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentTrack == nil {
		return track.Track{}, false
	}
	return *c.currentTrack, true
}

// Close releases the event channel. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.eventCh)
}

// setQueueLocked installs tracks as both the play order and the original order,
// which leaves the queue unshuffled.
// Must be called with lock held.
func (c *Controller) setQueueLocked(tracks []track.Track) {
	c.queue = append(make([]track.Track, 0, len(tracks)), tracks...)
	c.originalQueue = append(make([]track.Track, 0, len(tracks)), tracks...)
	c.isShuffled = false
}

// loadTrackLocked makes queue[index] current, binds it and starts playback.
// Must be called with lock held.
func (c *Controller) loadTrackLocked(index int) error {
	t := c.queue[index]
	c.currentTrack = &t
	c.currentIndex = index
	c.isLoading = true
	c.isPlaying = false
	c.positionMs = 0
	c.durationMs = t.DurationMs()

	zlog.Debug().Msgf("playback: loading track: index=%d id=%s title=%s", index, t.ID, t.Title)

	c.generation++
	if err := c.player.Bind(t.URI); err != nil {
		c.isLoading = false
		return c.failLocked("bind", err)
	}
	if err := c.player.Play(); err != nil {
		return c.failLocked("play", err)
	}
	c.isPlaying = true

	c.sendEventLocked(Event{Type: EventTrackChanged, State: c.snapshotLocked()})
	return nil
}

// seekLocked forwards the seek to the player in seconds.
// Must be called with lock held.
func (c *Controller) seekLocked(positionMs int64) error {
	if err := c.player.SeekTo(float64(positionMs) / 1000); err != nil {
		return c.failLocked("seek", err)
	}
	c.positionMs = positionMs
	c.sendEventLocked(Event{Type: EventStateChanged, State: c.snapshotLocked()})
	return nil
}

// onTrackEndLocked decides what plays after the current track finished.
// Must be called with lock held.
func (c *Controller) onTrackEndLocked() {
	zlog.Debug().Msgf("playback: track ended: index=%d repeat=%s len=%d", c.currentIndex, c.repeat, len(c.queue))

	switch {
	case c.repeat == RepeatOne:
		if err := c.seekLocked(0); err != nil {
			return
		}
		if err := c.player.Play(); err != nil {
			_ = c.failLocked("play", err)
			return
		}
		c.isPlaying = true
		c.sendEventLocked(Event{Type: EventStateChanged, State: c.snapshotLocked()})
	case c.currentIndex < len(c.queue)-1:
		_ = c.loadTrackLocked(c.currentIndex + 1)
	case c.repeat == RepeatAll && len(c.queue) > 0:
		_ = c.loadTrackLocked(0)
	default:
		// Last track stays current but stops.
		c.isPlaying = false
		c.sendEventLocked(Event{Type: EventQueueEnded, State: c.snapshotLocked()})
	}
}

// shuffleLocked moves the current track to the front and shuffles the rest.
// Must be called with lock held.
func (c *Controller) shuffleLocked() {
	if len(c.queue) == 0 {
		return
	}

	rest := make([]track.Track, 0, len(c.queue))
	var head []track.Track
	if c.currentTrack != nil && c.currentIndex >= 0 && c.currentIndex < len(c.queue) {
		head = []track.Track{c.queue[c.currentIndex]}
		rest = append(rest, c.queue[:c.currentIndex]...)
		rest = append(rest, c.queue[c.currentIndex+1:]...)
	} else {
		rest = append(rest, c.queue...)
	}

	// Fisher-Yates
	for i := len(rest) - 1; i > 0; i-- {
		j := c.rand.IntN(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}

	c.queue = append(head, rest...)
	if head != nil {
		c.currentIndex = 0
	}
}

// unshuffleLocked restores the original order.
// Must be called with lock held.
func (c *Controller) unshuffleLocked() {
	c.queue = append(make([]track.Track, 0, len(c.originalQueue)), c.originalQueue...)
	if len(c.queue) == 0 {
		c.currentIndex = -1
		return
	}
	if c.currentTrack == nil {
		return
	}

	idx := track.IndexOf(c.queue, c.currentTrack.ID)
	if idx < 0 {
		idx = 0
	}
	c.currentIndex = idx
}

// failLocked reports a player failure as an event and returns it wrapped.
// Must be called with lock held.
func (c *Controller) failLocked(op string, err error) error {
	var trackID string
	if c.currentTrack != nil {
		trackID = c.currentTrack.ID
	}
	perr := &PlaybackError{Op: op, TrackID: trackID, Err: err}
	zlog.Warn().Msgf("playback: %v", perr)
	c.sendEventLocked(Event{Type: EventError, State: c.snapshotLocked(), Err: perr})
	return perr
}

// snapshotLocked builds a PlaybackState copy.
// Must be called with lock held.
func (c *Controller) snapshotLocked() PlaybackState {
	s := PlaybackState{
		CurrentIndex:  c.currentIndex,
		Queue:         append(make([]track.Track, 0, len(c.queue)), c.queue...),
		OriginalQueue: append(make([]track.Track, 0, len(c.originalQueue)), c.originalQueue...),
		IsPlaying:     c.isPlaying,
		PositionMs:    c.positionMs,
		DurationMs:    c.durationMs,
		IsShuffled:    c.isShuffled,
		RepeatMode:    c.repeat,
		IsLoading:     c.isLoading,
	}
	if c.currentTrack != nil {
		t := *c.currentTrack
		s.CurrentTrack = &t
	}

	switch {
	case c.currentTrack == nil:
		s.State = StateIdle
	case c.isLoading:
		s.State = StateLoading
	case c.isPlaying:
		s.State = StatePlaying
	default:
		s.State = StatePaused
	}
	return s
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	select {
	case c.eventCh <- e:
	default:
		// Channel full, drop event
	}
}
