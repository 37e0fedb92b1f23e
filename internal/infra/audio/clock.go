// Package audio provides a wall-clock driven audio primitive for server-side
// playback sessions. It plays nothing; it only keeps time the way a real
// player would and reports status ticks.
package audio

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// ErrNotBound is returned when a transport call is made with no source bound.
var ErrNotBound = errors.New("no source bound")

// Config represents clock player configuration.
type Config struct {
	Tick        time.Duration // Status report interval
	LoadLatency time.Duration // Delay before a bound source reports Loaded
}

// Clock implements playback.Player on the wall clock.
type Clock struct {
	mu sync.Mutex

	config    Config
	durations map[string]time.Duration // uri -> duration

	uri       string
	duration  time.Duration
	loadAt    time.Time
	playing   bool
	position  time.Duration // Position at startedAt
	startedAt time.Time
	finished  bool
	binds     uint64 // Bind calls so far, reported as Status.Generation

	now      func() time.Time
	onStatus func(playback.Status)
	cancel   context.CancelFunc
}

// NewClock creates a new clock player.
func NewClock(config Config) *Clock {
	if config.Tick <= 0 {
		config.Tick = 100 * time.Millisecond
	}
	return &Clock{
		config:    config,
		durations: make(map[string]time.Duration),
		now:       func() time.Time { return toWallTime(time.Now()) },
	}
}

// Prime records the durations of tracks so Bind can look them up by uri.
func (c *Clock) Prime(tracks ...track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range tracks {
		c.durations[t.URI] = time.Duration(t.Duration) * time.Second
	}
}

// Bind loads a new source. An empty uri unbinds.
func (c *Clock) Bind(uri string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.binds++
	c.uri = uri
	c.duration = c.durations[uri]
	c.loadAt = c.now().Add(c.config.LoadLatency)
	c.playing = false
	c.position = 0
	c.finished = false
	return nil
}

// Play starts or resumes the bound source.
func (c *Clock) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uri == "" {
		return ErrNotBound
	}
	if c.playing {
		return nil
	}
	if c.finished {
		c.position = 0
		c.finished = false
	}
	c.playing = true
	c.startedAt = c.now()
	return nil
}

// Pause pauses the bound source.
func (c *Clock) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uri == "" {
		return ErrNotBound
	}
	c.position = c.positionLocked()
	c.playing = false
	return nil
}

// SeekTo moves the playhead, clamped to the source duration.
func (c *Clock) SeekTo(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uri == "" {
		return ErrNotBound
	}
	pos := time.Duration(seconds * float64(time.Second))
	if pos < 0 {
		pos = 0
	}
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	c.position = pos
	c.startedAt = c.now()
	c.finished = false
	return nil
}

// Status returns the current status. DidJustFinish is reported exactly once
// per completed playthrough.
func (c *Clock) Status() playback.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uri == "" {
		return playback.Status{}
	}

	now := c.now()
	pos := c.positionLocked()
	s := playback.Status{
		Playing:        c.playing,
		CurrentTimeSec: pos.Seconds(),
		DurationSec:    c.duration.Seconds(),
		Loaded:         !now.Before(c.loadAt),
		Generation:     c.binds,
	}

	if c.playing && c.duration > 0 && pos >= c.duration {
		c.playing = false
		c.position = c.duration
		c.finished = true
		s.Playing = false
		s.CurrentTimeSec = c.duration.Seconds()
		s.DidJustFinish = true
	}
	return s
}

// OnStatus registers the status callback and starts the tick loop.
// The callback runs without the clock lock held.
func (c *Clock) OnStatus(fn func(playback.Status)) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.onStatus = fn
	c.cancel = cancel
	tick := c.config.Tick
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s := c.Status(); s != (playback.Status{}) {
					fn(s)
				}
			}
		}
	}()
}

// Close stops the tick loop.
func (c *Clock) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// positionLocked returns the playhead position.
// Must be called with lock held.
func (c *Clock) positionLocked() time.Duration {
	if !c.playing {
		return c.position
	}
	pos := c.position + c.now().Sub(c.startedAt)
	if c.duration > 0 && pos > c.duration {
		return c.duration
	}
	return pos
}

// toWallTime returns the time with monotonic clock stripped, so elapsed time
// follows the wall clock.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
