// Package playback provides the playback queue controller: the ordered queue,
// shuffle and repeat bookkeeping, and transport controls over an audio primitive.
package playback

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/tunedeck/internal/domain/track"
)

// State represents the transport state.
type State int

const (
	StateIdle    State = iota // No current track
	StateLoading              // Track bound, waiting for the primitive to report ready
	StatePlaying              // Track is playing
	StatePaused               // Track is paused or finished
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// RepeatMode controls what happens at the end of a track or the queue.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Stop at the end of the queue
	RepeatAll                   // Loop the entire queue
	RepeatOne                   // Loop the current track
)

// ErrUnknownRepeatMode is returned by ParseRepeatMode for unrecognised values.
var ErrUnknownRepeatMode = errors.New("unknown repeat mode")

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// Next returns the mode that follows m in the off -> all -> one cycle.
func (m RepeatMode) Next() RepeatMode {
	switch m {
	case RepeatOff:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatOff
	}
}

// ParseRepeatMode converts a string to a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "off", "":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	default:
		return RepeatOff, errors.Wrapf(ErrUnknownRepeatMode, "%q", s)
	}
}

// PlaybackState is a point-in-time copy of the controller state.
type PlaybackState struct {
	CurrentTrack  *track.Track
	CurrentIndex  int // -1 when the queue is empty
	Queue         []track.Track
	OriginalQueue []track.Track
	IsPlaying     bool
	PositionMs    int64
	DurationMs    int64
	IsShuffled    bool
	RepeatMode    RepeatMode
	IsLoading     bool
	State         State
}
