package playback

import "fmt"

// Player is the audio primitive the controller drives.
// Decoding and output are entirely the implementation's concern.
type Player interface {
	// Bind (re)loads the source. An empty uri unbinds.
	Bind(uri string) error
	Play() error
	Pause() error
	SeekTo(seconds float64) error
}

// Status is what a Player reports back through Controller.HandleStatus.
type Status struct {
	Playing        bool
	CurrentTimeSec float64
	DurationSec    float64
	DidJustFinish  bool
	Loaded         bool // Source is ready; clears the loading flag

	// Generation counts the Bind calls the player has seen when the report
	// was taken. Reports from an earlier binding are dropped; 0 is not checked.
	Generation uint64
}

// PlaybackError wraps a failure reported by the Player.
type PlaybackError struct {
	Op      string // bind, play, pause, seek
	TrackID string
	Err     error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback %s failed: track=%s: %v", e.Op, e.TrackID, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}
