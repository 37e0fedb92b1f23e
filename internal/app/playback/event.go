package playback

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged EventType = iota // A new track was loaded
	EventStateChanged                  // Play/pause, loading, repeat or seek changed
	EventQueueChanged                  // Queue order or contents changed
	EventQueueEnded                    // Last track finished with repeat off
	EventError                         // The audio primitive reported a failure
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueChanged:
		return "queue_changed"
	case EventQueueEnded:
		return "queue_ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	State PlaybackState // Snapshot taken when the event was emitted
	Err   error         // Set for EventError
}
