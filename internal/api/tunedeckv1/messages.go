// Package tunedeckv1 defines the tunedeck.v1 RPC messages, procedures and
// connect handler/client constructors.
package tunedeckv1

// EventType identifies a playback event pushed to subscribers.
type EventType string

const (
	EventTypeInitialState EventType = "initial_state"
	EventTypeTrackChanged EventType = "track_changed"
	EventTypeStateChanged EventType = "state_changed"
	EventTypeQueueChanged EventType = "queue_changed"
	EventTypeQueueEnded   EventType = "queue_ended"
	EventTypeError        EventType = "error"
)

// Track is the wire form of a track.
type Track struct {
	Id          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	Album       string   `json:"album,omitempty"`
	DurationMs  int64    `json:"duration_ms"`
	Uri         string   `json:"uri"`
	CoverArtUri string   `json:"cover_art_uri,omitempty"`
	Genre       string   `json:"genre,omitempty"`
	Source      string   `json:"source"`
	Emotions    []string `json:"emotions,omitempty"`
}

// PlaybackState is the wire form of a playback snapshot.
type PlaybackState struct {
	CurrentTrack  *Track   `json:"current_track,omitempty"`
	CurrentIndex  int32    `json:"current_index"`
	Queue         []*Track `json:"queue"`
	OriginalQueue []*Track `json:"original_queue"`
	IsPlaying     bool     `json:"is_playing"`
	PositionMs    int64    `json:"position_ms"`
	DurationMs    int64    `json:"duration_ms"`
	IsShuffled    bool     `json:"is_shuffled"`
	RepeatMode    string   `json:"repeat_mode"`
	IsLoading     bool     `json:"is_loading"`
	State         string   `json:"state"`
}

// PlaybackEvent is pushed on SubscribeEvents streams.
type PlaybackEvent struct {
	Type       EventType      `json:"type"`
	SequenceNo uint64         `json:"sequence_no"`
	State      *PlaybackState `json:"state,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Playlist is the wire form of a playlist summary.
type Playlist struct {
	Id               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	OwnerId          string   `json:"owner_id"`
	ClassCode        string   `json:"class_code,omitempty"`
	Status           string   `json:"status"`
	TrackIds         []string `json:"track_ids"`
	TotalDurationSec int64    `json:"total_duration_sec"`
	ReviewerId       string   `json:"reviewer_id,omitempty"`
	ReviewNote       string   `json:"review_note,omitempty"`
	SubmittedAt      string   `json:"submitted_at,omitempty"`
	ReviewedAt       string   `json:"reviewed_at,omitempty"`
}

type PlayTrackRequest struct {
	TrackId string `json:"track_id"`
	// Track ids forming the queue around TrackId. Empty plays TrackId alone.
	ContextTrackIds []string `json:"context_track_ids,omitempty"`
}

type PlayPlaylistRequest struct {
	// Either PlaylistId or TrackIds must be set.
	PlaylistId string   `json:"playlist_id,omitempty"`
	TrackIds   []string `json:"track_ids,omitempty"`
	StartIndex int32    `json:"start_index"`
}

type TogglePlayPauseRequest struct{}

type SeekRequest struct {
	PositionMs int64 `json:"position_ms"`
}

type NextRequest struct{}

type PreviousRequest struct{}

type ToggleShuffleRequest struct{}

type ToggleRepeatRequest struct{}

type EnqueueRequest struct {
	TrackId string `json:"track_id"`
}

type GetStateRequest struct{}

// StateResponse is returned by every PlayerService mutation.
type StateResponse struct {
	State *PlaybackState `json:"state"`
}

type SubscribeEventsRequest struct{}

type ListPendingRequest struct {
	ClassCode string `json:"class_code,omitempty"`
}

type ListPendingResponse struct {
	Playlists []*Playlist `json:"playlists"`
}

type ReviewRequest struct {
	PlaylistId string `json:"playlist_id"`
	Note       string `json:"note,omitempty"`
}

type ReviewResponse struct {
	Playlist *Playlist `json:"playlist"`
}
