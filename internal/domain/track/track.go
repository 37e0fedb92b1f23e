// Package track provides the Track domain entity.
package track

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// Source tells where a track came from.
type Source string

const (
	SourceCatalog Source = "catalog" // Imported or seeded catalog track
	SourceUpload  Source = "upload"  // Uploaded by a user
)

// ErrUnknownSource is returned by ParseSource for unrecognised values.
var ErrUnknownSource = errors.New("unknown track source")

// ParseSource converts a string to a Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceCatalog:
		return SourceCatalog, nil
	case SourceUpload:
		return SourceUpload, nil
	default:
		return "", errors.Wrapf(ErrUnknownSource, "%q", s)
	}
}

// Track represents a playable audio track.
// Tracks are treated as immutable once placed in a playback queue.
type Track struct {
	ID          string    `json:"id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	Duration    int       `json:"duration" validate:"gte=0"` // seconds
	URI         string    `json:"uri" validate:"required"`
	CoverArtURI string    `json:"cover_art_uri"`
	Genre       string    `json:"genre"`
	Source      Source    `json:"source" validate:"required,oneof=catalog upload"`
	OwnerID     string    `json:"owner_id,omitempty"` // uploader, empty for catalog tracks
	Emotions    []string  `json:"emotions,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DurationMs returns the duration in milliseconds.
func (t *Track) DurationMs() int64 {
	return int64(t.Duration) * 1000
}

// IsUpload reports whether the track was uploaded by a user.
func (t *Track) IsUpload() bool {
	return t.Source == SourceUpload
}

// Validate validates the track fields.
func (t *Track) Validate() error {
	if err := validator.New().Struct(t); err != nil {
		return errors.Wrap(err, "invalid track")
	}
	return nil
}

// IDs returns the IDs of the given tracks in order.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// IndexOf returns the position of the track with the given ID, or -1.
func IndexOf(tracks []Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
