package filter

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tunedeck/internal/domain/user"
)

// TrackCountConfig represents the configuration for TrackCountFilter.
type TrackCountConfig struct {
	MinTracks int `mapstructure:"min_tracks" default:"1" validate:"gte=0"`
	MaxTracks int `mapstructure:"max_tracks" validate:"gte=0"`
}

// TrackCountFilter checks that a playlist has a reasonable number of tracks.
type TrackCountFilter struct {
	config TrackCountConfig
}

// NewTrackCountFilter creates a new track count filter.
func NewTrackCountFilter() *TrackCountFilter {
	return &TrackCountFilter{config: TrackCountConfig{MinTracks: 1}}
}

func (f *TrackCountFilter) Name() string {
	return "track_count_filter"
}

func (f *TrackCountFilter) Description() string {
	return "Checks if the number of tracks is within [min_tracks, max_tracks]"
}

func (f *TrackCountFilter) ReturnCodes() []string {
	return []string{"track_count_out_of_range"}
}

func (f *TrackCountFilter) ValidateConfig(settings map[string]any) error {
	var config TrackCountConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	if config.MaxTracks > 0 && config.MinTracks > config.MaxTracks {
		return errors.New("min_tracks cannot be greater than max_tracks")
	}
	f.config = config
	return nil
}

func (f *TrackCountFilter) AppliesTo(role user.Role) bool {
	return true
}

func (f *TrackCountFilter) Check(ctx context.Context, sub Submission) Result {
	n := len(sub.Playlist.Tracks)
	if n < f.config.MinTracks {
		return Reject("track_count_out_of_range")
	}
	if f.config.MaxTracks > 0 && n > f.config.MaxTracks {
		return Reject("track_count_out_of_range")
	}
	return Accept()
}

func init() {
	Register("track_count_filter", func(Deps) Filter {
		return NewTrackCountFilter()
	})
}
