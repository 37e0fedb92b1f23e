package filter

import (
	"context"
	"strings"

	"github.com/osa030/tunedeck/internal/domain/user"
)

// ExplicitGenreConfig represents the configuration for ExplicitGenreFilter.
type ExplicitGenreConfig struct {
	Blocked []string `mapstructure:"blocked"`
}

// ExplicitGenreFilter rejects playlists containing tracks of a blocked genre.
type ExplicitGenreFilter struct {
	blocked map[string]struct{}
}

// NewExplicitGenreFilter creates a new genre filter with an empty blocklist.
func NewExplicitGenreFilter() *ExplicitGenreFilter {
	return &ExplicitGenreFilter{blocked: make(map[string]struct{})}
}

func (f *ExplicitGenreFilter) Name() string {
	return "explicit_genre_filter"
}

func (f *ExplicitGenreFilter) Description() string {
	return "Rejects playlists containing tracks from blocked genres"
}

func (f *ExplicitGenreFilter) ReturnCodes() []string {
	return []string{"blocked_genre"}
}

func (f *ExplicitGenreFilter) ValidateConfig(settings map[string]any) error {
	var config ExplicitGenreConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.blocked = make(map[string]struct{}, len(config.Blocked))
	for _, g := range config.Blocked {
		if g = normalizeGenre(g); g != "" {
			f.blocked[g] = struct{}{}
		}
	}
	return nil
}

// AppliesTo returns true for students. Teachers pick their own material.
func (f *ExplicitGenreFilter) AppliesTo(role user.Role) bool {
	return role == user.RoleStudent
}

func (f *ExplicitGenreFilter) Check(ctx context.Context, sub Submission) Result {
	if len(f.blocked) == 0 {
		return Accept()
	}
	for _, t := range sub.Playlist.Tracks {
		if _, ok := f.blocked[normalizeGenre(t.Genre)]; ok {
			return Reject("blocked_genre")
		}
	}
	return Accept()
}

func normalizeGenre(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}

func init() {
	Register("explicit_genre_filter", func(Deps) Filter {
		return NewExplicitGenreFilter()
	})
}
