package filter

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/domain/user"
	"github.com/osa030/tunedeck/internal/infra/config"
)

type stubCounter struct {
	count int
	err   error
}

func (s *stubCounter) CountByOwnerStatus(ctx context.Context, ownerID string, status playlist.Status) (int, error) {
	return s.count, s.err
}

// stubFilter records whether it was called.
type stubFilter struct {
	name    string
	result  Result
	applies bool
	called  bool
}

func (s *stubFilter) Name() string                        { return s.name }
func (s *stubFilter) Description() string                 { return s.name }
func (s *stubFilter) ReturnCodes() []string               { return []string{s.result.Code} }
func (s *stubFilter) ValidateConfig(map[string]any) error { return nil }
func (s *stubFilter) AppliesTo(role user.Role) bool       { return s.applies }
func (s *stubFilter) Check(context.Context, Submission) Result {
	s.called = true
	return s.result
}

func TestChain_Execute(t *testing.T) {
	first := &stubFilter{name: "first", result: Reject("first_code"), applies: true}
	second := &stubFilter{name: "second", result: Reject("second_code"), applies: true}

	c := NewChain()
	c.Add(first)
	c.Add(second)

	result := c.Execute(context.Background(), submissionOf())
	assert.False(t, result.Accepted)
	assert.Equal(t, "first_code", result.Code)
	assert.True(t, first.called)
	assert.False(t, second.called, "chain should stop at the first rejection")
}

func TestChain_SkipsFiltersNotApplying(t *testing.T) {
	skipped := &stubFilter{name: "skipped", result: Reject("nope"), applies: false}

	c := NewChain()
	c.Add(skipped)

	result := c.Execute(context.Background(), submissionOf())
	assert.True(t, result.Accepted)
	assert.False(t, skipped.called)
}

func TestNewChainFromConfig(t *testing.T) {
	cfg := map[string]config.FilterConfig{
		"track_count_filter":     {Enabled: true, Settings: map[string]any{"min_tracks": 2, "max_tracks": 10}},
		"duplicate_track_filter": {Enabled: true},
		"explicit_genre_filter":  {Enabled: false},
	}

	c, err := NewChainFromConfig(cfg, Deps{})
	require.NoError(t, err)
	require.Len(t, c.Filters(), 2)
	assert.Equal(t, "duplicate_track_filter", c.Filters()[0].Name())
	assert.Equal(t, "track_count_filter", c.Filters()[1].Name())

	result := c.Execute(context.Background(), submissionOf(track.Track{ID: "only"}))
	assert.False(t, result.Accepted)
	assert.Equal(t, "track_count_out_of_range", result.Code)
}

func TestNewChainFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     map[string]config.FilterConfig
		wantErr bool
		errIs   error
	}{
		{
			name:    "unknown filter",
			cfg:     map[string]config.FilterConfig{"market_filter": {Enabled: true}},
			wantErr: true,
			errIs:   ErrUnknownFilter,
		},
		{
			name: "invalid settings",
			cfg: map[string]config.FilterConfig{
				"track_count_filter": {Enabled: true, Settings: map[string]any{"min_tracks": 5, "max_tracks": 2}},
			},
			wantErr: true,
		},
		{
			name: "unknown filter disabled is ignored",
			cfg:  map[string]config.FilterConfig{"market_filter": {Enabled: false}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChainFromConfig(tt.cfg, Deps{})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}

func TestRegisteredNames(t *testing.T) {
	assert.Equal(t, []string{
		"duplicate_track_filter",
		"duration_limit_filter",
		"explicit_genre_filter",
		"pending_limit_filter",
		"track_count_filter",
	}, RegisteredNames())
}

func TestTrackCountFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		minTracks    int
		maxTracks    int
		count        int
		wantAccepted bool
	}{
		{name: "within range", minTracks: 1, maxTracks: 5, count: 3, wantAccepted: true},
		{name: "empty playlist", minTracks: 1, maxTracks: 5, count: 0, wantAccepted: false},
		{name: "too many", minTracks: 1, maxTracks: 5, count: 6, wantAccepted: false},
		{name: "no max", minTracks: 1, maxTracks: 0, count: 100, wantAccepted: true},
		{name: "exact max", minTracks: 1, maxTracks: 5, count: 5, wantAccepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewTrackCountFilter()
			f.config = TrackCountConfig{MinTracks: tt.minTracks, MaxTracks: tt.maxTracks}

			tracks := make([]track.Track, tt.count)
			result := f.Check(context.Background(), submissionOf(tracks...))

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "track_count_out_of_range", result.Code)
			}
		})
	}
}

func TestPendingLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		pending      int
		countErr     error
		maxPending   int
		wantAccepted bool
	}{
		{name: "under limit", pending: 1, maxPending: 3, wantAccepted: true},
		{name: "at limit", pending: 3, maxPending: 3, wantAccepted: false},
		{name: "over limit", pending: 5, maxPending: 3, wantAccepted: false},
		{name: "count failure", countErr: errors.New("db down"), maxPending: 3, wantAccepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewPendingLimitFilter(&stubCounter{count: tt.pending, err: tt.countErr})
			require.NoError(t, f.ValidateConfig(map[string]any{"max_pending": tt.maxPending}))

			result := f.Check(context.Background(), submissionOf())

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "pending_limit_reached", result.Code)
			}
		})
	}
}

func TestPendingLimitFilter_AppliesTo(t *testing.T) {
	f := NewPendingLimitFilter(nil)
	assert.True(t, f.AppliesTo(user.RoleStudent))
	assert.False(t, f.AppliesTo(user.RoleTeacher))
	assert.False(t, f.AppliesTo(user.RoleAdmin))
}

func TestExplicitGenreFilter_Check(t *testing.T) {
	f := NewExplicitGenreFilter()
	require.NoError(t, f.ValidateConfig(map[string]any{
		"blocked": []any{"Explicit Rap", " horrorcore "},
	}))

	tests := []struct {
		name         string
		genres       []string
		wantAccepted bool
	}{
		{name: "clean", genres: []string{"classical", "jazz"}, wantAccepted: true},
		{name: "blocked case-insensitive", genres: []string{"jazz", "explicit rap"}, wantAccepted: false},
		{name: "blocked trimmed", genres: []string{"Horrorcore"}, wantAccepted: false},
		{name: "no genre", genres: []string{""}, wantAccepted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracks := make([]track.Track, len(tt.genres))
			for i, g := range tt.genres {
				tracks[i] = track.Track{ID: "t", Genre: g}
			}

			result := f.Check(context.Background(), submissionOf(tracks...))

			assert.Equal(t, tt.wantAccepted, result.Accepted)
			if !tt.wantAccepted {
				assert.Equal(t, "blocked_genre", result.Code)
			}
		})
	}
}
