// Package catalog serves tracks: lookup, search, uploads, Spotify import and
// emotion tagging.
package catalog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/infra/cache"
	"github.com/osa030/tunedeck/internal/store"
)

// Errors
var (
	ErrSpotifyDisabled = errors.New("spotify import is not configured")
	ErrTaggingDisabled = errors.New("emotion tagging is not configured")
)

// TrackStore is the persistence the catalog needs.
type TrackStore interface {
	Upsert(ctx context.Context, t *track.Track) error
	Get(ctx context.Context, id string) (*track.Track, error)
	GetMany(ctx context.Context, ids []string) ([]track.Track, error)
	List(ctx context.Context, f store.TrackFilter) ([]track.Track, error)
	SetEmotions(ctx context.Context, id string, emotions []string) error
}

// PlaylistFetcher reads tracks from an external catalog.
type PlaylistFetcher interface {
	GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error)
	GetTrack(ctx context.Context, trackID string) (*track.Track, error)
}

// Config represents catalog configuration.
type Config struct {
	CacheTTL      time.Duration
	UploadsDir    string
	MaxUploadSize int64
	// PublicBaseURL prefixes the media URI of uploaded files. Empty means file:// URIs.
	PublicBaseURL string
}

// Service is the track catalog.
type Service struct {
	cfg     Config
	tracks  TrackStore
	cache   cache.Cache
	spotify PlaylistFetcher
	tagger  *Tagger
	now     func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

// WithSpotify enables ImportSpotifyPlaylist.
func WithSpotify(f PlaylistFetcher) Option {
	return func(s *Service) { s.spotify = f }
}

// WithTagger enables Tag.
func WithTagger(t *Tagger) Option {
	return func(s *Service) { s.tagger = t }
}

// NewService creates a new catalog service.
func NewService(cfg Config, tracks TrackStore, c cache.Cache, opts ...Option) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	s := &Service{
		cfg:    cfg,
		tracks: tracks,
		cache:  c,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a track, reading through the cache.
func (s *Service) Get(ctx context.Context, id string) (*track.Track, error) {
	key := cache.TrackKey(id)

	var cached track.Track
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		zlog.Warn().Err(err).Msgf("track cache read failed: track_id=%s", id)
	} else if ok {
		return &cached, nil
	}

	t, err := s.tracks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, t, s.cfg.CacheTTL); err != nil {
		zlog.Warn().Err(err).Msgf("track cache write failed: track_id=%s", id)
	}
	return t, nil
}

// GetMany returns the tracks with the given IDs. Unknown IDs are skipped.
func (s *Service) GetMany(ctx context.Context, ids []string) ([]track.Track, error) {
	return s.tracks.GetMany(ctx, ids)
}

// ImportSpotifyPlaylist upserts every track of a Spotify playlist into the
// catalog and returns how many were imported.
func (s *Service) ImportSpotifyPlaylist(ctx context.Context, playlistURL string) (int, error) {
	if s.spotify == nil {
		return 0, ErrSpotifyDisabled
	}

	tracks, err := s.spotify.GetPlaylistTracks(ctx, playlistURL)
	if err != nil {
		return 0, errors.Wrap(err, "failed to fetch spotify playlist")
	}

	for i := range tracks {
		t := &tracks[i]
		t.Source = track.SourceCatalog
		if err := s.tracks.Upsert(ctx, t); err != nil {
			return i, err
		}
		s.invalidate(ctx, t.ID)
	}

	zlog.Info().Msgf("spotify playlist imported: url=%s, tracks=%d", playlistURL, len(tracks))
	return len(tracks), nil
}

// ImportSpotifyTrack upserts a single Spotify track (ID, URL or URI) into the catalog.
func (s *Service) ImportSpotifyTrack(ctx context.Context, trackID string) (*track.Track, error) {
	if s.spotify == nil {
		return nil, ErrSpotifyDisabled
	}

	t, err := s.spotify.GetTrack(ctx, trackID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch spotify track")
	}
	t.Source = track.SourceCatalog
	if err := s.tracks.Upsert(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, t.ID)

	zlog.Info().Msgf("spotify track imported: id=%s, title=%s", t.ID, t.Title)
	return t, nil
}

// Tag derives emotion tags for a track and stores them.
func (s *Service) Tag(ctx context.Context, id string) ([]string, error) {
	if s.tagger == nil {
		return nil, ErrTaggingDisabled
	}

	t, err := s.tracks.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	emotions, err := s.tagger.Emotions(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := s.tracks.SetEmotions(ctx, id, emotions); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	zlog.Info().Msgf("track tagged: track_id=%s, emotions=%v", id, emotions)
	return emotions, nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, cache.TrackKey(id)); err != nil {
		zlog.Warn().Err(err).Msgf("track cache invalidation failed: track_id=%s", id)
	}
}
