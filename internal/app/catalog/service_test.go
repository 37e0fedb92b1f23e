package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/infra/cache"
	"github.com/osa030/tunedeck/internal/infra/lastfm"
	"github.com/osa030/tunedeck/internal/store"
)

type memTracks struct {
	mu    sync.Mutex
	byID  map[string]track.Track
	gets  int
	order []string
}

func newMemTracks(tracks ...track.Track) *memTracks {
	m := &memTracks{byID: map[string]track.Track{}}
	for _, t := range tracks {
		m.byID[t.ID] = t
		m.order = append(m.order, t.ID)
	}
	return m
}

func (m *memTracks) Upsert(_ context.Context, t *track.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.byID[t.ID] = *t
	return nil
}

func (m *memTracks) Get(_ context.Context, id string) (*track.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	t, ok := m.byID[id]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "track %s", id)
	}
	return &t, nil
}

func (m *memTracks) GetMany(_ context.Context, ids []string) ([]track.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []track.Track
	for _, id := range ids {
		if t, ok := m.byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTracks) List(_ context.Context, f store.TrackFilter) ([]track.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []track.Track
	for _, id := range m.order {
		t := m.byID[id]
		if f.Genre != "" && !strings.EqualFold(t.Genre, f.Genre) {
			continue
		}
		if f.Source != "" && t.Source != f.Source {
			continue
		}
		if f.OwnerID != "" && t.OwnerID != f.OwnerID {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memTracks) SetEmotions(_ context.Context, id string, emotions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return errors.Wrapf(store.ErrNotFound, "track %s", id)
	}
	t.Emotions = emotions
	m.byID[id] = t
	return nil
}

func newRedis(t *testing.T) *cache.Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedis(context.Background(), cache.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestService_GetCacheThrough(t *testing.T) {
	ctx := context.Background()
	repo := newMemTracks(track.Track{ID: "t1", Title: "Clair de Lune", Source: track.SourceCatalog})
	s := NewService(Config{CacheTTL: time.Minute}, repo, newRedis(t))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Clair de Lune", got.Title)

	got, err = s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Clair de Lune", got.Title)
	assert.Equal(t, 1, repo.gets, "second read is served from cache")

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type fakeFetcher struct {
	tracks []track.Track
	err    error
}

func (f *fakeFetcher) GetPlaylistTracks(context.Context, string) ([]track.Track, error) {
	return f.tracks, f.err
}

func (f *fakeFetcher) GetTrack(_ context.Context, id string) (*track.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.tracks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, errors.Newf("no such track: %s", id)
}

func TestService_ImportSpotifyPlaylist(t *testing.T) {
	ctx := context.Background()
	repo := newMemTracks()
	c := newRedis(t)

	s := NewService(Config{}, repo, c)
	_, err := s.ImportSpotifyPlaylist(ctx, "spotify:playlist:x")
	assert.ErrorIs(t, err, ErrSpotifyDisabled)

	// Stale cached copy must be dropped by the import.
	require.NoError(t, c.Set(ctx, cache.TrackKey("sp1"), track.Track{ID: "sp1", Title: "old"}, time.Minute))

	s = NewService(Config{}, repo, c, WithSpotify(&fakeFetcher{tracks: []track.Track{
		{ID: "sp1", Title: "Gymnopédie No.1", Artist: "Satie", URI: "https://p.scdn.co/1"},
		{ID: "sp2", Title: "Arabesque", Artist: "Debussy", URI: "https://p.scdn.co/2"},
	}}))
	n, err := s.ImportSpotifyPlaylist(ctx, "spotify:playlist:x")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Get(ctx, "sp1")
	require.NoError(t, err)
	assert.Equal(t, "Gymnopédie No.1", got.Title)
	assert.Equal(t, track.SourceCatalog, got.Source)
}

type fakeTags struct {
	track  []lastfm.Tag
	artist []lastfm.Tag
}

func (f *fakeTags) GetTopTags(context.Context, string, string, int) ([]lastfm.Tag, error) {
	return f.track, nil
}

func (f *fakeTags) GetArtistTopTags(context.Context, string, int) ([]lastfm.Tag, error) {
	return f.artist, nil
}

func TestService_Tag(t *testing.T) {
	ctx := context.Background()
	repo := newMemTracks(
		track.Track{ID: "t1", Title: "Clair de Lune", Artist: "Debussy"},
		track.Track{ID: "t2", Title: "Untitled"},
	)

	s := NewService(Config{}, repo, nil)
	_, err := s.Tag(ctx, "t1")
	assert.ErrorIs(t, err, ErrTaggingDisabled)

	tagger := NewTagger(&fakeTags{track: []lastfm.Tag{
		{Name: "Relaxing", Count: 100},
		{Name: "piano", Count: 90},
		{Name: "classical", Count: 70},
		{Name: "sad", Count: 2},
	}}, 10)
	s = NewService(Config{}, repo, nil, WithTagger(tagger))

	emotions, err := s.Tag(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"calm", "focus"}, emotions)

	stored, _ := repo.Get(ctx, "t1")
	assert.Equal(t, []string{"calm", "focus"}, stored.Emotions)

	_, err = s.Tag(ctx, "t2")
	assert.Error(t, err, "a track without artist cannot be looked up")
}

func TestTagger_ArtistFallback(t *testing.T) {
	tagger := NewTagger(&fakeTags{artist: []lastfm.Tag{
		{Name: "dark", Count: 50},
		{Name: "love", Count: 40},
		{Name: "happy", Count: 30},
	}}, 10)

	emotions, err := tagger.Emotions(context.Background(), &track.Track{ID: "t", Title: "x", Artist: "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"happy", "romantic", "dark"}, emotions)
}

func TestEmotionMapCoversEveryEmotion(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range tagEmotions {
		seen[e] = true
	}
	var got []string
	for e := range seen {
		got = append(got, e)
	}
	sort.Strings(got)
	want := append([]string(nil), Emotions...)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestService_ImportSpotifyTrack(t *testing.T) {
	ctx := context.Background()
	repo := newMemTracks()
	c := newRedis(t)

	_, err := NewService(Config{}, repo, c).ImportSpotifyTrack(ctx, "sp9")
	assert.ErrorIs(t, err, ErrSpotifyDisabled)

	s := NewService(Config{}, repo, c, WithSpotify(&fakeFetcher{tracks: []track.Track{
		{ID: "sp9", Title: "Clair de Lune", Artist: "Debussy", URI: "https://p.scdn.co/9"},
	}}))

	got, err := s.ImportSpotifyTrack(ctx, "sp9")
	require.NoError(t, err)
	assert.Equal(t, track.SourceCatalog, got.Source)

	stored, err := repo.Get(ctx, "sp9")
	require.NoError(t, err)
	assert.Equal(t, "Clair de Lune", stored.Title)

	_, err = s.ImportSpotifyTrack(ctx, "missing")
	assert.Error(t, err)
}
