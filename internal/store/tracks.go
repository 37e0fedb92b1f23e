package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/osa030/tunedeck/internal/domain/track"
)

// Tracks stores catalog and uploaded tracks.
type Tracks struct {
	db DB
}

// TrackFilter narrows List results. Zero fields match everything.
type TrackFilter struct {
	Genre   string
	Source  track.Source
	OwnerID string
	Limit   int
}

const trackColumns = `id, title, artist, album, duration_sec, uri, cover_art_uri, genre, source, owner_id, emotions, created_at`

// Upsert inserts t or updates the existing row with the same ID.
// Stored emotions are kept when t carries none.
func (r *Tracks) Upsert(ctx context.Context, t *track.Track) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	emotions := t.Emotions
	if emotions == nil {
		emotions = []string{}
	}

	_, err := r.db.Exec(ctx, `INSERT INTO tracks (`+trackColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			artist = EXCLUDED.artist,
			album = EXCLUDED.album,
			duration_sec = EXCLUDED.duration_sec,
			uri = EXCLUDED.uri,
			cover_art_uri = EXCLUDED.cover_art_uri,
			genre = EXCLUDED.genre,
			emotions = CASE WHEN cardinality(EXCLUDED.emotions) > 0 THEN EXCLUDED.emotions ELSE tracks.emotions END`,
		t.ID, t.Title, t.Artist, t.Album, t.Duration, t.URI, t.CoverArtURI, t.Genre,
		string(t.Source), t.OwnerID, emotions, t.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert track: track_id=%s", t.ID)
	}
	return nil
}

// Get returns the track with the given ID.
func (r *Tracks) Get(ctx context.Context, id string) (*track.Track, error) {
	row := r.db.QueryRow(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = $1`, id)
	t, err := scanTrack(row)
	if err != nil {
		return nil, notFound(err, "track")
	}
	return t, nil
}

// GetMany returns the tracks with the given IDs in no particular order.
// Unknown IDs are skipped.
func (r *Tracks) GetMany(ctx context.Context, ids []string) ([]track.Track, error) {
	rows, err := r.db.Query(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tracks")
	}
	return collectTracks(rows)
}

// List returns tracks matching f, newest first.
func (r *Tracks) List(ctx context.Context, f TrackFilter) ([]track.Track, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.Genre != "" {
		add("lower(genre) = lower(?)", f.Genre)
	}
	if f.Source != "" {
		add("source = ?", string(f.Source))
	}
	if f.OwnerID != "" {
		add("owner_id = ?", f.OwnerID)
	}

	q := `SELECT ` + trackColumns + ` FROM tracks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tracks")
	}
	return collectTracks(rows)
}

// SetEmotions replaces the emotion tags of a track.
func (r *Tracks) SetEmotions(ctx context.Context, id string, emotions []string) error {
	if emotions == nil {
		emotions = []string{}
	}
	tag, err := r.db.Exec(ctx, `UPDATE tracks SET emotions = $2 WHERE id = $1`, id, emotions)
	if err != nil {
		return errors.Wrapf(err, "failed to update emotions: track_id=%s", id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "track %s", id)
	}
	return nil
}

func collectTracks(rows pgx.Rows) ([]track.Track, error) {
	defer rows.Close()

	result := make([]track.Track, 0)
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan track")
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate tracks")
	}
	return result, nil
}

func scanTrack(row pgx.Row) (*track.Track, error) {
	var t track.Track
	var source string
	if err := row.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.Duration, &t.URI,
		&t.CoverArtURI, &t.Genre, &source, &t.OwnerID, &t.Emotions, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Source = track.Source(source)
	return &t, nil
}
