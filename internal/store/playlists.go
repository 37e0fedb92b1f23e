package store

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// Playlists stores playlists and their ordered tracks.
type Playlists struct {
	db DB
}

const playlistColumns = `id, name, description, owner_id, class_code, status, reviewer_id, review_note, submitted_at, reviewed_at, created_at`

// Create inserts p and its tracks in one transaction.
func (r *Playlists) Create(ctx context.Context, p *playlist.Playlist) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = playlist.StatusDraft
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `INSERT INTO playlists (`+playlistColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Description, p.OwnerID, p.ClassCode, string(p.Status),
		p.ReviewerID, p.ReviewNote, p.SubmittedAt, p.ReviewedAt, p.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to insert playlist")
	}
	if err = insertPlaylistTracks(ctx, tx, p.ID, p.TrackIDs()); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit playlist")
	}
	return nil
}

// Get returns the playlist with its tracks in order.
func (r *Playlists) Get(ctx context.Context, id string) (*playlist.Playlist, error) {
	row := r.db.QueryRow(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id)
	p, err := scanPlaylist(row)
	if err != nil {
		return nil, notFound(err, "playlist")
	}
	if err := r.loadTracks(ctx, []*playlist.Playlist{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// ListByStatus returns playlists in status, oldest submission first.
// An empty classCode matches every class.
func (r *Playlists) ListByStatus(ctx context.Context, status playlist.Status, classCode string) ([]*playlist.Playlist, error) {
	q := `SELECT ` + playlistColumns + ` FROM playlists WHERE status = $1`
	args := []any{string(status)}
	if classCode != "" {
		q += ` AND class_code = $2`
		args = append(args, classCode)
	}
	q += ` ORDER BY submitted_at NULLS LAST, created_at`
	return r.list(ctx, q, args...)
}

// ListByOwner returns the playlists owned by ownerID, newest first.
func (r *Playlists) ListByOwner(ctx context.Context, ownerID string) ([]*playlist.Playlist, error) {
	return r.list(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

// CountByOwnerStatus counts ownerID's playlists in status.
func (r *Playlists) CountByOwnerStatus(ctx context.Context, ownerID string, status playlist.Status) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM playlists WHERE owner_id = $1 AND status = $2`,
		ownerID, string(status)).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count playlists")
	}
	return n, nil
}

// UpdateDetails persists the name, description and class code of p.
func (r *Playlists) UpdateDetails(ctx context.Context, p *playlist.Playlist) error {
	tag, err := r.db.Exec(ctx, `UPDATE playlists SET name = $2, description = $3, class_code = $4 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.ClassCode)
	if err != nil {
		return errors.Wrapf(err, "failed to update playlist: playlist_id=%s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "playlist %s", p.ID)
	}
	return nil
}

// ReplaceTracks sets the ordered track list of a playlist.
func (r *Playlists) ReplaceTracks(ctx context.Context, playlistID string, trackIDs []string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM playlist_tracks WHERE playlist_id = $1`, playlistID); err != nil {
		return errors.Wrap(err, "failed to clear playlist tracks")
	}
	if err = insertPlaylistTracks(ctx, tx, playlistID, trackIDs); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit playlist tracks")
	}
	return nil
}

// UpdateReview persists the review fields of p in a single row update.
// The row must still be in status from, otherwise ErrConflict is returned.
func (r *Playlists) UpdateReview(ctx context.Context, p *playlist.Playlist, from playlist.Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE playlists
		SET status = $2, reviewer_id = $3, review_note = $4, submitted_at = $5, reviewed_at = $6
		WHERE id = $1 AND status = $7`,
		p.ID, string(p.Status), p.ReviewerID, p.ReviewNote, p.SubmittedAt, p.ReviewedAt, string(from))
	if err != nil {
		return errors.Wrapf(err, "failed to update review: playlist_id=%s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrConflict, "playlist %s is no longer %s", p.ID, from)
	}
	return nil
}

// Delete removes a playlist.
func (r *Playlists) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete playlist: playlist_id=%s", id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "playlist %s", id)
	}
	return nil
}

func (r *Playlists) list(ctx context.Context, q string, args ...any) ([]*playlist.Playlist, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query playlists")
	}
	defer rows.Close()

	result := make([]*playlist.Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist")
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate playlists")
	}
	rows.Close()

	if err := r.loadTracks(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// loadTracks fills the Tracks of every playlist with one query.
func (r *Playlists) loadTracks(ctx context.Context, playlists []*playlist.Playlist) error {
	if len(playlists) == 0 {
		return nil
	}
	byID := make(map[string]*playlist.Playlist, len(playlists))
	ids := make([]string, len(playlists))
	for i, p := range playlists {
		p.Tracks = make([]track.Track, 0)
		byID[p.ID] = p
		ids[i] = p.ID
	}

	cols := "t." + strings.ReplaceAll(trackColumns, ", ", ", t.")
	rows, err := r.db.Query(ctx, `SELECT pt.playlist_id, `+cols+`
		FROM playlist_tracks pt JOIN tracks t ON t.id = pt.track_id
		WHERE pt.playlist_id = ANY($1)
		ORDER BY pt.playlist_id, pt.position`, ids)
	if err != nil {
		return errors.Wrap(err, "failed to query playlist tracks")
	}
	defer rows.Close()

	for rows.Next() {
		var playlistID, source string
		var t track.Track
		if err := rows.Scan(&playlistID, &t.ID, &t.Title, &t.Artist, &t.Album, &t.Duration, &t.URI,
			&t.CoverArtURI, &t.Genre, &source, &t.OwnerID, &t.Emotions, &t.CreatedAt); err != nil {
			return errors.Wrap(err, "failed to scan playlist track")
		}
		t.Source = track.Source(source)
		if p, ok := byID[playlistID]; ok {
			p.Tracks = append(p.Tracks, t)
		}
	}
	return errors.Wrap(rows.Err(), "failed to iterate playlist tracks")
}

func insertPlaylistTracks(ctx context.Context, tx pgx.Tx, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx, `INSERT INTO playlist_tracks (playlist_id, track_id, position)
		SELECT $1, t.id, t.ord - 1 FROM unnest($2::text[]) WITH ORDINALITY AS t(id, ord)`,
		playlistID, trackIDs); err != nil {
		return errors.Wrap(err, "failed to insert playlist tracks")
	}
	return nil
}

func scanPlaylist(row pgx.Row) (*playlist.Playlist, error) {
	var p playlist.Playlist
	var status string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.ClassCode, &status,
		&p.ReviewerID, &p.ReviewNote, &p.SubmittedAt, &p.ReviewedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = playlist.Status(status)
	return &p, nil
}
