// Package localstore keeps playerctl state in a local SQLite file: the login
// token, the server address and a recently played list.
package localstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/domain/track"
)

// ErrNotSet is returned when a value has never been saved.
var ErrNotSet = errors.New("not set")

// maxPlayed bounds the recently played history.
const maxPlayed = 200

const schema = `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS played (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		track_id TEXT NOT NULL,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		played_at DATETIME NOT NULL
	);
`

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyServer       = "server"
)

// Token is a saved login.
type Token struct {
	AccessToken  string
	RefreshToken string
}

// Played is one entry of the recently played list.
type Played struct {
	TrackID  string
	Title    string
	Artist   string
	PlayedAt time.Time
}

// Store is the SQLite-backed local state.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the state file location under the user's config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "tunedeck", "playerctl.db")
}

// Open opens (and creates if needed) the state file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create state directory")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open SQLite database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create tables")
	}
	zlog.Debug().Msgf("local state opened: path=%s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveToken stores the login tokens.
func (s *Store) SaveToken(ctx context.Context, tok Token) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for key, value := range map[string]string{keyAccessToken: tok.AccessToken, keyRefreshToken: tok.RefreshToken} {
		if err = put(ctx, tx, key, value); err != nil {
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit token")
}

// LoadToken returns the saved login, or ErrNotSet.
func (s *Store) LoadToken(ctx context.Context) (Token, error) {
	access, err := s.get(ctx, keyAccessToken)
	if err != nil {
		return Token{}, err
	}
	refresh, err := s.get(ctx, keyRefreshToken)
	if err != nil && !errors.Is(err, ErrNotSet) {
		return Token{}, err
	}
	return Token{AccessToken: access, RefreshToken: refresh}, nil
}

// ClearToken forgets the saved login.
func (s *Store) ClearToken(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (?, ?)`, keyAccessToken, keyRefreshToken)
	return errors.Wrap(err, "failed to clear token")
}

// SaveServer stores the server base URL.
func (s *Store) SaveServer(ctx context.Context, url string) error {
	return put(ctx, s.db, keyServer, url)
}

// LoadServer returns the saved server base URL, or ErrNotSet.
func (s *Store) LoadServer(ctx context.Context) (string, error) {
	return s.get(ctx, keyServer)
}

// RecordPlayed appends a track to the history, keeping the newest entries.
func (s *Store) RecordPlayed(ctx context.Context, t track.Track) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO played (track_id, title, artist, played_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Title, t.Artist, time.Now().UTC()); err != nil {
		return errors.Wrapf(err, "failed to record played track: track_id=%s", t.ID)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM played WHERE id NOT IN (SELECT id FROM played ORDER BY id DESC LIMIT ?)`, maxPlayed); err != nil {
		return errors.Wrap(err, "failed to trim history")
	}
	return nil
}

// RecentlyPlayed returns up to limit entries, newest first.
func (s *Store) RecentlyPlayed(ctx context.Context, limit int) ([]Played, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT track_id, title, artist, played_at FROM played ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	var out []Played
	for rows.Next() {
		var p Played
		if err := rows.Scan(&p.TrackID, &p.Title, &p.Artist, &p.PlayedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan history")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "failed to read history")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func put(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return errors.Wrapf(err, "failed to save %s", key)
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrapf(ErrNotSet, "%s", key)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to load %s", key)
	}
	return v, nil
}
