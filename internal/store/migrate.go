package store

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// schema is applied in order. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'student',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tracks (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		artist        TEXT NOT NULL DEFAULT '',
		album         TEXT NOT NULL DEFAULT '',
		duration_sec  INT NOT NULL DEFAULT 0 CHECK (duration_sec >= 0),
		uri           TEXT NOT NULL,
		cover_art_uri TEXT NOT NULL DEFAULT '',
		genre         TEXT NOT NULL DEFAULT '',
		source        TEXT NOT NULL DEFAULT 'catalog',
		owner_id      TEXT NOT NULL DEFAULT '',
		emotions      TEXT[] NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tracks_genre ON tracks(genre)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		owner_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		class_code   TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'draft',
		reviewer_id  TEXT NOT NULL DEFAULT '',
		review_note  TEXT NOT NULL DEFAULT '',
		submitted_at TIMESTAMPTZ,
		reviewed_at  TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_playlists_status ON playlists(status, class_code)`,
	`CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(owner_id)`,
	`CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		track_id    TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
		position    INT NOT NULL,
		PRIMARY KEY (playlist_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS preferences (
		user_id        TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		theme          TEXT NOT NULL DEFAULT 'system',
		accent_color   TEXT NOT NULL DEFAULT '#1db954',
		brand_name     TEXT NOT NULL DEFAULT '',
		logo_url       TEXT NOT NULL DEFAULT '',
		autoplay       BOOLEAN NOT NULL DEFAULT TRUE,
		default_repeat TEXT NOT NULL DEFAULT 'off',
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration step %d failed", i+1)
		}
	}
	zlog.Info().Msgf("schema migrated: steps=%d", len(schema))
	return nil
}
