package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tunedeck/internal/domain/user"
)

// Preferences stores per-user settings.
type Preferences struct {
	db DB
}

// Get returns the stored preferences of userID.
func (r *Preferences) Get(ctx context.Context, userID string) (user.Preferences, error) {
	var p user.Preferences
	err := r.db.QueryRow(ctx, `SELECT user_id, theme, accent_color, brand_name, logo_url, autoplay, default_repeat, updated_at
		FROM preferences WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.Theme, &p.AccentColor, &p.BrandName, &p.LogoURL, &p.Autoplay, &p.DefaultRepeat, &p.UpdatedAt)
	if err != nil {
		return user.Preferences{}, notFound(err, "preferences")
	}
	return p, nil
}

// Upsert stores p, replacing any existing row.
func (r *Preferences) Upsert(ctx context.Context, p *user.Preferences) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx, `INSERT INTO preferences (user_id, theme, accent_color, brand_name, logo_url, autoplay, default_repeat, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			theme = EXCLUDED.theme,
			accent_color = EXCLUDED.accent_color,
			brand_name = EXCLUDED.brand_name,
			logo_url = EXCLUDED.logo_url,
			autoplay = EXCLUDED.autoplay,
			default_repeat = EXCLUDED.default_repeat,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Theme, p.AccentColor, p.BrandName, p.LogoURL, p.Autoplay, p.DefaultRepeat, p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert preferences: user_id=%s", p.UserID)
	}
	return nil
}
