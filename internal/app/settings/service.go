// Package settings manages per-user appearance and playback preferences.
package settings

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/domain/user"
	"github.com/osa030/tunedeck/internal/store"
)

// ErrInvalidPreferences is returned when an update fails validation.
var ErrInvalidPreferences = errors.New("invalid preferences")

// Store is the persistence the service needs.
type Store interface {
	Get(ctx context.Context, userID string) (user.Preferences, error)
	Upsert(ctx context.Context, p *user.Preferences) error
}

// Service reads and writes preferences.
type Service struct {
	store Store
}

// NewService creates a new settings service.
func NewService(s Store) *Service {
	return &Service{store: s}
}

// Get returns the preferences of userID, or the defaults when none are stored.
func (s *Service) Get(ctx context.Context, userID string) (user.Preferences, error) {
	p, err := s.store.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return user.DefaultPreferences(userID), nil
	}
	if err != nil {
		return user.Preferences{}, err
	}
	return p, nil
}

// Update applies patch to the current preferences, validates and stores them.
func (s *Service) Update(ctx context.Context, userID string, patch user.PreferencesPatch) (user.Preferences, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return user.Preferences{}, err
	}

	next := patch.Apply(current)
	next.UserID = userID
	if err := next.Validate(); err != nil {
		return user.Preferences{}, errors.Wrapf(ErrInvalidPreferences, "%v", err)
	}
	if err := s.store.Upsert(ctx, &next); err != nil {
		return user.Preferences{}, err
	}

	zlog.Info().Msgf("preferences updated: user=%s", userID)
	return next, nil
}
