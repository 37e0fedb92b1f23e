// Package moderation implements the playlist review workflow: students submit,
// teachers approve or reject.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/app/filter"
	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/user"
	"github.com/osa030/tunedeck/internal/infra/cache"
)

// ErrForbidden is returned when the caller may not perform the operation.
var ErrForbidden = errors.New("forbidden")

// RejectedError is returned by Submit when a filter rejects the playlist.
type RejectedError struct {
	Code string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Code)
}

// PlaylistStore is the persistence the workflow needs.
type PlaylistStore interface {
	Get(ctx context.Context, id string) (*playlist.Playlist, error)
	ListByStatus(ctx context.Context, status playlist.Status, classCode string) ([]*playlist.Playlist, error)
	UpdateReview(ctx context.Context, p *playlist.Playlist, from playlist.Status) error
}

// Service runs submissions through the filter chain and records reviews.
type Service struct {
	playlists PlaylistStore
	chain     *filter.Chain
	cache     cache.Cache
	now       func() time.Time
}

// NewService creates a new moderation service.
func NewService(playlists PlaylistStore, chain *filter.Chain, c cache.Cache) *Service {
	if chain == nil {
		chain = filter.NewChain()
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{
		playlists: playlists,
		chain:     chain,
		cache:     c,
		now:       time.Now,
	}
}

// Submit sends the caller's playlist for review.
func (s *Service) Submit(ctx context.Context, userID string, role user.Role, playlistID string) (*playlist.Playlist, error) {
	p, err := s.playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, errors.Wrapf(ErrForbidden, "user %s does not own playlist %s", userID, playlistID)
	}

	from := p.Status
	if !p.IsEditable() {
		return nil, errors.Wrapf(playlist.ErrInvalidTransition, "%s -> %s", from, playlist.StatusPending)
	}

	result := s.chain.Execute(ctx, filter.Submission{Playlist: p, UserID: userID, Role: role})
	if !result.Accepted {
		zlog.Info().Msgf("submission rejected: playlist_id=%s, user=%s, code=%s", p.ID, userID, result.Code)
		return nil, &RejectedError{Code: result.Code}
	}

	if err := p.Submit(s.now()); err != nil {
		return nil, err
	}
	if err := s.playlists.UpdateReview(ctx, p, from); err != nil {
		return nil, err
	}

	zlog.Info().Msgf("playlist submitted: playlist_id=%s, user=%s", p.ID, userID)
	return p, nil
}

// Approve marks a pending playlist as approved.
func (s *Service) Approve(ctx context.Context, reviewerID string, role user.Role, playlistID, note string) (*playlist.Playlist, error) {
	return s.review(ctx, reviewerID, role, playlistID, func(p *playlist.Playlist) error {
		return p.Approve(reviewerID, note, s.now())
	})
}

// Reject returns a pending playlist to its owner. A note is required.
func (s *Service) Reject(ctx context.Context, reviewerID string, role user.Role, playlistID, note string) (*playlist.Playlist, error) {
	return s.review(ctx, reviewerID, role, playlistID, func(p *playlist.Playlist) error {
		return p.Reject(reviewerID, note, s.now())
	})
}

func (s *Service) review(ctx context.Context, reviewerID string, role user.Role, playlistID string, apply func(*playlist.Playlist) error) (*playlist.Playlist, error) {
	if !role.CanModerate() {
		return nil, errors.Wrapf(ErrForbidden, "role %s cannot review playlists", role)
	}

	p, err := s.playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	from := p.Status
	if err := apply(p); err != nil {
		return nil, err
	}
	if err := s.playlists.UpdateReview(ctx, p, from); err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, cache.KeyApprovedPlaylists); err != nil {
		zlog.Warn().Err(err).Msg("failed to invalidate approved playlists cache")
	}

	zlog.Info().Msgf("playlist reviewed: playlist_id=%s, status=%s, reviewer=%s", p.ID, p.Status, reviewerID)
	return p, nil
}

// ListPending returns playlists waiting for review, optionally limited to a class.
func (s *Service) ListPending(ctx context.Context, role user.Role, classCode string) ([]*playlist.Playlist, error) {
	if !role.CanModerate() {
		return nil, errors.Wrapf(ErrForbidden, "role %s cannot list pending playlists", role)
	}
	return s.playlists.ListByStatus(ctx, playlist.StatusPending, classCode)
}
