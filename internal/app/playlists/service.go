// Package playlists implements playlist CRUD on top of the review workflow.
package playlists

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/domain/user"
	"github.com/osa030/tunedeck/internal/infra/cache"
	"github.com/osa030/tunedeck/internal/store"
)

// Errors
var (
	ErrForbidden     = errors.New("forbidden")
	ErrNotEditable   = errors.New("playlist is not editable")
	ErrTrackNotFound = errors.New("track not found")
	ErrInvalidInput  = errors.New("invalid input")
)

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, p *playlist.Playlist) error
	Get(ctx context.Context, id string) (*playlist.Playlist, error)
	ListByStatus(ctx context.Context, status playlist.Status, classCode string) ([]*playlist.Playlist, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*playlist.Playlist, error)
	UpdateDetails(ctx context.Context, p *playlist.Playlist) error
	ReplaceTracks(ctx context.Context, playlistID string, trackIDs []string) error
	Delete(ctx context.Context, id string) error
}

// TrackSource loads tracks by ID.
type TrackSource interface {
	GetMany(ctx context.Context, ids []string) ([]track.Track, error)
}

// CreateInput describes a new playlist.
type CreateInput struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"max=500"`
	ClassCode   string   `json:"class_code" validate:"max=32"`
	TrackIDs    []string `json:"track_ids" validate:"max=500"`
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=500"`
	ClassCode   *string  `json:"class_code" validate:"omitempty,max=32"`
	TrackIDs    []string `json:"track_ids" validate:"omitempty,max=500"`
}

// Service manages playlists.
type Service struct {
	store    Store
	tracks   TrackSource
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewService creates a new playlist service.
func NewService(s Store, tracks TrackSource, c cache.Cache, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Service{store: s, tracks: tracks, cache: c, cacheTTL: cacheTTL}
}

// Create creates a draft playlist owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*playlist.Playlist, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validator.New().Struct(in); err != nil {
		return nil, errors.Wrapf(ErrInvalidInput, "%v", err)
	}

	tracks, err := s.resolve(ctx, in.TrackIDs)
	if err != nil {
		return nil, err
	}

	p := &playlist.Playlist{
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     ownerID,
		ClassCode:   in.ClassCode,
		Tracks:      tracks,
		Status:      playlist.StatusDraft,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	zlog.Info().Msgf("playlist created: playlist_id=%s, owner=%s, tracks=%d", p.ID, ownerID, len(tracks))
	return p, nil
}

// Get returns a playlist the caller may see. Hidden playlists look missing.
func (s *Service) Get(ctx context.Context, userID string, role user.Role, id string) (*playlist.Playlist, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsVisibleTo(userID, role) {
		return nil, errors.Wrapf(store.ErrNotFound, "playlist %s", id)
	}
	return p, nil
}

// ListApproved returns approved playlists. The unfiltered list is cached.
func (s *Service) ListApproved(ctx context.Context, classCode string) ([]*playlist.Playlist, error) {
	if classCode != "" {
		return s.store.ListByStatus(ctx, playlist.StatusApproved, classCode)
	}

	var cached []*playlist.Playlist
	if ok, err := s.cache.Get(ctx, cache.KeyApprovedPlaylists, &cached); err != nil {
		zlog.Warn().Err(err).Msg("approved playlists cache read failed")
	} else if ok {
		return cached, nil
	}

	pls, err := s.store.ListByStatus(ctx, playlist.StatusApproved, "")
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.KeyApprovedPlaylists, pls, s.cacheTTL); err != nil {
		zlog.Warn().Err(err).Msg("approved playlists cache write failed")
	}
	return pls, nil
}

// ListMine returns the caller's playlists in every status.
func (s *Service) ListMine(ctx context.Context, userID string) ([]*playlist.Playlist, error) {
	return s.store.ListByOwner(ctx, userID)
}

// Update changes an editable playlist owned by the caller.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*playlist.Playlist, error) {
	if err := validator.New().Struct(in); err != nil {
		return nil, errors.Wrapf(ErrInvalidInput, "%v", err)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, errors.Wrap(ErrInvalidInput, "name cannot be empty")
	}

	p, err := s.editable(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil || in.Description != nil || in.ClassCode != nil {
		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.ClassCode != nil {
			p.ClassCode = *in.ClassCode
		}
		if err := s.store.UpdateDetails(ctx, p); err != nil {
			return nil, err
		}
	}

	if in.TrackIDs != nil {
		if err := s.setTracks(ctx, p, in.TrackIDs); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddTrack appends a track to an editable playlist.
func (s *Service) AddTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error) {
	p, err := s.editable(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.setTracks(ctx, p, append(p.TrackIDs(), trackID)); err != nil {
		return nil, err
	}
	return p, nil
}

// RemoveTrack removes every occurrence of a track from an editable playlist.
func (s *Service) RemoveTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error) {
	p, err := s.editable(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if track.IndexOf(p.Tracks, trackID) < 0 {
		return nil, errors.Wrapf(ErrTrackNotFound, "%s not in playlist %s", trackID, id)
	}

	ids := make([]string, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		if t.ID != trackID {
			ids = append(ids, t.ID)
		}
	}
	if err := s.setTracks(ctx, p, ids); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a playlist. Owners and admins may delete.
func (s *Service) Delete(ctx context.Context, userID string, role user.Role, id string) error {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID != userID && role != user.RoleAdmin {
		return errors.Wrapf(ErrForbidden, "user %s cannot delete playlist %s", userID, id)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if p.Status == playlist.StatusApproved {
		if err := s.cache.Delete(ctx, cache.KeyApprovedPlaylists); err != nil {
			zlog.Warn().Err(err).Msg("approved playlists cache invalidation failed")
		}
	}

	zlog.Info().Msgf("playlist deleted: playlist_id=%s, by=%s", id, userID)
	return nil
}

// editable loads a playlist the caller owns and may still change.
func (s *Service) editable(ctx context.Context, userID, id string) (*playlist.Playlist, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, errors.Wrapf(ErrForbidden, "user %s does not own playlist %s", userID, id)
	}
	if !p.IsEditable() {
		return nil, errors.Wrapf(ErrNotEditable, "playlist %s is %s", id, p.Status)
	}
	return p, nil
}

func (s *Service) setTracks(ctx context.Context, p *playlist.Playlist, ids []string) error {
	tracks, err := s.resolve(ctx, ids)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceTracks(ctx, p.ID, ids); err != nil {
		return err
	}
	p.Tracks = tracks
	return nil
}

// resolve loads tracks in the order of ids. Any unknown ID is an error.
func (s *Service) resolve(ctx context.Context, ids []string) ([]track.Track, error) {
	if len(ids) == 0 {
		return []track.Track{}, nil
	}
	found, err := s.tracks.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]track.Track, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}

	tracks := make([]track.Track, len(ids))
	for i, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, errors.Wrapf(ErrTrackNotFound, "%s", id)
		}
		tracks[i] = t
	}
	return tracks, nil
}
