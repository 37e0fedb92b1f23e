package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	tunedeckv1 "github.com/osa030/tunedeck/internal/api/tunedeckv1"
	"github.com/osa030/tunedeck/internal/app/auth"
	"github.com/osa030/tunedeck/internal/app/moderation"
)

// ModerationService implements the ModerationService RPC.
type ModerationService struct {
	moderation *moderation.Service
}

// NewModerationService creates a new ModerationService.
func NewModerationService(svc *moderation.Service) *ModerationService {
	return &ModerationService{moderation: svc}
}

// Ensure ModerationService implements the interface.
var _ tunedeckv1.ModerationServiceHandler = (*ModerationService)(nil)

// ListPending returns the playlists waiting for review.
func (s *ModerationService) ListPending(
	ctx context.Context,
	req *connect.Request[tunedeckv1.ListPendingRequest],
) (*connect.Response[tunedeckv1.ListPendingResponse], error) {
	claims, err := moderator(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := s.moderation.ListPending(ctx, claims.Role, req.Msg.ClassCode)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &tunedeckv1.ListPendingResponse{
		Playlists: make([]*tunedeckv1.Playlist, 0, len(pending)),
	}
	for _, p := range pending {
		resp.Playlists = append(resp.Playlists, tunedeckv1.FromPlaylist(p))
	}
	return connect.NewResponse(resp), nil
}

// Approve approves a pending playlist.
func (s *ModerationService) Approve(
	ctx context.Context,
	req *connect.Request[tunedeckv1.ReviewRequest],
) (*connect.Response[tunedeckv1.ReviewResponse], error) {
	claims, err := moderator(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.moderation.Approve(ctx, claims.UserID, claims.Role, req.Msg.PlaylistId, req.Msg.Note)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&tunedeckv1.ReviewResponse{Playlist: tunedeckv1.FromPlaylist(p)}), nil
}

// Reject returns a pending playlist to its owner with a note.
func (s *ModerationService) Reject(
	ctx context.Context,
	req *connect.Request[tunedeckv1.ReviewRequest],
) (*connect.Response[tunedeckv1.ReviewResponse], error) {
	claims, err := moderator(ctx)
	if err != nil {
		return nil, err
	}

	p, err := s.moderation.Reject(ctx, claims.UserID, claims.Role, req.Msg.PlaylistId, req.Msg.Note)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&tunedeckv1.ReviewResponse{Playlist: tunedeckv1.FromPlaylist(p)}), nil
}

// moderator returns the caller's claims if the caller may review playlists.
func moderator(ctx context.Context) (*auth.Claims, error) {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !claims.Role.CanModerate() {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.Newf("role %s may not moderate", claims.Role))
	}
	return claims, nil
}
