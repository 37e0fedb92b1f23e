package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/tunedeck/internal/app/moderation"
	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/app/playlists"
	"github.com/osa030/tunedeck/internal/app/session"
	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/store"
)

// toConnectError maps application errors to connect status codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var rejected *moderation.RejectedError
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, session.ErrTrackNotFound),
		errors.Is(err, playlists.ErrTrackNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, moderation.ErrForbidden),
		errors.Is(err, playlists.ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, playback.ErrQueueEmpty),
		errors.Is(err, playback.ErrIndexOutOfRange),
		errors.Is(err, playlist.ErrReviewNoteRequired):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, playback.ErrNoTrack),
		errors.Is(err, playlist.ErrInvalidTransition),
		errors.As(err, &rejected):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, store.ErrConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, session.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
