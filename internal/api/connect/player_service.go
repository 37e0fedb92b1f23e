package connect

import (
	"context"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	tunedeckv1 "github.com/osa030/tunedeck/internal/api/tunedeckv1"
	"github.com/osa030/tunedeck/internal/app/session"
	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/user"
)

// PlaylistReader loads a playlist the caller is allowed to see.
type PlaylistReader interface {
	Get(ctx context.Context, userID string, role user.Role, id string) (*playlist.Playlist, error)
}

// PlayerService implements the PlayerService RPC over per-user sessions.
type PlayerService struct {
	sessions  *session.Manager
	playlists PlaylistReader
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(sessions *session.Manager, playlists PlaylistReader) *PlayerService {
	return &PlayerService{
		sessions:  sessions,
		playlists: playlists,
	}
}

// Ensure PlayerService implements the interface.
var _ tunedeckv1.PlayerServiceHandler = (*PlayerService)(nil)

// PlayTrack replaces the queue with the context tracks and starts the requested one.
func (s *PlayerService) PlayTrack(
	ctx context.Context,
	req *connect.Request[tunedeckv1.PlayTrackRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	if req.Msg.TrackId == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("track_id is required"))
	}
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	resolved, err := s.sessions.Resolve(ctx, append([]string{req.Msg.TrackId}, req.Msg.ContextTrackIds...))
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := sess.PlayTrack(resolved[0], resolved[1:]); err != nil {
		return nil, toConnectError(err)
	}
	return stateResponse(sess), nil
}

// PlayPlaylist replaces the queue with a stored playlist or an explicit track list.
func (s *PlayerService) PlayPlaylist(
	ctx context.Context,
	req *connect.Request[tunedeckv1.PlayPlaylistRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	var ids []string
	switch {
	case req.Msg.PlaylistId != "":
		p, err := s.playlists.Get(ctx, claims.UserID, claims.Role, req.Msg.PlaylistId)
		if err != nil {
			return nil, toConnectError(err)
		}
		ids = p.TrackIDs()
	case len(req.Msg.TrackIds) > 0:
		ids = req.Msg.TrackIds
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("playlist_id or track_ids is required"))
	}

	// Tracks are reloaded from the catalog so durations and URIs are current.
	tracks, err := s.sessions.Resolve(ctx, ids)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := sess.PlayPlaylist(tracks, int(req.Msg.StartIndex)); err != nil {
		return nil, toConnectError(err)
	}
	zlog.Debug().Msgf("play playlist: user_id=%s playlist_id=%s tracks=%d", claims.UserID, req.Msg.PlaylistId, len(tracks))
	return stateResponse(sess), nil
}

// TogglePlayPause pauses or resumes the current track.
func (s *PlayerService) TogglePlayPause(
	ctx context.Context,
	req *connect.Request[tunedeckv1.TogglePlayPauseRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	return s.control(ctx, func(sess *session.Session) error {
		return sess.Controller.TogglePlayPause()
	})
}

// Seek moves the playback position of the current track.
func (s *PlayerService) Seek(
	ctx context.Context,
	req *connect.Request[tunedeckv1.SeekRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	if req.Msg.PositionMs < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("position_ms must not be negative"))
	}
	return s.control(ctx, func(sess *session.Session) error {
		return sess.Controller.SeekTo(req.Msg.PositionMs)
	})
}

// Next skips to the next track.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[tunedeckv1.NextRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	return s.control(ctx, func(sess *session.Session) error {
		return sess.Controller.PlayNext()
	})
}

// Previous restarts the current track or moves to the previous one.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[tunedeckv1.PreviousRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	return s.control(ctx, func(sess *session.Session) error {
		return sess.Controller.PlayPrevious()
	})
}

// ToggleShuffle turns shuffle on or off.
func (s *PlayerService) ToggleShuffle(
	ctx context.Context,
	req *connect.Request[tunedeckv1.ToggleShuffleRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	return s.control(ctx, func(sess *session.Session) error {
		sess.Controller.ToggleShuffle()
		return nil
	})
}

// ToggleRepeat cycles the repeat mode.
func (s *PlayerService) ToggleRepeat(
	ctx context.Context,
	req *connect.Request[tunedeckv1.ToggleRepeatRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	return s.control(ctx, func(sess *session.Session) error {
		sess.Controller.ToggleRepeat()
		return nil
	})
}

// Enqueue appends a track to the queue.
func (s *PlayerService) Enqueue(
	ctx context.Context,
	req *connect.Request[tunedeckv1.EnqueueRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	if req.Msg.TrackId == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("track_id is required"))
	}
	resolved, err := s.sessions.Resolve(ctx, []string{req.Msg.TrackId})
	if err != nil {
		return nil, toConnectError(err)
	}
	return s.control(ctx, func(sess *session.Session) error {
		sess.Enqueue(resolved[0])
		return nil
	})
}

// GetState returns the current playback state.
func (s *PlayerService) GetState(
	ctx context.Context,
	req *connect.Request[tunedeckv1.GetStateRequest],
) (*connect.Response[tunedeckv1.StateResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return stateResponse(sess), nil
}

// SubscribeEvents sends the current state, then every playback event of
// the caller's session until the client goes away or the session ends.
func (s *PlayerService) SubscribeEvents(
	ctx context.Context,
	req *connect.Request[tunedeckv1.SubscribeEventsRequest],
	stream *connect.ServerStream[tunedeckv1.PlaybackEvent],
) error {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return err
	}
	sess, err := s.session(ctx)
	if err != nil {
		return err
	}

	notifManager := s.sessions.Notification()
	adapter := &notificationStreamAdapter{stream: stream}

	initial := &tunedeckv1.PlaybackEvent{
		Type:       tunedeckv1.EventTypeInitialState,
		SequenceNo: notifManager.NextSequenceNo(),
		State:      tunedeckv1.FromState(sess.Controller.Snapshot()),
	}
	if err := adapter.Send(initial); err != nil {
		return err
	}

	subscriptionID := notifManager.Subscribe(claims.UserID, adapter)
	defer notifManager.Unsubscribe(subscriptionID)
	zlog.Debug().Msgf("events subscribed: user_id=%s subscription_id=%s", claims.UserID, subscriptionID)

	select {
	case <-ctx.Done():
	case <-sess.Done():
	}
	return nil
}

// session returns the caller's session, creating it on first use.
func (s *PlayerService) session(ctx context.Context) (*session.Session, error) {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, claims.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return sess, nil
}

func (s *PlayerService) control(ctx context.Context, fn func(*session.Session) error) (*connect.Response[tunedeckv1.StateResponse], error) {
	sess, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, toConnectError(err)
	}
	return stateResponse(sess), nil
}

func stateResponse(sess *session.Session) *connect.Response[tunedeckv1.StateResponse] {
	return connect.NewResponse(&tunedeckv1.StateResponse{
		State: tunedeckv1.FromState(sess.Controller.Snapshot()),
	})
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Sends are serialised because a timed out send may still be in flight.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[tunedeckv1.PlaybackEvent]
}

func (a *notificationStreamAdapter) Send(event *tunedeckv1.PlaybackEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(event)
}
