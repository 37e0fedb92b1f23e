package tunedeckv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// PlayerServiceName is the fully-qualified name of the PlayerService service.
const PlayerServiceName = "tunedeck.v1.PlayerService"

const (
	PlayerServicePlayTrackProcedure       = "/tunedeck.v1.PlayerService/PlayTrack"
	PlayerServicePlayPlaylistProcedure    = "/tunedeck.v1.PlayerService/PlayPlaylist"
	PlayerServiceTogglePlayPauseProcedure = "/tunedeck.v1.PlayerService/TogglePlayPause"
	PlayerServiceSeekProcedure            = "/tunedeck.v1.PlayerService/Seek"
	PlayerServiceNextProcedure            = "/tunedeck.v1.PlayerService/Next"
	PlayerServicePreviousProcedure        = "/tunedeck.v1.PlayerService/Previous"
	PlayerServiceToggleShuffleProcedure   = "/tunedeck.v1.PlayerService/ToggleShuffle"
	PlayerServiceToggleRepeatProcedure    = "/tunedeck.v1.PlayerService/ToggleRepeat"
	PlayerServiceEnqueueProcedure         = "/tunedeck.v1.PlayerService/Enqueue"
	PlayerServiceGetStateProcedure        = "/tunedeck.v1.PlayerService/GetState"
	PlayerServiceSubscribeEventsProcedure = "/tunedeck.v1.PlayerService/SubscribeEvents"
)

// PlayerServiceHandler is implemented by the server-side player service.
type PlayerServiceHandler interface {
	PlayTrack(context.Context, *connect.Request[PlayTrackRequest]) (*connect.Response[StateResponse], error)
	PlayPlaylist(context.Context, *connect.Request[PlayPlaylistRequest]) (*connect.Response[StateResponse], error)
	TogglePlayPause(context.Context, *connect.Request[TogglePlayPauseRequest]) (*connect.Response[StateResponse], error)
	Seek(context.Context, *connect.Request[SeekRequest]) (*connect.Response[StateResponse], error)
	Next(context.Context, *connect.Request[NextRequest]) (*connect.Response[StateResponse], error)
	Previous(context.Context, *connect.Request[PreviousRequest]) (*connect.Response[StateResponse], error)
	ToggleShuffle(context.Context, *connect.Request[ToggleShuffleRequest]) (*connect.Response[StateResponse], error)
	ToggleRepeat(context.Context, *connect.Request[ToggleRepeatRequest]) (*connect.Response[StateResponse], error)
	Enqueue(context.Context, *connect.Request[EnqueueRequest]) (*connect.Response[StateResponse], error)
	GetState(context.Context, *connect.Request[GetStateRequest]) (*connect.Response[StateResponse], error)
	SubscribeEvents(context.Context, *connect.Request[SubscribeEventsRequest], *connect.ServerStream[PlaybackEvent]) error
}

// NewPlayerServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewPlayerServiceHandler(svc PlayerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithCodec()}, opts...)
	handlers := map[string]http.Handler{
		PlayerServicePlayTrackProcedure:       connect.NewUnaryHandler(PlayerServicePlayTrackProcedure, svc.PlayTrack, opts...),
		PlayerServicePlayPlaylistProcedure:    connect.NewUnaryHandler(PlayerServicePlayPlaylistProcedure, svc.PlayPlaylist, opts...),
		PlayerServiceTogglePlayPauseProcedure: connect.NewUnaryHandler(PlayerServiceTogglePlayPauseProcedure, svc.TogglePlayPause, opts...),
		PlayerServiceSeekProcedure:            connect.NewUnaryHandler(PlayerServiceSeekProcedure, svc.Seek, opts...),
		PlayerServiceNextProcedure:            connect.NewUnaryHandler(PlayerServiceNextProcedure, svc.Next, opts...),
		PlayerServicePreviousProcedure:        connect.NewUnaryHandler(PlayerServicePreviousProcedure, svc.Previous, opts...),
		PlayerServiceToggleShuffleProcedure:   connect.NewUnaryHandler(PlayerServiceToggleShuffleProcedure, svc.ToggleShuffle, opts...),
		PlayerServiceToggleRepeatProcedure:    connect.NewUnaryHandler(PlayerServiceToggleRepeatProcedure, svc.ToggleRepeat, opts...),
		PlayerServiceEnqueueProcedure:         connect.NewUnaryHandler(PlayerServiceEnqueueProcedure, svc.Enqueue, opts...),
		PlayerServiceGetStateProcedure:        connect.NewUnaryHandler(PlayerServiceGetStateProcedure, svc.GetState, opts...),
		PlayerServiceSubscribeEventsProcedure: connect.NewServerStreamHandler(PlayerServiceSubscribeEventsProcedure, svc.SubscribeEvents, opts...),
	}
	return "/" + PlayerServiceName + "/", routeHandler(handlers)
}

// PlayerServiceClient is a client for the tunedeck.v1.PlayerService service.
type PlayerServiceClient struct {
	playTrack       *connect.Client[PlayTrackRequest, StateResponse]
	playPlaylist    *connect.Client[PlayPlaylistRequest, StateResponse]
	togglePlayPause *connect.Client[TogglePlayPauseRequest, StateResponse]
	seek            *connect.Client[SeekRequest, StateResponse]
	next            *connect.Client[NextRequest, StateResponse]
	previous        *connect.Client[PreviousRequest, StateResponse]
	toggleShuffle   *connect.Client[ToggleShuffleRequest, StateResponse]
	toggleRepeat    *connect.Client[ToggleRepeatRequest, StateResponse]
	enqueue         *connect.Client[EnqueueRequest, StateResponse]
	getState        *connect.Client[GetStateRequest, StateResponse]
	subscribeEvents *connect.Client[SubscribeEventsRequest, PlaybackEvent]
}

// NewPlayerServiceClient constructs a client for the tunedeck.v1.PlayerService service.
func NewPlayerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *PlayerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithCodec()}, opts...)
	return &PlayerServiceClient{
		playTrack:       connect.NewClient[PlayTrackRequest, StateResponse](httpClient, baseURL+PlayerServicePlayTrackProcedure, opts...),
		playPlaylist:    connect.NewClient[PlayPlaylistRequest, StateResponse](httpClient, baseURL+PlayerServicePlayPlaylistProcedure, opts...),
		togglePlayPause: connect.NewClient[TogglePlayPauseRequest, StateResponse](httpClient, baseURL+PlayerServiceTogglePlayPauseProcedure, opts...),
		seek:            connect.NewClient[SeekRequest, StateResponse](httpClient, baseURL+PlayerServiceSeekProcedure, opts...),
		next:            connect.NewClient[NextRequest, StateResponse](httpClient, baseURL+PlayerServiceNextProcedure, opts...),
		previous:        connect.NewClient[PreviousRequest, StateResponse](httpClient, baseURL+PlayerServicePreviousProcedure, opts...),
		toggleShuffle:   connect.NewClient[ToggleShuffleRequest, StateResponse](httpClient, baseURL+PlayerServiceToggleShuffleProcedure, opts...),
		toggleRepeat:    connect.NewClient[ToggleRepeatRequest, StateResponse](httpClient, baseURL+PlayerServiceToggleRepeatProcedure, opts...),
		enqueue:         connect.NewClient[EnqueueRequest, StateResponse](httpClient, baseURL+PlayerServiceEnqueueProcedure, opts...),
		getState:        connect.NewClient[GetStateRequest, StateResponse](httpClient, baseURL+PlayerServiceGetStateProcedure, opts...),
		subscribeEvents: connect.NewClient[SubscribeEventsRequest, PlaybackEvent](httpClient, baseURL+PlayerServiceSubscribeEventsProcedure, opts...),
	}
}

func (c *PlayerServiceClient) PlayTrack(ctx context.Context, req *connect.Request[PlayTrackRequest]) (*connect.Response[StateResponse], error) {
	return c.playTrack.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) PlayPlaylist(ctx context.Context, req *connect.Request[PlayPlaylistRequest]) (*connect.Response[StateResponse], error) {
	return c.playPlaylist.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) TogglePlayPause(ctx context.Context, req *connect.Request[TogglePlayPauseRequest]) (*connect.Response[StateResponse], error) {
	return c.togglePlayPause.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Seek(ctx context.Context, req *connect.Request[SeekRequest]) (*connect.Response[StateResponse], error) {
	return c.seek.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Next(ctx context.Context, req *connect.Request[NextRequest]) (*connect.Response[StateResponse], error) {
	return c.next.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Previous(ctx context.Context, req *connect.Request[PreviousRequest]) (*connect.Response[StateResponse], error) {
	return c.previous.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) ToggleShuffle(ctx context.Context, req *connect.Request[ToggleShuffleRequest]) (*connect.Response[StateResponse], error) {
	return c.toggleShuffle.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) ToggleRepeat(ctx context.Context, req *connect.Request[ToggleRepeatRequest]) (*connect.Response[StateResponse], error) {
	return c.toggleRepeat.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Enqueue(ctx context.Context, req *connect.Request[EnqueueRequest]) (*connect.Response[StateResponse], error) {
	return c.enqueue.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) GetState(ctx context.Context, req *connect.Request[GetStateRequest]) (*connect.Response[StateResponse], error) {
	return c.getState.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) SubscribeEvents(ctx context.Context, req *connect.Request[SubscribeEventsRequest]) (*connect.ServerStreamForClient[PlaybackEvent], error) {
	return c.subscribeEvents.CallServerStream(ctx, req)
}

// routeHandler dispatches on the exact procedure path.
func routeHandler(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}
