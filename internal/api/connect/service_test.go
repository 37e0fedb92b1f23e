package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tunedeckv1 "github.com/osa030/tunedeck/internal/api/tunedeckv1"
	"github.com/osa030/tunedeck/internal/app/auth"
	"github.com/osa030/tunedeck/internal/app/moderation"
	"github.com/osa030/tunedeck/internal/app/notification"
	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/app/session"
	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/domain/user"
	"github.com/osa030/tunedeck/internal/infra/audio"
	"github.com/osa030/tunedeck/internal/store"
)

type stubVerifier map[string]*auth.Claims

func (v stubVerifier) Verify(token string) (*auth.Claims, error) {
	c, ok := v[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return c, nil
}

var testVerifier = stubVerifier{
	"student-token": {UserID: "u1", Role: user.RoleStudent, TokenType: auth.TokenTypeAccess},
	"teacher-token": {UserID: "teacher-1", Role: user.RoleTeacher, TokenType: auth.TokenTypeAccess},
}

type memTracks map[string]track.Track

func (m memTracks) GetMany(_ context.Context, ids []string) ([]track.Track, error) {
	var out []track.Track
	for _, id := range ids {
		if t, ok := m[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

type memPlaylists struct {
	mu   sync.Mutex
	byID map[string]*playlist.Playlist
}

func (m *memPlaylists) Get(_ context.Context, id string) (*playlist.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "playlist %s", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memPlaylists) ListByStatus(_ context.Context, status playlist.Status, classCode string) ([]*playlist.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*playlist.Playlist
	for _, p := range m.byID {
		if p.Status == status && (classCode == "" || p.ClassCode == classCode) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPlaylists) UpdateReview(_ context.Context, p *playlist.Playlist, from playlist.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[p.ID]
	if !ok || cur.Status != from {
		return errors.Wrapf(store.ErrConflict, "playlist %s", p.ID)
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

// visiblePlaylists applies the read rules of the playlists service.
type visiblePlaylists struct {
	*memPlaylists
}

func (v visiblePlaylists) Get(ctx context.Context, userID string, role user.Role, id string) (*playlist.Playlist, error) {
	p, err := v.memPlaylists.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsVisibleTo(userID, role) {
		return nil, errors.Wrapf(store.ErrNotFound, "playlist %s", id)
	}
	return p, nil
}

var testTracks = memTracks{
	"t1": {ID: "t1", Title: "One", Artist: "A", Duration: 120, URI: "mem://t1", Source: track.SourceCatalog},
	"t2": {ID: "t2", Title: "Two", Artist: "B", Duration: 200, URI: "mem://t2", Source: track.SourceCatalog},
	"t3": {ID: "t3", Title: "Three", Artist: "C", Duration: 90, URI: "mem://t3", Source: track.SourceUpload},
}

type testEnv struct {
	server    *httptest.Server
	sessions  *session.Manager
	playlists *memPlaylists
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sessions := session.NewManager(session.Config{
		Playback: playback.DefaultConfig(),
		Audio:    audio.Config{Tick: 10 * time.Millisecond},
	}, notification.NewManager(), testTracks, nil)

	pls := &memPlaylists{byID: map[string]*playlist.Playlist{
		"approved": {ID: "approved", Name: "Morning", OwnerID: "other", Status: playlist.StatusApproved,
			Tracks: []track.Track{testTracks["t1"], testTracks["t2"]}},
		"hidden": {ID: "hidden", Name: "Secret", OwnerID: "other", Status: playlist.StatusDraft,
			Tracks: []track.Track{testTracks["t3"]}},
		"pending": {ID: "pending", Name: "Review me", OwnerID: "u1", ClassCode: "3B", Status: playlist.StatusPending,
			Tracks: []track.Track{testTracks["t1"]}},
	}}

	interceptors := connect.WithInterceptors(NewAuthInterceptor(testVerifier))
	mux := http.NewServeMux()
	mux.Handle(tunedeckv1.NewPlayerServiceHandler(NewPlayerService(sessions, visiblePlaylists{pls}), interceptors))
	mux.Handle(tunedeckv1.NewModerationServiceHandler(
		NewModerationService(moderation.NewService(pls, nil, nil)), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		sessions.Close()
	})
	return &testEnv{server: server, sessions: sessions, playlists: pls}
}

func (e *testEnv) player(token string) *tunedeckv1.PlayerServiceClient {
	var opts []connect.ClientOption
	if token != "" {
		opts = append(opts, connect.WithInterceptors(NewClientAuthInterceptor(token)))
	}
	return tunedeckv1.NewPlayerServiceClient(e.server.Client(), e.server.URL, opts...)
}

func (e *testEnv) moderation(token string) *tunedeckv1.ModerationServiceClient {
	return tunedeckv1.NewModerationServiceClient(e.server.Client(), e.server.URL,
		connect.WithInterceptors(NewClientAuthInterceptor(token)))
}

func currentID(t *testing.T, resp *connect.Response[tunedeckv1.StateResponse]) string {
	t.Helper()
	require.NotNil(t, resp.Msg.State.CurrentTrack)
	return resp.Msg.State.CurrentTrack.Id
}

func TestAuthInterceptor(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		token    string
		wantCode connect.Code
	}{
		{name: "missing token", token: "", wantCode: connect.CodeUnauthenticated},
		{name: "unknown token", token: "bogus", wantCode: connect.CodeUnauthenticated},
		{name: "valid token", token: "student-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.player(tt.token).GetState(context.Background(), connect.NewRequest(&tunedeckv1.GetStateRequest{}))
			if tt.wantCode == 0 {
				require.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantCode, connect.CodeOf(err))
		})
	}
}

func TestPlayerService_Controls(t *testing.T) {
	env := newTestEnv(t)
	client := env.player("student-token")
	ctx := context.Background()

	resp, err := client.PlayPlaylist(ctx, connect.NewRequest(&tunedeckv1.PlayPlaylistRequest{
		TrackIds:   []string{"t1", "t2", "t3"},
		StartIndex: 1,
	}))
	require.NoError(t, err)
	assert.Equal(t, "t2", currentID(t, resp))
	assert.Len(t, resp.Msg.State.Queue, 3)

	resp, err = client.Next(ctx, connect.NewRequest(&tunedeckv1.NextRequest{}))
	require.NoError(t, err)
	assert.Equal(t, "t3", currentID(t, resp))

	resp, err = client.Previous(ctx, connect.NewRequest(&tunedeckv1.PreviousRequest{}))
	require.NoError(t, err)
	assert.Equal(t, "t2", currentID(t, resp))

	resp, err = client.ToggleShuffle(ctx, connect.NewRequest(&tunedeckv1.ToggleShuffleRequest{}))
	require.NoError(t, err)
	assert.True(t, resp.Msg.State.IsShuffled)
	assert.Equal(t, "t2", resp.Msg.State.Queue[0].Id)

	resp, err = client.ToggleRepeat(ctx, connect.NewRequest(&tunedeckv1.ToggleRepeatRequest{}))
	require.NoError(t, err)
	assert.Equal(t, "all", resp.Msg.State.RepeatMode)

	resp, err = client.Enqueue(ctx, connect.NewRequest(&tunedeckv1.EnqueueRequest{TrackId: "t1"}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.State.Queue, 4)
	assert.Equal(t, "t1", resp.Msg.State.Queue[3].Id)
	assert.Equal(t, "t1", resp.Msg.State.OriginalQueue[3].Id)

	resp, err = client.PlayTrack(ctx, connect.NewRequest(&tunedeckv1.PlayTrackRequest{
		TrackId:         "t3",
		ContextTrackIds: []string{"t1", "t3"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "t3", currentID(t, resp))
	assert.Len(t, resp.Msg.State.OriginalQueue, 2)

	state, err := client.GetState(ctx, connect.NewRequest(&tunedeckv1.GetStateRequest{}))
	require.NoError(t, err)
	assert.Equal(t, "t3", currentID(t, state))
}

func TestPlayerService_PlayStoredPlaylist(t *testing.T) {
	env := newTestEnv(t)
	client := env.player("student-token")
	ctx := context.Background()

	resp, err := client.PlayPlaylist(ctx, connect.NewRequest(&tunedeckv1.PlayPlaylistRequest{PlaylistId: "approved"}))
	require.NoError(t, err)
	assert.Equal(t, "t1", currentID(t, resp))
	assert.Len(t, resp.Msg.State.Queue, 2)

	_, err = client.PlayPlaylist(ctx, connect.NewRequest(&tunedeckv1.PlayPlaylistRequest{PlaylistId: "hidden"}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestPlayerService_Errors(t *testing.T) {
	env := newTestEnv(t)
	client := env.player("student-token")
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() error
		wantCode connect.Code
	}{
		{
			name: "play playlist without source",
			call: func() error {
				_, err := client.PlayPlaylist(ctx, connect.NewRequest(&tunedeckv1.PlayPlaylistRequest{}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "unknown track",
			call: func() error {
				_, err := client.PlayPlaylist(ctx, connect.NewRequest(&tunedeckv1.PlayPlaylistRequest{TrackIds: []string{"missing"}}))
				return err
			},
			wantCode: connect.CodeNotFound,
		},
		{
			name: "start index out of range",
			call: func() error {
				_, err := client.PlayPlaylist(ctx, connect.NewRequest(&tunedeckv1.PlayPlaylistRequest{TrackIds: []string{"t1"}, StartIndex: 5}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "seek with nothing loaded",
			call: func() error {
				_, err := client.Seek(ctx, connect.NewRequest(&tunedeckv1.SeekRequest{PositionMs: 1000}))
				return err
			},
			wantCode: connect.CodeFailedPrecondition,
		},
		{
			name: "toggle with nothing loaded",
			call: func() error {
				_, err := client.TogglePlayPause(ctx, connect.NewRequest(&tunedeckv1.TogglePlayPauseRequest{}))
				return err
			},
			wantCode: connect.CodeFailedPrecondition,
		},
		{
			name: "enqueue without track",
			call: func() error {
				_, err := client.Enqueue(ctx, connect.NewRequest(&tunedeckv1.EnqueueRequest{}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, connect.CodeOf(err))
		})
	}
}

func TestPlayerService_SubscribeEvents(t *testing.T) {
	env := newTestEnv(t)
	client := env.player("student-token")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.SubscribeEvents(ctx, connect.NewRequest(&tunedeckv1.SubscribeEventsRequest{}))
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "initial state: %v", stream.Err())
	initial := stream.Msg()
	assert.Equal(t, tunedeckv1.EventTypeInitialState, initial.Type)
	assert.Nil(t, initial.State.CurrentTrack)

	require.Eventually(t, func() bool {
		return env.sessions.Notification().SubscriberCount("u1") == 1
	}, time.Second, 10*time.Millisecond)

	_, err = client.PlayTrack(ctx, connect.NewRequest(&tunedeckv1.PlayTrackRequest{TrackId: "t1"}))
	require.NoError(t, err)

	last := initial.SequenceNo
	for stream.Receive() {
		event := stream.Msg()
		assert.Greater(t, event.SequenceNo, last)
		last = event.SequenceNo
		if event.Type == tunedeckv1.EventTypeTrackChanged {
			require.NotNil(t, event.State.CurrentTrack)
			assert.Equal(t, "t1", event.State.CurrentTrack.Id)
			return
		}
	}
	t.Fatalf("stream ended before track_changed: %v", stream.Err())
}

func TestModerationService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	teacher := env.moderation("teacher-token")

	_, err := env.moderation("student-token").ListPending(ctx, connect.NewRequest(&tunedeckv1.ListPendingRequest{}))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	list, err := teacher.ListPending(ctx, connect.NewRequest(&tunedeckv1.ListPendingRequest{ClassCode: "3B"}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Playlists, 1)
	assert.Equal(t, "pending", list.Msg.Playlists[0].Id)

	_, err = teacher.Reject(ctx, connect.NewRequest(&tunedeckv1.ReviewRequest{PlaylistId: "pending"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	approved, err := teacher.Approve(ctx, connect.NewRequest(&tunedeckv1.ReviewRequest{PlaylistId: "pending", Note: "nice"}))
	require.NoError(t, err)
	assert.Equal(t, string(playlist.StatusApproved), approved.Msg.Playlist.Status)
	assert.Equal(t, "teacher-1", approved.Msg.Playlist.ReviewerId)

	_, err = teacher.Approve(ctx, connect.NewRequest(&tunedeckv1.ReviewRequest{PlaylistId: "pending"}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	_, err = teacher.Approve(ctx, connect.NewRequest(&tunedeckv1.ReviewRequest{PlaylistId: "missing"}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}
