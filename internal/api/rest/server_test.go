package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/osa030/tunedeck/internal/app/auth"
	"github.com/osa030/tunedeck/internal/app/catalog"
	"github.com/osa030/tunedeck/internal/app/filter"
	"github.com/osa030/tunedeck/internal/app/moderation"
	"github.com/osa030/tunedeck/internal/app/playlists"
	"github.com/osa030/tunedeck/internal/app/settings"
	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/domain/user"
	"github.com/osa030/tunedeck/internal/infra/config"
	"github.com/osa030/tunedeck/internal/store"
)

const testAdminToken = "let-me-in"

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*user.User
	byEmail map[string]*user.User
}

func (m *memUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return store.ErrConflict
	}
	u.ID = uuid.NewString()
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

type memPrefs struct {
	mu   sync.Mutex
	byID map[string]user.Preferences
}

func (m *memPrefs) Get(_ context.Context, userID string) (user.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[userID]; ok {
		return p, nil
	}
	return user.Preferences{}, store.ErrNotFound
}

func (m *memPrefs) Upsert(_ context.Context, p *user.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.UserID] = *p
	return nil
}

// memPlaylists backs both the moderation workflow and the playlist API stub.
type memPlaylists struct {
	mu   sync.Mutex
	byID map[string]*playlist.Playlist
}

func (m *memPlaylists) put(p *playlist.Playlist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = p
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

type playlistAPI struct {
	*memPlaylists
}

func (a playlistAPI) Create(_ context.Context, ownerID string, in playlists.CreateInput) (*playlist.Playlist, error) {
	if in.Name == "" {
		return nil, errors.Wrap(playlists.ErrInvalidInput, "name is required")
	}
	p := &playlist.Playlist{ID: uuid.NewString(), Name: in.Name, OwnerID: ownerID, Status: playlist.StatusDraft}
	a.put(p)
	return p, nil
}

func (a playlistAPI) Get(ctx context.Context, userID string, role user.Role, id string) (*playlist.Playlist, error) {
	p, err := a.memPlaylists.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsVisibleTo(userID, role) {
		return nil, errors.Wrapf(store.ErrNotFound, "playlist %s", id)
	}
	return p, nil
}

func (a playlistAPI) ListApproved(ctx context.Context, classCode string) ([]*playlist.Playlist, error) {
	return a.ListByStatus(ctx, playlist.StatusApproved, classCode)
}

func (a playlistAPI) ListMine(_ context.Context, userID string) ([]*playlist.Playlist, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*playlist.Playlist
	for _, p := range a.byID {
		if p.OwnerID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (a playlistAPI) Update(ctx context.Context, userID, id string, in playlists.UpdateInput) (*playlist.Playlist, error) {
	p, err := a.memPlaylists.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, playlists.ErrForbidden
	}
	if !p.IsEditable() {
		return nil, playlists.ErrNotEditable
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	a.put(p)
	return p, nil
}

func (a playlistAPI) AddTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error) {
	p, err := a.memPlaylists.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Tracks = append(p.Tracks, track.Track{ID: trackID})
	a.put(p)
	return p, nil
}

func (a playlistAPI) RemoveTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error) {
	return nil, errors.Wrapf(playlists.ErrTrackNotFound, "%s", trackID)
}

func (a playlistAPI) Delete(ctx context.Context, userID string, role user.Role, id string) error {
	p, err := a.memPlaylists.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID != userID && role != user.RoleAdmin {
		return playlists.ErrForbidden
	}
	a.mu.Lock()
	delete(a.byID, id)
	a.mu.Unlock()
	return nil
}

type stubCatalog struct {
	mu       sync.Mutex
	uploaded []catalog.UploadMeta
	body     string
}

func (c *stubCatalog) Get(_ context.Context, id string) (*track.Track, error) {
	if id == "boom" {
		panic("catalog exploded")
	}
	if id != "t1" {
		return nil, errors.Wrapf(store.ErrNotFound, "track %s", id)
	}
	return &track.Track{ID: "t1", Title: "One", Source: track.SourceCatalog}, nil
}

func (c *stubCatalog) List(_ context.Context, q catalog.Query) ([]track.Track, error) {
	return []track.Track{{ID: "t1", Title: "One", Source: track.SourceCatalog, Genre: q.Genre}}, nil
}

func (c *stubCatalog) CreateUpload(_ context.Context, ownerID string, meta catalog.UploadMeta, filename string, r io.Reader) (*track.Track, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.uploaded = append(c.uploaded, meta)
	c.body = string(data)
	c.mu.Unlock()
	return &track.Track{ID: "up-1", Title: meta.Title, Source: track.SourceUpload, OwnerID: ownerID}, nil
}

func (c *stubCatalog) Tag(_ context.Context, id string) ([]string, error) {
	return []string{"calm"}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	handler   http.Handler
	playlists *memPlaylists
	catalog   *stubCatalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg, err := config.Parse([]byte("database:\n  dsn: postgres://localhost/test\nauth:\n  jwt_secret: 0123456789abcdef0123\n"))
	require.NoError(t, err)

	chain, err := filter.NewChainFromConfig(map[string]config.FilterConfig{
		"track_count_filter": {Enabled: true, Settings: map[string]any{"min_tracks": 2}},
	}, filter.Deps{})
	require.NoError(t, err)

	pls := &memPlaylists{byID: map[string]*playlist.Playlist{}}
	cat := &stubCatalog{}
	srv := NewServer(Deps{
		Auth: auth.NewService(&memUsers{byID: map[string]*user.User{}, byEmail: map[string]*user.User{}}, auth.Config{
			Secret:     []byte(cfg.Auth.JWTSecret),
			AdminToken: testAdminToken,
			BcryptCost: bcrypt.MinCost,
		}),
		Catalog:    cat,
		Playlists:  playlistAPI{pls},
		Moderation: moderation.NewService(pls, chain, nil),
		Settings:   settings.NewService(&memPrefs{byID: map[string]user.Preferences{}}),
		Messages:   cfg,
	})
	return &testEnv{handler: srv.Router(), playlists: pls, catalog: cat}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type session struct {
	userID  string
	access  string
	refresh string
}

func (e *testEnv) register(t *testing.T, email string, role user.Role) session {
	t.Helper()
	body := map[string]any{"email": email, "password": "correct-horse", "role": string(role)}
	if role != user.RoleStudent {
		body["admin_token"] = testAdminToken
	}
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		User   user.User   `json:"user"`
		Tokens auth.Tokens `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return session{userID: resp.User.ID, access: resp.Tokens.AccessToken, refresh: resp.Tokens.RefreshToken}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	srv := NewServer(Deps{DB: failingPinger{}})
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "Ann@Example.com", user.RoleStudent)

	rec := env.do(t, http.MethodGet, "/api/auth/me", s.access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "ann@example.com", me["email"])
	assert.Equal(t, "student", me["role"])
	assert.NotContains(t, me, "password_hash")

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "ann@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "ann@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refresh_token": s.refresh})
	assert.Equal(t, http.StatusOK, rec.Code)

	// A refresh token is not an access token.
	rec = env.do(t, http.MethodGet, "/api/auth/me", s.refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{"email": "ann@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{name: "teacher without admin token", body: map[string]any{"email": "t@example.com", "password": "correct-horse", "role": "teacher"}, wantCode: http.StatusForbidden},
		{name: "short password", body: map[string]any{"email": "s@example.com", "password": "short"}, wantCode: http.StatusBadRequest},
		{name: "invalid email", body: map[string]any{"email": "nope", "password": "correct-horse"}, wantCode: http.StatusBadRequest},
		{name: "unknown field", body: map[string]any{"email": "u@example.com", "password": "correct-horse", "admin": true}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/playlists", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestSubmitAndReview(t *testing.T) {
	env := newTestEnv(t)
	student := env.register(t, "student@example.com", user.RoleStudent)
	teacher := env.register(t, "teacher@example.com", user.RoleTeacher)

	env.playlists.put(&playlist.Playlist{ID: "short", Name: "Short", OwnerID: student.userID, Status: playlist.StatusDraft,
		Tracks: []track.Track{{ID: "t1"}}})
	env.playlists.put(&playlist.Playlist{ID: "good", Name: "Good", OwnerID: student.userID, ClassCode: "3B", Status: playlist.StatusDraft,
		Tracks: []track.Track{{ID: "t1"}, {ID: "t2"}}})

	rec := env.do(t, http.MethodPost, "/api/playlists/short/submit", student.access, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "track_count_out_of_range", body["code"])
	assert.Equal(t, "The playlist has too few or too many tracks", body["error"])

	rec = env.do(t, http.MethodPost, "/api/playlists/good/submit", teacher.access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/playlists/good/submit", student.access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Playlist submitted for review", decode(t, rec)["message"])

	rec = env.do(t, http.MethodGet, "/api/moderation/pending", student.access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/moderation/pending?class_code=3B", teacher.access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["playlists"], 1)

	rec = env.do(t, http.MethodPatch, "/api/playlists/good/approve", student.access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/playlists/good/reject", teacher.access, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/playlists/good/approve", teacher.access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode(t, rec)["playlist"].(map[string]any)["status"])

	rec = env.do(t, http.MethodPatch, "/api/playlists/good/reject", teacher.access, map[string]any{"note": "too late"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/playlists", student.access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["playlists"], 1)
}

func TestPlaylists(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com", user.RoleStudent)
	other := env.register(t, "other@example.com", user.RoleStudent)

	rec := env.do(t, http.MethodPost, "/api/playlists", owner.access, map[string]any{"name": "Study"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["playlist"].(map[string]any)["id"].(string)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     any
		wantCode int
	}{
		{name: "get own draft", method: http.MethodGet, path: "/api/playlists/" + id, token: owner.access, wantCode: http.StatusOK},
		{name: "draft hidden from others", method: http.MethodGet, path: "/api/playlists/" + id, token: other.access, wantCode: http.StatusNotFound},
		{name: "missing playlist", method: http.MethodGet, path: "/api/playlists/missing", token: owner.access, wantCode: http.StatusNotFound},
		{name: "create without name", method: http.MethodPost, path: "/api/playlists", token: owner.access, body: map[string]any{"name": ""}, wantCode: http.StatusBadRequest},
		{name: "rename by other", method: http.MethodPatch, path: "/api/playlists/" + id, token: other.access, body: map[string]any{"name": "Mine"}, wantCode: http.StatusForbidden},
		{name: "rename", method: http.MethodPatch, path: "/api/playlists/" + id, token: owner.access, body: map[string]any{"name": "Focus"}, wantCode: http.StatusOK},
		{name: "add track without id", method: http.MethodPost, path: "/api/playlists/" + id + "/tracks", token: owner.access, body: map[string]any{}, wantCode: http.StatusBadRequest},
		{name: "add track", method: http.MethodPost, path: "/api/playlists/" + id + "/tracks", token: owner.access, body: map[string]any{"track_id": "t1"}, wantCode: http.StatusOK},
		{name: "remove unknown track", method: http.MethodDelete, path: "/api/playlists/" + id + "/tracks/t9", token: owner.access, wantCode: http.StatusNotFound},
		{name: "list mine", method: http.MethodGet, path: "/api/playlists/mine", token: owner.access, wantCode: http.StatusOK},
		{name: "delete by other", method: http.MethodDelete, path: "/api/playlists/" + id, token: other.access, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: "/api/playlists/" + id, token: owner.access, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestTracks(t *testing.T) {
	env := newTestEnv(t)
	student := env.register(t, "s@example.com", user.RoleStudent)
	teacher := env.register(t, "t@example.com", user.RoleTeacher)

	rec := env.do(t, http.MethodGet, "/api/tracks?genre=jazz", student.access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tracks := decode(t, rec)["tracks"].([]any)
	require.Len(t, tracks, 1)
	assert.Equal(t, "jazz", tracks[0].(map[string]any)["genre"])

	rec = env.do(t, http.MethodGet, "/api/tracks?source=vinyl", student.access, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tracks?limit=-1", student.access, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tracks/t1", student.access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tracks/t9", student.access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/tracks/t1/tags", student.access, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/tracks/t1/tags", teacher.access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"calm"}, decode(t, rec)["emotions"])
}

func TestUploadTrack(t *testing.T) {
	env := newTestEnv(t)
	student := env.register(t, "s@example.com", user.RoleStudent)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", " Etude "))
	require.NoError(t, mw.WriteField("artist", "Class 3B"))
	require.NoError(t, mw.WriteField("duration", "95"))
	part, err := mw.CreateFormFile("file", "etude.mp3")
	require.NoError(t, err)
	_, err = part.Write([]byte("ID3 fake audio"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tracks", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+student.access)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, env.catalog.uploaded, 1)
	assert.Equal(t, catalog.UploadMeta{Title: "Etude", Artist: "Class 3B", Duration: 95}, env.catalog.uploaded[0])
	assert.Equal(t, "ID3 fake audio", env.catalog.body)
	assert.Equal(t, student.userID, decode(t, rec)["track"].(map[string]any)["owner_id"])

	req = httptest.NewRequest(http.MethodPost, "/api/tracks", bytes.NewReader([]byte("{}")))
	req.Header.Set("Authorization", "Bearer "+student.access)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferences(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "p@example.com", user.RoleStudent)

	rec := env.do(t, http.MethodGet, "/api/settings/preferences", s.access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "system", decode(t, rec)["preferences"].(map[string]any)["theme"])

	rec = env.do(t, http.MethodPatch, "/api/settings/preferences", s.access, map[string]any{"theme": "dark", "default_repeat": "all"})
	require.Equal(t, http.StatusOK, rec.Code)
	prefs := decode(t, rec)["preferences"].(map[string]any)
	assert.Equal(t, "dark", prefs["theme"])
	assert.Equal(t, "all", prefs["default_repeat"])

	rec = env.do(t, http.MethodPatch, "/api/settings/preferences", s.access, map[string]any{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// camelCase keys are not accepted.
	rec = env.do(t, http.MethodPatch, "/api/settings/preferences", s.access, map[string]any{"accentColor": "#ffffff"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecoverer(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "r@example.com", user.RoleStudent)

	rec := env.do(t, http.MethodGet, "/api/tracks/boom", s.access, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode(t, rec)["error"])
}
