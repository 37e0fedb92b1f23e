// Package rest provides the JSON HTTP API.
package rest

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/osa030/tunedeck/internal/app/auth"
	"github.com/osa030/tunedeck/internal/app/catalog"
	"github.com/osa030/tunedeck/internal/app/playlists"
	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/domain/user"
)

// AuthService registers users and issues tokens.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*user.User, auth.Tokens, error)
	Login(ctx context.Context, email, password string) (*user.User, auth.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
	Verify(accessToken string) (*auth.Claims, error)
	Me(ctx context.Context, userID string) (*user.User, error)
}

// CatalogService reads and extends the track catalog.
type CatalogService interface {
	Get(ctx context.Context, id string) (*track.Track, error)
	List(ctx context.Context, q catalog.Query) ([]track.Track, error)
	CreateUpload(ctx context.Context, ownerID string, meta catalog.UploadMeta, filename string, r io.Reader) (*track.Track, error)
	Tag(ctx context.Context, id string) ([]string, error)
}

// PlaylistService manages playlists.
type PlaylistService interface {
	Create(ctx context.Context, ownerID string, in playlists.CreateInput) (*playlist.Playlist, error)
	Get(ctx context.Context, userID string, role user.Role, id string) (*playlist.Playlist, error)
	ListApproved(ctx context.Context, classCode string) ([]*playlist.Playlist, error)
	ListMine(ctx context.Context, userID string) ([]*playlist.Playlist, error)
	Update(ctx context.Context, userID, id string, in playlists.UpdateInput) (*playlist.Playlist, error)
	AddTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error)
	RemoveTrack(ctx context.Context, userID, id, trackID string) (*playlist.Playlist, error)
	Delete(ctx context.Context, userID string, role user.Role, id string) error
}

// ModerationService runs the review workflow.
type ModerationService interface {
	Submit(ctx context.Context, userID string, role user.Role, playlistID string) (*playlist.Playlist, error)
	Approve(ctx context.Context, reviewerID string, role user.Role, playlistID, note string) (*playlist.Playlist, error)
	Reject(ctx context.Context, reviewerID string, role user.Role, playlistID, note string) (*playlist.Playlist, error)
	ListPending(ctx context.Context, role user.Role, classCode string) ([]*playlist.Playlist, error)
}

// SettingsService stores user preferences.
type SettingsService interface {
	Get(ctx context.Context, userID string) (user.Preferences, error)
	Update(ctx context.Context, userID string, patch user.PreferencesPatch) (user.Preferences, error)
}

// Messages resolves submission result codes to user-facing text.
type Messages interface {
	GetMessage(code string) string
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps collects the services the API is built on.
type Deps struct {
	Auth       AuthService
	Catalog    CatalogService
	Playlists  PlaylistService
	Moderation ModerationService
	Settings   SettingsService
	Messages   Messages
	DB         Pinger // optional, checked by /health
	MediaDir   string // served under /media/ when set
}

// Server serves the REST API.
type Server struct {
	Deps
}

// NewServer creates a new REST server.
func NewServer(deps Deps) *Server {
	return &Server{Deps: deps}
}

// Router returns the HTTP handler with every route mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Get("/health", s.handleHealth)
	if s.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(s.MediaDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.Auth))

			r.Get("/auth/me", s.handleMe)

			r.Get("/tracks", s.handleListTracks)
			r.Post("/tracks", s.handleUploadTrack)
			r.Get("/tracks/{id}", s.handleGetTrack)
			r.Post("/tracks/{id}/tags", s.handleTagTrack)

			r.Get("/playlists", s.handleListApproved)
			r.Get("/playlists/mine", s.handleListMine)
			r.Post("/playlists", s.handleCreatePlaylist)
			r.Get("/playlists/{id}", s.handleGetPlaylist)
			r.Patch("/playlists/{id}", s.handleUpdatePlaylist)
			r.Delete("/playlists/{id}", s.handleDeletePlaylist)
			r.Post("/playlists/{id}/tracks", s.handleAddTrack)
			r.Delete("/playlists/{id}/tracks/{trackId}", s.handleRemoveTrack)
			r.Post("/playlists/{id}/submit", s.handleSubmit)
			r.Patch("/playlists/{id}/approve", s.handleApprove)
			r.Patch("/playlists/{id}/reject", s.handleReject)

			r.Get("/moderation/pending", s.handleListPending)

			r.Get("/settings/preferences", s.handleGetPreferences)
			r.Patch("/settings/preferences", s.handleUpdatePreferences)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "unavailable",
				"service": "tunedeck",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tunedeck",
	})
}
