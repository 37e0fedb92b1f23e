package rest

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/osa030/tunedeck/internal/app/moderation"
	"github.com/osa030/tunedeck/internal/app/playlists"
	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/user"
)

func (s *Server) handleListApproved(w http.ResponseWriter, r *http.Request) {
	pls, err := s.Playlists.ListApproved(r.Context(), r.URL.Query().Get("class_code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePlaylists(w, pls)
}

func (s *Server) handleListMine(w http.ResponseWriter, r *http.Request) {
	pls, err := s.Playlists.ListMine(r.Context(), claims(r).UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePlaylists(w, pls)
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var in playlists.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.Playlists.Create(r.Context(), claims(r).UserID, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"playlist": p})
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	c := claims(r)
	p, err := s.Playlists.Get(r.Context(), c.UserID, c.Role, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlist": p})
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	var in playlists.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.Playlists.Update(r.Context(), claims(r).UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlist": p})
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	c := claims(r)
	if err := s.Playlists.Delete(r.Context(), c.UserID, c.Role, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TrackID string `json:"track_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.TrackID == "" {
		writeError(w, http.StatusBadRequest, "track_id is required")
		return
	}
	p, err := s.Playlists.AddTrack(r.Context(), claims(r).UserID, chi.URLParam(r, "id"), body.TrackID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlist": p})
}

func (s *Server) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	p, err := s.Playlists.RemoveTrack(r.Context(), claims(r).UserID, chi.URLParam(r, "id"), chi.URLParam(r, "trackId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlist": p})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	c := claims(r)
	p, err := s.Moderation.Submit(r.Context(), c.UserID, c.Role, chi.URLParam(r, "id"))
	if err != nil {
		var rejected *moderation.RejectedError
		if errors.As(err, &rejected) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": s.Messages.GetMessage(rejected.Code),
				"code":  rejected.Code,
			})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"playlist": p,
		"message":  s.Messages.GetMessage("submitted"),
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, s.Moderation.Approve)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.review(w, r, s.Moderation.Reject)
}

type reviewFunc func(ctx context.Context, reviewerID string, role user.Role, playlistID, note string) (*playlist.Playlist, error)

func (s *Server) review(w http.ResponseWriter, r *http.Request, apply reviewFunc) {
	var body struct {
		Note string `json:"note"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	c := claims(r)
	p, err := apply(r.Context(), c.UserID, c.Role, chi.URLParam(r, "id"), body.Note)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlist": p})
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	pls, err := s.Moderation.ListPending(r.Context(), claims(r).Role, r.URL.Query().Get("class_code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writePlaylists(w, pls)
}

func writePlaylists(w http.ResponseWriter, pls []*playlist.Playlist) {
	if pls == nil {
		pls = []*playlist.Playlist{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"playlists": pls})
}
