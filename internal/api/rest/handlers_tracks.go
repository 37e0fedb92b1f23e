package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/osa030/tunedeck/internal/app/catalog"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// maxMultipartMemory is the part of an upload kept in memory while parsing.
const maxMultipartMemory = 8 << 20

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := catalog.Query{
		Text:    q.Get("q"),
		Genre:   q.Get("genre"),
		Emotion: q.Get("emotion"),
		OwnerID: q.Get("owner_id"),
	}
	if v := q.Get("source"); v != "" {
		src, err := track.ParseSource(v)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		query.Source = src
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = limit
	}

	tracks, err := s.Catalog.List(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	t, err := s.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"track": t})
}

func (s *Server) handleUploadTrack(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	meta := catalog.UploadMeta{
		Title:  strings.TrimSpace(r.FormValue("title")),
		Artist: strings.TrimSpace(r.FormValue("artist")),
		Album:  strings.TrimSpace(r.FormValue("album")),
		Genre:  strings.TrimSpace(r.FormValue("genre")),
	}
	if v := r.FormValue("duration"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		meta.Duration = d
	}

	t, err := s.Catalog.CreateUpload(r.Context(), claims(r).UserID, meta, header.Filename, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"track": t})
}

func (s *Server) handleTagTrack(w http.ResponseWriter, r *http.Request) {
	if !claims(r).Role.CanModerate() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	emotions, err := s.Catalog.Tag(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"emotions": emotions})
}
