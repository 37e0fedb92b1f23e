package rest

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/app/auth"
	"github.com/osa030/tunedeck/internal/app/catalog"
	"github.com/osa030/tunedeck/internal/app/moderation"
	"github.com/osa030/tunedeck/internal/app/playlists"
	"github.com/osa030/tunedeck/internal/app/settings"
	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/store"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Msgf("failed to write response: error=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// statusOf maps application errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, playlists.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrRoleNotAllowed),
		errors.Is(err, moderation.ErrForbidden),
		errors.Is(err, playlists.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, playlists.ErrNotEditable),
		errors.Is(err, playlist.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, playlists.ErrInvalidInput),
		errors.Is(err, settings.ErrInvalidPreferences),
		errors.Is(err, catalog.ErrInvalidMetadata),
		errors.Is(err, catalog.ErrUnsupportedFormat),
		errors.Is(err, playlist.ErrReviewNoteRequired),
		errors.Is(err, track.ErrUnknownSource):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, catalog.ErrSpotifyDisabled),
		errors.Is(err, catalog.ErrTaggingDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Internal errors are
// logged and their detail is not returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		zlog.Error().Msgf("request failed: method=%s path=%s error=%+v", r.Method, r.URL.Path, err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
