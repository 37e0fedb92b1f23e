package rest

import (
	"net/http"

	"github.com/osa030/tunedeck/internal/domain/user"
)

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.Settings.Get(r.Context(), claims(r).UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var patch user.PreferencesPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	prefs, err := s.Settings.Update(r.Context(), claims(r).UserID, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs})
}
