package server

import (
	"log"
	"net/http"
	"strings"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/gate"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
	"github.com/Aimaiyabot/ai-maiya/internal/types"
)

// GET /api/profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	access := accessFrom(r.Context())
	writeJSON(w, http.StatusOK, types.ProfileResponse{
		Profile:  access.Profile,
		Complete: access.Status == gate.Granted,
	})
}

// PUT /api/profile
// Saving a complete profile moves the visitor from needs_profile to granted.
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var req types.ProfileRequest
	if err := decodeBody(w, r, s.schemas.profile, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apperr.PublicMessage(err, "invalid request"))
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Niche) == "" {
		s.writeError(w, http.StatusBadRequest, "name and niche are required")
		return
	}

	access := accessFrom(r.Context())
	p := store.Profile{ID: access.Session.UserID, Name: req.Name, Niche: req.Niche}
	if err := s.databaseStore.SaveProfile(r.Context(), p); err != nil {
		s.storeError(w, "save profile", err)
		return
	}
	log.Printf("[profile] saved profile for %s", p.ID)

	saved, err := s.databaseStore.LoadProfile(r.Context(), p.ID)
	if err != nil {
		s.storeError(w, "load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, gate.Decide(access.Session, saved, s.now()))
}
