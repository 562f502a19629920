package server

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/chat"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
	"github.com/Aimaiyabot/ai-maiya/internal/types"
)

// POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := decodeBody(w, r, s.schemas.chat, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apperr.PublicMessage(err, "invalid request"))
		return
	}
	access := accessFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	res, err := s.chat.Turn(ctx, chat.TurnInput{
		UserID:    access.Session.UserID,
		SurfaceID: req.SurfaceID,
		Text:      req.Message,
		Profile:   access.Profile,
	})
	if err != nil {
		if apperr.IsValidation(err) {
			s.writeError(w, http.StatusBadRequest, apperr.PublicMessage(err, ""))
			return
		}
		log.Printf("[chat] turn failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, s.prompts.Current().Messages.Apology)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/chats
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	keys, err := s.chat.DateKeys(r.Context(), accessFrom(r.Context()).Session.UserID)
	if err != nil {
		s.storeError(w, "list chats", err)
		return
	}
	writeJSON(w, http.StatusOK, types.DateKeysResponse{DateKeys: keys})
}

// GET /api/chats/search?q=...&limit=...
func (s *Server) handleSearchChats(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := s.chat.Search(r.Context(), accessFrom(r.Context()).Session.UserID, r.URL.Query().Get("q"), limit)
	if err != nil {
		log.Printf("[search] query failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GET /api/chats/{dateKey}
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	dateKey, ok := s.dateKeyParam(w, r)
	if !ok {
		return
	}
	msgs, err := s.chat.History(r.Context(), accessFrom(r.Context()).Session.UserID, dateKey)
	if err != nil {
		s.storeError(w, "load chat", err)
		return
	}
	writeJSON(w, http.StatusOK, types.HistoryResponse{DateKey: dateKey, Messages: msgs})
}

// DELETE /api/chats/{dateKey}
func (s *Server) handleClearChat(w http.ResponseWriter, r *http.Request) {
	dateKey, ok := s.dateKeyParam(w, r)
	if !ok {
		return
	}
	if err := s.chat.Clear(r.Context(), accessFrom(r.Context()).Session.UserID, dateKey); err != nil {
		s.storeError(w, "clear chat", err)
		return
	}
	writeJSON(w, http.StatusOK, types.HistoryResponse{DateKey: dateKey, Messages: []store.Message{}})
}

// GET /api/chats/{dateKey}/summary
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	dateKey, ok := s.dateKeyParam(w, r)
	if !ok {
		return
	}
	summary, err := s.chat.Summary(r.Context(), accessFrom(r.Context()).Session.UserID, dateKey)
	if err != nil {
		s.storeError(w, "load summary", err)
		return
	}
	writeJSON(w, http.StatusOK, types.SummaryResponse{DateKey: dateKey, Summary: summary})
}

func (s *Server) dateKeyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	dateKey := chi.URLParam(r, "dateKey")
	if !store.ValidDateKey(dateKey) {
		s.writeError(w, http.StatusBadRequest, "dateKey must be YYYY-MM-DD")
		return "", false
	}
	return dateKey, true
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	log.Printf("[store] %s failed: %v", op, err)
	s.writeError(w, apperr.StatusCode(err), apperr.PublicMessage(err, "storage unavailable"))
}
