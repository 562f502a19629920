package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/dispatch"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
	"github.com/Aimaiyabot/ai-maiya/internal/types"
)

// Stateless endpoints: the client owns the history and sends it on every
// call.

// POST /api/maiyabot
// { messages, name, niche, prompt?, summarize? } -> { reply } or { summary }
func (s *Server) handleMaiyabot(w http.ResponseWriter, r *http.Request) {
	set := s.prompts.Current()
	var req types.MaiyabotRequest
	if err := decodeBody(w, r, s.schemas.maiyabot, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apperr.PublicMessage(err, "invalid request"))
		return
	}
	msgs := req.Messages
	if len(msgs) == 0 && strings.TrimSpace(req.Prompt) != "" {
		msgs = []store.Message{{Role: store.RoleUser, Content: strings.TrimSpace(req.Prompt)}}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	if req.Summarize {
		userID := accessFrom(r.Context()).Session.UserID
		summary, err := s.chat.Summarize(ctx, userID, s.chat.Today(), msgs)
		if err != nil {
			log.Printf("[maiyabot] summary failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, types.ReplyResponse{Reply: set.Messages.ChatApology})
			return
		}
		writeJSON(w, http.StatusOK, types.SummaryResponse{Summary: summary})
		return
	}

	if len(msgs) == 0 {
		s.writeError(w, http.StatusBadRequest, "messages are required")
		return
	}
	reply, err := s.dispatcher.Reply(ctx, msgs, req.Name, req.Niche)
	if err != nil {
		log.Printf("[maiyabot] reply failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, types.ReplyResponse{Reply: set.Messages.ChatApology})
		return
	}
	writeJSON(w, http.StatusOK, types.ReplyResponse{Reply: reply})
}

// POST /api/generate-image
// { prompt } -> { imageUrl } or { fallback: true, message }
func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	set := s.prompts.Current()
	var req types.PromptRequest
	if err := decodeBody(w, r, s.schemas.prompt, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, set.Messages.PromptTooShort)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	res, err := s.dispatcher.GenerateImage(ctx, req.Prompt)
	if err != nil {
		if apperr.IsValidation(err) {
			s.writeError(w, http.StatusBadRequest, apperr.PublicMessage(err, set.Messages.PromptTooShort))
			return
		}
		log.Printf("[image] generation failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, set.Messages.ImageFailed)
		return
	}

	switch v := res.(type) {
	case dispatch.ImageResult:
		writeJSON(w, http.StatusOK, types.ImageResponse{ImageURL: v.URL})
	case dispatch.Fallback:
		writeJSON(w, http.StatusOK, types.ImageResponse{Fallback: true, Message: v.Text})
	default:
		log.Printf("[image] unexpected result %T", res)
		s.writeError(w, http.StatusInternalServerError, set.Messages.ImageFailed)
	}
}

// POST /api/generate-visual-code
// { prompt } -> { html }
func (s *Server) handleGenerateVisualCode(w http.ResponseWriter, r *http.Request) {
	set := s.prompts.Current()
	var req types.PromptRequest
	if err := decodeBody(w, r, s.schemas.prompt, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, apperr.PublicMessage(err, "invalid request"))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, set.Messages.PromptTooShort)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	html, err := s.dispatcher.GenerateMockup(ctx, req.Prompt)
	if err != nil {
		log.Printf("[mockup] generation failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, set.Messages.MockupFailed)
		return
	}
	writeJSON(w, http.StatusOK, types.HTMLResponse{HTML: html})
}
