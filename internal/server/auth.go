package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Aimaiyabot/ai-maiya/internal/store"
	"github.com/Aimaiyabot/ai-maiya/internal/types"
)

type googleUser struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// GET /api/auth/login
// Starts the Google OAuth flow and returns { url, sessionId }, or redirects
// straight to Google when ?redirect=1 is given.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil || s.oauthCfg.ClientID == "" || s.oauthCfg.ClientSecret == "" {
		s.writeError(w, http.StatusBadRequest, "google oauth not configured")
		return
	}
	flowID := uuid.NewString()
	state := randomState()
	s.store.SetOAuthState(flowID, state)
	s.setCookie(w, OAuthCookieName, flowID, oauthCookieAge)

	url := s.oauthCfg.AuthCodeURL(state)
	if r.URL.Query().Get("redirect") != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, types.LoginResponse{URL: url, SessionID: flowID})
}

// GET /api/auth/callback?code=...&state=...
// Exchanges the code, creates a sign-in session and sends the browser back
// to the frontend.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauthCfg == nil || s.oauthCfg.ClientID == "" {
		s.writeError(w, http.StatusBadRequest, "google oauth not configured")
		return
	}
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		s.writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}
	flowID := s.store.ConsumeOAuthState(state)
	cookie, err := r.Cookie(OAuthCookieName)
	if flowID == "" || err != nil || cookie.Value != flowID {
		s.writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	s.setCookie(w, OAuthCookieName, "", -1)

	ctx := r.Context()
	tok, err := s.oauthCfg.Exchange(ctx, code)
	if err != nil {
		log.Printf("[auth] token exchange failed: %v", err)
		s.writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	user, err := s.fetchGoogleUser(ctx, s.oauthCfg.Client(ctx, tok))
	if err != nil {
		log.Printf("[auth] userinfo failed: %v", err)
		s.writeError(w, http.StatusBadGateway, "failed to fetch Google profile")
		return
	}

	now := s.now()
	sess := store.Session{
		ID:        uuid.NewString(),
		UserID:    user.Sub,
		Email:     user.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.databaseStore.SaveSession(ctx, sess); err != nil {
		log.Printf("[auth] save session failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}
	log.Printf("[auth] signed in user %s", user.Sub)

	s.SetSessionCookie(w, sess.ID)
	w.Header().Set("X-Session-Id", sess.ID)
	http.Redirect(w, r, fmt.Sprintf("%s?auth=success", s.cfg.FrontendURL), http.StatusFound)
}

// POST /api/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sid := getSessionID(r); sid != "" {
		if err := s.databaseStore.DeleteSession(r.Context(), sid); err != nil {
			log.Printf("[auth] delete session failed: %v", err)
			s.writeError(w, http.StatusInternalServerError, "failed to sign out")
			return
		}
	}
	s.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func randomState() string {
	var b [24]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func (s *Server) fetchGoogleUser(ctx context.Context, client *http.Client) (*googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var u googleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, err
	}
	u.Sub = strings.TrimSpace(u.Sub)
	if u.Sub == "" {
		return nil, fmt.Errorf("userinfo without subject")
	}
	return &u, nil
}
