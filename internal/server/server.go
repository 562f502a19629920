package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/Aimaiyabot/ai-maiya/internal/chat"
	"github.com/Aimaiyabot/ai-maiya/internal/config"
	"github.com/Aimaiyabot/ai-maiya/internal/db"
	"github.com/Aimaiyabot/ai-maiya/internal/dispatch"
	"github.com/Aimaiyabot/ai-maiya/internal/gate"
	"github.com/Aimaiyabot/ai-maiya/internal/prompts"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
	"github.com/Aimaiyabot/ai-maiya/internal/types"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type Server struct {
	router        *chi.Mux
	cfg           config.Config
	database      *db.DB
	databaseStore *store.DatabaseStore
	// OAuth states and per-surface pending flags
	store      *store.MemoryStore
	chat       *chat.Service
	dispatcher *dispatch.Dispatcher
	prompts    *prompts.Store
	gate       *gate.Gate
	schemas    *schemas

	oauthCfg    *oauth2.Config
	userInfoURL string
	now         func() time.Time
}

// Deps are the already constructed collaborators the HTTP layer serves.
type Deps struct {
	Database      *db.DB
	DatabaseStore *store.DatabaseStore
	Memory        *store.MemoryStore
	Chat          *chat.Service
	Dispatcher    *dispatch.Dispatcher
	Prompts       *prompts.Store
}

func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	if deps.DatabaseStore == nil || deps.Memory == nil || deps.Chat == nil || deps.Dispatcher == nil || deps.Prompts == nil {
		return nil, fmt.Errorf("server: missing dependency")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	sc, err := compileSchemas()
	if err != nil {
		return nil, fmt.Errorf("failed to compile request schemas: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// OAuth2 config (may be partially empty if env not set; handlers will check)
	oCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       cfg.GoogleScopes,
		Endpoint:     endpoints.Google,
	}

	s := &Server{
		router:        r,
		cfg:           cfg,
		database:      deps.Database,
		databaseStore: deps.DatabaseStore,
		store:         deps.Memory,
		chat:          deps.Chat,
		dispatcher:    deps.Dispatcher,
		prompts:       deps.Prompts,
		gate:          gate.New(deps.DatabaseStore),
		schemas:       sc,
		oauthCfg:      oCfg,
		userInfoURL:   googleUserInfoURL,
		now:           time.Now,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	// Google sign-in
	s.router.Get("/api/auth/login", s.handleLogin)
	s.router.Get("/api/auth/callback", s.handleCallback)
	s.router.Post("/api/auth/logout", s.handleLogout)
	s.router.Get("/api/access", s.handleAccess)

	// Signed in, profile may be incomplete
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAccess(gate.NeedsProfile))
		r.Get("/api/profile", s.handleGetProfile)
		r.Put("/api/profile", s.handleSaveProfile)

		r.Post("/api/maiyabot", s.handleMaiyabot)
		r.Post("/api/generate-image", s.handleGenerateImage)
		r.Post("/api/generate-visual-code", s.handleGenerateVisualCode)
	})

	// Signed in with a complete profile
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAccess(gate.Granted))
		r.Post("/api/chat", s.handleChat)
		r.Get("/api/chats", s.handleListChats)
		r.Get("/api/chats/search", s.handleSearchChats)
		r.Get("/api/chats/{dateKey}", s.handleGetChat)
		r.Delete("/api/chats/{dateKey}", s.handleClearChat)
		r.Get("/api/chats/{dateKey}/summary", s.handleGetSummary)
	})
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK
	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.database.HealthCheck(ctx); err != nil {
			log.Printf("[health] database check failed: %v", err)
			status["status"] = "degraded"
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}

// getSessionID retrieves the session ID from cookie, header or query parameter
func getSessionID(r *http.Request) string {
	if cookie, err := GetSessionCookie(r); err == nil && cookie != "" {
		return cookie
	}
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		return sid
	}
	return ""
}

type ctxKey int

const accessKey ctxKey = iota

// requireAccess rejects requests whose gate decision is below least.
// NeedsProfile admits any signed-in user; Granted also needs a profile.
func (s *Server) requireAccess(least gate.Status) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, err := s.gate.Check(r.Context(), getSessionID(r))
			if err != nil {
				log.Printf("[auth] access check failed: %v", err)
				s.writeError(w, http.StatusInternalServerError, "could not verify session")
				return
			}
			switch {
			case access.Status == gate.RedirectToAuth:
				s.writeError(w, http.StatusUnauthorized, "sign in required")
				return
			case least == gate.Granted && access.Status != gate.Granted:
				s.writeError(w, http.StatusForbidden, "profile incomplete")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accessKey, access)))
		})
	}
}

func accessFrom(ctx context.Context) gate.Access {
	a, _ := ctx.Value(accessKey).(gate.Access)
	return a
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	access, err := s.gate.Check(r.Context(), getSessionID(r))
	if err != nil {
		log.Printf("[auth] access check failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "could not verify session")
		return
	}
	writeJSON(w, http.StatusOK, access)
}
