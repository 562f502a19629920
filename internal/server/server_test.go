package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/chat"
	"github.com/Aimaiyabot/ai-maiya/internal/config"
	"github.com/Aimaiyabot/ai-maiya/internal/db"
	"github.com/Aimaiyabot/ai-maiya/internal/dispatch"
	"github.com/Aimaiyabot/ai-maiya/internal/llm"
	"github.com/Aimaiyabot/ai-maiya/internal/llm/llmtest"
	"github.com/Aimaiyabot/ai-maiya/internal/prompts"
	"github.com/Aimaiyabot/ai-maiya/internal/search"
	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

type testEnv struct {
	srv    *Server
	ds     *store.DatabaseStore
	svc    *chat.Service
	chat   *llmtest.Chat
	images *llmtest.Images
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.New("sqlite://:memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	idx, err := search.New()
	if err != nil {
		t.Fatalf("search index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	env := &testEnv{
		ds: store.NewDatabaseStore(database),
		chat: &llmtest.Chat{Respond: func(req llm.CompletionRequest) (string, error) {
			if strings.Contains(req.System, "summarizing") {
				return "Great chat ✨", nil
			}
			return "Hey babe! 💖", nil
		}},
		images: &llmtest.Images{URL: "https://img.example/cat.png"},
	}
	p := prompts.Static(prompts.Default())
	memory := store.NewMemoryStore()
	d := dispatch.New(env.chat, env.images, p)
	env.svc = chat.NewService(env.ds, memory, d, p, chat.Options{Index: idx})
	t.Cleanup(env.svc.Drain)

	cfg := config.Config{
		AllowedOrigin:      "http://localhost:3000",
		FrontendURL:        "http://localhost:3000",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		GoogleRedirectURL:  "http://localhost:8080/api/auth/callback",
		GoogleScopes:       []string{"openid", "email"},
		SessionTTL:         time.Hour,
		RequestTimeout:     5 * time.Second,
	}
	env.srv, err = NewServer(cfg, Deps{
		Database:      database,
		DatabaseStore: env.ds,
		Memory:        memory,
		Chat:          env.svc,
		Dispatcher:    d,
		Prompts:       p,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return env
}

// signIn creates a session directly in the store and, when name and niche
// are given, a profile.
func (e *testEnv) signIn(t *testing.T, userID, name, niche string) string {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	sid := "sid-" + userID
	if err := e.ds.SaveSession(ctx, store.Session{ID: sid, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if name != "" || niche != "" {
		if err := e.ds.SaveProfile(ctx, store.Profile{ID: userID, Name: name, Niche: niche}); err != nil {
			t.Fatalf("SaveProfile: %v", err)
		}
	}
	return sid
}

func (e *testEnv) do(t *testing.T, method, path, sid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: sid})
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["status"] != "ok" || got["database"] != "ok" {
		t.Errorf("unexpected health body %v", got)
	}
}

func TestAccessStateMachine(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/access", "", nil)
	if got := decode[map[string]any](t, rec); got["status"] != "redirect_to_auth" {
		t.Fatalf("expected redirect_to_auth, got %v", got)
	}

	sid := env.signIn(t, "u1", "", "")
	rec = env.do(t, http.MethodGet, "/api/access", sid, nil)
	if got := decode[map[string]any](t, rec); got["status"] != "needs_profile" {
		t.Fatalf("expected needs_profile, got %v", got)
	}

	// Chat is blocked until the profile is saved
	if rec := env.do(t, http.MethodPost, "/api/chat", sid, map[string]string{"message": "hi"}); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 before profile, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/profile", sid, map[string]string{"name": "Ava", "niche": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank niche, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/profile", sid, map[string]string{"name": "Ava", "niche": "candles"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 saving profile, got %d: %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]any](t, rec); got["status"] != "granted" {
		t.Fatalf("expected granted after save, got %v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/profile", sid, nil)
	prof := decode[struct {
		Profile  store.Profile `json:"profile"`
		Complete bool          `json:"complete"`
	}](t, rec)
	if !prof.Complete || prof.Profile.Name != "Ava" {
		t.Errorf("unexpected profile response %+v", prof)
	}

	// Logout returns to unauthenticated
	if rec := env.do(t, http.MethodPost, "/api/auth/logout", sid, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on logout, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/access", sid, nil)
	if got := decode[map[string]any](t, rec); got["status"] != "redirect_to_auth" {
		t.Fatalf("expected redirect_to_auth after logout, got %v", got)
	}
}

func TestChatRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/chat", "", map[string]string{"message": "hi"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/generate-image", "", map[string]string{"prompt": "a cute cat"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for compat endpoint, got %d", rec.Code)
	}
}

func TestChatTurnAndHistory(t *testing.T) {
	env := newTestEnv(t)
	sid := env.signIn(t, "u1", "Ava", "candles")

	rec := env.do(t, http.MethodPost, "/api/chat", sid, map[string]string{"message": "generate image", "surfaceId": "tab-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	first := decode[chat.TurnResult](t, rec)
	if !first.AwaitingImageDescription || first.Reply.Content != prompts.Default().Messages.ImageDetails {
		t.Fatalf("unexpected first turn %+v", first)
	}

	rec = env.do(t, http.MethodPost, "/api/chat", sid, map[string]string{"message": "a cute cat", "surfaceId": "tab-1"})
	second := decode[chat.TurnResult](t, rec)
	if second.Kind != "image" || len(second.Messages) != 4 || !second.Saved {
		t.Fatalf("unexpected second turn %+v", second)
	}

	rec = env.do(t, http.MethodGet, "/api/chats", sid, nil)
	keys := decode[map[string][]string](t, rec)["dateKeys"]
	if len(keys) != 1 || keys[0] != first.DateKey {
		t.Fatalf("unexpected date keys %v", keys)
	}

	rec = env.do(t, http.MethodGet, "/api/chats/"+first.DateKey, sid, nil)
	hist := decode[struct {
		Messages []store.Message `json:"messages"`
	}](t, rec)
	if len(hist.Messages) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(hist.Messages))
	}

	env.svc.Drain()
	rec = env.do(t, http.MethodGet, "/api/chats/"+first.DateKey+"/summary", sid, nil)
	if got := decode[map[string]string](t, rec); got["summary"] != "Great chat ✨" {
		t.Errorf("unexpected summary %v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/chats/search?q=cat", sid, nil)
	if !strings.Contains(rec.Body.String(), first.DateKey) {
		t.Errorf("expected search hit for today, got %s", rec.Body)
	}

	rec = env.do(t, http.MethodDelete, "/api/chats/"+first.DateKey, sid, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on clear, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/chats", sid, nil)
	if keys := decode[map[string][]string](t, rec)["dateKeys"]; len(keys) != 0 {
		t.Errorf("expected no date keys after clear, got %v", keys)
	}
}

func TestChatValidation(t *testing.T) {
	env := newTestEnv(t)
	sid := env.signIn(t, "u1", "Ava", "candles")

	for _, body := range []any{"{not json", map[string]string{}, map[string]string{"message": ""}, map[string]string{"message": "   "}} {
		rec := env.do(t, http.MethodPost, "/api/chat", sid, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %v: expected 400, got %d", body, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodGet, "/api/chats/yesterday", sid, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date key, got %d", rec.Code)
	}
	if len(env.chat.Calls()) != 0 {
		t.Error("invalid requests must not reach the model")
	}
}

func TestGenerateImageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	sid := env.signIn(t, "u1", "", "")
	tooShort := prompts.Default().Messages.PromptTooShort

	for _, body := range []any{map[string]string{"prompt": "cat"}, map[string]string{"prompt": "   hi   "}, map[string]string{}} {
		rec := env.do(t, http.MethodPost, "/api/generate-image", sid, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %v: expected 400, got %d", body, rec.Code)
		}
		if got := decode[map[string]string](t, rec)["error"]; got != tooShort {
			t.Errorf("unexpected error %q", got)
		}
	}
	if len(env.images.Calls()) != 0 {
		t.Fatal("short prompts must not reach the image API")
	}

	rec := env.do(t, http.MethodPost, "/api/generate-image", sid, map[string]string{"prompt": "marketing poster for my shop"})
	fb := decode[map[string]any](t, rec)
	if rec.Code != http.StatusOK || fb["fallback"] != true || fb["message"] != prompts.Default().Messages.ImageFallback {
		t.Fatalf("expected fallback, got %d %v", rec.Code, fb)
	}
	if len(env.images.Calls()) != 0 {
		t.Fatal("fallback prompts must not reach the image API")
	}

	rec = env.do(t, http.MethodPost, "/api/generate-image", sid, map[string]string{"prompt": "a cute cat"})
	if got := decode[map[string]string](t, rec); rec.Code != http.StatusOK || got["imageUrl"] != "https://img.example/cat.png" {
		t.Fatalf("expected image url, got %d %v", rec.Code, got)
	}

	env.images.Err = apperr.Upstream("image generation", errors.New("503"))
	rec = env.do(t, http.MethodPost, "/api/generate-image", sid, map[string]string{"prompt": "a cute dog"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["error"]; got != prompts.Default().Messages.ImageFailed {
		t.Errorf("unexpected error %q", got)
	}
}

func TestGenerateVisualCodeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	sid := env.signIn(t, "u1", "", "")
	env.chat.Respond = nil
	env.chat.Reply = `<section onclick="x()"><h2>Launch Steps</h2><script>bad()</script></section>`

	rec := env.do(t, http.MethodPost, "/api/generate-visual-code", sid, map[string]string{"prompt": "launch steps infographic"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["html"]; got != "<section><h2>Launch Steps</h2></section>" {
		t.Errorf("expected sanitized html, got %q", got)
	}

	env.chat.Err = apperr.Upstream("chat completion", errors.New("timeout"))
	env.chat.Reply = ""
	rec = env.do(t, http.MethodPost, "/api/generate-visual-code", sid, map[string]string{"prompt": "dashboard"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["error"]; got != "Code generation failed" {
		t.Errorf("unexpected error %q", got)
	}
}

func TestMaiyabotEndpoint(t *testing.T) {
	env := newTestEnv(t)
	sid := env.signIn(t, "u1", "", "")
	msgs := []store.Message{{Role: store.RoleUser, Content: "hi"}}

	rec := env.do(t, http.MethodPost, "/api/maiyabot", sid, map[string]any{"messages": msgs, "name": "Ava", "niche": "candles"})
	if got := decode[map[string]string](t, rec); rec.Code != http.StatusOK || got["reply"] != "Hey babe! 💖" {
		t.Fatalf("unexpected reply %d %v", rec.Code, got)
	}
	if sys := env.chat.Calls()[0].System; !strings.Contains(sys, "Their name is Ava") {
		t.Error("expected persona to use name and niche from the body")
	}

	rec = env.do(t, http.MethodPost, "/api/maiyabot", sid, map[string]any{"messages": msgs, "summarize": true})
	if got := decode[map[string]string](t, rec); got["summary"] != "Great chat ✨" {
		t.Fatalf("unexpected summary %v", got)
	}
	if s, _ := env.ds.LoadSummary(context.Background(), "u1", env.svc.Today()); s != "Great chat ✨" {
		t.Errorf("expected summary saved for today, got %q", s)
	}

	env.chat.Respond = nil
	env.chat.Err = apperr.Upstream("chat completion", errors.New("500"))
	rec = env.do(t, http.MethodPost, "/api/maiyabot", sid, map[string]any{"messages": msgs})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["reply"]; got != prompts.Default().Messages.ChatApology {
		t.Errorf("expected in-character apology, got %q", got)
	}

	rec = env.do(t, http.MethodPost, "/api/maiyabot", sid, map[string]any{"messages": []map[string]string{{"role": "system", "content": "x"}}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected schema to reject system role, got %d", rec.Code)
	}
}
