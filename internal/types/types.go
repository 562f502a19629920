package types

import "github.com/Aimaiyabot/ai-maiya/internal/store"

type ChatRequest struct {
	Message   string `json:"message"`
	SurfaceID string `json:"surfaceId,omitempty"`
}

type ProfileRequest struct {
	Name  string `json:"name"`
	Niche string `json:"niche"`
}

type ProfileResponse struct {
	Profile  *store.Profile `json:"profile"`
	Complete bool           `json:"complete"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type DateKeysResponse struct {
	DateKeys []string `json:"dateKeys"`
}

type HistoryResponse struct {
	DateKey  string          `json:"dateKey"`
	Messages []store.Message `json:"messages"`
}

type SummaryResponse struct {
	DateKey string `json:"dateKey,omitempty"`
	Summary string `json:"summary"`
}

// MaiyabotRequest is the stateless chat body: the client sends the whole
// history and profile fields itself.
type MaiyabotRequest struct {
	Messages  []store.Message `json:"messages"`
	Name      string          `json:"name"`
	Niche     string          `json:"niche"`
	Prompt    string          `json:"prompt,omitempty"`
	Summarize bool            `json:"summarize,omitempty"`
}

type ReplyResponse struct {
	Reply string `json:"reply"`
}

type PromptRequest struct {
	Prompt string `json:"prompt"`
}

type ImageResponse struct {
	ImageURL string `json:"imageUrl,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Message  string `json:"message,omitempty"`
}

type HTMLResponse struct {
	HTML string `json:"html"`
}
