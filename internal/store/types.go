package store

import (
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. Content may be plain text, an
// image marker, or sanitized HTML from a mockup.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Profile gates access to the chat; both fields must be set.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Niche     string    `json:"niche"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Complete reports whether the profile has a name and a niche.
func (p *Profile) Complete() bool {
	return p != nil && strings.TrimSpace(p.Name) != "" && strings.TrimSpace(p.Niche) != ""
}

// Session is a signed-in browser session issued after the OAuth callback.
type Session struct {
	ID        string
	UserID    string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Valid reports whether the session exists and has not expired at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.UserID != "" && now.Before(s.ExpiresAt)
}

// Conversation is the full message list for one (user, date key).
type Conversation struct {
	UserID   string
	DateKey  string
	Messages []Message
}

// DateKeyLayout is the calendar-day format conversations are bucketed by.
const DateKeyLayout = "2006-01-02"

// DateKey returns the UTC calendar day for t.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

// ValidDateKey reports whether s parses as a date key.
func ValidDateKey(s string) bool {
	_, err := time.Parse(DateKeyLayout, s)
	return err == nil
}
