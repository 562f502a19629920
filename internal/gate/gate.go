// Package gate decides whether a visitor may use the chat: signed in first,
// then a profile with a name and a niche.
package gate

import (
	"context"
	"time"

	"github.com/Aimaiyabot/ai-maiya/internal/store"
)

type Status string

const (
	RedirectToAuth Status = "redirect_to_auth"
	NeedsProfile   Status = "needs_profile"
	Granted        Status = "granted"
)

type Access struct {
	Status  Status         `json:"status"`
	Session *store.Session `json:"-"`
	Profile *store.Profile `json:"profile,omitempty"`
}

// Decide applies the gate to already loaded state.
func Decide(session *store.Session, profile *store.Profile, now time.Time) Access {
	if !session.Valid(now) {
		return Access{Status: RedirectToAuth}
	}
	if profile == nil || profile.ID != session.UserID || !profile.Complete() {
		return Access{Status: NeedsProfile, Session: session, Profile: profile}
	}
	return Access{Status: Granted, Session: session, Profile: profile}
}

// Loader is the subset of the database store the gate reads.
type Loader interface {
	LoadSession(ctx context.Context, sessionID string) (*store.Session, error)
	LoadProfile(ctx context.Context, userID string) (*store.Profile, error)
}

type Gate struct {
	store Loader
	now   func() time.Time
}

func New(l Loader) *Gate {
	return &Gate{store: l, now: time.Now}
}

// Check loads the session and, if valid, the profile, then decides.
func (g *Gate) Check(ctx context.Context, sessionID string) (Access, error) {
	if sessionID == "" {
		return Access{Status: RedirectToAuth}, nil
	}
	sess, err := g.store.LoadSession(ctx, sessionID)
	if err != nil {
		return Access{}, err
	}
	now := g.now()
	if !sess.Valid(now) {
		return Access{Status: RedirectToAuth}, nil
	}
	profile, err := g.store.LoadProfile(ctx, sess.UserID)
	if err != nil {
		return Access{}, err
	}
	return Decide(sess, profile, now), nil
}
