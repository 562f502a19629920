package store

import (
	"sync"
	"time"
)

// OAuth state and pending-flag TTLs
var (
	oauthStateTTL = 10 * time.Minute
	pendingTTL    = 30 * time.Minute
)

type oauthState struct {
	SessionID string
	CreatedAt time.Time
}

type pendingImage struct {
	UpdatedAt time.Time
}

// MemoryStore keeps short-lived per-process state: OAuth CSRF states and the
// per-surface "awaiting image description" flags.
type MemoryStore struct {
	mu  sync.Mutex
	now func() time.Time
	// state -> pre-auth session
	oauthStates map[string]oauthState
	// surface key -> pending image description
	pendingBySurface map[string]pendingImage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:              time.Now,
		oauthStates:      make(map[string]oauthState),
		pendingBySurface: make(map[string]pendingImage),
	}
}

// OAuth helpers

func (m *MemoryStore) SetOAuthState(sessionID, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oauthStates[state] = oauthState{SessionID: sessionID, CreatedAt: m.now()}
}

// ConsumeOAuthState returns the session that started the flow for state and
// forgets it. Expired or unknown states yield "".
func (m *MemoryStore) ConsumeOAuthState(state string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.oauthStates[state]
	if !ok {
		return ""
	}
	delete(m.oauthStates, state)
	if m.now().Sub(st.CreatedAt) > oauthStateTTL {
		return ""
	}
	return st.SessionID
}

// SurfaceKey scopes the pending flag to one chat surface of one user.
func SurfaceKey(userID, surfaceID string) string {
	return userID + "|" + surfaceID
}

// AwaitingImage reports whether the next message on this surface is an
// image description.
func (m *MemoryStore) AwaitingImage(surfaceKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pendingBySurface[surfaceKey]
	if !ok {
		return false
	}
	if m.now().Sub(p.UpdatedAt) > pendingTTL {
		delete(m.pendingBySurface, surfaceKey)
		return false
	}
	return true
}

// SetAwaitingImage records the flag for the next turn on this surface.
func (m *MemoryStore) SetAwaitingImage(surfaceKey string, awaiting bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !awaiting {
		delete(m.pendingBySurface, surfaceKey)
		return
	}
	m.pendingBySurface[surfaceKey] = pendingImage{UpdatedAt: m.now()}
}

// Sweep drops expired entries.
func (m *MemoryStore) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, st := range m.oauthStates {
		if now.Sub(st.CreatedAt) > oauthStateTTL {
			delete(m.oauthStates, k)
		}
	}
	for k, p := range m.pendingBySurface {
		if now.Sub(p.UpdatedAt) > pendingTTL {
			delete(m.pendingBySurface, k)
		}
	}
}
