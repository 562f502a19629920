package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/db"
)

// DatabaseStore persists profiles, chats, summaries and sign-in sessions.
// Every write is a single-row upsert; last writer wins.
type DatabaseStore struct {
	db  *db.DB
	now func() time.Time
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database, now: time.Now}
}

// ---- Conversations ----

// LoadConversation returns the messages for (userID, dateKey), or an empty
// slice when nothing has been saved yet.
func (ds *DatabaseStore) LoadConversation(ctx context.Context, userID, dateKey string) ([]Message, error) {
	if userID == "" || dateKey == "" {
		return nil, apperr.Validation("user_id and date_key are required")
	}

	var raw []byte
	query := ds.db.Rebind(`SELECT messages FROM chats WHERE user_id = ? AND date_key = ?`)
	err := ds.db.QueryRowContext(ctx, query, userID, dateKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, apperr.Persistence("load chat", err)
	}

	msgs := []Message{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &msgs); err != nil {
			return nil, apperr.Persistence("decode chat", err)
		}
	}
	return msgs, nil
}

// SaveConversation replaces the stored messages for (userID, dateKey).
func (ds *DatabaseStore) SaveConversation(ctx context.Context, userID, dateKey string, msgs []Message) error {
	if userID == "" || dateKey == "" {
		return apperr.Validation("user_id and date_key are required")
	}
	if msgs == nil {
		msgs = []Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return apperr.Persistence("encode chat", err)
	}

	query := ds.db.Rebind(`
		INSERT INTO chats (user_id, date_key, messages, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, date_key)
		DO UPDATE SET
			messages = excluded.messages,
			updated_at = excluded.updated_at
	`)
	if _, err := ds.db.ExecContext(ctx, query, userID, dateKey, string(b), ds.now().Unix()); err != nil {
		return apperr.Persistence("save chat", err)
	}
	return nil
}

// ListDateKeys returns every date key with history for userID, newest first.
func (ds *DatabaseStore) ListDateKeys(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	query := ds.db.Rebind(`SELECT date_key FROM chats WHERE user_id = ? ORDER BY date_key DESC`)
	rows, err := ds.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, apperr.Persistence("list chats", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, apperr.Persistence("scan chat key", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list chats", err)
	}
	return keys, nil
}

// ClearConversation deletes the whole (userID, dateKey) record.
func (ds *DatabaseStore) ClearConversation(ctx context.Context, userID, dateKey string) error {
	if userID == "" || dateKey == "" {
		return apperr.Validation("user_id and date_key are required")
	}
	query := ds.db.Rebind(`DELETE FROM chats WHERE user_id = ? AND date_key = ?`)
	if _, err := ds.db.ExecContext(ctx, query, userID, dateKey); err != nil {
		return apperr.Persistence("clear chat", err)
	}
	return nil
}

// EachConversation calls fn for every stored conversation. Used to rebuild
// the search index at startup.
func (ds *DatabaseStore) EachConversation(ctx context.Context, fn func(Conversation) error) error {
	rows, err := ds.db.QueryContext(ctx, `SELECT user_id, date_key, messages FROM chats`)
	if err != nil {
		return apperr.Persistence("scan chats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Conversation
		var raw []byte
		if err := rows.Scan(&c.UserID, &c.DateKey, &raw); err != nil {
			return apperr.Persistence("scan chats", err)
		}
		if err := json.Unmarshal(raw, &c.Messages); err != nil {
			continue
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ---- Summaries ----

// SaveSummary replaces the digest for (userID, dateKey).
func (ds *DatabaseStore) SaveSummary(ctx context.Context, userID, dateKey, summary string) error {
	if userID == "" || dateKey == "" {
		return apperr.Validation("user_id and date_key are required")
	}
	query := ds.db.Rebind(`
		INSERT INTO summaries (user_id, date_key, summary, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, date_key)
		DO UPDATE SET
			summary = excluded.summary,
			updated_at = excluded.updated_at
	`)
	if _, err := ds.db.ExecContext(ctx, query, userID, dateKey, summary, ds.now().Unix()); err != nil {
		return apperr.Persistence("save summary", err)
	}
	return nil
}

// LoadSummary returns "" when no summary exists.
func (ds *DatabaseStore) LoadSummary(ctx context.Context, userID, dateKey string) (string, error) {
	var summary string
	query := ds.db.Rebind(`SELECT summary FROM summaries WHERE user_id = ? AND date_key = ?`)
	err := ds.db.QueryRowContext(ctx, query, userID, dateKey).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Persistence("load summary", err)
	}
	return summary, nil
}

// ---- Profiles ----

// SaveProfile saves or updates the profile keyed by p.ID
func (ds *DatabaseStore) SaveProfile(ctx context.Context, p Profile) error {
	if p.ID == "" {
		return apperr.Validation("profile id is required")
	}
	query := ds.db.Rebind(`
		INSERT INTO profiles (id, name, niche, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id)
		DO UPDATE SET
			name = excluded.name,
			niche = excluded.niche,
			updated_at = excluded.updated_at
	`)
	_, err := ds.db.ExecContext(ctx, query, p.ID, strings.TrimSpace(p.Name), strings.TrimSpace(p.Niche), ds.now().Unix())
	if err != nil {
		return apperr.Persistence("save profile", err)
	}
	return nil
}

// LoadProfile returns nil, nil when the user has never saved a profile.
func (ds *DatabaseStore) LoadProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	var p Profile
	var updated int64
	query := ds.db.Rebind(`SELECT id, name, niche, updated_at FROM profiles WHERE id = ?`)
	err := ds.db.QueryRowContext(ctx, query, userID).Scan(&p.ID, &p.Name, &p.Niche, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found, return nil
	}
	if err != nil {
		return nil, apperr.Persistence("load profile", err)
	}
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return &p, nil
}

// ---- Sessions ----

// SaveSession stores a sign-in session.
func (ds *DatabaseStore) SaveSession(ctx context.Context, s Session) error {
	if s.ID == "" || s.UserID == "" {
		return fmt.Errorf("session id and user id are required")
	}
	query := ds.db.Rebind(`
		INSERT INTO auth_sessions (id, user_id, email, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id)
		DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			expires_at = excluded.expires_at
	`)
	_, err := ds.db.ExecContext(ctx, query, s.ID, s.UserID, s.Email, s.CreatedAt.Unix(), s.ExpiresAt.Unix())
	if err != nil {
		return apperr.Persistence("save session", err)
	}
	return nil
}

// LoadSession returns nil, nil for unknown session IDs. Expiry is left to
// the caller.
func (ds *DatabaseStore) LoadSession(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	var s Session
	var created, expires int64
	query := ds.db.Rebind(`SELECT id, user_id, email, created_at, expires_at FROM auth_sessions WHERE id = ?`)
	err := ds.db.QueryRowContext(ctx, query, sessionID).Scan(&s.ID, &s.UserID, &s.Email, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence("load session", err)
	}
	s.CreatedAt = time.Unix(created, 0).UTC()
	s.ExpiresAt = time.Unix(expires, 0).UTC()
	return &s, nil
}

// DeleteSession removes a sign-in session
func (ds *DatabaseStore) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	query := ds.db.Rebind(`DELETE FROM auth_sessions WHERE id = ?`)
	if _, err := ds.db.ExecContext(ctx, query, sessionID); err != nil {
		return apperr.Persistence("delete session", err)
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that expired before now.
func (ds *DatabaseStore) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	query := ds.db.Rebind(`DELETE FROM auth_sessions WHERE expires_at < ?`)
	res, err := ds.db.ExecContext(ctx, query, ds.now().Unix())
	if err != nil {
		return 0, apperr.Persistence("purge sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
