package store

import (
	"context"
	"testing"
	"time"

	"github.com/Aimaiyabot/ai-maiya/internal/apperr"
	"github.com/Aimaiyabot/ai-maiya/internal/db"
)

func newTestStore(t *testing.T) *DatabaseStore {
	t.Helper()
	database, err := db.New("sqlite://:memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewDatabaseStore(database)
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)

	msgs := []Message{
		{Role: RoleUser, Content: "hi Maiya"},
		{Role: RoleAssistant, Content: "Hey babe! 💖"},
		{Role: RoleUser, Content: "generate image"},
		{Role: RoleAssistant, Content: `<img src="https://img.example/1.png" alt="Generated Image" />`},
	}
	if err := ds.SaveConversation(ctx, "user-1", "2025-06-01", msgs); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}

	loaded, err := ds.LoadConversation(ctx, "user-1", "2025-06-01")
	if err != nil {
		t.Fatalf("LoadConversation failed: %v", err)
	}
	if len(loaded) != len(msgs) {
		t.Fatalf("expected %d messages, got %d", len(msgs), len(loaded))
	}
	for i := range msgs {
		if loaded[i] != msgs[i] {
			t.Errorf("message %d: expected %+v, got %+v", i, msgs[i], loaded[i])
		}
	}

	// Full replace, not append
	if err := ds.SaveConversation(ctx, "user-1", "2025-06-01", msgs[:1]); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	loaded, _ = ds.LoadConversation(ctx, "user-1", "2025-06-01")
	if len(loaded) != 1 {
		t.Errorf("expected upsert to replace messages, got %d", len(loaded))
	}
}

func TestLoadMissingConversationIsEmpty(t *testing.T) {
	ds := newTestStore(t)
	msgs, err := ds.LoadConversation(context.Background(), "nobody", "2025-06-01")
	if err != nil {
		t.Fatalf("LoadConversation failed: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", msgs)
	}
}

func TestClearRemovesDateKey(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)

	one := []Message{{Role: RoleUser, Content: "hello"}}
	for _, key := range []string{"2025-05-30", "2025-05-31", "2025-06-01"} {
		if err := ds.SaveConversation(ctx, "user-1", key, one); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
	}
	if err := ds.SaveConversation(ctx, "user-2", "2025-05-31", one); err != nil {
		t.Fatalf("save other user: %v", err)
	}

	keys, err := ds.ListDateKeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListDateKeys failed: %v", err)
	}
	if len(keys) != 3 || keys[0] != "2025-06-01" {
		t.Fatalf("expected 3 keys newest first, got %v", keys)
	}

	if err := ds.ClearConversation(ctx, "user-1", "2025-05-31"); err != nil {
		t.Fatalf("ClearConversation failed: %v", err)
	}

	msgs, _ := ds.LoadConversation(ctx, "user-1", "2025-05-31")
	if len(msgs) != 0 {
		t.Errorf("expected cleared conversation to load empty, got %d", len(msgs))
	}
	keys, _ = ds.ListDateKeys(ctx, "user-1")
	for _, k := range keys {
		if k == "2025-05-31" {
			t.Errorf("expected cleared key to be omitted, got %v", keys)
		}
	}

	// Other users keep their history
	other, _ := ds.LoadConversation(ctx, "user-2", "2025-05-31")
	if len(other) != 1 {
		t.Errorf("clear must be scoped to the user, other user has %d messages", len(other))
	}
}

func TestSummaryUpsert(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)

	if err := ds.SaveSummary(ctx, "user-1", "2025-06-01", "first"); err != nil {
		t.Fatalf("SaveSummary failed: %v", err)
	}
	if err := ds.SaveSummary(ctx, "user-1", "2025-06-01", "second ✨"); err != nil {
		t.Fatalf("SaveSummary overwrite failed: %v", err)
	}
	got, err := ds.LoadSummary(ctx, "user-1", "2025-06-01")
	if err != nil {
		t.Fatalf("LoadSummary failed: %v", err)
	}
	if got != "second ✨" {
		t.Errorf("expected overwritten summary, got %q", got)
	}
	if missing, _ := ds.LoadSummary(ctx, "user-1", "2024-01-01"); missing != "" {
		t.Errorf("expected empty summary, got %q", missing)
	}
}

func TestProfileSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)

	p, err := ds.LoadProfile(ctx, "user-1")
	if err != nil || p != nil {
		t.Fatalf("expected nil profile before save, got %+v, %v", p, err)
	}

	if err := ds.SaveProfile(ctx, Profile{ID: "user-1", Name: "  Ava ", Niche: "candles"}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	p, err = ds.LoadProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.Name != "Ava" || p.Niche != "candles" {
		t.Errorf("unexpected profile %+v", p)
	}
	if !p.Complete() {
		t.Error("expected profile to be complete")
	}

	if err := ds.SaveProfile(ctx, Profile{Name: "x"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for missing id, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ds.now = func() time.Time { return now }

	sess := Session{ID: "sid-1", UserID: "google-123", Email: "ava@example.com", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := ds.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	got, err := ds.LoadSession(ctx, "sid-1")
	if err != nil || got == nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if got.UserID != "google-123" || !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Errorf("unexpected session %+v", got)
	}
	if !got.Valid(now) || got.Valid(now.Add(2*time.Hour)) {
		t.Error("unexpected validity window")
	}

	expired := Session{ID: "sid-old", UserID: "u", CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	_ = ds.SaveSession(ctx, expired)
	n, err := ds.PurgeExpiredSessions(ctx)
	if err != nil || n != 1 {
		t.Errorf("expected 1 purged session, got %d (%v)", n, err)
	}

	if err := ds.DeleteSession(ctx, "sid-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if got, _ := ds.LoadSession(ctx, "sid-1"); got != nil {
		t.Errorf("expected session to be gone, got %+v", got)
	}
}

func TestEachConversation(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t)
	_ = ds.SaveConversation(ctx, "u1", "2025-06-01", []Message{{Role: RoleUser, Content: "a"}})
	_ = ds.SaveConversation(ctx, "u2", "2025-06-02", []Message{{Role: RoleUser, Content: "b"}})

	seen := map[string]int{}
	err := ds.EachConversation(ctx, func(c Conversation) error {
		seen[c.UserID+"/"+c.DateKey] = len(c.Messages)
		return nil
	})
	if err != nil {
		t.Fatalf("EachConversation failed: %v", err)
	}
	if len(seen) != 2 || seen["u1/2025-06-01"] != 1 {
		t.Errorf("unexpected iteration result %v", seen)
	}
}

func TestDateKey(t *testing.T) {
	ts := time.Date(2025, 6, 1, 23, 30, 0, 0, time.FixedZone("PDT", -7*3600))
	if got := DateKey(ts); got != "2025-06-02" {
		t.Errorf("expected UTC date key 2025-06-02, got %s", got)
	}
	if !ValidDateKey("2025-06-02") || ValidDateKey("today") {
		t.Error("unexpected ValidDateKey result")
	}
}
