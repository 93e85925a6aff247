package storage

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"medassist/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

func newTestTurnStore(t *testing.T) (*TurnStore, int64) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	res, err := db.Exec(
		"INSERT INTO users (name, dob, pin_hash, failed_attempts, is_locked, created_at) VALUES ('Asha', '1990-04-12', 'x', 0, 0, ?)",
		time.Now(),
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	userID, _ := res.LastInsertId()
	return NewTurnStore(db), userID
}

func TestTurnStoreSaveIsIdempotent(t *testing.T) {
	store, userID := newTestTurnStore(t)
	ctx := context.Background()

	turn := &models.ConversationTurn{
		ID:       "turn-1",
		UserID:   userID,
		Message:  "hello",
		Response: "hi there",
		Intent:   "GENERAL_CHAT",
	}
	if err := store.Save(ctx, turn); err != nil {
		t.Fatalf("save: %v", err)
	}

	replay := *turn
	replay.Response = "different"
	if err := store.Save(ctx, &replay); err != nil {
		t.Fatalf("replay save: %v", err)
	}

	got, err := store.Get(ctx, "turn-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Response != "hi there" {
		t.Fatalf("replay overwrote turn: %+v", got)
	}

	n, err := store.Count(ctx, userID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 turn, got %d", n)
	}
}

func TestTurnStoreHistoryOrderAndLastIntent(t *testing.T) {
	store, userID := newTestTurnStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		turn := &models.ConversationTurn{
			ID:        fmt.Sprintf("turn-%d", i),
			UserID:    userID,
			Message:   fmt.Sprintf("message %d", i),
			Response:  fmt.Sprintf("response %d", i),
			Intent:    "MEDICAL",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Save(ctx, turn); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	turns, err := store.History(ctx, userID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.ID != fmt.Sprintf("turn-%d", i) {
			t.Fatalf("history out of order: %v", turns)
		}
	}

	// Limit keeps the most recent turns.
	turns, err = store.History(ctx, userID, 2)
	if err != nil {
		t.Fatalf("limited history: %v", err)
	}
	if len(turns) != 2 || turns[0].ID != "turn-1" || turns[1].ID != "turn-2" {
		t.Fatalf("unexpected limited history: %v", turns)
	}

	last, err := store.LastIntent(ctx, userID)
	if err != nil {
		t.Fatalf("last intent: %v", err)
	}
	if last != "MEDICAL" {
		t.Fatalf("expected MEDICAL, got %q", last)
	}
}

func TestTurnStoreLastIntentEmptyLog(t *testing.T) {
	store, userID := newTestTurnStore(t)

	last, err := store.LastIntent(context.Background(), userID)
	if err != nil {
		t.Fatalf("last intent: %v", err)
	}
	if last != "" {
		t.Fatalf("expected empty intent, got %q", last)
	}
}
