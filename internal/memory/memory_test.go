package memory

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"medassist/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

type fakeCompleter struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec(
		"INSERT INTO users (id, name, dob, pin_hash, failed_attempts, is_locked, created_at) VALUES (1, 'Asha', '1990-04-12', 'x', 0, 0, ?)",
		time.Now(),
	); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return NewStore(db), db
}

func TestAddMessageKeepsBatchBelowThreshold(t *testing.T) {
	store, _ := newTestStore(t)
	llm := &fakeCompleter{}
	mem := New(1, store, llm, 2, time.Hour)
	ctx := context.Background()

	mem.AddMessage(ctx, "I have a headache", "How long has it lasted?")

	if len(llm.prompts) != 0 {
		t.Fatalf("expected no model calls below threshold, got %d", len(llm.prompts))
	}
	got := mem.Context()
	if !strings.Contains(got, "[Recent conversation]") {
		t.Fatalf("context missing recent block: %q", got)
	}
	if strings.Contains(got, "[Summary of earlier conversation]") {
		t.Fatalf("unexpected summary block: %q", got)
	}

	// The batch survives a reload.
	reloaded := New(1, store, llm, 2, time.Hour)
	reloaded.Load(ctx)
	if !strings.Contains(reloaded.Context(), "I have a headache") {
		t.Fatal("batch not persisted across reload")
	}
}

func TestAddMessageCollapsesAtThreshold(t *testing.T) {
	store, _ := newTestStore(t)
	llm := &fakeCompleter{replies: []string{"Patient reported headaches lasting two days."}}
	mem := New(1, store, llm, 2, time.Hour)
	ctx := context.Background()

	mem.AddMessage(ctx, "I have a headache", "How long has it lasted?")
	mem.AddMessage(ctx, "Two days", "Consider rest and hydration.")

	if len(llm.prompts) != 1 {
		t.Fatalf("expected one summarize call, got %d", len(llm.prompts))
	}
	if mem.Summary() != "Patient reported headaches lasting two days." {
		t.Fatalf("unexpected summary: %q", mem.Summary())
	}

	got := mem.Context()
	if !strings.Contains(got, "[Summary of earlier conversation]") {
		t.Fatalf("context missing summary block: %q", got)
	}
	if strings.Contains(got, "[Recent conversation]") {
		t.Fatalf("recent block should be empty after collapse: %q", got)
	}

	batch, err := store.LoadBatch(ctx, 1)
	if err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected cleared batch, got %d messages", len(batch))
	}
}

func TestCollapseMergesWithExistingSummary(t *testing.T) {
	store, _ := newTestStore(t)
	llm := &fakeCompleter{replies: []string{
		"First summary.",
		"Second summary.",
		"Merged summary of both discussions.",
	}}
	mem := New(1, store, llm, 1, time.Hour)
	ctx := context.Background()

	mem.AddMessage(ctx, "I have a headache", "How long?")
	mem.AddMessage(ctx, "What about my blood pressure?", "It looks normal.")

	if len(llm.prompts) != 3 {
		t.Fatalf("expected summarize, summarize, merge calls, got %d", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[2], "First summary.") || !strings.Contains(llm.prompts[2], "Second summary.") {
		t.Fatalf("merge prompt missing inputs: %q", llm.prompts[2])
	}
	if mem.Summary() != "Merged summary of both discussions." {
		t.Fatalf("unexpected merged summary: %q", mem.Summary())
	}
}

func TestCollapseFallbacksOnModelFailure(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.SaveSummary(context.Background(), 1, "Earlier summary."); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	llm := &fakeCompleter{err: errors.New("provider down")}
	mem := New(1, store, llm, 1, time.Hour)
	ctx := context.Background()
	mem.Load(ctx)

	mem.AddMessage(ctx, "I have a headache", "How long?")

	want := "Earlier summary. Discussed 2 messages"
	if mem.Summary() != want {
		t.Fatalf("got %q, want %q", mem.Summary(), want)
	}
}

func TestLoadExpiresStaleSummary(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	if err := store.SaveSummary(ctx, 1, "Stale summary."); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	past := time.Now().Add(-10 * time.Minute)
	if _, err := db.Exec("UPDATE user_summaries SET updated_at = ? WHERE user_id = 1", past); err != nil {
		t.Fatalf("backdate summary: %v", err)
	}
	if err := store.SaveBatch(ctx, 1, nil); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	mem := New(1, store, &fakeCompleter{}, 2, 2*time.Minute)
	mem.Load(ctx)

	if mem.Summary() != "" {
		t.Fatalf("expected expired summary dropped, got %q", mem.Summary())
	}
	_, _, found, err := store.LoadSummary(ctx, 1)
	if err != nil {
		t.Fatalf("load summary: %v", err)
	}
	if found {
		t.Fatal("expected expired summary row deleted")
	}
}

func TestLoadTreatsMissingTimestampAsExpired(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	if _, err := db.Exec(
		"INSERT INTO user_summaries (user_id, summary, updated_at) VALUES (1, 'No timestamp.', NULL)",
	); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	mem := New(1, store, &fakeCompleter{}, 2, time.Hour)
	mem.Load(ctx)

	if mem.Summary() != "" {
		t.Fatalf("expected summary dropped, got %q", mem.Summary())
	}
}

func TestLoadKeepsFreshSummaryAndBatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	if err := store.SaveSummary(ctx, 1, "Fresh summary."); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	seed := New(1, store, &fakeCompleter{}, 3, time.Hour)
	seed.AddMessage(ctx, "hello", "hi")

	mem := New(1, store, &fakeCompleter{}, 3, time.Hour)
	mem.Load(ctx)

	if mem.Summary() != "Fresh summary." {
		t.Fatalf("expected fresh summary kept, got %q", mem.Summary())
	}
	got := mem.Context()
	if !strings.Contains(got, "User: hello") || !strings.Contains(got, "Assistant: hi") {
		t.Fatalf("context missing recent turns: %q", got)
	}
}

func TestLoadDiscardsCorruptBatch(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	if _, err := db.Exec(
		"INSERT INTO user_batches (user_id, recent_messages, updated_at) VALUES (1, 'not json', ?)", time.Now(),
	); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	mem := New(1, store, &fakeCompleter{}, 2, time.Hour)
	mem.Load(ctx)

	if mem.Context() != "" {
		t.Fatalf("expected empty context, got %q", mem.Context())
	}
}
