package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"medassist/internal/models"
)

// Store persists the running summary and the recent-message batch, one
// row per user for each.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// LoadSummary returns the stored summary and its timestamp. found is
// false when no row exists. A row with a NULL timestamp is reported with
// a zero time.
func (s *Store) LoadSummary(ctx context.Context, userID int64) (summary string, updatedAt time.Time, found bool, err error) {
	var ts sql.NullTime
	err = s.db.QueryRowContext(ctx,
		"SELECT summary, updated_at FROM user_summaries WHERE user_id = ?", userID,
	).Scan(&summary, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("load summary: %w", err)
	}
	if ts.Valid {
		updatedAt = ts.Time
	}
	return summary, updatedAt, true, nil
}

// SaveSummary upserts the summary with a fresh timestamp.
func (s *Store) SaveSummary(ctx context.Context, userID int64, summary string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_summaries (user_id, summary, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		userID, summary, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// DeleteSummary removes the summary row.
func (s *Store) DeleteSummary(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM user_summaries WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}

// LoadBatch returns the recent messages for a user. A missing row or an
// undecodable payload yields an empty batch.
func (s *Store) LoadBatch(ctx context.Context, userID int64) ([]models.Message, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT recent_messages FROM user_batches WHERE user_id = ?", userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}

	var msgs []models.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		log.Printf("discard corrupt batch for user %d: %v", userID, err)
		return nil, nil
	}
	return msgs, nil
}

// SaveBatch upserts the recent messages as JSON.
func (s *Store) SaveBatch(ctx context.Context, userID int64, msgs []models.Message) error {
	if msgs == nil {
		msgs = []models.Message{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_batches (user_id, recent_messages, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET recent_messages = excluded.recent_messages, updated_at = excluded.updated_at`,
		userID, string(raw), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	return nil
}
