package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medassist/internal/models"
)

// TurnStore is the append-only log of request/response cycles.
type TurnStore struct {
	db *sql.DB
}

func NewTurnStore(db *sql.DB) *TurnStore {
	return &TurnStore{db: db}
}

// Save appends a turn. The turn ID is the request's idempotency token,
// so replaying a request is a no-op.
func (s *TurnStore) Save(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, user_id, session_id, message, response, intent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		turn.ID, turn.UserID, turn.SessionID, turn.Message, turn.Response, turn.Intent, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// Get returns a turn by ID, or nil when none exists.
func (s *TurnStore) Get(ctx context.Context, id string) (*models.ConversationTurn, error) {
	var t models.ConversationTurn
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_id, message, response, intent, created_at
		FROM chat_messages WHERE id = ?`, id,
	).Scan(&t.ID, &t.UserID, &t.SessionID, &t.Message, &t.Response, &t.Intent, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load turn: %w", err)
	}
	return &t, nil
}

// History returns the most recent turns for a user, oldest first.
func (s *TurnStore) History(ctx context.Context, userID int64, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, message, response, intent, created_at
		FROM chat_messages WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.ID, &t.UserID, &t.SessionID, &t.Message, &t.Response, &t.Intent, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// LastIntent returns the intent recorded on the user's most recent
// turn, or "" when the log is empty.
func (s *TurnStore) LastIntent(ctx context.Context, userID int64) (string, error) {
	var intent string
	err := s.db.QueryRowContext(ctx,
		"SELECT intent FROM chat_messages WHERE user_id = ? ORDER BY created_at DESC LIMIT 1",
		userID,
	).Scan(&intent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load last intent: %w", err)
	}
	return intent, nil
}

// Count reports the total number of turns for a user.
func (s *TurnStore) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chat_messages WHERE user_id = ?", userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}
