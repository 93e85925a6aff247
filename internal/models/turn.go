package models

import "time"

// ConversationTurn is one request/response cycle in the append-only chat
// log. The ID doubles as the request's idempotency token, so re-inserting
// the same turn is a no-op.
type ConversationTurn struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Intent    string    `json:"intent"`
	CreatedAt time.Time `json:"created_at"`
}
