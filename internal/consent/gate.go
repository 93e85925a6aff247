package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"medassist/internal/models"
)

// Decision is the outcome of evaluating a message against the consent
// gate.
type Decision int

const (
	// Granted means consent was already on record; the message passes
	// through.
	Granted Decision = iota
	// Prompt means the user has not consented and the message is not an
	// acceptance; respond with the consent prompt.
	Prompt
	// Confirmed means this message accepted the terms; consent was
	// recorded.
	Confirmed
)

// consentKeywords are acceptance words matched case-insensitively
// against whole words, covering English and Hindi. Matching must be
// word-level: "ha" as a substring would fire on "what".
var consentKeywords = map[string]bool{
	"agree": true, "consent": true, "accept": true, "yes": true, "ok": true, "ha": true,
	"सहमत": true, "सहमति": true, "स्वीकार": true, "हाँ": true, "हां": true,
}

// Gate persists and evaluates per-user consent.
type Gate struct {
	db *sql.DB
}

func NewGate(db *sql.DB) *Gate {
	return &Gate{db: db}
}

// Evaluate checks the consent state for a user against an incoming
// message. Until consent is recorded, every message is interpreted only
// as a possible acceptance.
func (g *Gate) Evaluate(ctx context.Context, userID int64, message string) (Decision, error) {
	record, err := g.Lookup(ctx, userID)
	if err != nil {
		return Prompt, err
	}
	if record != nil && record.Accepted {
		return Granted, nil
	}

	if !isAcceptance(message) {
		return Prompt, nil
	}

	if err := g.record(ctx, userID); err != nil {
		return Prompt, err
	}
	return Confirmed, nil
}

// Lookup returns the stored consent record, or nil if none exists.
func (g *Gate) Lookup(ctx context.Context, userID int64) (*models.ConsentRecord, error) {
	var (
		rec        models.ConsentRecord
		acceptedAt sql.NullTime
	)
	err := g.db.QueryRowContext(ctx,
		"SELECT user_id, accepted, accepted_at FROM consents WHERE user_id = ?", userID,
	).Scan(&rec.UserID, &rec.Accepted, &acceptedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up consent: %w", err)
	}
	if acceptedAt.Valid {
		rec.AcceptedAt = acceptedAt.Time
	}
	return &rec, nil
}

func (g *Gate) record(ctx context.Context, userID int64) error {
	now := time.Now()
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO consents (user_id, accepted, accepted_at) VALUES (?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET accepted = 1, accepted_at = excluded.accepted_at`,
		userID, now,
	)
	if err != nil {
		return fmt.Errorf("record consent: %w", err)
	}
	return nil
}

func isAcceptance(message string) bool {
	for _, word := range strings.Fields(strings.ToLower(message)) {
		word = strings.Trim(word, ".,!?\"'")
		if consentKeywords[word] {
			return true
		}
	}
	return false
}
