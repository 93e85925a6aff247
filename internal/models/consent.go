package models

import "time"

// ConsentRecord gates all substantive message handling for a user until
// accepted is true.
type ConsentRecord struct {
	UserID     int64     `json:"user_id"`
	Accepted   bool      `json:"accepted"`
	AcceptedAt time.Time `json:"accepted_at"`
}
