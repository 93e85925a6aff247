package models

import "time"

// User is an account identified by (name, dob) and protected by a 4-digit
// PIN. Three failed PIN attempts lock the account.
type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	DOB            string    `json:"dob"`
	PinHash        string    `json:"-"`
	FailedAttempts int       `json:"-"`
	IsLocked       bool      `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
