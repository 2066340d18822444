package domain

import "time"

// User is the domain entity for a user account. Username is immutable after
// registration; PasswordHash must never appear in any outward-facing
// representation of the record.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
