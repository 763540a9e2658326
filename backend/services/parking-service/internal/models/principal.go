package models

import "time"

// Principal is the identity owning sessions and receipts. Anonymous principals have no e-mail.
type Principal struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Anonymous    bool      `db:"anonymous" json:"anonymous"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
