package db

import (
	"time"
)

// Identity is the account record. Email is the external login key, stored
// lowercase and trimmed; the storage layer enforces its uniqueness.
type Identity struct {
	ID          string `json:"id" db:"id"`
	Email       string `json:"email" db:"email"`
	DisplayName string `json:"display_name" db:"display_name"`
	// PasswordHash is empty for accounts created purely via OAuth until
	// they set a password. Never serialized outward.
	PasswordHash string `json:"-" db:"password_hash"`
	// ExternalID is the OAuth subject id when the account is linked to a
	// provider. At most one Identity may hold a given ExternalID.
	ExternalID  string    `json:"-" db:"external_id"`
	AvatarURL   string    `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastLoginAt time.Time `json:"last_login_at" db:"last_login_at"`
}

// RegistrationPolicy is the singleton record gating self-service signup.
// No record at all means registration is open; creating the first account
// flips Enabled to false.
type RegistrationPolicy struct {
	Enabled   bool      `json:"registration_enabled" db:"enabled"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
