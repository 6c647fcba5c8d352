// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects an issued access/refresh pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// Identity is the authenticated caller resolved from a live session.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	SessionID uuid.UUID
}

// User represents an account. Phone numbers are never stored in plaintext.
type User struct {
	ID                 uuid.UUID
	Email              *string // normalised (trimmed, lower-case)
	PhoneEncrypted     *string // v1:<iv>:<tag>:<cipher>
	PhoneLookupHash    *string // HMAC-SHA256 hex of the normalised phone
	DisplayName        string
	PasswordHash       string // bcrypt
	PrimaryHouseholdID *uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UserView is the public projection of a user.
type UserView struct {
	ID          uuid.UUID `json:"id"`
	Email       *string   `json:"email"`
	Phone       *string   `json:"phone"`
	DisplayName string    `json:"displayName"`
}

// Session is one refresh-token chain. Only token hashes are persisted.
type Session struct {
	ID                       uuid.UUID
	UserID                   uuid.UUID
	RefreshTokenHash         string
	PreviousRefreshTokenHash *string
	ExpiresAt                time.Time
	RotatedAt                *time.Time
	RevokedAt                *time.Time
	CreatedAt                time.Time
}

// Revoked reports whether the session has been revoked.
func (s *Session) Revoked() bool { return s.RevokedAt != nil }

// Expired reports whether the refresh window has closed at now.
func (s *Session) Expired(now time.Time) bool { return !s.ExpiresAt.After(now) }
