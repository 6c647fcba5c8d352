// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/hogar/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepository provides access to accounts and their credentials.
type UserRepository interface {
	// Create inserts a new user. Email or phone collisions return a Conflict.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by normalised email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByPhoneHash loads a user by phone lookup hash.
	GetByPhoneHash(ctx context.Context, hash string) (*model.User, error)
	// EmailTaken reports whether another user (not except) owns the email.
	EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error)
	// PhoneTaken reports whether another user (not except) owns the phone hash.
	PhoneTaken(ctx context.Context, hash string, except uuid.UUID) (bool, error)
	// UpdateProfile writes display name, email and phone columns.
	UpdateProfile(ctx context.Context, u *model.User) error
	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	// SetPrimaryHousehold points the user at a household (nil clears it).
	SetPrimaryHousehold(ctx context.Context, userID uuid.UUID, householdID *uuid.UUID) error
	// ResetPrimaryToEarliest sets the primary household of each listed user whose
	// primary is empty to their earliest remaining membership, or leaves it NULL.
	ResetPrimaryToEarliest(ctx context.Context, userIDs []uuid.UUID) error
}

// SessionRepository persists refresh-token sessions.
type SessionRepository interface {
	// Create inserts a new session.
	Create(ctx context.Context, s *model.Session) error
	// GetByID loads a session by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	// FindByRefreshHash finds the session whose current or previous hash equals hash.
	FindByRefreshHash(ctx context.Context, hash string) (*model.Session, error)
	// Rotate replaces the current hash only if it still equals oldHash and the
	// session is not revoked. A lost race returns errs.ErrConflict.
	Rotate(ctx context.Context, id uuid.UUID, oldHash, newHash string, rotatedAt, expiresAt time.Time) error
	// Revoke marks the session revoked if it is not already.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PushTokenRepository stores device registrations.
type PushTokenRepository interface {
	// Upsert inserts the token or reassigns an existing one to the new owner.
	Upsert(ctx context.Context, t *model.PushToken) (uuid.UUID, error)
	// Delete removes a user's token.
	Delete(ctx context.Context, userID uuid.UUID, token string) error
	// DeleteTokens removes tokens regardless of owner.
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
	// ListForUsers returns tokens registered by any of the users.
	ListForUsers(ctx context.Context, userIDs []uuid.UUID) ([]model.PushToken, error)
}
