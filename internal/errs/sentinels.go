// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Error classes. The transport maps each class to one status code.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is authenticated but not allowed to act.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a uniqueness violation or an invalid state transition.
	ErrConflict = errors.New("conflict")

	// ErrBadRequest indicates malformed input that passed shape validation.
	ErrBadRequest = errors.New("bad request")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Error is a specific failure that belongs to one class.
type Error struct {
	Class error
	Msg   string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes the class so errors.Is(err, ErrConflict) holds.
func (e *Error) Unwrap() error { return e.Class }

// New returns a classified error with a fixed message.
func New(class error, msg string) *Error { return &Error{Class: class, Msg: msg} }

// Newf returns a classified error with a formatted message.
func Newf(class error, format string, args ...any) error {
	return &Error{Class: class, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorized causes. All of them are rendered with the same generic message.
var (
	ErrInvalidCredentials = New(ErrUnauthorized, "invalid credentials")
	ErrInvalidToken       = New(ErrUnauthorized, "invalid token")
	ErrTokenReuse         = New(ErrUnauthorized, "refresh token reuse detected")
	ErrSessionRevoked     = New(ErrUnauthorized, "session revoked")
	ErrTokenExpired       = New(ErrUnauthorized, "token expired")
)

// Forbidden causes.
var (
	ErrNotMember   = New(ErrForbidden, "not a member of this household")
	ErrNotOwner    = New(ErrForbidden, "only household owners can do this")
	ErrLastOwner   = New(ErrForbidden, "household must retain an owner")
	ErrNoHousehold = New(ErrForbidden, "user has no household")
)

// Conflict causes.
var (
	ErrDuplicatePendingInvitation = New(ErrConflict, "a pending invitation already exists for this identifier")
	ErrInvitationAlreadyUsed      = New(ErrConflict, "invitation already used")
	ErrInvitationNotPending       = New(ErrConflict, "invitation is not pending")
	ErrInvitationExpired          = New(ErrConflict, "invitation expired")
	ErrEmailTaken                 = New(ErrConflict, "email already registered")
	ErrPhoneTaken                 = New(ErrConflict, "phone already registered")
	ErrAlreadyMember              = New(ErrConflict, "user is already a member")
	ErrSelfRemoval                = New(ErrConflict, "you cannot remove yourself")
)

// BadRequest causes.
var (
	ErrIdentifierRequired   = New(ErrBadRequest, "email or phone is required")
	ErrPhoneAuthUnavailable = New(ErrBadRequest, "phone authentication unavailable")
	ErrInvalidPhone         = New(ErrBadRequest, "invalid phone number")
	ErrNotManualExpense     = New(ErrBadRequest, "only manual expenses can be deleted")
	ErrPayerNotMember       = New(ErrBadRequest, "payer is not a member of this household")
)
