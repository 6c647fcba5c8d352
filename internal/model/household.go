package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is a member's role inside a household.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleOwner || r == RoleMember }

// Household is a named group sharing lists and expenses.
type Household struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Membership joins a user to a household.
type Membership struct {
	ID          uuid.UUID
	HouseholdID uuid.UUID
	UserID      uuid.UUID
	Role        Role
	CreatedAt   time.Time
}

// MemberView is a member row enriched with user data.
type MemberView struct {
	UserID      uuid.UUID `json:"userId"`
	Email       *string   `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        Role      `json:"role"`
}

// MyHousehold is one entry of the caller's household switcher.
type MyHousehold struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Role      Role      `json:"role"`
	IsPrimary bool      `json:"isPrimary"`
}

// InvitationStatus is the invitation state. Only pending has outgoing transitions.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation targets either an email or a phone lookup hash.
type Invitation struct {
	ID                uuid.UUID
	HouseholdID       uuid.UUID
	Email             *string
	PhoneLookupHash   *string
	InvitedIdentifier string
	TokenHash         string
	Status            InvitationStatus
	InvitedByID       *uuid.UUID
	AcceptedByID      *uuid.UUID
	ExpiresAt         *time.Time
	AcceptedAt        *time.Time
	CreatedAt         time.Time
}

// ExpiredAt reports whether the invitation has an expiry that is not after now.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}

// InvitationView is what owners see when listing invitations.
type InvitationView struct {
	ID                uuid.UUID        `json:"id"`
	InvitedIdentifier string           `json:"invitedIdentifier"`
	Email             *string          `json:"email"`
	Method            string           `json:"method"`
	Status            InvitationStatus `json:"status"`
	InvitedByID       *uuid.UUID       `json:"invitedById"`
	AcceptedByID      *uuid.UUID       `json:"acceptedById"`
	ExpiresAt         *time.Time       `json:"expiresAt"`
	AcceptedAt        *time.Time       `json:"acceptedAt"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// CreatedInvitation is returned once to the inviter. Token is never stored.
type CreatedInvitation struct {
	InvitationID uuid.UUID `json:"invitationId"`
	Token        string    `json:"token"`
	Email        *string   `json:"email"`
	Phone        *string   `json:"phone"`
	Method       string    `json:"method"`
}

// InviteSearch describes whether an identifier can be invited.
type InviteSearch struct {
	Exists          bool    `json:"exists"`
	IsAlreadyMember bool    `json:"isAlreadyMember"`
	CanInvite       bool    `json:"canInvite"`
	DisplayName     *string `json:"displayName"`
	Method          string  `json:"method"`
}
