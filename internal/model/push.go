package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// TokenType is the push gateway a device token belongs to.
type TokenType string

const (
	TokenExpo TokenType = "expo"
	TokenFCM  TokenType = "fcm"
)

// PushToken is a device registration.
type PushToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Token      string
	TokenType  TokenType
	DeviceType string // ios | android | web
	DeviceName *string
	CreatedAt  time.Time
}

// ListAction is the kind of list activity announced to a household.
type ListAction string

const (
	ActionItemAdded     ListAction = "list_item_added"
	ActionItemCompleted ListAction = "list_item_completed"
	ActionItemDeleted   ListAction = "list_item_deleted"
)

// ListEvent describes activity on a shared list.
type ListEvent struct {
	Action      ListAction
	HouseholdID uuid.UUID
	ListID      uuid.UUID
	UserID      uuid.UUID
	UserName    string
	ItemName    string
}

// PushMessage is the payload handed to a push provider.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// DeliveryReport summarises one dispatch to a household.
type DeliveryReport struct {
	Recipients     int            `json:"recipients"`
	Tokens         int            `json:"tokens"`
	ExpoTokens     int            `json:"expoTokens"`
	FCMTokens      int            `json:"fcmTokens"`
	Sent           int            `json:"sent"`
	Failed         int            `json:"failed"`
	InvalidRemoved int            `json:"invalidRemoved"`
	FCMConfigured  bool           `json:"fcmConfigured"`
	ErrorCounts    map[string]int `json:"errorCounts,omitempty"`
	Outcome        string         `json:"outcome"` // no_members | no_tokens | sent
}
