package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserID represents a unique user identifier
type UserID struct {
	ID string `json:"id" bson:"id"`
}

// NewUserID creates a new user ID
func NewUserID() UserID {
	return UserID{ID: uuid.New().String()}
}

// UserIDFromString creates a UserID from a string
func UserIDFromString(id string) UserID {
	return UserID{ID: id}
}

// String returns the string representation
func (u UserID) String() string {
	return u.ID
}

// IsZero reports whether the ID is unset
func (u UserID) IsZero() bool {
	return u.ID == ""
}

// AsUserHandle returns the ID as bytes for WebAuthn
func (u UserID) AsUserHandle() []byte {
	return []byte(u.ID)
}

// UserIDFromUserHandle creates a UserID from a WebAuthn user handle
func UserIDFromUserHandle(handle []byte) UserID {
	return UserID{ID: string(handle)}
}

// User is the account a set of passkey credentials belongs to. The wider
// application owns the rest of the profile; this service only needs the
// identity and a display name for the WebAuthn user entity.
type User struct {
	UUID        UserID    `json:"uuid" bson:"_id"`
	Username    *string   `json:"username,omitempty" bson:"username,omitempty"`
	DisplayName *string   `json:"display_name,omitempty" bson:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// Name returns the WebAuthn user name for ceremony options
func (u *User) Name() string {
	if u.Username != nil {
		return *u.Username
	}
	return u.UUID.String()
}

// DisplayNameOrName returns the display name, falling back to Name
func (u *User) DisplayNameOrName() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Name()
}
