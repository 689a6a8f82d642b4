package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// ChallengePurpose identifies which ceremony a challenge was issued for.
type ChallengePurpose string

const (
	PurposeRegistration   ChallengePurpose = "registration"
	PurposeAuthentication ChallengePurpose = "authentication"
)

// ChallengeByteLength is the amount of entropy in an issued challenge.
const ChallengeByteLength = 32

// Challenge is a single-use random value binding one ceremony round trip.
// It is keyed by its own encoded value. A consumed challenge is retained
// as a tombstone until its expiry passes so that a replayed verification
// can be told apart from a verification against a challenge that never
// existed.
type Challenge struct {
	Value      string           `json:"value" bson:"_id"`
	Purpose    ChallengePurpose `json:"purpose" bson:"purpose"`
	Subject    *UserID          `json:"subject,omitempty" bson:"subject,omitempty"`
	IssuedAt   time.Time        `json:"issued_at" bson:"issued_at"`
	ExpiresAt  time.Time        `json:"expires_at" bson:"expires_at"`
	Consumed   bool             `json:"consumed" bson:"consumed"`
	ConsumedAt *time.Time       `json:"consumed_at,omitempty" bson:"consumed_at,omitempty"`
}

// NewChallenge issues a fresh challenge for the given purpose, optionally
// bound to a subject user. Discoverable authentication passes nil.
func NewChallenge(purpose ChallengePurpose, subject *UserID, ttl time.Duration) (*Challenge, error) {
	raw := make([]byte, ChallengeByteLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Challenge{
		Value:     base64.RawURLEncoding.EncodeToString(raw),
		Purpose:   purpose,
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// RawValue decodes the challenge back to its random bytes.
func (c *Challenge) RawValue() ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(c.Value)
}

// IsExpired checks if the challenge has expired
func (c *Challenge) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// BoundTo reports whether the challenge was issued for the given user.
// An unbound challenge (discoverable flow) matches nobody.
func (c *Challenge) BoundTo(id UserID) bool {
	return c.Subject != nil && *c.Subject == id
}
