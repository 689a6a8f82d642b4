package domain

import (
	"encoding/base64"
	"time"
)

// Credential is a registered WebAuthn public-key credential. The credential
// ID is client-generated and unique across the entire store, not just per
// user; the public key is a COSE-encoded key tagged with its algorithm.
type Credential struct {
	CredentialID    []byte     `json:"credential_id" bson:"_id"`
	OwnerUserID     UserID     `json:"owner_user_id" bson:"owner_user_id"`
	PublicKey       []byte     `json:"public_key" bson:"public_key"`
	Algorithm       int64      `json:"algorithm" bson:"algorithm"`
	AttestationType string     `json:"attestation_type" bson:"attestation_type"`
	Transports      []string   `json:"transports" bson:"transports"`
	SignCount       uint32     `json:"sign_count" bson:"sign_count"`
	UserPresent     bool       `json:"user_present" bson:"user_present"`
	UserVerified    bool       `json:"user_verified" bson:"user_verified"`
	BackupEligible  bool       `json:"backup_eligible" bson:"backup_eligible"`
	BackupState     bool       `json:"backup_state" bson:"backup_state"`
	AAGUID          []byte     `json:"aaguid" bson:"aaguid"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty" bson:"last_used_at,omitempty"`
}

// EncodedID returns the credential ID as base64url without padding, the
// form it travels in over the wire.
func (c *Credential) EncodedID() string {
	return base64.RawURLEncoding.EncodeToString(c.CredentialID)
}

// CounterPermits reports whether newCount is acceptable given the stored
// signature counter. Counters are non-decreasing; the single exception is
// authenticators that do not implement one, where both sides stay at zero.
// A decrease after a non-zero observation signals a cloned authenticator.
func (c *Credential) CounterPermits(newCount uint32) bool {
	return newCount >= c.SignCount
}
