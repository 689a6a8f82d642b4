package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lumewell/passkey-backend/internal/domain"
)

// Common errors
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrAlreadyConsumed  = errors.New("challenge already consumed")
	ErrExpired          = errors.New("challenge expired")
	ErrRegressedCounter = errors.New("signature counter regressed")
)

// UserStore defines the interface for user storage operations
type UserStore interface {
	// Create creates a new user
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)

	// Delete deletes a user. Callers are expected to cascade credential
	// removal via CredentialStore.DeleteByUser.
	Delete(ctx context.Context, id domain.UserID) error
}

// CredentialStore defines the interface for passkey credential storage.
// Credential IDs are exact binary values; implementations must not
// normalize or case-fold them.
type CredentialStore interface {
	// Insert stores a new credential. Returns ErrAlreadyExists when the
	// credential ID is present anywhere in the store, regardless of owner.
	Insert(ctx context.Context, credential *domain.Credential) error

	// GetByID retrieves a credential by its exact binary credential ID
	GetByID(ctx context.Context, credentialID []byte) (*domain.Credential, error)

	// ListByUser retrieves all credentials owned by a user
	ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Credential, error)

	// UpdateSignCount advances the signature counter and last-use time.
	// The update is a compare-and-swap: it returns ErrRegressedCounter
	// without modifying the record when newCount would move the stored
	// counter backwards, and ErrNotFound when the credential is absent.
	UpdateSignCount(ctx context.Context, credentialID []byte, newCount uint32, usedAt time.Time) error

	// Delete removes a single credential
	Delete(ctx context.Context, credentialID []byte) error

	// DeleteByUser removes all credentials owned by a user
	DeleteByUser(ctx context.Context, userID domain.UserID) error
}

// ChallengeStore defines the interface for pending ceremony challenges.
// Records are keyed by the challenge value itself.
type ChallengeStore interface {
	// Create stores a freshly issued challenge
	Create(ctx context.Context, challenge *domain.Challenge) error

	// Consume atomically claims a pending challenge. At most one call per
	// value ever succeeds. Failures are classified: ErrNotFound for an
	// unknown value, ErrAlreadyConsumed for a value claimed before, and
	// ErrExpired for a value past its validity window. Expired and
	// consumed records stay behind as tombstones until DeleteExpired.
	Consume(ctx context.Context, value string) (*domain.Challenge, error)

	// DeleteExpired evicts challenges (pending or tombstoned) whose
	// expiry has passed
	DeleteExpired(ctx context.Context) error
}

// Store aggregates all storage interfaces
type Store interface {
	Users() UserStore
	Credentials() CredentialStore
	Challenges() ChallengeStore

	// Close closes the storage connection
	Close() error

	// Ping checks if the storage is alive
	Ping(ctx context.Context) error
}
