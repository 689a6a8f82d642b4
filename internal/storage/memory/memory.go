package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/storage"
)

// Store implements an in-memory storage. It is suitable for tests and for
// single-instance deployments; challenge state does not survive restarts
// and is not shared between instances.
type Store struct {
	users       *UserStore
	credentials *CredentialStore
	challenges  *ChallengeStore
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		users:       &UserStore{data: make(map[string]*domain.User)},
		credentials: &CredentialStore{data: make(map[string]*domain.Credential)},
		challenges:  &ChallengeStore{data: make(map[string]*domain.Challenge)},
	}
}

func (s *Store) Users() storage.UserStore             { return s.users }
func (s *Store) Credentials() storage.CredentialStore { return s.credentials }
func (s *Store) Challenges() storage.ChallengeStore   { return s.challenges }
func (s *Store) Close() error                         { return nil }
func (s *Store) Ping(ctx context.Context) error       { return nil }

// UserStore implements in-memory user storage
type UserStore struct {
	mu   sync.RWMutex
	data map[string]*domain.User
}

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[user.UUID.String()]; exists {
		return storage.ErrAlreadyExists
	}

	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	s.data[user.UUID.String()] = user
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.data[id.String()]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

func (s *UserStore) Delete(ctx context.Context, id domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id.String()]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, id.String())
	return nil
}

// CredentialStore implements in-memory credential storage. The map is
// keyed by the raw credential ID bytes so lookups are exact binary
// matches.
type CredentialStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Credential
}

func (s *CredentialStore) Insert(ctx context.Context, credential *domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(credential.CredentialID)
	if _, exists := s.data[key]; exists {
		return storage.ErrAlreadyExists
	}

	cp := *credential
	s.data[key] = &cp
	return nil
}

func (s *CredentialStore) GetByID(ctx context.Context, credentialID []byte) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, exists := s.data[string(credentialID)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *cred
	return &cp, nil
}

func (s *CredentialStore) ListByUser(ctx context.Context, userID domain.UserID) ([]*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds := make([]*domain.Credential, 0)
	for _, cred := range s.data {
		if cred.OwnerUserID == userID {
			cp := *cred
			creds = append(creds, &cp)
		}
	}
	return creds, nil
}

func (s *CredentialStore) UpdateSignCount(ctx context.Context, credentialID []byte, newCount uint32, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, exists := s.data[string(credentialID)]
	if !exists {
		return storage.ErrNotFound
	}
	if !cred.CounterPermits(newCount) {
		return storage.ErrRegressedCounter
	}

	cred.SignCount = newCount
	used := usedAt
	cred.LastUsedAt = &used
	return nil
}

func (s *CredentialStore) Delete(ctx context.Context, credentialID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[string(credentialID)]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, string(credentialID))
	return nil
}

func (s *CredentialStore) DeleteByUser(ctx context.Context, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, cred := range s.data {
		if cred.OwnerUserID == userID {
			delete(s.data, key)
		}
	}
	return nil
}

// ChallengeStore implements in-memory challenge storage. Consume performs
// its claim under the write lock, so two concurrent verifications of the
// same challenge cannot both succeed.
type ChallengeStore struct {
	mu   sync.Mutex
	data map[string]*domain.Challenge
}

func (s *ChallengeStore) Create(ctx context.Context, challenge *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[challenge.Value]; exists {
		return storage.ErrAlreadyExists
	}
	cp := *challenge
	s.data[challenge.Value] = &cp
	return nil
}

func (s *ChallengeStore) Consume(ctx context.Context, value string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, exists := s.data[value]
	if !exists {
		return nil, storage.ErrNotFound
	}
	if ch.Consumed {
		return nil, storage.ErrAlreadyConsumed
	}
	if ch.IsExpired() {
		return nil, storage.ErrExpired
	}

	now := time.Now()
	ch.Consumed = true
	ch.ConsumedAt = &now

	cp := *ch
	return &cp, nil
}

func (s *ChallengeStore) DeleteExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, ch := range s.data {
		if ch.IsExpired() {
			delete(s.data, key)
		}
	}
	return nil
}
