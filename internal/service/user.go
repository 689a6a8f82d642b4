package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/storage"
)

// UserService manages the accounts credentials attach to and the
// user-facing credential lifecycle outside of ceremonies.
type UserService struct {
	store  storage.Store
	logger *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(store storage.Store, logger *zap.Logger) *UserService {
	return &UserService{
		store:  store,
		logger: logger.Named("user"),
	}
}

// Create provisions a new account ahead of its first registration
// ceremony.
func (s *UserService) Create(ctx context.Context, username, displayName *string) (*domain.User, error) {
	user := &domain.User{
		UUID:        domain.NewUserID(),
		Username:    username,
		DisplayName: displayName,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("Created user", zap.String("user_id", user.UUID.String()))
	return user, nil
}

// Get returns a user by ID
func (s *UserService) Get(ctx context.Context, id domain.UserID) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Delete removes a user and cascades to their credentials
func (s *UserService) Delete(ctx context.Context, id domain.UserID) error {
	if err := s.store.Users().Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := s.store.Credentials().DeleteByUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user credentials: %w", err)
	}

	s.logger.Info("Deleted user and credentials", zap.String("user_id", id.String()))
	return nil
}

// ListCredentials returns the credentials owned by a user
func (s *UserService) ListCredentials(ctx context.Context, id domain.UserID) ([]*domain.Credential, error) {
	creds, err := s.store.Credentials().ListByUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// RemoveCredential deletes one of the user's own credentials. Removing a
// credential owned by somebody else is reported as a mismatch, not a
// silent no-op.
func (s *UserService) RemoveCredential(ctx context.Context, userID domain.UserID, credentialID []byte) error {
	cred, err := s.store.Credentials().GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("failed to get credential: %w", err)
	}
	if cred.OwnerUserID != userID {
		return ErrUserMismatch
	}

	if err := s.store.Credentials().Delete(ctx, credentialID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	s.logger.Info("Removed credential",
		zap.String("user_id", userID.String()),
		zap.String("credential_id", cred.EncodedID()),
	)
	return nil
}
