package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/storage"
)

// ChallengeIssuer produces single-use ceremony challenges and claims them
// back at verification time. All pending-challenge state lives in the
// challenge store, so in a multi-instance deployment any instance can
// finish a ceremony another instance began.
type ChallengeIssuer struct {
	store  storage.ChallengeStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewChallengeIssuer creates a new ChallengeIssuer
func NewChallengeIssuer(store storage.ChallengeStore, ttl time.Duration, logger *zap.Logger) *ChallengeIssuer {
	return &ChallengeIssuer{
		store:  store,
		ttl:    ttl,
		logger: logger.Named("challenge-issuer"),
	}
}

// Issue generates a fresh random challenge for the given purpose,
// optionally bound to a subject user, and persists it as pending.
func (i *ChallengeIssuer) Issue(ctx context.Context, purpose domain.ChallengePurpose, subject *domain.UserID) (*domain.Challenge, error) {
	challenge, err := domain.NewChallenge(purpose, subject, i.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}

	if err := i.store.Create(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	i.logger.Debug("Issued challenge",
		zap.String("purpose", string(purpose)),
		zap.Time("expires_at", challenge.ExpiresAt),
	)
	return challenge, nil
}

// Consume atomically claims the challenge with the given value. At most
// one call per value ever succeeds; a ceremony whose challenge cannot be
// claimed fails as a whole.
func (i *ChallengeIssuer) Consume(ctx context.Context, value string) (*domain.Challenge, error) {
	challenge, err := i.store.Consume(ctx, value)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrChallengeNotFound
		case errors.Is(err, storage.ErrAlreadyConsumed):
			return nil, ErrChallengeAlreadyConsumed
		case errors.Is(err, storage.ErrExpired):
			return nil, ErrChallengeExpired
		}
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	return challenge, nil
}
