package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"go.uber.org/zap"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/storage"
	"github.com/lumewell/passkey-backend/internal/verify"
)

// AuthenticationService orchestrates the authentication ceremony:
// assertion request options out, verified assertion in, counter advanced.
type AuthenticationService struct {
	store  storage.Store
	issuer *ChallengeIssuer
	rp     domain.RelyingParty
	ttl    time.Duration
	logger *zap.Logger
}

// NewAuthenticationService creates a new AuthenticationService
func NewAuthenticationService(store storage.Store, issuer *ChallengeIssuer, rp domain.RelyingParty, ttl time.Duration, logger *zap.Logger) *AuthenticationService {
	return &AuthenticationService{
		store:  store,
		issuer: issuer,
		rp:     rp,
		ttl:    ttl,
		logger: logger.Named("authentication"),
	}
}

// BeginAuthenticationResult carries the request options plus the issued
// challenge value for the correlation header.
type BeginAuthenticationResult struct {
	ChallengeValue string         `json:"-"`
	PublicKey      RequestOptions `json:"publicKey"`
}

// BeginAuthentication builds an assertion request. With a user ID the
// allow list is that user's credentials; without one the list stays empty
// and the authenticator is expected to surface a discoverable credential.
func (s *AuthenticationService) BeginAuthentication(ctx context.Context, userID *domain.UserID) (*BeginAuthenticationResult, error) {
	allow := make([]*domain.Credential, 0)
	if userID != nil {
		if _, err := s.store.Users().GetByID(ctx, *userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		creds, err := s.store.Credentials().ListByUser(ctx, *userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list credentials: %w", err)
		}
		allow = creds
	}

	challenge, err := s.issuer.Issue(ctx, domain.PurposeAuthentication, userID)
	if err != nil {
		return nil, err
	}
	rawChallenge, err := challenge.RawValue()
	if err != nil {
		return nil, fmt.Errorf("failed to decode issued challenge: %w", err)
	}

	s.logger.Info("Started authentication ceremony",
		zap.Bool("discoverable", userID == nil),
		zap.Int("allowed_credentials", len(allow)),
	)

	return &BeginAuthenticationResult{
		ChallengeValue: challenge.Value,
		PublicKey: RequestOptions{
			RPID:             s.rp.ID,
			Challenge:        rawChallenge,
			Timeout:          s.ttl.Milliseconds(),
			AllowCredentials: descriptorsFor(allow),
			UserVerification: string(protocol.VerificationPreferred),
		},
	}, nil
}

// AuthenticationResult identifies the authenticated user for the session
// layer, along with the credential that proved possession.
type AuthenticationResult struct {
	UserID     domain.UserID
	Credential *domain.Credential
}

// FinishAuthentication verifies the signed assertion, enforces counter
// monotonicity, and returns the owning user. claimedUserID is the
// optional user the caller believes is signing in; it must match the
// credential owner when given.
func (s *AuthenticationService) FinishAuthentication(ctx context.Context, claimedUserID *domain.UserID, expectedChallenge string, response json.RawMessage) (*AuthenticationResult, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	challenge, err := s.issuer.Consume(ctx, expectedChallenge)
	if err != nil {
		return nil, err
	}
	if challenge.Purpose != domain.PurposeAuthentication {
		return nil, ErrChallengeMismatch
	}
	rawChallenge, err := challenge.RawValue()
	if err != nil {
		return nil, fmt.Errorf("failed to decode issued challenge: %w", err)
	}

	credential, err := s.store.Credentials().GetByID(ctx, parsed.RawID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	// A client offered an allow list for one user cannot authenticate as
	// another, and a caller-claimed identity must hold as well.
	if challenge.Subject != nil && *challenge.Subject != credential.OwnerUserID {
		return nil, ErrUserMismatch
	}
	if claimedUserID != nil && *claimedUserID != credential.OwnerUserID {
		return nil, ErrUserMismatch
	}

	assertion, err := verify.Authentication(parsed, rawChallenge, s.rp, credential.PublicKey)
	if err != nil {
		s.logger.Warn("Authentication verification failed",
			zap.String("credential_id", credential.EncodedID()),
			zap.Error(err),
		)
		return nil, err
	}

	if len(assertion.UserHandle) > 0 &&
		domain.UserIDFromUserHandle(assertion.UserHandle) != credential.OwnerUserID {
		return nil, ErrUserMismatch
	}

	if !credential.CounterPermits(assertion.SignCount) {
		s.logger.Warn("Signature counter regressed, possible cloned authenticator",
			zap.String("credential_id", credential.EncodedID()),
			zap.String("owner_user_id", credential.OwnerUserID.String()),
			zap.Uint32("stored_count", credential.SignCount),
			zap.Uint32("reported_count", assertion.SignCount),
		)
		return nil, ErrRegressedCounter
	}

	now := time.Now()
	if err := s.store.Credentials().UpdateSignCount(ctx, credential.CredentialID, assertion.SignCount, now); err != nil {
		// The compare-and-swap can still lose to a concurrent
		// authentication that advanced the counter first.
		if errors.Is(err, storage.ErrRegressedCounter) {
			return nil, ErrRegressedCounter
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to update sign count: %w", err)
	}
	credential.SignCount = assertion.SignCount
	credential.LastUsedAt = &now

	s.logger.Info("Authenticated user",
		zap.String("user_id", credential.OwnerUserID.String()),
		zap.String("credential_id", credential.EncodedID()),
		zap.Uint32("sign_count", assertion.SignCount),
	)

	return &AuthenticationResult{
		UserID:     credential.OwnerUserID,
		Credential: credential,
	}, nil
}
