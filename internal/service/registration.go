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

// RegistrationService orchestrates the registration ceremony: creation
// options out, verified attestation in, new credential committed.
type RegistrationService struct {
	store  storage.Store
	issuer *ChallengeIssuer
	rp     domain.RelyingParty
	ttl    time.Duration
	logger *zap.Logger
}

// NewRegistrationService creates a new RegistrationService
func NewRegistrationService(store storage.Store, issuer *ChallengeIssuer, rp domain.RelyingParty, ttl time.Duration, logger *zap.Logger) *RegistrationService {
	return &RegistrationService{
		store:  store,
		issuer: issuer,
		rp:     rp,
		ttl:    ttl,
		logger: logger.Named("registration"),
	}
}

// BeginRegistrationResult carries the creation options plus the issued
// challenge value, which the transport echoes in a response header so a
// stateless client can correlate the verification call.
type BeginRegistrationResult struct {
	ChallengeValue string          `json:"-"`
	PublicKey      CreationOptions `json:"publicKey"`
}

// BeginRegistration builds creation options for a new credential of an
// existing user. Credentials the user already registered go on the
// exclude list so the same authenticator cannot be enrolled twice.
func (s *RegistrationService) BeginRegistration(ctx context.Context, userID domain.UserID) (*BeginRegistrationResult, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	existing, err := s.store.Credentials().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	challenge, err := s.issuer.Issue(ctx, domain.PurposeRegistration, &userID)
	if err != nil {
		return nil, err
	}
	rawChallenge, err := challenge.RawValue()
	if err != nil {
		return nil, fmt.Errorf("failed to decode issued challenge: %w", err)
	}

	s.logger.Info("Started registration ceremony",
		zap.String("user_id", userID.String()),
		zap.Int("excluded_credentials", len(existing)),
	)

	return &BeginRegistrationResult{
		ChallengeValue: challenge.Value,
		PublicKey: CreationOptions{
			RP: PublicKeyCredentialRpEntity{
				ID:   s.rp.ID,
				Name: s.rp.Name,
			},
			User: PublicKeyCredentialUserEntity{
				ID:          user.UUID.AsUserHandle(),
				Name:        user.Name(),
				DisplayName: user.DisplayNameOrName(),
			},
			Challenge:          rawChallenge,
			PubKeyCredParams:   algorithmPreferences(),
			Timeout:            s.ttl.Milliseconds(),
			ExcludeCredentials: descriptorsFor(existing),
			AuthenticatorSelection: AuthenticatorSelectionCriteria{
				ResidentKey:      string(protocol.ResidentKeyRequirementPreferred),
				UserVerification: string(protocol.VerificationPreferred),
			},
			Attestation: string(protocol.PreferNoAttestation),
		},
	}, nil
}

// FinishRegistration verifies the client's attestation response against
// the claimed challenge and commits the new credential. The credential
// store stays untouched on every failure path.
func (s *RegistrationService) FinishRegistration(ctx context.Context, userID domain.UserID, expectedChallenge string, response json.RawMessage) (*domain.Credential, error) {
	// Malformed payloads are rejected before any ceremony state changes.
	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	challenge, err := s.issuer.Consume(ctx, expectedChallenge)
	if err != nil {
		return nil, err
	}
	if challenge.Purpose != domain.PurposeRegistration {
		return nil, ErrChallengeMismatch
	}
	if !challenge.BoundTo(userID) {
		return nil, ErrUserMismatch
	}
	rawChallenge, err := challenge.RawValue()
	if err != nil {
		return nil, fmt.Errorf("failed to decode issued challenge: %w", err)
	}

	attestation, err := verify.Registration(parsed, rawChallenge, s.rp)
	if err != nil {
		s.logger.Warn("Registration verification failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	credential := &domain.Credential{
		CredentialID:    attestation.CredentialID,
		OwnerUserID:     userID,
		PublicKey:       attestation.PublicKey,
		Algorithm:       attestation.Algorithm,
		AttestationType: attestation.AttestationType,
		Transports:      attestation.Transports,
		SignCount:       attestation.SignCount,
		UserPresent:     attestation.UserPresent,
		UserVerified:    attestation.UserVerified,
		BackupEligible:  attestation.BackupEligible,
		BackupState:     attestation.BackupState,
		AAGUID:          attestation.AAGUID,
		CreatedAt:       time.Now(),
	}

	if err := s.store.Credentials().Insert(ctx, credential); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// A credential ID registered to any account, not just this
			// one, is rejected rather than overwritten.
			return nil, ErrCredentialConflict
		}
		return nil, fmt.Errorf("failed to insert credential: %w", err)
	}

	s.logger.Info("Registered credential",
		zap.String("user_id", userID.String()),
		zap.String("credential_id", credential.EncodedID()),
		zap.Uint32("sign_count", credential.SignCount),
	)
	return credential, nil
}
