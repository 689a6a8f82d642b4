package service

import (
	"go.uber.org/zap"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/storage"
	"github.com/lumewell/passkey-backend/pkg/config"
)

// Services aggregates all application services
type Services struct {
	Users            *UserService
	Registration     *RegistrationService
	Authentication   *AuthenticationService
	Sessions         *SessionService
	ChallengeCleanup *ChallengeCleanupWorker
}

// NewServices creates a new Services instance. The relying party identity
// is constructed once here and shared read-only by both ceremonies.
func NewServices(store storage.Store, cfg *config.Config, rp domain.RelyingParty, logger *zap.Logger) *Services {
	ttl := cfg.Ceremony.ChallengeTTL()
	issuer := NewChallengeIssuer(store.Challenges(), ttl, logger)

	return &Services{
		Users:            NewUserService(store, logger),
		Registration:     NewRegistrationService(store, issuer, rp, ttl, logger),
		Authentication:   NewAuthenticationService(store, issuer, rp, ttl, logger),
		Sessions:         NewSessionService(cfg.Session, logger),
		ChallengeCleanup: NewChallengeCleanupWorker(cfg.Cleanup, store, logger),
	}
}

// Start starts background workers
func (s *Services) Start() {
	if s.ChallengeCleanup != nil {
		s.ChallengeCleanup.Start()
	}
}

// Stop gracefully stops background workers
func (s *Services) Stop() {
	if s.ChallengeCleanup != nil {
		s.ChallengeCleanup.Stop()
	}
}
