package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/pkg/config"
)

// ErrInvalidSessionToken is returned for tokens that fail validation for
// any reason.
var ErrInvalidSessionToken = errors.New("invalid session token")

// SessionService is the session layer the ceremonies notify after a
// verified authentication. The default implementation mints signed HS256
// tokens; deployments embedding this service behind their own session
// infrastructure can ignore the token and use the returned user ID.
type SessionService struct {
	cfg    config.SessionConfig
	logger *zap.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(cfg config.SessionConfig, logger *zap.Logger) *SessionService {
	return &SessionService{
		cfg:    cfg,
		logger: logger.Named("session"),
	}
}

// Establish mints a session token for a user that just completed a
// verified ceremony.
func (s *SessionService) Establish(userID domain.UserID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(s.cfg.ExpiryHours) * time.Hour).Unix(),
		"iss": s.cfg.Issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses a session token and returns the user it was issued to.
func (s *SessionService) Validate(tokenString string) (domain.UserID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return domain.UserID{}, ErrInvalidSessionToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return domain.UserID{}, ErrInvalidSessionToken
	}
	return domain.UserIDFromString(sub), nil
}
