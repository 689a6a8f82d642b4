package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumewell/passkey-backend/internal/service"
	"github.com/lumewell/passkey-backend/internal/verify"
)

// ceremonyError maps a ceremony failure onto a status and a stable code.
// Every failure class keeps its own code so callers and logs can tell a
// replay from a phishing attempt from a cryptographic failure.
func (h *Handlers) ceremonyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		c.JSON(400, gin.H{"code": "BadRequest", "error": "Malformed ceremony payload"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(404, gin.H{"code": "UserNotFound", "error": "User not found"})
	case errors.Is(err, service.ErrChallengeNotFound):
		c.JSON(404, gin.H{"code": "ChallengeNotFound", "error": "Challenge not found"})
	case errors.Is(err, service.ErrChallengeExpired):
		c.JSON(410, gin.H{"code": "ChallengeExpired", "error": "Challenge expired"})
	case errors.Is(err, service.ErrChallengeAlreadyConsumed):
		c.JSON(409, gin.H{"code": "ChallengeAlreadyConsumed", "error": "Challenge already consumed"})
	case errors.Is(err, service.ErrChallengeMismatch), errors.Is(err, verify.ErrChallengeMismatch):
		c.JSON(403, gin.H{"code": "ChallengeMismatch", "error": "Challenge mismatch"})
	case errors.Is(err, verify.ErrOriginMismatch):
		c.JSON(403, gin.H{"code": "OriginMismatch", "error": "Origin mismatch"})
	case errors.Is(err, verify.ErrRPIDMismatch):
		c.JSON(403, gin.H{"code": "RpIdMismatch", "error": "Relying party ID mismatch"})
	case errors.Is(err, verify.ErrAttestationInvalid):
		c.JSON(403, gin.H{"code": "AttestationInvalid", "error": "Attestation invalid"})
	case errors.Is(err, verify.ErrSignatureInvalid):
		c.JSON(403, gin.H{"code": "SignatureInvalid", "error": "Signature invalid"})
	case errors.Is(err, verify.ErrUserNotPresent):
		c.JSON(403, gin.H{"code": "UserPresenceRequired", "error": "User presence required"})
	case errors.Is(err, service.ErrCredentialNotFound):
		c.JSON(404, gin.H{"code": "CredentialNotFound", "error": "Credential not found"})
	case errors.Is(err, service.ErrCredentialConflict):
		c.JSON(409, gin.H{"code": "CredentialConflict", "error": "Credential already registered"})
	case errors.Is(err, service.ErrRegressedCounter):
		c.JSON(403, gin.H{"code": "RegressedCounter", "error": "Signature counter regressed"})
	case errors.Is(err, service.ErrUserMismatch):
		c.JSON(403, gin.H{"code": "UserMismatch", "error": "Credential does not belong to the expected user"})
	default:
		h.logger.Error("Ceremony failed", zap.Error(err))
		c.JSON(500, gin.H{"code": "Internal", "error": "Ceremony failed"})
	}
}
