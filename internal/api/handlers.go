package api

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/service"
	"github.com/lumewell/passkey-backend/internal/storage"
	"github.com/lumewell/passkey-backend/pkg/middleware"
)

// ChallengeHeader carries the issued challenge value alongside ceremony
// options so a stateless transport can correlate the verification call.
const ChallengeHeader = "X-Ceremony-Challenge"

// Handlers aggregates all HTTP handlers
type Handlers struct {
	services *service.Services
	store    storage.Store
	logger   *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services *service.Services, store storage.Store, logger *zap.Logger) *Handlers {
	return &Handlers{
		services: services,
		store:    store,
		logger:   logger.Named("handlers"),
	}
}

// RegisterRoutes adds all routes to the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.GET("/status", h.Status)
	router.POST("/users", h.CreateUser)

	ceremonies := router.Group("/ceremonies")
	{
		ceremonies.GET("/registration/options", h.RegistrationOptions)
		ceremonies.POST("/registration/verify", h.RegistrationVerify)
		ceremonies.GET("/authentication/options", h.AuthenticationOptions)
		ceremonies.POST("/authentication/verify", h.AuthenticationVerify)
	}

	authed := router.Group("/credentials", middleware.SessionAuth(h.services.Sessions, h.logger))
	{
		authed.GET("", h.ListCredentials)
		authed.DELETE("/:credentialId", h.RemoveCredential)
	}
}

// Status handles the /status endpoint
func (h *Handlers) Status(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(503, gin.H{"status": "degraded", "service": "passkey-backend"})
		return
	}
	c.JSON(200, gin.H{"status": "ok", "service": "passkey-backend"})
}

// CreateUserRequest provisions an account ahead of registration
type CreateUserRequest struct {
	Username    *string `json:"username,omitempty"`
	DisplayName string  `json:"displayName" binding:"required"`
}

// CreateUser handles account bootstrap
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.services.Users.Create(c.Request.Context(), req.Username, &req.DisplayName)
	if err != nil {
		h.logger.Error("Failed to create user", zap.Error(err))
		c.JSON(500, gin.H{"code": "Internal", "error": "Failed to create user"})
		return
	}

	c.JSON(201, gin.H{"userId": user.UUID.String()})
}

// RegistrationOptions handles GET /ceremonies/registration/options
func (h *Handlers) RegistrationOptions(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		badRequest(c, "userId is required")
		return
	}

	result, err := h.services.Registration.BeginRegistration(c.Request.Context(), domain.UserIDFromString(userID))
	if err != nil {
		h.ceremonyError(c, err)
		return
	}

	c.Header(ChallengeHeader, result.ChallengeValue)
	c.JSON(200, result)
}

// RegistrationVerifyRequest carries the client's attestation response
type RegistrationVerifyRequest struct {
	UserID              string          `json:"userId" binding:"required"`
	ExpectedChallenge   string          `json:"expectedChallenge" binding:"required"`
	AttestationResponse json.RawMessage `json:"attestationResponse" binding:"required"`
}

// RegistrationVerify handles POST /ceremonies/registration/verify
func (h *Handlers) RegistrationVerify(c *gin.Context) {
	var req RegistrationVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !validBase64URL(req.ExpectedChallenge) {
		badRequest(c, "expectedChallenge is not valid base64url")
		return
	}

	credential, err := h.services.Registration.FinishRegistration(
		c.Request.Context(),
		domain.UserIDFromString(req.UserID),
		req.ExpectedChallenge,
		req.AttestationResponse,
	)
	if err != nil {
		h.ceremonyError(c, err)
		return
	}

	c.JSON(201, gin.H{
		"id":         credential.EncodedID(),
		"transports": credential.Transports,
	})
}

// AuthenticationOptions handles GET /ceremonies/authentication/options.
// userId is optional: without it the ceremony relies on a discoverable
// credential.
func (h *Handlers) AuthenticationOptions(c *gin.Context) {
	var userID *domain.UserID
	if q := c.Query("userId"); q != "" {
		id := domain.UserIDFromString(q)
		userID = &id
	}

	result, err := h.services.Authentication.BeginAuthentication(c.Request.Context(), userID)
	if err != nil {
		h.ceremonyError(c, err)
		return
	}

	c.Header(ChallengeHeader, result.ChallengeValue)
	c.JSON(200, result)
}

// AuthenticationVerifyRequest carries the client's signed assertion
type AuthenticationVerifyRequest struct {
	UserID            string          `json:"userId,omitempty"`
	ExpectedChallenge string          `json:"expectedChallenge" binding:"required"`
	AssertionResponse json.RawMessage `json:"assertionResponse" binding:"required"`
}

// AuthenticationVerify handles POST /ceremonies/authentication/verify
func (h *Handlers) AuthenticationVerify(c *gin.Context) {
	var req AuthenticationVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !validBase64URL(req.ExpectedChallenge) {
		badRequest(c, "expectedChallenge is not valid base64url")
		return
	}

	var claimed *domain.UserID
	if req.UserID != "" {
		id := domain.UserIDFromString(req.UserID)
		claimed = &id
	}

	result, err := h.services.Authentication.FinishAuthentication(
		c.Request.Context(),
		claimed,
		req.ExpectedChallenge,
		req.AssertionResponse,
	)
	if err != nil {
		h.ceremonyError(c, err)
		return
	}

	token, err := h.services.Sessions.Establish(result.UserID)
	if err != nil {
		h.logger.Error("Failed to establish session", zap.Error(err))
		c.JSON(500, gin.H{"code": "Internal", "error": "Failed to establish session"})
		return
	}

	c.JSON(200, gin.H{
		"userId":       result.UserID.String(),
		"sessionToken": token,
	})
}

// ListCredentials handles GET /credentials for the authenticated user
func (h *Handlers) ListCredentials(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(domain.UserID)

	creds, err := h.services.Users.ListCredentials(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list credentials", zap.Error(err))
		c.JSON(500, gin.H{"code": "Internal", "error": "Failed to list credentials"})
		return
	}

	out := make([]gin.H, 0, len(creds))
	for _, cred := range creds {
		entry := gin.H{
			"id":         cred.EncodedID(),
			"transports": cred.Transports,
			"createdAt":  cred.CreatedAt,
		}
		if cred.LastUsedAt != nil {
			entry["lastUsedAt"] = cred.LastUsedAt
		}
		out = append(out, entry)
	}
	c.JSON(200, gin.H{"credentials": out})
}

// RemoveCredential handles DELETE /credentials/:credentialId
func (h *Handlers) RemoveCredential(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(domain.UserID)

	credentialID, err := base64.RawURLEncoding.DecodeString(c.Param("credentialId"))
	if err != nil {
		badRequest(c, "credentialId is not valid base64url")
		return
	}

	if err := h.services.Users.RemoveCredential(c.Request.Context(), userID, credentialID); err != nil {
		h.ceremonyError(c, err)
		return
	}
	c.Status(204)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(400, gin.H{"code": "BadRequest", "error": msg})
}

// validBase64URL rejects malformed challenge encodings before any
// ceremony logic runs.
func validBase64URL(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}
