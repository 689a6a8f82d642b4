package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumewell/passkey-backend/internal/domain"
	"github.com/lumewell/passkey-backend/internal/service"
	"github.com/lumewell/passkey-backend/internal/storage/memory"
	"github.com/lumewell/passkey-backend/pkg/config"
)

type apiFixture struct {
	router *gin.Engine
	store  *memory.Store
	vrp    virtualwebauthn.RelyingParty
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server: config.ServerConfig{
			RPID:     "example.com",
			RPOrigin: "https://example.com",
			RPName:   "Example",
		},
		Session:  config.SessionConfig{Secret: "test-secret", ExpiryHours: 1, Issuer: "passkey-backend"},
		Ceremony: config.CeremonyConfig{ChallengeTTLSeconds: 90},
	}
	rp, err := cfg.RelyingParty()
	require.NoError(t, err)

	store := memory.NewStore()
	logger := zap.NewNop()
	services := service.NewServices(store, cfg, rp, logger)

	router := gin.New()
	NewHandlers(services, store, logger).RegisterRoutes(router)

	return &apiFixture{
		router: router,
		store:  store,
		vrp:    virtualwebauthn.RelyingParty{Name: rp.Name, ID: rp.ID, Origin: rp.Origin},
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createUser(t *testing.T, displayName string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/users", gin.H{"displayName": displayName}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.UserID)
	return resp.UserID
}

// ceremonyOptions fetches options from the given endpoint and returns the
// inner publicKey object plus the correlation challenge from the header.
func (f *apiFixture) ceremonyOptions(t *testing.T, path string) (string, string) {
	t.Helper()
	rec := f.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	challenge := rec.Header().Get(ChallengeHeader)
	require.NotEmpty(t, challenge)

	var resp struct {
		PublicKey json.RawMessage `json:"publicKey"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return string(resp.PublicKey), challenge
}

// registerCredential drives a full registration ceremony over HTTP.
func (f *apiFixture) registerCredential(t *testing.T, userID string, auth virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) string {
	t.Helper()

	optionsJSON, challenge := f.ceremonyOptions(t, "/ceremonies/registration/options?userId="+userID)
	parsedOpts, err := virtualwebauthn.ParseAttestationOptions(optionsJSON)
	require.NoError(t, err)
	attestation := virtualwebauthn.CreateAttestationResponse(f.vrp, auth, cred, *parsedOpts)

	rec := f.do(t, http.MethodPost, "/ceremonies/registration/verify", gin.H{
		"userId":              userID,
		"expectedChallenge":   challenge,
		"attestationResponse": json.RawMessage(attestation),
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Code
}

func TestStatus(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/status", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestCreateUser_RequiresDisplayName(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/users", gin.H{"username": "alice"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistrationFlow(t *testing.T) {
	f := newAPIFixture(t)
	userID := f.createUser(t, "Alice")

	authenticator := virtualwebauthn.NewAuthenticator()
	vcred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	credentialID := f.registerCredential(t, userID, authenticator, vcred)
	assert.NotEmpty(t, credentialID)

	creds, err := f.store.Credentials().ListByUser(t.Context(), domain.UserIDFromString(userID))
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestRegistrationOptions_UnknownUser(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/ceremonies/registration/options?userId="+domain.NewUserID().String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UserNotFound", errorCode(t, rec))
}

func TestRegistrationOptions_MissingUser(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/ceremonies/registration/options", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistrationVerify_MalformedChallenge(t *testing.T) {
	f := newAPIFixture(t)
	userID := f.createUser(t, "Alice")

	rec := f.do(t, http.MethodPost, "/ceremonies/registration/verify", gin.H{
		"userId":              userID,
		"expectedChallenge":   "!!!not-base64url!!!",
		"attestationResponse": json.RawMessage(`{}`),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BadRequest", errorCode(t, rec))
}

func TestAuthenticationFlow(t *testing.T) {
	f := newAPIFixture(t)
	userID := f.createUser(t, "Alice")

	authenticator := virtualwebauthn.NewAuthenticator()
	vcred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	credentialID := f.registerCredential(t, userID, authenticator, vcred)
	authenticator.AddCredential(vcred)

	optionsJSON, challenge := f.ceremonyOptions(t, "/ceremonies/authentication/options?userId="+userID)
	parsedOpts, err := virtualwebauthn.ParseAssertionOptions(optionsJSON)
	require.NoError(t, err)
	assertion := virtualwebauthn.CreateAssertionResponse(f.vrp, authenticator, vcred, *parsedOpts)

	verifyBody := gin.H{
		"userId":            userID,
		"expectedChallenge": challenge,
		"assertionResponse": json.RawMessage(assertion),
	}
	rec := f.do(t, http.MethodPost, "/ceremonies/authentication/verify", verifyBody, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserID       string `json:"userId"`
		SessionToken string `json:"sessionToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, userID, resp.UserID)
	require.NotEmpty(t, resp.SessionToken)

	// An exact replay of the captured verification is refused.
	rec = f.do(t, http.MethodPost, "/ceremonies/authentication/verify", verifyBody, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ChallengeAlreadyConsumed", errorCode(t, rec))

	// The session token opens the credential management surface.
	authHeader := map[string]string{"Authorization": "Bearer " + resp.SessionToken}
	rec = f.do(t, http.MethodGet, "/credentials", nil, authHeader)
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Credentials []struct {
			ID string `json:"id"`
		} `json:"credentials"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Credentials, 1)
	assert.Equal(t, credentialID, listResp.Credentials[0].ID)

	rec = f.do(t, http.MethodDelete, "/credentials/"+credentialID, nil, authHeader)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/credentials", nil, authHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Empty(t, listResp.Credentials)
}

func TestAuthenticationOptions_Discoverable(t *testing.T) {
	f := newAPIFixture(t)
	optionsJSON, challenge := f.ceremonyOptions(t, "/ceremonies/authentication/options")
	assert.NotEmpty(t, challenge)
	assert.Contains(t, optionsJSON, `"rpId":"example.com"`)
}

func TestCredentials_RequireSession(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/credentials", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/credentials", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/credentials", nil, map[string]string{"Authorization": "Basic abc"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
