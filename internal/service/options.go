package service

import (
	"github.com/go-webauthn/webauthn/protocol"

	"github.com/lumewell/passkey-backend/internal/domain"
)

// WebAuthn option payloads in the standard wire shape: binary values are
// base64url strings, field names follow the W3C dictionaries.

// PublicKeyCredentialRpEntity identifies the relying party in options
type PublicKeyCredentialRpEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PublicKeyCredentialUserEntity identifies the registering user
type PublicKeyCredentialUserEntity struct {
	ID          protocol.URLEncodedBase64 `json:"id"`
	Name        string                    `json:"name"`
	DisplayName string                    `json:"displayName"`
}

// PublicKeyCredentialParameters names an accepted credential algorithm
type PublicKeyCredentialParameters struct {
	Type string `json:"type"`
	Alg  int64  `json:"alg"`
}

// PublicKeyCredentialDescriptor references an existing credential in
// exclude and allow lists
type PublicKeyCredentialDescriptor struct {
	Type       string                    `json:"type"`
	ID         protocol.URLEncodedBase64 `json:"id"`
	Transports []string                  `json:"transports,omitempty"`
}

// AuthenticatorSelectionCriteria narrows acceptable authenticators
type AuthenticatorSelectionCriteria struct {
	ResidentKey      string `json:"residentKey"`
	UserVerification string `json:"userVerification"`
}

// CreationOptions is the body of a registration options response
type CreationOptions struct {
	RP                     PublicKeyCredentialRpEntity     `json:"rp"`
	User                   PublicKeyCredentialUserEntity   `json:"user"`
	Challenge              protocol.URLEncodedBase64       `json:"challenge"`
	PubKeyCredParams       []PublicKeyCredentialParameters `json:"pubKeyCredParams"`
	Timeout                int64                           `json:"timeout,omitempty"`
	ExcludeCredentials     []PublicKeyCredentialDescriptor `json:"excludeCredentials"`
	AuthenticatorSelection AuthenticatorSelectionCriteria  `json:"authenticatorSelection"`
	Attestation            string                          `json:"attestation"`
}

// RequestOptions is the body of an authentication options response
type RequestOptions struct {
	RPID             string                          `json:"rpId"`
	Challenge        protocol.URLEncodedBase64       `json:"challenge"`
	Timeout          int64                           `json:"timeout,omitempty"`
	AllowCredentials []PublicKeyCredentialDescriptor `json:"allowCredentials"`
	UserVerification string                          `json:"userVerification"`
}

func algorithmPreferences() []PublicKeyCredentialParameters {
	return []PublicKeyCredentialParameters{
		{Type: "public-key", Alg: -7},   // ES256
		{Type: "public-key", Alg: -8},   // EdDSA
		{Type: "public-key", Alg: -257}, // RS256
	}
}

func descriptorsFor(credentials []*domain.Credential) []PublicKeyCredentialDescriptor {
	descriptors := make([]PublicKeyCredentialDescriptor, 0, len(credentials))
	for _, cred := range credentials {
		descriptors = append(descriptors, PublicKeyCredentialDescriptor{
			Type:       "public-key",
			ID:         protocol.URLEncodedBase64(cred.CredentialID),
			Transports: cred.Transports,
		})
	}
	return descriptors
}
