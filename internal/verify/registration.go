package verify

import (
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"

	"github.com/lumewell/passkey-backend/internal/domain"
)

// Attestation is the decoded, validated outcome of a registration
// ceremony response.
type Attestation struct {
	CredentialID    []byte
	PublicKey       []byte
	Algorithm       int64
	SignCount       uint32
	AAGUID          []byte
	AttestationType string
	Transports      []string
	UserPresent     bool
	UserVerified    bool
	BackupEligible  bool
	BackupState     bool
}

// Registration validates a parsed attestation response against the issued
// challenge and the relying party. All binding checks run; the first
// failure in check order is returned.
func Registration(parsed *protocol.ParsedCredentialCreationData, expectedChallenge []byte, rp domain.RelyingParty) (*Attestation, error) {
	clientData := parsed.Response.CollectedClientData
	authData := parsed.Response.AttestationObject.AuthData

	if err := firstError(
		CheckCeremonyType(clientData, protocol.CreateCeremony),
		CheckChallenge(clientData, expectedChallenge),
		CheckOrigin(clientData, rp.Origin),
		CheckRPIDHash(authData, rp.ID),
		checkAttestedCredential(authData),
		CheckUserPresent(authData),
	); err != nil {
		return nil, err
	}

	key, err := webauthncose.ParsePublicKey(authData.AttData.CredentialPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: credential public key unparsable: %v", ErrAttestationInvalid, err)
	}
	alg, ok := keyAlgorithm(key)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized key type", ErrAttestationInvalid)
	}
	if !algorithmAccepted(alg) {
		return nil, fmt.Errorf("%w: algorithm %d not accepted", ErrAttestationInvalid, alg)
	}

	transports := make([]string, 0, len(parsed.Response.Transports))
	for _, t := range parsed.Response.Transports {
		transports = append(transports, string(t))
	}

	flags := byte(authData.Flags)
	return &Attestation{
		CredentialID:    authData.AttData.CredentialID,
		PublicKey:       authData.AttData.CredentialPublicKey,
		Algorithm:       alg,
		SignCount:       authData.Counter,
		AAGUID:          authData.AttData.AAGUID,
		AttestationType: parsed.Response.AttestationObject.Format,
		Transports:      transports,
		UserPresent:     flags&flagUserPresent != 0,
		UserVerified:    flags&flagUserVerified != 0,
		BackupEligible:  flags&flagBackupEligible != 0,
		BackupState:     flags&flagBackupState != 0,
	}, nil
}

// checkAttestedCredential verifies the attestation carries credential
// data at all, with a credential ID inside the WebAuthn length bound.
func checkAttestedCredential(authData protocol.AuthenticatorData) error {
	if byte(authData.Flags)&0x40 == 0 {
		return fmt.Errorf("%w: attested credential data flag not set", ErrAttestationInvalid)
	}
	id := authData.AttData.CredentialID
	if len(id) == 0 {
		return fmt.Errorf("%w: empty credential id", ErrAttestationInvalid)
	}
	if len(id) > 1023 {
		return fmt.Errorf("%w: credential id exceeds 1023 bytes", ErrAttestationInvalid)
	}
	return nil
}
