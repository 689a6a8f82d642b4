// Package verify implements the cryptographic and binding checks for
// WebAuthn ceremony responses. Every function here is pure: inputs in,
// parsed result or error out, no storage access.
//
// The binding checks (ceremony type, challenge, origin, RP-ID hash,
// signature) are deliberately separate functions. Each check runs even
// when an earlier one has already failed, and the first failure in check
// order is the one reported, so a forged response can never hide a second
// forgery vector behind the first.
package verify

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

var (
	ErrChallengeMismatch  = errors.New("challenge does not match the issued value")
	ErrOriginMismatch     = errors.New("origin does not match the relying party origin")
	ErrRPIDMismatch       = errors.New("rp id hash does not match the relying party id")
	ErrAttestationInvalid = errors.New("attestation is invalid")
	ErrSignatureInvalid   = errors.New("assertion signature is invalid")
	ErrUserNotPresent     = errors.New("user presence flag not set")
)

// AcceptedAlgorithms are the COSE algorithm identifiers this relying
// party registers credentials for: ES256, EdDSA, RS256.
var AcceptedAlgorithms = []int64{-7, -8, -257}

// Authenticator data flag bits (WebAuthn §6.1).
const (
	flagUserPresent    = 0x01
	flagUserVerified   = 0x04
	flagBackupEligible = 0x08
	flagBackupState    = 0x10
)

// CheckCeremonyType verifies the client-data type tag. "webauthn.create"
// and "webauthn.get" are not interchangeable: accepting one for the other
// would let a registration response replay as an assertion.
func CheckCeremonyType(clientData protocol.CollectedClientData, want protocol.CeremonyType) error {
	if clientData.Type != want {
		return fmt.Errorf("%w: client data type %q, want %q", ErrAttestationInvalid, clientData.Type, want)
	}
	return nil
}

// CheckChallenge verifies that the challenge embedded in the client data
// equals the issued challenge byte for byte.
func CheckChallenge(clientData protocol.CollectedClientData, expected []byte) error {
	got, err := base64.RawURLEncoding.DecodeString(clientData.Challenge)
	if err != nil {
		return fmt.Errorf("%w: malformed challenge encoding", ErrChallengeMismatch)
	}
	if subtle.ConstantTimeCompare(got, expected) != 1 {
		return ErrChallengeMismatch
	}
	return nil
}

// CheckOrigin verifies the client-data origin against the configured
// relying-party origin. The comparison is exact: no scheme, port, or
// subdomain laxity. A mismatch here is the phishing signal.
func CheckOrigin(clientData protocol.CollectedClientData, expectedOrigin string) error {
	if clientData.Origin != expectedOrigin {
		return fmt.Errorf("%w: got %q, want %q", ErrOriginMismatch, clientData.Origin, expectedOrigin)
	}
	return nil
}

// CheckRPIDHash verifies that the authenticator hashed the expected RP ID
// into the authenticator data.
func CheckRPIDHash(authData protocol.AuthenticatorData, rpID string) error {
	want := sha256.Sum256([]byte(rpID))
	if !bytes.Equal(authData.RPIDHash, want[:]) {
		return ErrRPIDMismatch
	}
	return nil
}

// CheckUserPresent verifies the user-presence flag, which every ceremony
// requires.
func CheckUserPresent(authData protocol.AuthenticatorData) error {
	if byte(authData.Flags)&flagUserPresent == 0 {
		return ErrUserNotPresent
	}
	return nil
}

// CheckSignature verifies sig over authenticatorData || SHA-256(clientDataJSON)
// with the stored COSE public key.
func CheckSignature(publicKey, rawAuthData, rawClientDataJSON, sig []byte) error {
	key, err := webauthncose.ParsePublicKey(publicKey)
	if err != nil {
		return fmt.Errorf("%w: stored public key unparsable: %v", ErrSignatureInvalid, err)
	}

	clientDataHash := sha256.Sum256(rawClientDataJSON)
	signed := make([]byte, 0, len(rawAuthData)+len(clientDataHash))
	signed = append(signed, rawAuthData...)
	signed = append(signed, clientDataHash[:]...)

	valid, err := webauthncose.VerifySignature(key, signed, sig)
	if err != nil || !valid {
		return ErrSignatureInvalid
	}
	return nil
}

// firstError returns the first non-nil error in check order.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func keyAlgorithm(key any) (int64, bool) {
	switch k := key.(type) {
	case webauthncose.OKPPublicKeyData:
		return k.Algorithm, true
	case webauthncose.EC2PublicKeyData:
		return k.Algorithm, true
	case webauthncose.RSAPublicKeyData:
		return k.Algorithm, true
	}
	return 0, false
}

func algorithmAccepted(alg int64) bool {
	for _, a := range AcceptedAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}
