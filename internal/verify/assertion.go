package verify

import (
	"github.com/go-webauthn/webauthn/protocol"

	"github.com/lumewell/passkey-backend/internal/domain"
)

// Assertion is the decoded, validated outcome of an authentication
// ceremony response.
type Assertion struct {
	CredentialID []byte
	UserHandle   []byte
	SignCount    uint32
	UserPresent  bool
	UserVerified bool
}

// Authentication validates a parsed assertion response against the issued
// challenge, the relying party, and the stored public key. All binding
// checks run; the first failure in check order is returned, so a response
// with both a wrong origin and a bad signature reports the origin — the
// phishing signal — not the signature.
func Authentication(parsed *protocol.ParsedCredentialAssertionData, expectedChallenge []byte, rp domain.RelyingParty, storedPublicKey []byte) (*Assertion, error) {
	clientData := parsed.Response.CollectedClientData
	authData := parsed.Response.AuthenticatorData

	if err := firstError(
		CheckCeremonyType(clientData, protocol.AssertCeremony),
		CheckChallenge(clientData, expectedChallenge),
		CheckOrigin(clientData, rp.Origin),
		CheckRPIDHash(authData, rp.ID),
		CheckSignature(
			storedPublicKey,
			parsed.Raw.AssertionResponse.AuthenticatorData,
			parsed.Raw.AssertionResponse.ClientDataJSON,
			parsed.Response.Signature,
		),
		CheckUserPresent(authData),
	); err != nil {
		return nil, err
	}

	flags := byte(authData.Flags)
	return &Assertion{
		CredentialID: parsed.RawID,
		UserHandle:   parsed.Response.UserHandle,
		SignCount:    authData.Counter,
		UserPresent:  flags&flagUserPresent != 0,
		UserVerified: flags&flagUserVerified != 0,
	}, nil
}
