package service

import "errors"

// Ceremony failure classes. Each one is distinct at the API boundary;
// none is ever coerced into a generic error.
var (
	ErrBadRequest               = errors.New("malformed ceremony payload")
	ErrUserNotFound             = errors.New("user not found")
	ErrChallengeNotFound        = errors.New("challenge not found")
	ErrChallengeExpired         = errors.New("challenge expired")
	ErrChallengeAlreadyConsumed = errors.New("challenge already consumed")
	ErrChallengeMismatch        = errors.New("challenge was issued for a different ceremony")
	ErrCredentialNotFound       = errors.New("credential not found")
	ErrCredentialConflict       = errors.New("credential id already registered")
	ErrRegressedCounter         = errors.New("signature counter regressed, possible cloned authenticator")
	ErrUserMismatch             = errors.New("credential does not belong to the expected user")
)
