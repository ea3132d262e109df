package session

import "errors"

// Sentinel errors for session token verification. Callers of Verify never
// see these; they exist so logging can differentiate the failure modes the
// caller is deliberately not told apart.
var (
	// ErrNoToken indicates that no session cookie was present.
	ErrNoToken = errors.New("no session token")

	// ErrTokenMalformed indicates that the token is malformed.
	ErrTokenMalformed = errors.New("session token is malformed")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("session token has expired")

	// ErrTokenNotYetValid indicates that the token is not yet valid.
	ErrTokenNotYetValid = errors.New("session token is not yet valid")

	// ErrTokenInvalidSignature indicates that the token signature is invalid.
	ErrTokenInvalidSignature = errors.New("session token signature is invalid")

	// ErrUnsupportedAlgorithm indicates that the signing algorithm is not
	// supported.
	ErrUnsupportedAlgorithm = errors.New("signing algorithm is not supported")

	// ErrSecretRequired indicates that no verification secret is
	// configured. This is a configuration error, distinct from any
	// per-token failure.
	ErrSecretRequired = errors.New("session secret is required")
)
