package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dashware/edgegate/internal/observability"
)

// DefaultClockSkew is the allowed clock skew for expiry checks.
const DefaultClockSkew = time.Minute

// algHS256 is the only algorithm accepted for session tokens.
const algHS256 = "HS256"

// Identity is the authenticated user reference extracted from a verified
// session token.
type Identity struct {
	// UserID is the unique user identifier.
	UserID string

	// Username is the optional display name.
	Username string
}

// Verifier extracts an authenticated identity from a request, if any.
//
// The boolean result is the whole contract: a missing cookie, a malformed
// token, a bad signature and an expired token all yield (nil, false).
// Callers must not be able to tell them apart; only logging differentiates.
type Verifier interface {
	Verify(r *http.Request) (*Identity, bool)
}

// HMACVerifier verifies HS256-signed session tokens against a server-held
// secret.
type HMACVerifier struct {
	secret     []byte
	cookieName string
	clockSkew  time.Duration
	logger     observability.Logger
}

// VerifierOption is a functional option for the verifier.
type VerifierOption func(*HMACVerifier)

// WithVerifierLogger sets the logger for the verifier.
func WithVerifierLogger(logger observability.Logger) VerifierOption {
	return func(v *HMACVerifier) {
		v.logger = logger
	}
}

// WithClockSkew sets the allowed clock skew for expiry checks.
func WithClockSkew(skew time.Duration) VerifierOption {
	return func(v *HMACVerifier) {
		v.clockSkew = skew
	}
}

// NewHMACVerifier creates a verifier for the given secret and cookie name.
// An empty secret is a configuration error, not an empty session: the
// constructor refuses to build a verifier that would quietly treat every
// request as unauthenticated for the wrong reason.
func NewHMACVerifier(secret, cookieName string, opts ...VerifierOption) (*HMACVerifier, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if cookieName == "" {
		return nil, fmt.Errorf("cookie name is required")
	}

	v := &HMACVerifier{
		secret:     []byte(secret),
		cookieName: cookieName,
		clockSkew:  DefaultClockSkew,
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(r *http.Request) (*Identity, bool) {
	claims, err := v.verifyRequest(r)
	if err != nil {
		v.logger.WithContext(r.Context()).Debug("session verification failed",
			observability.Error(err),
		)
		return nil, false
	}

	return &Identity{
		UserID:   claims.Subject,
		Username: claims.Name,
	}, true
}

// verifyRequest extracts and verifies the session token from the request.
func (v *HMACVerifier) verifyRequest(r *http.Request) (*Claims, error) {
	cookie, err := r.Cookie(v.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoToken
	}

	return v.verifyToken(cookie.Value)
}

// verifyToken parses a compact JWT, checks its HMAC-SHA256 signature and
// validates the time-bound claims.
func (v *HMACVerifier) verifyToken(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrTokenMalformed
	}

	header, err := decodeHeader(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if header.Algorithm != algHS256 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, header.Algorithm)
	}

	if err := v.verifySignature(parts[0]+"."+parts[1], parts[2]); err != nil {
		return nil, err
	}

	claims, err := decodeClaims(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if err := claims.ValidWithSkew(v.clockSkew); err != nil {
		return nil, err
	}

	return claims, nil
}

// verifySignature checks the HMAC-SHA256 signature over the signing input.
func (v *HMACVerifier) verifySignature(signingInput, signature string) error {
	sigBytes, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(signingInput))
	expected := mac.Sum(nil)

	if !hmac.Equal(sigBytes, expected) {
		return ErrTokenInvalidSignature
	}

	return nil
}

// tokenHeader represents the JOSE header of a session token.
type tokenHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

// decodeHeader decodes the token header.
func decodeHeader(encoded string) (*tokenHeader, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	var header tokenHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, err
	}

	return &header, nil
}

// decodeClaims decodes the token payload.
func decodeClaims(encoded string) (*Claims, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	var claims Claims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, err
	}

	return &claims, nil
}

// MisconfiguredVerifier is installed when the session secret is missing.
// It never resolves an identity, which forces every protected-route
// evaluation to the redirect branch, and it logs the configuration error
// at error level on each request rather than failing silently.
type MisconfiguredVerifier struct {
	logger observability.Logger
}

// NewMisconfiguredVerifier creates a verifier for the missing-secret case.
func NewMisconfiguredVerifier(logger observability.Logger) *MisconfiguredVerifier {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &MisconfiguredVerifier{logger: logger}
}

// Verify implements Verifier.
func (v *MisconfiguredVerifier) Verify(r *http.Request) (*Identity, bool) {
	v.logger.WithContext(r.Context()).Error("session secret not configured, treating request as unauthenticated")
	return nil, false
}

// Ensure both verifiers implement Verifier.
var (
	_ Verifier = (*HMACVerifier)(nil)
	_ Verifier = (*MisconfiguredVerifier)(nil)
)
