// Package session verifies signed session tokens carried in request
// cookies and extracts the authenticated identity.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Claims represents the claims carried by a session token.
type Claims struct {
	// Subject is the user identifier.
	Subject string `json:"sub,omitempty"`

	// Name is the optional display name of the user.
	Name string `json:"name,omitempty"`

	// Email is the optional email address of the user.
	Email string `json:"email,omitempty"`

	ExpiresAt *Time `json:"exp,omitempty"`
	NotBefore *Time `json:"nbf,omitempty"`
	IssuedAt  *Time `json:"iat,omitempty"`
}

// Time is a wrapper around time.Time for JSON marshaling of numeric date
// claims.
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var timestamp float64
	if err := json.Unmarshal(data, &timestamp); err != nil {
		return err
	}
	t.Time = time.Unix(int64(timestamp), 0)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Unix())
}

// ValidWithSkew validates the time-bound claims with clock skew
// tolerance. Session tokens are time-bound by contract: a token without
// an exp claim would never expire and is rejected outright.
func (c *Claims) ValidWithSkew(skew time.Duration) error {
	now := time.Now()

	if c.ExpiresAt == nil {
		return fmt.Errorf("%w: exp claim is required", ErrTokenMalformed)
	}

	if now.After(c.ExpiresAt.Time.Add(skew)) {
		return fmt.Errorf("%w: expired at %v", ErrTokenExpired, c.ExpiresAt.Time)
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time.Add(-skew)) {
		return fmt.Errorf("%w: not valid before %v", ErrTokenNotYetValid, c.NotBefore.Time)
	}

	return nil
}
