package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret     = "test-secret-key-for-session-tokens"
	testCookieName = "session_token"
)

// mintToken builds a signed HS256 token with the given claims.
func mintToken(t *testing.T, secret string, modify func(b *jwt.Builder)) string {
	t.Helper()

	builder := jwt.NewBuilder().
		Subject("user-123").
		Claim("name", "Test User").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))

	if modify != nil {
		modify(builder)
	}

	token, err := builder.Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(secret)))
	require.NoError(t, err)

	return string(signed)
}

// requestWithCookie builds a GET request carrying the session cookie.
func requestWithCookie(value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: testCookieName, Value: value})
	return r
}

func TestNewHMACVerifier(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		v, err := NewHMACVerifier(testSecret, testCookieName)
		require.NoError(t, err)
		assert.NotNil(t, v)
	})

	t.Run("empty secret", func(t *testing.T) {
		v, err := NewHMACVerifier("", testCookieName)
		assert.ErrorIs(t, err, ErrSecretRequired)
		assert.Nil(t, v)
	})

	t.Run("empty cookie name", func(t *testing.T) {
		v, err := NewHMACVerifier(testSecret, "")
		assert.Error(t, err)
		assert.Nil(t, v)
	})
}

func TestHMACVerifier_Verify(t *testing.T) {
	v, err := NewHMACVerifier(testSecret, testCookieName)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		token := mintToken(t, testSecret, nil)
		identity, ok := v.Verify(requestWithCookie(token))
		require.True(t, ok)
		require.NotNil(t, identity)
		assert.Equal(t, "user-123", identity.UserID)
		assert.Equal(t, "Test User", identity.Username)
	})

	t.Run("token without name claim", func(t *testing.T) {
		builder := jwt.NewBuilder().
			Subject("user-456").
			Expiration(time.Now().Add(time.Hour))
		token, err := builder.Build()
		require.NoError(t, err)
		signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(testSecret)))
		require.NoError(t, err)

		identity, ok := v.Verify(requestWithCookie(string(signed)))
		require.True(t, ok)
		assert.Equal(t, "user-456", identity.UserID)
		assert.Empty(t, identity.Username)
	})

	t.Run("missing cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		identity, ok := v.Verify(r)
		assert.False(t, ok)
		assert.Nil(t, identity)
	})

	t.Run("empty cookie value", func(t *testing.T) {
		identity, ok := v.Verify(requestWithCookie(""))
		assert.False(t, ok)
		assert.Nil(t, identity)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := mintToken(t, "some-other-secret", nil)
		identity, ok := v.Verify(requestWithCookie(token))
		assert.False(t, ok)
		assert.Nil(t, identity)
	})

	t.Run("expired token", func(t *testing.T) {
		token := mintToken(t, testSecret, func(b *jwt.Builder) {
			b.Expiration(time.Now().Add(-time.Hour))
		})
		identity, ok := v.Verify(requestWithCookie(token))
		assert.False(t, ok)
		assert.Nil(t, identity)
	})

	t.Run("token without expiry", func(t *testing.T) {
		builder := jwt.NewBuilder().Subject("user-123")
		token, err := builder.Build()
		require.NoError(t, err)
		signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(testSecret)))
		require.NoError(t, err)

		// A correctly signed token that would never expire still yields
		// no identity.
		identity, ok := v.Verify(requestWithCookie(string(signed)))
		assert.False(t, ok)
		assert.Nil(t, identity)
	})

	t.Run("not yet valid token", func(t *testing.T) {
		token := mintToken(t, testSecret, func(b *jwt.Builder) {
			b.NotBefore(time.Now().Add(time.Hour))
		})
		identity, ok := v.Verify(requestWithCookie(token))
		assert.False(t, ok)
		assert.Nil(t, identity)
	})

	t.Run("malformed token", func(t *testing.T) {
		tests := []struct {
			name  string
			token string
		}{
			{name: "not a jwt", token: "garbage"},
			{name: "two parts", token: "aaaa.bbbb"},
			{name: "four parts", token: "a.b.c.d"},
			{name: "invalid base64", token: "!!!.@@@.###"},
			{name: "valid base64 invalid json", token: "aGVsbG8.d29ybGQ.c2ln"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				identity, ok := v.Verify(requestWithCookie(tt.token))
				assert.False(t, ok)
				assert.Nil(t, identity)
			})
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		token := mintToken(t, testSecret, nil)
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)

		other := mintToken(t, testSecret, func(b *jwt.Builder) {
			b.Subject("user-999")
		})
		otherParts := strings.Split(other, ".")

		tampered := parts[0] + "." + otherParts[1] + "." + parts[2]
		identity, ok := v.Verify(requestWithCookie(tampered))
		assert.False(t, ok)
		assert.Nil(t, identity)
	})
}

func TestHMACVerifier_ClockSkew(t *testing.T) {
	v, err := NewHMACVerifier(testSecret, testCookieName, WithClockSkew(5*time.Minute))
	require.NoError(t, err)

	t.Run("recently expired within skew", func(t *testing.T) {
		token := mintToken(t, testSecret, func(b *jwt.Builder) {
			b.Expiration(time.Now().Add(-time.Minute))
		})
		_, ok := v.Verify(requestWithCookie(token))
		assert.True(t, ok)
	})

	t.Run("expired beyond skew", func(t *testing.T) {
		token := mintToken(t, testSecret, func(b *jwt.Builder) {
			b.Expiration(time.Now().Add(-10 * time.Minute))
		})
		_, ok := v.Verify(requestWithCookie(token))
		assert.False(t, ok)
	})
}

func TestHMACVerifier_RejectsNonHS256(t *testing.T) {
	v, err := NewHMACVerifier(testSecret, testCookieName)
	require.NoError(t, err)

	// alg "none" header with an empty signature must never be accepted.
	header := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0" // {"alg":"none","typ":"JWT"}
	payload := "eyJzdWIiOiJ1c2VyLTEyMyJ9"           // {"sub":"user-123"}
	token := header + "." + payload + "."

	identity, ok := v.Verify(requestWithCookie(token))
	assert.False(t, ok)
	assert.Nil(t, identity)
}

func TestMisconfiguredVerifier(t *testing.T) {
	v := NewMisconfiguredVerifier(nil)

	// Even a perfectly valid token yields no identity when the secret is
	// missing, because there is nothing to verify it against.
	token := mintToken(t, testSecret, nil)
	identity, ok := v.Verify(requestWithCookie(token))
	assert.False(t, ok)
	assert.Nil(t, identity)
}

func TestClaims_ValidWithSkew(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		claims  Claims
		wantErr error
	}{
		{
			name:    "missing exp is rejected",
			claims:  Claims{Subject: "u"},
			wantErr: ErrTokenMalformed,
		},
		{
			name:   "exp only",
			claims: Claims{ExpiresAt: &Time{now.Add(time.Hour)}},
		},
		{
			name:   "valid window",
			claims: Claims{ExpiresAt: &Time{now.Add(time.Hour)}, NotBefore: &Time{now.Add(-time.Hour)}},
		},
		{
			name:    "expired",
			claims:  Claims{ExpiresAt: &Time{now.Add(-10 * time.Minute)}},
			wantErr: ErrTokenExpired,
		},
		{
			name:    "not yet valid",
			claims:  Claims{ExpiresAt: &Time{now.Add(time.Hour)}, NotBefore: &Time{now.Add(10 * time.Minute)}},
			wantErr: ErrTokenNotYetValid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.claims.ValidWithSkew(time.Minute)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
