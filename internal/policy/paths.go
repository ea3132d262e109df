package policy

import (
	"net/url"
	"strings"
)

// Well-known application paths.
const (
	WaitlistPath = "/waitlist"
	LoginPath    = "/login"
)

// loginRedirectTarget builds the login redirect with the original
// destination percent-encoded in the callbackUrl query parameter.
func loginRedirectTarget(callbackURL string) string {
	if callbackURL == "" {
		return LoginPath
	}
	q := url.Values{}
	q.Set("callbackUrl", callbackURL)
	return LoginPath + "?" + q.Encode()
}

// Classifier assigns request paths to the route classes the access rules
// are written in terms of. The zero value is not usable; construct with
// NewClassifier or DefaultClassifier.
type Classifier struct {
	publicExact      map[string]struct{}
	publicPrefixes   []string
	protectedPrefix  []string
	apiPrefixes      []string
	lockExemptExact  map[string]struct{}
	lockExemptPrefix []string
}

// ClassifierConfig holds the path sets for a Classifier. Empty slices
// fall back to the defaults of DefaultClassifier.
type ClassifierConfig struct {
	// PublicExact are paths that bypass every check when matched exactly.
	PublicExact []string

	// PublicPrefixes are path prefixes that bypass every check.
	PublicPrefixes []string

	// ProtectedPrefixes are path prefixes requiring a verified identity.
	ProtectedPrefixes []string

	// APIPrefixes are path prefixes subject to rate limiting.
	APIPrefixes []string

	// LockExempt are paths reachable while the site lock is active,
	// beyond the waitlist page itself.
	LockExempt []string

	// LockExemptPrefixes are path prefixes reachable while the site lock
	// is active.
	LockExemptPrefixes []string
}

// DefaultClassifier returns the classifier for the standard application
// layout: framework assets and auth endpoints are public, the dashboard
// is protected, and everything under /api is rate limited.
func DefaultClassifier() *Classifier {
	return NewClassifier(ClassifierConfig{
		PublicExact: []string{
			WaitlistPath,
			LoginPath,
			"/favicon.ico",
		},
		PublicPrefixes: []string{
			"/api/auth",
			"/_next/",
			"/static/",
		},
		ProtectedPrefixes: []string{
			"/dashboard",
		},
		APIPrefixes: []string{
			"/api",
		},
		LockExempt: []string{
			LoginPath,
		},
	})
}

// NewClassifier builds a Classifier from the given path sets.
func NewClassifier(config ClassifierConfig) *Classifier {
	c := &Classifier{
		publicExact:      make(map[string]struct{}, len(config.PublicExact)),
		publicPrefixes:   config.PublicPrefixes,
		protectedPrefix:  config.ProtectedPrefixes,
		apiPrefixes:      config.APIPrefixes,
		lockExemptExact:  make(map[string]struct{}, len(config.LockExempt)),
		lockExemptPrefix: config.LockExemptPrefixes,
	}
	for _, p := range config.PublicExact {
		c.publicExact[p] = struct{}{}
	}
	for _, p := range config.LockExempt {
		c.lockExemptExact[p] = struct{}{}
	}
	return c
}

// IsPublic reports whether the path bypasses every access check.
func (c *Classifier) IsPublic(path string) bool {
	if _, ok := c.publicExact[path]; ok {
		return true
	}
	return hasAnyPrefix(path, c.publicPrefixes)
}

// IsProtected reports whether the path requires a verified identity.
func (c *Classifier) IsProtected(path string) bool {
	return hasAnyPrefix(path, c.protectedPrefix)
}

// IsAPI reports whether the path is subject to rate limiting.
func (c *Classifier) IsAPI(path string) bool {
	return hasAnyPrefix(path, c.apiPrefixes)
}

// IsLockExempt reports whether the path remains reachable while the site
// lock is active. The waitlist page itself is always exempt, otherwise
// the lock would redirect to itself forever.
func (c *Classifier) IsLockExempt(path string) bool {
	if path == WaitlistPath {
		return true
	}
	if _, ok := c.lockExemptExact[path]; ok {
		return true
	}
	return hasAnyPrefix(path, c.lockExemptPrefix)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
