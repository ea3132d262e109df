package ratelimit

import (
	"net/http"
)

// SentinelIdentifier groups requests whose client identifier could not be
// determined. Unattributable requests share one counter instead of
// bypassing the limiter.
const SentinelIdentifier = "127.0.0.1"

// KeyFunc is a function that extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// RouteClassKeyFunc returns a KeyFunc that prefixes the base key with a
// route class, so quotas are tracked per (identifier, route-class) pair.
func RouteClassKeyFunc(class string, base KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		return class + ":" + base(r)
	}
}

// WithSentinel returns a KeyFunc that substitutes the sentinel identifier
// when the base key function yields an empty key.
func WithSentinel(base KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		if key := base(r); key != "" {
			return key
		}
		return SentinelIdentifier
	}
}

// HeaderKeyFunc returns a KeyFunc that uses a header value as the rate
// limit key, falling back to the sentinel identifier when absent.
func HeaderKeyFunc(header string) KeyFunc {
	return WithSentinel(func(r *http.Request) string {
		return r.Header.Get(header)
	})
}
