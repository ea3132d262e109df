// Package middleware provides the gin middleware shared by the edge
// gate and the application routes.
package middleware

// Header names used across the middleware.
const (
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderXRealIP       = "X-Real-IP"
	HeaderRequestID     = "X-Request-ID"
)

// ContextKeyClientIP is the gin context key under which the resolved
// client IP is stored.
const ContextKeyClientIP = "client_ip"
