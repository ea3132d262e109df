package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIPExtractor extracts the real client IP from requests, handling
// X-Forwarded-For with trusted proxy validation. When no trusted proxies
// are configured, only RemoteAddr is used (secure default to prevent IP
// spoofing).
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor creates a new ClientIPExtractor with the given
// trusted proxy CIDRs. Single IPs are accepted and widened to /32 or
// /128; invalid entries are silently skipped.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		_, cidr, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		cidrs = append(cidrs, cidr)
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{
		IP:   ip,
		Mask: net.CIDRMask(bits, bits),
	}
}

// Extract returns the real client IP from the request, or an empty
// string when nothing usable can be derived. Consumers that need a
// non-empty identifier apply their own fallback.
//
// If no trusted proxies are configured it returns RemoteAddr with the
// port stripped. If the direct connection is from a trusted proxy it
// walks X-Forwarded-For right-to-left and returns the first non-trusted
// IP.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trustedCIDRs) == 0 {
		return remoteIP
	}

	if !e.isTrusted(remoteIP) {
		return remoteIP
	}

	return e.extractFromXFF(r, remoteIP)
}

// extractFromXFF walks the X-Forwarded-For chain right-to-left and
// returns the first non-trusted IP, falling back to the given address
// when the header is missing or fully trusted.
func (e *ClientIPExtractor) extractFromXFF(r *http.Request, fallback string) string {
	xff := r.Header.Get(HeaderXForwardedFor)
	if xff == "" {
		return fallback
	}

	ips := strings.Split(xff, ",")
	for i := len(ips) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(ips[i])
		if ip == "" {
			continue
		}
		if !e.isTrusted(ip) {
			return ip
		}
	}

	return fallback
}

func (e *ClientIPExtractor) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// stripPort removes the port from an address string. Handles both IPv4
// ("192.168.1.1:8080") and IPv6 ("[::1]:8080") formats.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// contextKey is the type for context keys used by this package.
type contextKey string

const clientIPContextKey contextKey = "client_ip"

// ContextWithClientIP stores the resolved client IP in the context.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey, ip)
}

// ClientIPFromRequest returns the client IP resolved by the ClientIP
// middleware, or an empty string if the middleware did not run.
func ClientIPFromRequest(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPContextKey).(string); ok {
		return ip
	}
	return ""
}

// ClientIP returns a middleware that resolves the client IP once per
// request and stores it in both the gin context and the request context
// for later stages.
func ClientIP(extractor *ClientIPExtractor) gin.HandlerFunc {
	if extractor == nil {
		extractor = NewClientIPExtractor(nil)
	}
	return func(c *gin.Context) {
		ip := extractor.Extract(c.Request)
		c.Set(ContextKeyClientIP, ip)
		c.Request = c.Request.WithContext(ContextWithClientIP(c.Request.Context(), ip))
		c.Next()
	}
}

// ClientIPFromContext returns the client IP resolved by the ClientIP
// middleware, or an empty string if the middleware did not run.
func ClientIPFromContext(c *gin.Context) string {
	if ip, ok := c.Get(ContextKeyClientIP); ok {
		if s, ok := ip.(string); ok {
			return s
		}
	}
	return ""
}
