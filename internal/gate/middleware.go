package gate

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dashware/edgegate/internal/policy"
	"github.com/dashware/edgegate/internal/ratelimit"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// Middleware returns the gin handler that applies the gate's decision to
// every request: pass through, redirect, or reject with 429.
func Middleware(g *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome := g.Decide(c.Request)

		if outcome.RateLimit != nil {
			setRateLimitHeaders(c, outcome.RateLimit)
		}

		switch outcome.Decision.Kind {
		case policy.Allow:
			c.Next()

		case policy.RedirectToWaitlist, policy.RedirectToLogin:
			c.Redirect(http.StatusTemporaryRedirect, outcome.Decision.RedirectTarget)
			c.Abort()

		case policy.RejectTooManyRequests:
			if outcome.RateLimit != nil && outcome.RateLimit.RetryAfter > 0 {
				c.Header(HeaderRetryAfter, strconv.Itoa(int(outcome.RateLimit.RetryAfter.Seconds())))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too Many Requests",
			})

		default:
			c.Next()
		}
	}
}

// setRateLimitHeaders exposes quota state on every rate-limited route,
// allowed or not. A zero limit means the limiter is disabled, in which
// case the headers would be noise.
func setRateLimitHeaders(c *gin.Context, result *ratelimit.Result) {
	if result.Limit == 0 {
		return
	}
	c.Header(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
	c.Header(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
	c.Header(HeaderRateLimitReset, strconv.FormatInt(result.ResetAt.Unix(), 10))
}
