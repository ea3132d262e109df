// Package gate composes client identification, session verification,
// access policy and rate limiting into the single admission decision
// made for every inbound request before any application handler runs.
package gate

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dashware/edgegate/internal/config"
	"github.com/dashware/edgegate/internal/middleware"
	"github.com/dashware/edgegate/internal/observability"
	"github.com/dashware/edgegate/internal/policy"
	"github.com/dashware/edgegate/internal/ratelimit"
	"github.com/dashware/edgegate/internal/session"
)

var decisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "edgegate_gate_decisions_total",
		Help: "Total gate decisions by outcome.",
	},
	[]string{"decision"},
)

// apiRouteClass prefixes rate limit keys so API quotas are tracked per
// (client, route-class) pair.
const apiRouteClass = "api"

// Outcome is the gate's final verdict for one request. RateLimit is set
// when the limiter ran for this request, whether or not it rejected.
type Outcome struct {
	Decision  policy.Decision
	RateLimit *ratelimit.Result
}

// Gate evaluates every inbound request exactly once and always produces
// an outcome. Dependency failures degrade per their own policies, and a
// panic anywhere in evaluation resolves to the most restrictive decision
// for the path class instead of crashing the request.
type Gate struct {
	evaluator *policy.Evaluator
	verifier  session.Verifier
	flags     config.FlagSource
	limiter   ratelimit.Limiter
	keyFunc   ratelimit.KeyFunc
	logger    observability.Logger
}

// Options configures a Gate. Evaluator, Verifier, Flags and Limiter are
// required in production wiring; nil values fall back to permissive
// defaults so tests can construct partial gates.
type Options struct {
	Evaluator *policy.Evaluator
	Verifier  session.Verifier
	Flags     config.FlagSource
	Limiter   ratelimit.Limiter

	// KeyFunc extracts the rate limit key from the request. Defaults to
	// the client IP resolved by the ClientIP middleware, prefixed with
	// the API route class and falling back to the sentinel identifier
	// for unattributable requests.
	KeyFunc ratelimit.KeyFunc

	Logger observability.Logger
}

// New creates a Gate.
func New(opts Options) *Gate {
	if opts.Evaluator == nil {
		opts.Evaluator = policy.NewEvaluator(nil)
	}
	if opts.Flags == nil {
		opts.Flags = config.StaticFlags{}
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewNoopLimiter()
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = ratelimit.RouteClassKeyFunc(apiRouteClass,
			ratelimit.WithSentinel(middleware.ClientIPFromRequest))
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	return &Gate{
		evaluator: opts.Evaluator,
		verifier:  opts.Verifier,
		flags:     opts.Flags,
		limiter:   opts.Limiter,
		keyFunc:   opts.KeyFunc,
		logger:    opts.Logger,
	}
}

// Decide runs the full admission sequence for one request. It never
// panics and never returns an error; every failure mode maps to a
// decision.
func (g *Gate) Decide(r *http.Request) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = g.containPanic(r, rec)
		}
		decisionsTotal.WithLabelValues(outcome.Decision.Kind.String()).Inc()
	}()

	path := r.URL.Path

	authenticated := false
	if g.verifier != nil {
		_, authenticated = g.verifier.Verify(r)
	}

	flags := g.flags.Current()

	decision := g.evaluator.Evaluate(policy.Input{
		Path:          path,
		RawQuery:      r.URL.RawQuery,
		Authenticated: authenticated,
		SiteLocked:    flags.SiteLocked,
	})

	outcome = Outcome{Decision: decision}

	// Rate limiting is a separate later stage. It applies only to API
	// paths that were not short-circuited by an earlier rule, public
	// bypass included.
	if decision.Kind != policy.Allow || !g.evaluator.Classifier().IsAPI(path) {
		return outcome
	}
	if g.evaluator.Classifier().IsPublic(path) {
		return outcome
	}

	key := g.keyFunc(r)
	result, err := g.limiter.Allow(r.Context(), key)
	if err != nil {
		// The limiter itself fails open on store errors, so an error
		// here means something unexpected. Allow rather than block.
		g.logger.WithContext(r.Context()).Warn("rate limit check failed, allowing request",
			observability.String("key", key),
			observability.Error(err),
		)
		return outcome
	}

	outcome.RateLimit = result
	if !result.Allowed {
		outcome.Decision = policy.Decision{Kind: policy.RejectTooManyRequests}
	}

	return outcome
}

// containPanic maps an evaluation panic to the most restrictive decision
// for the path class: protected paths redirect to login, everything else
// is allowed through.
func (g *Gate) containPanic(r *http.Request, rec any) Outcome {
	g.logger.WithContext(r.Context()).Error("panic during gate evaluation",
		observability.String("path", r.URL.Path),
		observability.Any("error", rec),
	)

	if g.evaluator.Classifier().IsProtected(r.URL.Path) {
		dest := r.URL.Path
		if r.URL.RawQuery != "" {
			dest += "?" + r.URL.RawQuery
		}
		return Outcome{Decision: policy.LoginDecision(dest)}
	}
	return Outcome{Decision: policy.AllowDecision()}
}
