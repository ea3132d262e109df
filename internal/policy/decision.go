// Package policy decides how an inbound request is admitted: pass it
// through, redirect it, or reject it. Evaluation is a pure function of
// the request context, the resolved identity and the current flags.
package policy

// DecisionKind enumerates the possible outcomes of access evaluation.
type DecisionKind int

const (
	// Allow passes the request through to the application handler.
	Allow DecisionKind = iota

	// RedirectToWaitlist redirects the request to the waitlist page.
	RedirectToWaitlist

	// RedirectToLogin redirects the request to the login page with a
	// callback parameter pointing back at the original destination.
	RedirectToLogin

	// RejectTooManyRequests rejects the request with a 429 response.
	RejectTooManyRequests
)

// String returns a human-readable name for the decision kind.
func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectToWaitlist:
		return "redirect_waitlist"
	case RedirectToLogin:
		return "redirect_login"
	case RejectTooManyRequests:
		return "reject_rate_limited"
	default:
		return "unknown"
	}
}

// Decision is the outcome of evaluating a request against the access
// rules. RedirectTarget is set only for the redirect kinds.
type Decision struct {
	Kind           DecisionKind
	RedirectTarget string
}

// AllowDecision is the pass-through decision.
func AllowDecision() Decision {
	return Decision{Kind: Allow}
}

// WaitlistDecision redirects to the waitlist page.
func WaitlistDecision() Decision {
	return Decision{Kind: RedirectToWaitlist, RedirectTarget: WaitlistPath}
}

// LoginDecision redirects to the login page, carrying the original
// destination so the post-login flow can return the user there.
func LoginDecision(callbackURL string) Decision {
	return Decision{Kind: RedirectToLogin, RedirectTarget: loginRedirectTarget(callbackURL)}
}
