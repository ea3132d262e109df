package policy

// Input carries everything Evaluate reads. Path and RawQuery come from
// the request URL, Authenticated from the session verifier, SiteLocked
// from the flag source.
type Input struct {
	Path          string
	RawQuery      string
	Authenticated bool
	SiteLocked    bool
}

// Evaluator applies the ordered access rules. The order is part of the
// contract:
//
//  1. Public paths are allowed unconditionally, site lock included.
//  2. When the site lock is active, non-exempt paths redirect to the
//     waitlist.
//  3. Protected paths without a verified identity redirect to login.
//  4. Everything else is allowed.
//
// Rate limiting is applied by the caller as a separate later stage, so
// an Allow here is not final for API paths.
type Evaluator struct {
	classifier *Classifier
}

// NewEvaluator creates an evaluator over the given classifier. A nil
// classifier falls back to DefaultClassifier.
func NewEvaluator(classifier *Classifier) *Evaluator {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return &Evaluator{classifier: classifier}
}

// Classifier returns the classifier the evaluator was built with.
func (e *Evaluator) Classifier() *Classifier {
	return e.classifier
}

// Evaluate applies the rules in order and returns the first match.
func (e *Evaluator) Evaluate(in Input) Decision {
	if e.classifier.IsPublic(in.Path) {
		return AllowDecision()
	}

	if in.SiteLocked && !e.classifier.IsLockExempt(in.Path) {
		return WaitlistDecision()
	}

	if e.classifier.IsProtected(in.Path) && !in.Authenticated {
		return LoginDecision(originalDestination(in.Path, in.RawQuery))
	}

	return AllowDecision()
}

// originalDestination reassembles the requested path and query so the
// post-login flow can send the user back where they were headed.
func originalDestination(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}
	return path + "?" + rawQuery
}
