package models

// Action describes what the reconciler did for one catalog entry.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
	ActionFailed  Action = "failed"
)

// OperationResult is the outcome of reconciling one setting or rule.
type OperationResult struct {
	Target    string `json:"target"`
	Kind      string `json:"kind"` // "setting" or "rule"
	Action    Action `json:"action"`
	ErrorKind string `json:"error_kind,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// BundleResult collects the per-entry outcomes for one bundle.
type BundleResult struct {
	Bundle  string            `json:"bundle"`
	Results []OperationResult `json:"results"`
	// Err is set when the bundle failed before any entries could be
	// attempted (prerequisite unavailable, first-call unauthorized).
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Failed reports whether the bundle failed wholesale or any entry failed.
func (b BundleResult) Failed() bool {
	if b.ErrorKind != "" {
		return true
	}
	for _, r := range b.Results {
		if r.Action == ActionFailed {
			return true
		}
	}
	return false
}

// RunSummary aggregates a whole deployment run. It lets an operator
// distinguish "nothing needed to change" from "something failed".
type RunSummary struct {
	Bundles []BundleResult `json:"bundles"`
	Created int            `json:"created"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	Failed  int            `json:"failed"`
}

// Add folds a bundle's results into the aggregate counters.
func (s *RunSummary) Add(br BundleResult) {
	s.Bundles = append(s.Bundles, br)
	for _, r := range br.Results {
		switch r.Action {
		case ActionCreated:
			s.Created++
		case ActionUpdated:
			s.Updated++
		case ActionSkipped:
			s.Skipped++
		case ActionFailed:
			s.Failed++
		}
	}
}

// FailedBundles returns the names and error kinds of bundles that failed.
func (s *RunSummary) FailedBundles() []BundleResult {
	var out []BundleResult
	for _, b := range s.Bundles {
		if b.Failed() {
			out = append(out, b)
		}
	}
	return out
}

// Clean reports whether the run finished without any failures.
func (s *RunSummary) Clean() bool {
	return s.Failed == 0 && len(s.FailedBundles()) == 0
}
