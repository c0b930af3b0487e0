// Package receipt provides stable evidence artifacts for audit/compliance:
// one JSON record per deployment run describing what changed in the zone.
package receipt

// SchemaVersion current
const SchemaVersion = "1.0"

// Receipt structure
type Receipt struct {
	SchemaVersion string   `json:"schema_version"`
	OpID          string   `json:"op_id"`
	TsStart       string   `json:"ts_start"`
	TsEnd         string   `json:"ts_end"`
	Command       string   `json:"command"`
	Args          []string `json:"args"`
	ArgsRedacted  bool     `json:"args_redacted,omitempty"`
	Result        Result   `json:"result"`
	Zone          string   `json:"zone,omitempty"`
	DryRun        bool     `json:"dry_run,omitempty"`
	Run           *RunStat `json:"run,omitempty"`
}

// Result status
type Result struct {
	Status string `json:"status"` // "success" or "fail"
	Error  string `json:"error,omitempty"`
}

// RunStat summarizes one deployment run.
type RunStat struct {
	Created       int            `json:"created"`
	Updated       int            `json:"updated"`
	Skipped       int            `json:"skipped"`
	Failed        int            `json:"failed"`
	FailedBundles []BundleFailure `json:"failed_bundles,omitempty"`
}

// BundleFailure names a bundle that did not fully apply.
type BundleFailure struct {
	Bundle    string `json:"bundle"`
	ErrorKind string `json:"error_kind,omitempty"`
}
