package cfapi

import (
	"errors"
	"fmt"
)

// Kind classifies a remote failure. Only KindTransient is retryable; the
// rest are pointless to retry without a credential or policy change.
type Kind string

const (
	KindRemoteRejected Kind = "remote_rejected"
	KindUnauthorized   Kind = "unauthorized"
	KindNotFound       Kind = "not_found"
	KindListMissing    Kind = "list_missing"
	KindCreationDenied Kind = "creation_denied"
	KindTransient      Kind = "transient"

	// KindPrerequisiteUnavailable is assigned by the prerequisite resolver
	// when a ruleset container could not be created even after the
	// placeholder workaround.
	KindPrerequisiteUnavailable Kind = "prerequisite_unavailable"
)

// Error is a classified remote API failure.
type Error struct {
	Kind   Kind
	Op     string // e.g. "set_setting", "ensure_rule_list"
	Target string // setting key or ruleset phase
	Status int    // HTTP status, 0 for transport failures
	Msg    string // first message from the API error envelope
	Err    error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("cfapi: %s %s: %s", e.Op, e.Target, e.Kind)
	if e.Status != 0 {
		s += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from an error chain. Unclassified errors report
// KindTransient so callers err on the side of retrying transport noise.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransient
}

// Retryable reports whether the error is worth another attempt.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}

// classifyStatus maps an HTTP status to an error kind. 404 is handled by
// callers since its meaning depends on the resource being addressed.
func classifyStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindUnauthorized
	case status == 429 || status >= 500:
		return KindTransient
	default:
		return KindRemoteRejected
	}
}
