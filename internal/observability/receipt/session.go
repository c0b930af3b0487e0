package receipt

import (
	"context"
	"time"

	"github.com/zoneguard/zoneguard/internal/models"
	"github.com/zoneguard/zoneguard/internal/observability"
)

// MaxErrorLength is the maximum length for error strings in receipts.
const MaxErrorLength = 2048

// Session tracks command execution
type Session struct {
	ctx     context.Context
	start   time.Time
	command string
	args    []string
}

// Start session
func Start(ctx context.Context, cmd string, args []string) *Session {
	return &Session{
		ctx:     ctx,
		start:   time.Now(),
		command: cmd,
		args:    args,
	}
}

// Option configures receipt
type Option func(*Receipt)

// WithZone records the target zone identifier.
func WithZone(zoneID string) Option {
	return func(r *Receipt) {
		r.Zone = zoneID
	}
}

// WithRun folds a deployment summary into the receipt.
func WithRun(summary *models.RunSummary, dryRun bool) Option {
	return func(r *Receipt) {
		if summary == nil {
			return
		}
		r.DryRun = dryRun
		stat := &RunStat{
			Created: summary.Created,
			Updated: summary.Updated,
			Skipped: summary.Skipped,
			Failed:  summary.Failed,
		}
		for _, b := range summary.FailedBundles() {
			stat.FailedBundles = append(stat.FailedBundles, BundleFailure{
				Bundle:    b.Bundle,
				ErrorKind: b.ErrorKind,
			})
		}
		r.Run = stat
	}
}

// Finish and write receipt
func (s *Session) Finish(err error, opts ...Option) error {
	w := From(s.ctx)
	if w == nil {
		// No writer configured, receipts disabled
		return nil
	}

	// Redact the bearer token before storing
	redactedArgs, wasRedacted := RedactArgs(s.args)

	r := Receipt{
		SchemaVersion: SchemaVersion,
		OpID:          observability.OpID(s.ctx),
		TsStart:       s.start.Format(time.RFC3339Nano),
		TsEnd:         time.Now().Format(time.RFC3339Nano),
		Command:       s.command,
		Args:          redactedArgs,
		ArgsRedacted:  wasRedacted,
	}

	if err != nil {
		r.Result = Result{
			Status: "fail",
			Error:  truncateError(err.Error()),
		}
	} else {
		r.Result = Result{
			Status: "success",
		}
	}

	for _, opt := range opts {
		opt(&r)
	}

	return w.Write(r)
}

func truncateError(s string) string {
	if len(s) > MaxErrorLength {
		return s[:MaxErrorLength]
	}
	return s
}
