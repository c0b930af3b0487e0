package reconcile

import (
	"context"
	"errors"

	"github.com/zoneguard/zoneguard/internal/cfapi"
	"github.com/zoneguard/zoneguard/internal/models"
	"github.com/zoneguard/zoneguard/internal/observability/logging"
)

// State is the runner's position in a deployment run.
type State string

const (
	StateIdle        State = "idle"
	StateResolving   State = "resolving"
	StateReconciling State = "reconciling"
	StateSummarizing State = "summarizing"
	StateDone        State = "done"
)

// Runner executes bundles strictly in the requested order. Bundle failures
// are isolated: a failed bundle is recorded and the run moves on; the run
// itself never aborts early.
type Runner struct {
	rec   *Reconciler
	state State
}

func NewRunner(client Client, dryRun bool) *Runner {
	return &Runner{rec: New(client, dryRun), state: StateIdle}
}

// State returns the runner's current state.
func (r *Runner) State() State { return r.state }

// Run reconciles each bundle in order and returns the aggregate summary.
// The terminal state is always reached.
func (r *Runner) Run(ctx context.Context, bundles []models.Bundle) *models.RunSummary {
	log := logging.From(ctx)
	summary := &models.RunSummary{}

	for _, b := range bundles {
		summary.Add(r.runBundle(ctx, b))
	}

	r.transition(ctx, StateSummarizing)
	log.Info("reconcile", "run complete",
		"created", summary.Created, "updated", summary.Updated,
		"skipped", summary.Skipped, "failed", summary.Failed)
	r.transition(ctx, StateDone)
	return summary
}

func (r *Runner) runBundle(ctx context.Context, b models.Bundle) models.BundleResult {
	br := models.BundleResult{Bundle: b.Name}

	if len(b.Settings) > 0 {
		r.transition(ctx, StateReconciling)
		br.Results = append(br.Results, r.rec.ReconcileSettings(ctx, b)...)
	}

	if len(b.Rules) == 0 {
		return br
	}

	r.transition(ctx, StateResolving)
	if err := r.rec.EnsurePrerequisite(ctx, b.Phase); err != nil {
		br.ErrorKind = string(cfapi.KindOf(err))
		br.Error = err.Error()
		logging.From(ctx).Warn("reconcile", "bundle prerequisite unavailable",
			"bundle", b.Name, "error", err.Error())
		return br
	}

	r.transition(ctx, StateReconciling)
	results, err := r.rec.ReconcileRules(ctx, b)
	br.Results = append(br.Results, results...)
	if err != nil {
		br.ErrorKind = string(kindOrUnknown(err))
		br.Error = err.Error()
	}
	return br
}

func (r *Runner) transition(ctx context.Context, next State) {
	if r.state == next {
		return
	}
	logging.From(ctx).Debug("reconcile", "state transition", "from", string(r.state), "to", string(next))
	r.state = next
}

func kindOrUnknown(err error) cfapi.Kind {
	var ae *cfapi.Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return cfapi.KindTransient
}
