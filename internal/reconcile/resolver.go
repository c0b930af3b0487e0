package reconcile

import (
	"context"

	"github.com/zoneguard/zoneguard/internal/cfapi"
	"github.com/zoneguard/zoneguard/internal/models"
	"github.com/zoneguard/zoneguard/internal/observability/logging"
)

// PlaceholderExpression is the match expression of the inert rule used to
// force container instantiation. The .invalid TLD is reserved and can never
// resolve, so the expression matches no real traffic even if the rule were
// enabled.
const PlaceholderExpression = `http.host eq "zoneguard-placeholder.invalid"`

// PlaceholderName identifies the seeded rule so later runs recognize it.
const PlaceholderName = "zoneguard placeholder (safe to delete)"

// placeholderRule is the inert write that forces the remote to instantiate
// a rule list container. It must never match traffic and must take no
// action if it somehow did.
func placeholderRule() cfapi.Rule {
	return cfapi.Rule{
		Name:       PlaceholderName,
		Expression: PlaceholderExpression,
		Action:     "log",
		Enabled:    false,
	}
}

// EnsurePrerequisite guarantees the phase's rule list container exists
// before rules are written into it. The remote API has no "create empty
// container" primitive for some phases; existence is a side effect of the
// first write, so a zone that has never had the container needs one inert
// placeholder rule seeded, after which the lookup is retried once.
func (r *Reconciler) EnsurePrerequisite(ctx context.Context, phase models.RulePhase) error {
	log := logging.From(ctx)

	_, err := r.client.EnsureRuleList(ctx, phase)
	if err == nil {
		return nil
	}
	if cfapi.KindOf(err) != cfapi.KindListMissing {
		return &cfapi.Error{Kind: cfapi.KindPrerequisiteUnavailable, Op: "ensure_prerequisite",
			Target: string(phase), Err: err}
	}

	if r.dryRun {
		log.Info("reconcile", "container missing; would seed placeholder rule", "phase", string(phase))
		return nil
	}

	log.Info("reconcile", "container never instantiated; seeding placeholder rule", "phase", string(phase))
	if err := r.client.UpsertRule(ctx, phase, placeholderRule(), cfapi.Position{}); err != nil {
		return &cfapi.Error{Kind: cfapi.KindPrerequisiteUnavailable, Op: "ensure_prerequisite",
			Target: string(phase), Err: err}
	}

	// One retry only; a second miss means the workaround does not apply.
	if _, err := r.client.EnsureRuleList(ctx, phase); err != nil {
		return &cfapi.Error{Kind: cfapi.KindPrerequisiteUnavailable, Op: "ensure_prerequisite",
			Target: string(phase), Err: err}
	}
	return nil
}
