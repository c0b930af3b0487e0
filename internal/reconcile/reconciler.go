// Package reconcile computes and applies the minimal ordered set of remote
// writes that bring a zone's live configuration to the catalog's desired
// state.
package reconcile

import (
	"context"
	"fmt"

	"github.com/wI2L/jsondiff"
	"github.com/zoneguard/zoneguard/internal/cfapi"
	"github.com/zoneguard/zoneguard/internal/models"
	"github.com/zoneguard/zoneguard/internal/observability/logging"
)

// Client is the remote capability the reconciler observes and proposes
// through. *cfapi.Client satisfies it; tests use a fake.
type Client interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, s models.PolicySetting) error
	ListRules(ctx context.Context, phase models.RulePhase) ([]cfapi.Rule, error)
	UpsertRule(ctx context.Context, phase models.RulePhase, r cfapi.Rule, pos cfapi.Position) error
	EnsureRuleList(ctx context.Context, phase models.RulePhase) (string, error)
}

// Reconciler diffs one bundle at a time against live state. It owns no
// remote state; all reads and writes go through the client.
type Reconciler struct {
	client Client
	dryRun bool
}

func New(client Client, dryRun bool) *Reconciler {
	return &Reconciler{client: client, dryRun: dryRun}
}

// ReconcileSettings applies a bundle's scalar settings. Settings are
// independent of each other; a rejected write fails only its own entry.
// Unauthorized short-circuits the remainder of the bundle since retrying
// with the same credential cannot succeed.
func (r *Reconciler) ReconcileSettings(ctx context.Context, b models.Bundle) []models.OperationResult {
	log := logging.From(ctx)
	results := make([]models.OperationResult, 0, len(b.Settings))

	shortCircuit := false
	for _, s := range b.Settings {
		if shortCircuit {
			results = append(results, models.OperationResult{
				Target: s.Key, Kind: "setting", Action: models.ActionFailed,
				ErrorKind: string(cfapi.KindUnauthorized), Detail: "skipped after unauthorized response",
			})
			continue
		}

		res := r.reconcileSetting(ctx, s)
		if res.ErrorKind == string(cfapi.KindUnauthorized) {
			shortCircuit = true
		}
		log.Debug("reconcile", "setting", "bundle", b.Name, "key", s.Key, "action", string(res.Action))
		results = append(results, res)
	}
	return results
}

func (r *Reconciler) reconcileSetting(ctx context.Context, s models.PolicySetting) models.OperationResult {
	res := models.OperationResult{Target: s.Key, Kind: "setting"}

	current, err := r.client.GetSetting(ctx, s.Key)
	absent := false
	if err != nil {
		if cfapi.KindOf(err) != cfapi.KindNotFound {
			res.Action = models.ActionFailed
			res.ErrorKind = string(cfapi.KindOf(err))
			res.Detail = err.Error()
			return res
		}
		absent = true
	}

	if !absent && current == s.Value {
		res.Action = models.ActionSkipped
		return res
	}

	action := models.ActionUpdated
	if absent {
		action = models.ActionCreated
	}
	if r.dryRun {
		res.Action = action
		res.Detail = fmt.Sprintf("would set %q (currently %q)", s.Value, current)
		return res
	}

	if err := r.client.SetSetting(ctx, s); err != nil {
		res.Action = models.ActionFailed
		res.ErrorKind = string(cfapi.KindOf(err))
		res.Detail = err.Error()
		return res
	}
	res.Action = action
	return res
}

// ReconcileRules applies a bundle's ordered rule list. Rules are keyed by
// name; catalog declaration order is authoritative for priority. Remote
// rules absent from the catalog are never touched.
func (r *Reconciler) ReconcileRules(ctx context.Context, b models.Bundle) ([]models.OperationResult, error) {
	log := logging.From(ctx)

	live, err := r.client.ListRules(ctx, b.Phase)
	if err != nil {
		if cfapi.KindOf(err) != cfapi.KindListMissing {
			return nil, fmt.Errorf("list rules for %s: %w", b.Phase, err)
		}
		// Container freshly created by the resolver, nothing in it yet.
		live = nil
	}

	byName := make(map[string]cfapi.Rule, len(live))
	for _, lr := range live {
		byName[lr.Name] = lr
	}

	results := make([]models.OperationResult, 0, len(b.Rules))
	prevPos := -1
	prevID := ""
	shortCircuit := false

	for i, spec := range b.Rules {
		if shortCircuit {
			results = append(results, models.OperationResult{
				Target: spec.Name, Kind: "rule", Action: models.ActionFailed,
				ErrorKind: string(cfapi.KindUnauthorized), Detail: "skipped after unauthorized response",
			})
			continue
		}

		res, liveRule := r.reconcileRule(ctx, b, spec, byName, prevID, prevPos, i)
		if res.ErrorKind == string(cfapi.KindUnauthorized) {
			shortCircuit = true
		}
		log.Debug("reconcile", "rule", "bundle", b.Name, "rule", spec.Name, "action", string(res.Action))
		results = append(results, res)

		if res.Action == models.ActionFailed {
			continue
		}

		// Refresh after a write so later anchors and order checks see the
		// list the remote now holds.
		if res.Action == models.ActionCreated || res.Action == models.ActionUpdated {
			if !r.dryRun {
				refreshed, lerr := r.client.ListRules(ctx, b.Phase)
				if lerr == nil {
					live = refreshed
					byName = make(map[string]cfapi.Rule, len(live))
					for _, lr := range live {
						byName[lr.Name] = lr
					}
				}
			}
			if lr, ok := byName[spec.Name]; ok {
				prevID = lr.ID
				prevPos = lr.Position
			}
			continue
		}

		prevID = liveRule.ID
		prevPos = liveRule.Position
	}

	return results, nil
}

// reconcileRule handles one RuleSpec against the live map. liveRule is only
// meaningful when the result is a skip.
func (r *Reconciler) reconcileRule(ctx context.Context, b models.Bundle, spec models.RuleSpec,
	byName map[string]cfapi.Rule, prevID string, prevPos, idx int) (models.OperationResult, cfapi.Rule) {

	res := models.OperationResult{Target: spec.Name, Kind: "rule"}
	desired := toClientRule(spec)

	liveRule, exists := byName[spec.Name]
	if !exists {
		res.Action = models.ActionCreated
		if r.dryRun {
			res.Detail = "would create"
			return res, liveRule
		}
		if err := r.client.UpsertRule(ctx, b.Phase, desired, cfapi.Position{After: prevID}); err != nil {
			res.Action = models.ActionFailed
			res.ErrorKind = string(cfapi.KindOf(err))
			res.Detail = err.Error()
		}
		return res, liveRule
	}

	patch, err := diffRules(liveRule, desired)
	if err != nil {
		res.Action = models.ActionFailed
		res.ErrorKind = string(cfapi.KindRemoteRejected)
		res.Detail = fmt.Sprintf("compare rule: %v", err)
		return res, liveRule
	}

	misordered := liveRule.Position <= prevPos && idx > 0
	if len(patch) == 0 && !misordered {
		res.Action = models.ActionSkipped
		return res, liveRule
	}

	res.Action = models.ActionUpdated
	if len(patch) > 0 {
		res.Detail = patch.String()
	} else {
		res.Detail = "out of declared order"
	}
	if r.dryRun {
		return res, liveRule
	}

	desired.ID = liveRule.ID
	pos := cfapi.Position{}
	if misordered {
		pos = orderAnchor(prevID)
	}
	if err := r.client.UpsertRule(ctx, b.Phase, desired, pos); err != nil {
		res.Action = models.ActionFailed
		res.ErrorKind = string(cfapi.KindOf(err))
		res.Detail = err.Error()
	}
	return res, liveRule
}

// orderAnchor places a misordered rule directly after the previous managed
// rule, or at the head of the list when it is the first one.
func orderAnchor(prevID string) cfapi.Position {
	if prevID != "" {
		return cfapi.Position{After: prevID}
	}
	return cfapi.Position{Index: 1}
}

// diffRules compares a live rule against its desired definition over the
// fields this system manages. A non-empty patch means the rule drifted.
func diffRules(live, desired cfapi.Rule) (jsondiff.Patch, error) {
	return jsondiff.Compare(canonicalRule(live), canonicalRule(desired))
}

// canonicalRule projects a rule onto the managed fields; remote-owned
// attributes (IDs, versions, timestamps) never participate in the diff.
func canonicalRule(r cfapi.Rule) map[string]any {
	m := map[string]any{
		"name":       r.Name,
		"expression": r.Expression,
		"action":     r.Action,
		"enabled":    r.Enabled,
	}
	if len(r.Params) > 0 {
		m["params"] = r.Params
	}
	if r.RateLimit != nil {
		m["ratelimit"] = r.RateLimit
	}
	return m
}

func toClientRule(spec models.RuleSpec) cfapi.Rule {
	return cfapi.Rule{
		Name:       spec.Name,
		Expression: spec.Expression,
		Action:     spec.Action,
		Enabled:    spec.IsEnabled(),
		Params:     spec.Params,
		RateLimit:  spec.RateLimit,
	}
}
