package reconcile

import (
	"context"
	"testing"

	"github.com/zoneguard/zoneguard/internal/cfapi"
	"github.com/zoneguard/zoneguard/internal/models"
)

func TestRunReachesDone(t *testing.T) {
	fc := newFakeClient()
	r := NewRunner(fc, false)
	if r.State() != StateIdle {
		t.Errorf("initial state = %s, want idle", r.State())
	}

	r.Run(context.Background(), []models.Bundle{
		{Name: "b", Settings: []models.PolicySetting{{Key: "ssl", Value: "strict"}}},
	})

	if r.State() != StateDone {
		t.Errorf("final state = %s, want done", r.State())
	}
}

func TestRunSummaryCounts(t *testing.T) {
	fc := newFakeClient()
	fc.settings["ssl"] = "strict"           // skip
	fc.settings["always_use_https"] = "off" // update
	fc.seed(models.PhaseFirewallCustom)     // empty container, rules created

	bundles := []models.Bundle{
		{Name: "settings", Settings: []models.PolicySetting{
			{Key: "ssl", Value: "strict"},
			{Key: "always_use_https", Value: "on"},
			{Key: "early_hints", Value: "on"},
		}},
		{Name: "rules", Phase: models.PhaseFirewallCustom,
			Rules: []models.RuleSpec{specRule("a"), specRule("b")}},
	}

	summary := NewRunner(fc, false).Run(context.Background(), bundles)

	if summary.Created != 3 || summary.Updated != 1 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Errorf("summary = created %d updated %d skipped %d failed %d, want 3/1/1/0",
			summary.Created, summary.Updated, summary.Skipped, summary.Failed)
	}
	if !summary.Clean() {
		t.Error("summary should be clean")
	}
	if len(summary.Bundles) != 2 {
		t.Errorf("bundle results = %d, want 2", len(summary.Bundles))
	}
}

func TestRunIsolatesBundleFailures(t *testing.T) {
	fc := newFakeClient()
	fc.seed(models.PhaseFirewallCustom)
	fc.upsertErr["a"] = &cfapi.Error{Kind: cfapi.KindRemoteRejected, Op: "upsert_rule",
		Target: "a", Status: 400, Msg: "expression invalid"}

	bundles := []models.Bundle{
		{Name: "broken", Phase: models.PhaseFirewallCustom, Rules: []models.RuleSpec{specRule("a")}},
		{Name: "healthy", Settings: []models.PolicySetting{{Key: "early_hints", Value: "on"}}},
	}

	summary := NewRunner(fc, false).Run(context.Background(), bundles)

	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if fc.settings["early_hints"] != "on" {
		t.Error("a failure in one bundle must not block the next")
	}

	failed := summary.FailedBundles()
	if len(failed) != 1 || failed[0].Bundle != "broken" {
		t.Errorf("failed bundles = %v, want just broken", failed)
	}
	if summary.Clean() {
		t.Error("summary with failures must not be clean")
	}
}

func TestRunPrerequisiteFailureKeepsSettings(t *testing.T) {
	fc := newFakeClient()
	fc.denyCreate = true

	bundles := []models.Bundle{{
		Name:     "mixed",
		Phase:    models.PhaseFirewallCustom,
		Settings: []models.PolicySetting{{Key: "ssl", Value: "strict"}},
		Rules:    []models.RuleSpec{specRule("a")},
	}}

	summary := NewRunner(fc, false).Run(context.Background(), bundles)

	br := summary.Bundles[0]
	if br.ErrorKind != string(cfapi.KindPrerequisiteUnavailable) {
		t.Errorf("bundle error kind = %q, want prerequisite_unavailable", br.ErrorKind)
	}
	if len(br.Results) != 1 || br.Results[0].Kind != "setting" {
		t.Errorf("settings results must be retained, got %v", br.Results)
	}
	if br.Results[0].Action != models.ActionCreated {
		t.Errorf("setting action = %s, want created", br.Results[0].Action)
	}
	if !br.Failed() {
		t.Error("bundle must report failure")
	}
	if fc.settings["ssl"] != "strict" {
		t.Error("setting write preceding the prerequisite failure must stand")
	}
}

func TestRunOrderIsRequestOrder(t *testing.T) {
	fc := newFakeClient()
	bundles := []models.Bundle{
		{Name: "second-alphabetically", Settings: []models.PolicySetting{{Key: "b_key", Value: "on"}}},
		{Name: "first-alphabetically", Settings: []models.PolicySetting{{Key: "a_key", Value: "on"}}},
	}

	summary := NewRunner(fc, false).Run(context.Background(), bundles)

	if summary.Bundles[0].Bundle != "second-alphabetically" {
		t.Error("bundles must execute strictly in the requested order")
	}
	if fc.ops[0] != "get:b_key" {
		t.Errorf("first remote call = %s, want get:b_key", fc.ops[0])
	}
}
