package catalog

import (
	"testing"

	"github.com/zoneguard/zoneguard/internal/models"
)

func TestBundlesLoadInOrder(t *testing.T) {
	bundles, err := Bundles()
	if err != nil {
		t.Fatalf("Bundles failed: %v", err)
	}

	want := []string{"dns-tls", "speed", "security-settings", "waf-custom", "rate-limiting", "cache-rules"}
	if len(bundles) != len(want) {
		t.Fatalf("got %d bundles, want %d", len(bundles), len(want))
	}
	for i, name := range want {
		if bundles[i].Name != name {
			t.Errorf("bundle %d = %q, want %q", i, bundles[i].Name, name)
		}
	}
}

func TestGetUnknownBundle(t *testing.T) {
	if _, err := Get("DNS-TLS"); err == nil {
		t.Error("Get should be case-sensitive; DNS-TLS must not resolve")
	}
	if _, err := Get("nope"); err == nil {
		t.Error("Get(nope) should fail")
	}
}

func TestRuleBundlesHavePhases(t *testing.T) {
	bundles, err := Bundles()
	if err != nil {
		t.Fatalf("Bundles failed: %v", err)
	}
	for _, b := range bundles {
		if len(b.Rules) > 0 && b.Phase == "" {
			t.Errorf("bundle %q has rules but no phase", b.Name)
		}
		if len(b.Rules) == 0 && len(b.Settings) == 0 {
			t.Errorf("bundle %q is empty", b.Name)
		}
	}
}

func TestSecuritySettingsMarksExperimentalNoRetry(t *testing.T) {
	b, err := Get("security-settings")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	found := false
	for _, s := range b.Settings {
		if s.Key == "hcaptcha_pass" {
			found = true
			if !s.NoRetry {
				t.Error("hcaptcha_pass should be marked no_retry")
			}
		}
	}
	if !found {
		t.Error("security-settings should carry hcaptcha_pass")
	}
}

func TestValidateRejectsDuplicateRuleNames(t *testing.T) {
	b := models.Bundle{
		Name:  "dup",
		Phase: models.PhaseFirewallCustom,
		Rules: []models.RuleSpec{
			{Name: "same", Expression: "true", Action: "block"},
			{Name: "same", Expression: "false", Action: "block"},
		},
	}
	if err := Validate(b); err == nil {
		t.Fatal("duplicate rule names must fail validation")
	}
}

func TestValidateRejectsDuplicateSettingKeys(t *testing.T) {
	b := models.Bundle{
		Name: "dup",
		Settings: []models.PolicySetting{
			{Key: "ssl", Value: "strict"},
			{Key: "ssl", Value: "full"},
		},
	}
	if err := Validate(b); err == nil {
		t.Fatal("duplicate setting keys must fail validation")
	}
}

func TestValidateRejectsRulesWithoutPhase(t *testing.T) {
	b := models.Bundle{
		Name:  "nophase",
		Rules: []models.RuleSpec{{Name: "r", Expression: "true", Action: "block"}},
	}
	if err := Validate(b); err == nil {
		t.Fatal("rules without a phase must fail validation")
	}
}
