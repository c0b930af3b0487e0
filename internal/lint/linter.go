// Package lint validates the policy catalog against CEL invariants before
// any remote call is made.
package lint

import (
	"fmt"
	"strings"

	"embed"

	"github.com/google/cel-go/cel"
	"github.com/zoneguard/zoneguard/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesFS embed.FS

// lintRule is one CEL invariant from rules.yaml.
type lintRule struct {
	Name       string `yaml:"name"`
	Target     string `yaml:"target"` // "rule" or "setting"
	Expr       string `yaml:"expr"`
	FailureMsg string `yaml:"failure_msg"`
}

type rulesFile struct {
	Name  string     `yaml:"name"`
	Rules []lintRule `yaml:"rules"`
}

// Issue is one failed invariant for one catalog entry.
type Issue struct {
	Bundle string
	Target string // setting key or rule name
	Rule   string // invariant name
	Msg    string
}

func (i Issue) String() string {
	return fmt.Sprintf("bundle %q, %s: %s (%s)", i.Bundle, i.Target, i.Msg, i.Rule)
}

// Linter evaluates the embedded invariants against catalog entries.
type Linter struct {
	env      *cel.Env
	programs []compiledRule
}

type compiledRule struct {
	lintRule
	prg cel.Program
}

// NewLinter compiles every embedded invariant; a rule that fails to compile
// is a programming error surfaced immediately.
func NewLinter() (*Linter, error) {
	env, err := cel.NewEnv(
		cel.Variable("rule", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("setting", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	data, err := rulesFS.ReadFile("rules.yaml")
	if err != nil {
		return nil, fmt.Errorf("read lint rules: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse lint rules: %w", err)
	}

	l := &Linter{env: env}
	var compileErrs []string
	for _, r := range file.Rules {
		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			compileErrs = append(compileErrs, fmt.Sprintf("rule %q: %v", r.Name, issues.Err()))
			continue
		}
		prg, err := env.Program(ast)
		if err != nil {
			compileErrs = append(compileErrs, fmt.Sprintf("rule %q: %v", r.Name, err))
			continue
		}
		l.programs = append(l.programs, compiledRule{lintRule: r, prg: prg})
	}
	if len(compileErrs) > 0 {
		return nil, fmt.Errorf("lint rule compilation failed:\n  %s", strings.Join(compileErrs, "\n  "))
	}

	return l, nil
}

// LintBundle checks every entry of one bundle and returns the failed
// invariants.
func (l *Linter) LintBundle(b models.Bundle) []Issue {
	var issues []Issue

	for _, s := range b.Settings {
		input := map[string]any{"setting": settingToMap(s)}
		issues = append(issues, l.run("setting", s.Key, b.Name, input)...)
	}

	for _, r := range b.Rules {
		input := map[string]any{"rule": ruleToMap(r, b.Phase)}
		issues = append(issues, l.run("rule", r.Name, b.Name, input)...)
	}

	return issues
}

// Catalog lints every bundle and returns all issues.
func (l *Linter) Catalog(bundles []models.Bundle) []Issue {
	var issues []Issue
	for _, b := range bundles {
		issues = append(issues, l.LintBundle(b)...)
	}
	return issues
}

func (l *Linter) run(target, name, bundle string, input map[string]any) []Issue {
	var issues []Issue
	for _, cr := range l.programs {
		if cr.Target != target {
			continue
		}

		// Both variables must be bound for eval even when only one is used.
		full := map[string]any{
			"rule":    map[string]any{},
			"setting": map[string]any{},
		}
		for k, v := range input {
			full[k] = v
		}

		out, _, err := cr.prg.Eval(full)
		if err != nil {
			issues = append(issues, Issue{Bundle: bundle, Target: name, Rule: cr.Name,
				Msg: fmt.Sprintf("evaluation error: %v", err)})
			continue
		}

		passed, ok := out.Value().(bool)
		if !ok {
			issues = append(issues, Issue{Bundle: bundle, Target: name, Rule: cr.Name,
				Msg: fmt.Sprintf("invariant must return boolean, got %T", out.Value())})
			continue
		}
		if !passed {
			issues = append(issues, Issue{Bundle: bundle, Target: name, Rule: cr.Name, Msg: cr.FailureMsg})
		}
	}
	return issues
}

func settingToMap(s models.PolicySetting) map[string]any {
	return map[string]any{
		"key":      s.Key,
		"value":    s.Value,
		"no_retry": s.NoRetry,
	}
}

func ruleToMap(r models.RuleSpec, phase models.RulePhase) map[string]any {
	m := map[string]any{
		"name":          r.Name,
		"expression":    r.Expression,
		"action":        r.Action,
		"enabled":       r.IsEnabled(),
		"phase":         string(phase),
		"has_ratelimit": r.RateLimit != nil,
		// zero defaults so bounds rules evaluate without has_ratelimit guards
		"characteristics":     []any{},
		"period":              0,
		"requests_per_period": 0,
		"mitigation_timeout":  0,
	}
	if r.RateLimit != nil {
		chars := make([]any, len(r.RateLimit.Characteristics))
		for i, c := range r.RateLimit.Characteristics {
			chars[i] = c
		}
		m["characteristics"] = chars
		m["period"] = r.RateLimit.Period
		m["requests_per_period"] = r.RateLimit.RequestsPerPeriod
		m["mitigation_timeout"] = r.RateLimit.MitigationTimeout
	}
	return m
}
