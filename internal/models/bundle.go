package models

// RulePhase identifies the remote ruleset phase a rule list lives in.
type RulePhase string

const (
	PhaseFirewallCustom RulePhase = "http_request_firewall_custom"
	PhaseRateLimit      RulePhase = "http_ratelimit"
	PhaseCacheSettings  RulePhase = "http_request_cache_settings"
)

// Bundle is a named, ordered group of settings and/or rules deployed
// together. Bundles are independent: a failure in one never blocks another.
type Bundle struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Settings    []PolicySetting `yaml:"settings,omitempty"`
	Phase       RulePhase       `yaml:"phase,omitempty"`
	Rules       []RuleSpec      `yaml:"rules,omitempty"`
}

// PolicySetting is a scalar zone-level toggle. Key is the Cloudflare
// setting name; special keys (dnssec, page_shield, bot_fight_mode) route to
// their own endpoints in the API client.
type PolicySetting struct {
	Key          string `yaml:"key"`
	FriendlyName string `yaml:"friendly_name,omitempty"`
	Value        string `yaml:"value"`
	// NoRetry marks settings whose failures are treated as rejections
	// rather than transient conditions (experimental zone features).
	NoRetry bool `yaml:"no_retry,omitempty"`
}

// RuleSpec is one entry in an ordered remote rule list. Name is the stable
// identity used to detect "already applied" vs "needs update"; priority is
// derived from declaration order in the bundle, never stored.
type RuleSpec struct {
	Name       string           `yaml:"name"`
	Expression string           `yaml:"expression"`
	Action     string           `yaml:"action"`
	Enabled    *bool            `yaml:"enabled,omitempty"`
	Params     map[string]any   `yaml:"params,omitempty"`
	RateLimit  *RateLimitParams `yaml:"ratelimit,omitempty"`
}

// RateLimitParams carries the rate-limiting block for http_ratelimit rules.
type RateLimitParams struct {
	Characteristics   []string `yaml:"characteristics" json:"characteristics"`
	Period            int      `yaml:"period" json:"period"`
	RequestsPerPeriod int      `yaml:"requests_per_period" json:"requests_per_period"`
	MitigationTimeout int      `yaml:"mitigation_timeout" json:"mitigation_timeout"`
}

// IsEnabled returns the effective enabled flag (default true).
func (r RuleSpec) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}
