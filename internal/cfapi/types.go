package cfapi

import (
	"encoding/json"

	"github.com/zoneguard/zoneguard/internal/models"
)

// envelope is the standard v4 API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []envelopeError `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type envelopeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// firstMessage returns the leading API error message, if any.
func (e envelope) firstMessage() string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Message
	}
	return ""
}

// rulesetInfo is the list-view shape of a ruleset.
type rulesetInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Phase string `json:"phase"`
}

// rulesetDetail is the single-ruleset shape including its rules.
type rulesetDetail struct {
	ID    string     `json:"id"`
	Phase string     `json:"phase"`
	Rules []wireRule `json:"rules"`
}

// wireRule is a rule as the API represents it. Description carries the
// stable rule name; the server-assigned ID is only valid within one zone.
type wireRule struct {
	ID               string                  `json:"id,omitempty"`
	Action           string                  `json:"action"`
	Expression       string                  `json:"expression"`
	Description      string                  `json:"description,omitempty"`
	Enabled          *bool                   `json:"enabled,omitempty"`
	ActionParameters map[string]any          `json:"action_parameters,omitempty"`
	RateLimit        *models.RateLimitParams `json:"ratelimit,omitempty"`
}

// Rule is one entry of a remote rule list as seen by callers. Position is
// the zero-based index within the list at read time.
type Rule struct {
	ID         string
	Name       string
	Expression string
	Action     string
	Enabled    bool
	Params     map[string]any
	RateLimit  *models.RateLimitParams
	Position   int
}

// Position anchors a rule write within the remote list. Zero value means
// "append at the end", the API default.
type Position struct {
	// After is the ID of the rule this one must directly follow.
	After string
	// Index is a one-based absolute index; used when there is no anchor.
	Index int
}

func (p Position) isZero() bool { return p.After == "" && p.Index == 0 }

// wirePosition is the API's position object on rule writes.
type wirePosition struct {
	After string `json:"after,omitempty"`
	Index int    `json:"index,omitempty"`
}

func fromWire(w wireRule, idx int) Rule {
	return Rule{
		ID:         w.ID,
		Name:       w.Description,
		Expression: w.Expression,
		Action:     w.Action,
		Enabled:    w.Enabled == nil || *w.Enabled,
		Params:     w.ActionParameters,
		RateLimit:  w.RateLimit,
		Position:   idx,
	}
}

func toWire(r Rule) wireRule {
	enabled := r.Enabled
	return wireRule{
		ID:               r.ID,
		Action:           r.Action,
		Expression:       r.Expression,
		Description:      r.Name,
		Enabled:          &enabled,
		ActionParameters: r.Params,
		RateLimit:        r.RateLimit,
	}
}
