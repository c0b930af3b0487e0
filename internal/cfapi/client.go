// Package cfapi is the remote resource client for a single Cloudflare zone.
// Every exported method is exactly one remote mutation or read; transient
// failures are retried here so callers never see them until the budget is
// exhausted.
package cfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zoneguard/zoneguard/internal/models"
	"github.com/zoneguard/zoneguard/internal/observability/logging"
)

const (
	// DefaultBaseURL is the production v4 API endpoint.
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	// defaultTimeout bounds each round trip.
	defaultTimeout = 30 * time.Second
)

// Client talks to the zone configuration API. It owns all transport and
// session state; callers hold no remote state of their own.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	zoneID string
	token  string

	mu        sync.Mutex
	ruleLists map[models.RulePhase]string // phase -> entrypoint ruleset ID
}

// NewClient builds a client for one zone with a static bearer token.
func NewClient(token, zoneID string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		zoneID:     zoneID,
		token:      token,
		ruleLists:  map[models.RulePhase]string{},
	}
}

// GetSetting reads the current value of a zone setting, normalized to the
// catalog's string representation.
func (c *Client) GetSetting(ctx context.Context, key string) (string, error) {
	route := routeFor(key)

	var value string
	err := withRetry(ctx, maxAttempts, func() error {
		result, err := c.do(ctx, "get_setting", key, http.MethodGet, c.zonePath(route.path), nil, KindNotFound)
		if err != nil {
			return err
		}
		value, err = route.read(result)
		return err
	})
	return value, err
}

// SetSetting writes one zone setting. Settings marked no-retry have their
// transient failures reported as rejections instead of being retried;
// experience says retrying them does not help.
func (c *Client) SetSetting(ctx context.Context, s models.PolicySetting) error {
	route := routeFor(s.Key)
	attempts := uint(maxAttempts)
	if s.NoRetry {
		attempts = 1
	}

	err := withRetry(ctx, attempts, func() error {
		_, err := c.do(ctx, "set_setting", s.Key, route.method, c.zonePath(route.path), route.body(s.Value), KindNotFound)
		return err
	})
	if err != nil && s.NoRetry {
		var ae *Error
		if errors.As(err, &ae) && ae.Kind == KindTransient {
			ae.Kind = KindRemoteRejected
		}
	}
	return err
}

// ListRules returns the ordered rules of the phase's zone entrypoint
// ruleset. Fails with a list-missing error when the zone has no entrypoint
// for the phase.
func (c *Client) ListRules(ctx context.Context, phase models.RulePhase) ([]Rule, error) {
	var rules []Rule
	err := withRetry(ctx, maxAttempts, func() error {
		id, err := c.findRuleList(ctx, phase)
		if err != nil {
			return err
		}

		result, err := c.do(ctx, "list_rules", string(phase), http.MethodGet, c.zonePath("/rulesets/"+id), nil, KindListMissing)
		if err != nil {
			return err
		}

		var detail rulesetDetail
		if err := json.Unmarshal(result, &detail); err != nil {
			return fmt.Errorf("parse ruleset %s: %w", id, err)
		}

		rules = rules[:0]
		for i, w := range detail.Rules {
			rules = append(rules, fromWire(w, i))
		}
		return nil
	})
	return rules, err
}

// UpsertRule writes one rule into the phase's rule list: an update in place
// when the rule carries a remote ID, otherwise a create at the given
// position. Writing into a phase with no entrypoint goes through the phase
// entrypoint resource, whose first write instantiates the container.
func (c *Client) UpsertRule(ctx context.Context, phase models.RulePhase, r Rule, pos Position) error {
	body := struct {
		wireRule
		Position *wirePosition `json:"position,omitempty"`
	}{wireRule: toWire(r)}
	body.ID = "" // ID travels in the URL, never the body
	if !pos.isZero() {
		body.Position = &wirePosition{After: pos.After, Index: pos.Index}
	}

	return withRetry(ctx, maxAttempts, func() error {
		if r.ID != "" {
			id, err := c.findRuleList(ctx, phase)
			if err != nil {
				return err
			}
			_, err = c.do(ctx, "upsert_rule", r.Name, http.MethodPatch,
				c.zonePath("/rulesets/"+id+"/rules/"+r.ID), body, KindListMissing)
			return err
		}

		id, err := c.findRuleList(ctx, phase)
		switch {
		case err == nil:
			_, err = c.do(ctx, "upsert_rule", r.Name, http.MethodPost,
				c.zonePath("/rulesets/"+id+"/rules"), body, KindListMissing)
			return err
		case KindOf(err) == KindListMissing:
			// First write through the entrypoint creates the container.
			_, err = c.do(ctx, "upsert_rule", r.Name, http.MethodPost,
				c.zonePath("/rulesets/phases/"+string(phase)+"/entrypoint/rules"), body, KindListMissing)
			if err == nil {
				c.forgetRuleList(phase)
			}
			return err
		default:
			return err
		}
	})
}

// EnsureRuleList resolves the phase's zone entrypoint ruleset ID, creating
// the ruleset when the zone has none. Phases the API refuses to instantiate
// directly (it answers 400 to the create) surface a list-missing error so
// the prerequisite resolver can apply the placeholder workaround.
func (c *Client) EnsureRuleList(ctx context.Context, phase models.RulePhase) (string, error) {
	var id string
	err := withRetry(ctx, maxAttempts, func() error {
		found, err := c.findRuleList(ctx, phase)
		if err == nil {
			id = found
			return nil
		}
		if KindOf(err) != KindListMissing {
			return err
		}

		created, err := c.createRuleList(ctx, phase)
		if err != nil {
			return err
		}
		id = created
		return nil
	})
	return id, err
}

func (c *Client) createRuleList(ctx context.Context, phase models.RulePhase) (string, error) {
	body := map[string]any{
		"name":        "zoneguard " + string(phase),
		"description": "Zone entrypoint ruleset managed by zoneguard",
		"kind":        "zone",
		"phase":       string(phase),
	}

	result, err := c.do(ctx, "ensure_rule_list", string(phase), http.MethodPost, c.zonePath("/rulesets"), body, KindCreationDenied)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) && ae.Kind == KindRemoteRejected {
			if ae.Status == http.StatusBadRequest {
				// The API refuses direct creation for this phase; the
				// container only comes into being on first rule write.
				ae.Kind = KindListMissing
			} else {
				ae.Kind = KindCreationDenied
			}
		}
		return "", err
	}

	var created rulesetInfo
	if err := json.Unmarshal(result, &created); err != nil {
		return "", fmt.Errorf("parse created ruleset: %w", err)
	}
	if created.ID == "" {
		return "", &Error{Kind: KindCreationDenied, Op: "ensure_rule_list", Target: string(phase),
			Msg: "create succeeded but returned no ruleset ID"}
	}

	c.mu.Lock()
	c.ruleLists[phase] = created.ID
	c.mu.Unlock()
	return created.ID, nil
}

// findRuleList resolves phase -> entrypoint ruleset ID, consulting the
// remote list on cache miss.
func (c *Client) findRuleList(ctx context.Context, phase models.RulePhase) (string, error) {
	c.mu.Lock()
	if id, ok := c.ruleLists[phase]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	result, err := c.do(ctx, "find_rule_list", string(phase), http.MethodGet, c.zonePath("/rulesets"), nil, KindListMissing)
	if err != nil {
		return "", err
	}

	var infos []rulesetInfo
	if err := json.Unmarshal(result, &infos); err != nil {
		return "", fmt.Errorf("parse ruleset list: %w", err)
	}

	for _, rs := range infos {
		if rs.Kind == "zone" && rs.Phase == string(phase) {
			c.mu.Lock()
			c.ruleLists[phase] = rs.ID
			c.mu.Unlock()
			return rs.ID, nil
		}
	}

	return "", &Error{Kind: KindListMissing, Op: "find_rule_list", Target: string(phase),
		Msg: "zone has no entrypoint ruleset for this phase"}
}

func (c *Client) forgetRuleList(phase models.RulePhase) {
	c.mu.Lock()
	delete(c.ruleLists, phase)
	c.mu.Unlock()
}

func (c *Client) zonePath(suffix string) string {
	return "/zones/" + c.zoneID + suffix
}

// do performs one HTTP round trip and returns the envelope result.
// notFound is the kind reported for a 404, which means different things
// depending on the resource addressed.
func (c *Client) do(ctx context.Context, op, target, method, path string, body any, notFound Kind) (json.RawMessage, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	logging.From(ctx).Debug("cfapi", "request", "op", op, "method", method, "path", path)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Target: target, Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 {
		kind := classifyStatus(resp.StatusCode)
		if resp.StatusCode == http.StatusNotFound {
			kind = notFound
		}
		return nil, &Error{Kind: kind, Op: op, Target: target, Status: resp.StatusCode, Msg: env.firstMessage()}
	}
	if decodeErr != nil {
		return nil, &Error{Kind: KindTransient, Op: op, Target: target, Status: resp.StatusCode,
			Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if !env.Success {
		return nil, &Error{Kind: KindRemoteRejected, Op: op, Target: target, Status: resp.StatusCode, Msg: env.firstMessage()}
	}

	return env.Result, nil
}
