package reconcile

import (
	"context"
	"fmt"

	"github.com/zoneguard/zoneguard/internal/cfapi"
	"github.com/zoneguard/zoneguard/internal/models"
)

// fakeClient models a zone in memory: a settings map and one ordered rule
// list per phase. Containers behave like the real API's: they do not exist
// until the first rule write, and some phases refuse direct creation.
type fakeClient struct {
	settings map[string]string
	getErr   map[string]error
	setErr   map[string]error

	lists  map[models.RulePhase][]cfapi.Rule
	exists map[models.RulePhase]bool

	// denyCreate makes EnsureRuleList fail outright instead of reporting
	// the list-missing condition the placeholder workaround handles.
	denyCreate bool
	// directCreate lets EnsureRuleList instantiate the container itself,
	// like phases the API allows POST /rulesets for.
	directCreate bool

	upsertErr map[string]error // keyed by rule name

	ops       []string // "get:key", "set:key", "list:phase", "upsert:name", "ensure:phase"
	positions map[string]cfapi.Position
	nextID    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		settings:  map[string]string{},
		getErr:    map[string]error{},
		setErr:    map[string]error{},
		lists:     map[models.RulePhase][]cfapi.Rule{},
		exists:    map[models.RulePhase]bool{},
		upsertErr: map[string]error{},
		positions: map[string]cfapi.Position{},
	}
}

// seed installs a live rule list with positions assigned in order.
func (f *fakeClient) seed(phase models.RulePhase, rules ...cfapi.Rule) {
	f.exists[phase] = true
	for i := range rules {
		if rules[i].ID == "" {
			rules[i].ID = f.newID()
		}
	}
	f.lists[phase] = rules
	f.renumber(phase)
}

func (f *fakeClient) newID() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeClient) renumber(phase models.RulePhase) {
	for i := range f.lists[phase] {
		f.lists[phase][i].Position = i
	}
}

func (f *fakeClient) countOps(prefix string) int {
	n := 0
	for _, op := range f.ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeClient) names(phase models.RulePhase) []string {
	var out []string
	for _, r := range f.lists[phase] {
		out = append(out, r.Name)
	}
	return out
}

func (f *fakeClient) GetSetting(ctx context.Context, key string) (string, error) {
	f.ops = append(f.ops, "get:"+key)
	if err, ok := f.getErr[key]; ok {
		return "", err
	}
	v, ok := f.settings[key]
	if !ok {
		return "", &cfapi.Error{Kind: cfapi.KindNotFound, Op: "get_setting", Target: key, Status: 404}
	}
	return v, nil
}

func (f *fakeClient) SetSetting(ctx context.Context, s models.PolicySetting) error {
	f.ops = append(f.ops, "set:"+s.Key)
	if err, ok := f.setErr[s.Key]; ok {
		return err
	}
	f.settings[s.Key] = s.Value
	return nil
}

func (f *fakeClient) ListRules(ctx context.Context, phase models.RulePhase) ([]cfapi.Rule, error) {
	f.ops = append(f.ops, "list:"+string(phase))
	if !f.exists[phase] {
		return nil, &cfapi.Error{Kind: cfapi.KindListMissing, Op: "list_rules", Target: string(phase)}
	}
	out := make([]cfapi.Rule, len(f.lists[phase]))
	copy(out, f.lists[phase])
	return out, nil
}

func (f *fakeClient) UpsertRule(ctx context.Context, phase models.RulePhase, r cfapi.Rule, pos cfapi.Position) error {
	f.ops = append(f.ops, "upsert:"+r.Name)
	f.positions[r.Name] = pos
	if err, ok := f.upsertErr[r.Name]; ok {
		return err
	}

	// First write instantiates the container.
	f.exists[phase] = true

	list := f.lists[phase]
	if r.ID != "" {
		for i := range list {
			if list[i].ID == r.ID {
				r.Position = list[i].Position
				list[i] = r
				f.lists[phase] = list
				f.move(phase, r.ID, pos)
				return nil
			}
		}
		return &cfapi.Error{Kind: cfapi.KindRemoteRejected, Op: "upsert_rule", Target: r.Name,
			Msg: "no rule with that ID"}
	}

	r.ID = f.newID()
	f.lists[phase] = append(list, r)
	f.move(phase, r.ID, pos)
	return nil
}

// move relocates the identified rule per the position anchor, then
// renumbers. A zero position leaves a new rule at the tail.
func (f *fakeClient) move(phase models.RulePhase, id string, pos cfapi.Position) {
	defer f.renumber(phase)
	if pos.After == "" && pos.Index == 0 {
		return
	}

	list := f.lists[phase]
	var moved cfapi.Rule
	idx := -1
	for i := range list {
		if list[i].ID == id {
			moved, idx = list[i], i
			break
		}
	}
	if idx < 0 {
		return
	}
	list = append(list[:idx], list[idx+1:]...)

	insert := len(list)
	if pos.After != "" {
		for i := range list {
			if list[i].ID == pos.After {
				insert = i + 1
				break
			}
		}
	} else if pos.Index >= 1 {
		insert = pos.Index - 1
		if insert > len(list) {
			insert = len(list)
		}
	}

	list = append(list[:insert], append([]cfapi.Rule{moved}, list[insert:]...)...)
	f.lists[phase] = list
}

func (f *fakeClient) EnsureRuleList(ctx context.Context, phase models.RulePhase) (string, error) {
	f.ops = append(f.ops, "ensure:"+string(phase))
	if f.exists[phase] {
		return "rs-" + string(phase), nil
	}
	if f.denyCreate {
		return "", &cfapi.Error{Kind: cfapi.KindCreationDenied, Op: "ensure_rule_list",
			Target: string(phase), Status: 405}
	}
	if f.directCreate {
		f.exists[phase] = true
		return "rs-" + string(phase), nil
	}
	return "", &cfapi.Error{Kind: cfapi.KindListMissing, Op: "ensure_rule_list",
		Target: string(phase), Status: 400}
}
