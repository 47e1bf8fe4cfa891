package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrymomot/flagkit/pkg/condition"
)

// Datafile schema versions that gate optional sections.
const (
	versionMin       = 2
	versionVariables = 3 // variables[], anonymizeIP
	versionFeatures  = 4 // featureFlags[], rollouts[], botFiltering
)

const maxTrafficValue = 10000

type rawDatafile struct {
	AccountID      string          `json:"accountId"`
	ProjectID      string          `json:"projectId"`
	Revision       string          `json:"revision"`
	Version        string          `json:"version"`
	AnonymizeIP    bool            `json:"anonymizeIP"`
	BotFiltering   *bool           `json:"botFiltering"`
	Experiments    []rawExperiment `json:"experiments"`
	Attributes     []rawAttribute  `json:"attributes"`
	Events         []rawEvent      `json:"events"`
	Audiences      []rawAudience   `json:"audiences"`
	TypedAudiences []rawAudience   `json:"typedAudiences"`
	Groups         []rawGroup      `json:"groups"`
	Variables      []rawVariable   `json:"variables"`
	FeatureFlags   []rawFeature    `json:"featureFlags"`
	Rollouts       []rawRollout    `json:"rollouts"`
}

type rawExperiment struct {
	ID                 string            `json:"id"`
	Key                string            `json:"key"`
	Status             string            `json:"status"`
	LayerID            string            `json:"layerId"`
	AudienceIDs        []string          `json:"audienceIds"`
	AudienceConditions json.RawMessage   `json:"audienceConditions"`
	Variations         []rawVariation    `json:"variations"`
	ForcedVariations   map[string]string `json:"forcedVariations"`
	TrafficAllocation  []rawAllocation   `json:"trafficAllocation"`
}

type rawVariation struct {
	ID             string        `json:"id"`
	Key            string        `json:"key"`
	FeatureEnabled bool          `json:"featureEnabled"`
	Variables      []rawVarUsage `json:"variables"`
}

type rawVarUsage struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type rawAllocation struct {
	EntityID   string `json:"entityId"`
	EndOfRange int    `json:"endOfRange"`
}

type rawAttribute struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type rawEvent struct {
	ID            string   `json:"id"`
	Key           string   `json:"key"`
	ExperimentIDs []string `json:"experimentIds"`
}

type rawAudience struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Conditions json.RawMessage `json:"conditions"`
}

type rawGroup struct {
	ID                string          `json:"id"`
	Policy            string          `json:"policy"`
	Experiments       []rawExperiment `json:"experiments"`
	TrafficAllocation []rawAllocation `json:"trafficAllocation"`
}

type rawVariable struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	Type         string `json:"type"`
	DefaultValue string `json:"defaultValue"`
}

type rawFeature struct {
	ID            string        `json:"id"`
	Key           string        `json:"key"`
	RolloutID     string        `json:"rolloutId"`
	ExperimentIDs []string      `json:"experimentIds"`
	Variables     []rawVariable `json:"variables"`
}

type rawRollout struct {
	ID          string          `json:"id"`
	Experiments []rawExperiment `json:"experiments"`
}

// ParseDatafile validates and parses a JSON datafile into an immutable
// ProjectConfig. Any structural failure returns ErrInvalidDatafile and no
// snapshot.
func ParseDatafile(datafile []byte) (*ProjectConfig, error) {
	var raw rawDatafile
	if err := json.Unmarshal(datafile, &raw); err != nil {
		return nil, errors.Join(ErrInvalidDatafile, err)
	}

	if raw.AccountID == "" || raw.ProjectID == "" || raw.Revision == "" || raw.Version == "" {
		return nil, errors.Join(ErrInvalidDatafile,
			errors.New("accountId, projectId, revision and version are required"))
	}

	version, err := strconv.Atoi(raw.Version)
	if err != nil {
		return nil, errors.Join(ErrInvalidDatafile, fmt.Errorf("version %q is not numeric", raw.Version))
	}
	if version < versionMin {
		return nil, errors.Join(ErrInvalidDatafile, ErrUnsupportedVersion,
			fmt.Errorf("version %d, minimum supported is %d", version, versionMin))
	}

	p := &ProjectConfig{
		AccountID:        raw.AccountID,
		ProjectID:        raw.ProjectID,
		Revision:         raw.Revision,
		Version:          version,
		experimentsByID:  make(map[string]*Experiment),
		experimentsByKey: make(map[string]*Experiment),
		featuresByID:     make(map[string]*FeatureFlag),
		featuresByKey:    make(map[string]*FeatureFlag),
		audiencesByID:    make(map[string]*Audience),
		groupsByID:       make(map[string]*Group),
		rolloutsByID:     make(map[string]*Rollout),
		eventsByKey:      make(map[string]*Event),
		attributesByKey:  make(map[string]*Attribute),
		variablesByID:    make(map[string]*Variable),
	}

	for _, ra := range raw.Audiences {
		aud, err := buildAudience(ra, true)
		if err != nil {
			return nil, errors.Join(ErrInvalidDatafile, err)
		}
		p.audiencesByID[aud.ID] = aud
	}
	// Typed audiences shadow same-id legacy audiences.
	for _, ra := range raw.TypedAudiences {
		aud, err := buildAudience(ra, false)
		if err != nil {
			return nil, errors.Join(ErrInvalidDatafile, err)
		}
		p.audiencesByID[aud.ID] = aud
	}

	addExperiment := func(re rawExperiment, groupID string) error {
		exp, err := buildExperiment(re, groupID)
		if err != nil {
			return err
		}
		p.experiments = append(p.experiments, exp)
		p.experimentsByID[exp.ID] = exp
		p.experimentsByKey[exp.Key] = exp
		return nil
	}

	for _, re := range raw.Experiments {
		if err := addExperiment(re, ""); err != nil {
			return nil, errors.Join(ErrInvalidDatafile, err)
		}
	}

	for _, rg := range raw.Groups {
		if rg.ID == "" {
			return nil, errors.Join(ErrInvalidDatafile, errors.New("group id is required"))
		}
		alloc, err := buildAllocations(rg.TrafficAllocation)
		if err != nil {
			return nil, errors.Join(ErrInvalidDatafile, fmt.Errorf("group %q: %w", rg.ID, err))
		}
		g := &Group{
			ID:                rg.ID,
			Policy:            GroupPolicy(rg.Policy),
			TrafficAllocation: alloc,
		}
		for _, re := range rg.Experiments {
			if err := addExperiment(re, rg.ID); err != nil {
				return nil, errors.Join(ErrInvalidDatafile, err)
			}
			g.ExperimentIDs = append(g.ExperimentIDs, re.ID)
		}
		p.groupsByID[g.ID] = g
	}

	for _, re := range raw.Events {
		ev := &Event{ID: re.ID, Key: re.Key, ExperimentIDs: re.ExperimentIDs}
		p.eventsByKey[ev.Key] = ev
	}

	for _, ra := range raw.Attributes {
		attr := &Attribute{ID: ra.ID, Key: ra.Key}
		p.attributesByKey[attr.Key] = attr
	}

	if version >= versionVariables {
		p.AnonymizeIP = raw.AnonymizeIP
		for _, rv := range raw.Variables {
			v := buildVariable(rv)
			p.variablesByID[v.ID] = &v
		}
	}

	if version >= versionFeatures {
		p.BotFiltering = raw.BotFiltering
		for _, rr := range raw.Rollouts {
			ro := &Rollout{ID: rr.ID}
			for _, re := range rr.Experiments {
				rule, err := buildExperiment(re, "")
				if err != nil {
					return nil, errors.Join(ErrInvalidDatafile, fmt.Errorf("rollout %q: %w", rr.ID, err))
				}
				ro.Rules = append(ro.Rules, *rule)
			}
			p.rolloutsByID[ro.ID] = ro
		}
		for _, rf := range raw.FeatureFlags {
			if rf.Key == "" {
				return nil, errors.Join(ErrInvalidDatafile, errors.New("feature flag key is required"))
			}
			f := &FeatureFlag{
				ID:            rf.ID,
				Key:           rf.Key,
				RolloutID:     rf.RolloutID,
				ExperimentIDs: rf.ExperimentIDs,
			}
			for _, rv := range rf.Variables {
				f.Variables = append(f.Variables, buildVariable(rv))
			}
			p.features = append(p.features, f)
			p.featuresByID[f.ID] = f
			p.featuresByKey[f.Key] = f
		}
	}

	return p, nil
}

func buildExperiment(re rawExperiment, groupID string) (*Experiment, error) {
	if re.ID == "" || re.Key == "" {
		return nil, errors.New("experiment id and key are required")
	}

	alloc, err := buildAllocations(re.TrafficAllocation)
	if err != nil {
		return nil, fmt.Errorf("experiment %q: %w", re.Key, err)
	}

	exp := &Experiment{
		ID:                re.ID,
		Key:               re.Key,
		Status:            parseStatus(re.Status),
		LayerID:           re.LayerID,
		GroupID:           groupID,
		AudienceIDs:       re.AudienceIDs,
		TrafficAllocation: alloc,
		ForcedVariations:  re.ForcedVariations,
	}
	if exp.ForcedVariations == nil {
		exp.ForcedVariations = map[string]string{}
	}

	if len(re.AudienceConditions) > 0 {
		tree, err := parseAudienceIDConditions(re.AudienceConditions)
		if err != nil {
			return nil, fmt.Errorf("experiment %q audience conditions: %w", re.Key, err)
		}
		exp.AudienceConditions = tree
	}

	for _, rv := range re.Variations {
		if rv.ID == "" || rv.Key == "" {
			return nil, fmt.Errorf("experiment %q: variation id and key are required", re.Key)
		}
		v := Variation{ID: rv.ID, Key: rv.Key, FeatureEnabled: rv.FeatureEnabled}
		if len(rv.Variables) > 0 {
			v.Variables = make(map[string]string, len(rv.Variables))
			for _, u := range rv.Variables {
				v.Variables[u.ID] = u.Value
			}
		}
		exp.Variations = append(exp.Variations, v)
	}

	return exp, nil
}

func buildAllocations(raws []rawAllocation) ([]TrafficAllocation, error) {
	alloc := make([]TrafficAllocation, 0, len(raws))
	prev := 0
	for _, ra := range raws {
		if ra.EndOfRange <= prev || ra.EndOfRange > maxTrafficValue {
			return nil, fmt.Errorf("traffic allocation ranges must be strictly increasing within (0, %d], got %d after %d",
				maxTrafficValue, ra.EndOfRange, prev)
		}
		prev = ra.EndOfRange
		alloc = append(alloc, TrafficAllocation{EntityID: ra.EntityID, EndOfRange: ra.EndOfRange})
	}
	return alloc, nil
}

func buildAudience(ra rawAudience, legacy bool) (*Audience, error) {
	if ra.ID == "" {
		return nil, errors.New("audience id is required")
	}
	aud := &Audience{ID: ra.ID, Name: ra.Name}
	if len(ra.Conditions) == 0 {
		return aud, nil
	}

	raw := ra.Conditions
	if legacy {
		// Legacy audiences carry their conditions as a JSON-encoded string.
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err == nil {
			raw = []byte(encoded)
		}
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("audience %q conditions: %w", ra.ID, err)
	}
	tree, err := parseAttributeConditions(decoded)
	if err != nil {
		return nil, fmt.Errorf("audience %q conditions: %w", ra.ID, err)
	}
	aud.Conditions = tree
	return aud, nil
}

func buildVariable(rv rawVariable) Variable {
	return Variable{
		ID:           rv.ID,
		Key:          rv.Key,
		Type:         VariableType(rv.Type),
		DefaultValue: rv.DefaultValue,
	}
}

func parseStatus(s string) Status {
	switch Status(s) {
	case StatusRunning, StatusPaused:
		return Status(s)
	default:
		// Unknown or absent statuses never dispatch events, which is the
		// safe interpretation for forward-compatibility.
		return StatusNotStarted
	}
}

// parseAttributeConditions parses an audience condition structure whose
// leaves are attribute-match objects. Empty operator lists collapse to nil,
// meaning "no conditions", which always passes the gate.
func parseAttributeConditions(v any) (*condition.Node, error) {
	return parseConditions(v, func(leaf any) (*condition.Node, error) {
		m, ok := leaf.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected condition leaf %T", leaf)
		}
		attr := &condition.Attribute{Value: m["value"]}
		attr.Name, _ = m["name"].(string)
		if attr.Name == "" {
			return nil, errors.New("condition leaf is missing an attribute name")
		}
		if t, ok := m["type"].(string); ok {
			attr.Type = t
		}
		if match, ok := m["match"].(string); ok {
			attr.Match = condition.MatchType(match)
		}
		return &condition.Node{Attribute: attr}, nil
	})
}

// parseAudienceIDConditions parses an experiment-level audience condition
// structure whose leaves are audience-id strings.
func parseAudienceIDConditions(raw json.RawMessage) (*condition.Node, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return parseConditions(decoded, func(leaf any) (*condition.Node, error) {
		id, ok := leaf.(string)
		if !ok || id == "" {
			return nil, fmt.Errorf("unexpected audience condition leaf %T", leaf)
		}
		return condition.AudienceRef(id), nil
	})
}

func parseConditions(v any, leaf func(any) (*condition.Node, error)) (*condition.Node, error) {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return leaf(v)
	}

	op := condition.OpOr
	operands := list
	if len(list) > 0 {
		if s, ok := list[0].(string); ok {
			switch condition.Operator(s) {
			case condition.OpAnd, condition.OpOr, condition.OpNot:
				op = condition.Operator(s)
				operands = list[1:]
			}
		}
	}

	children := make([]*condition.Node, 0, len(operands))
	for _, operand := range operands {
		child, err := parseConditions(operand, leaf)
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}
	if len(children) == 0 {
		return nil, nil
	}
	return &condition.Node{Op: op, Children: children}, nil
}
