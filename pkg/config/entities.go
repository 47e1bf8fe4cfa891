package config

import "github.com/dmitrymomot/flagkit/pkg/condition"

// Status is the lifecycle state of an experiment. Decisions are computed
// regardless of status; only event dispatch is gated on StatusRunning.
type Status string

const (
	StatusNotStarted Status = "Not started"
	StatusRunning    Status = "Running"
	StatusPaused     Status = "Paused"
)

// GroupPolicy controls how member experiments of a group share traffic.
type GroupPolicy string

const (
	// PolicyRandom makes member experiments mutually exclusive: a user is
	// bucketed into at most one of them via the group's traffic allocation.
	PolicyRandom GroupPolicy = "random"
	// PolicyOverlapping lets member experiments bucket independently.
	PolicyOverlapping GroupPolicy = "overlapping"
)

// VariableType is the declared type of a feature variable.
type VariableType string

const (
	VariableTypeBoolean VariableType = "boolean"
	VariableTypeDouble  VariableType = "double"
	VariableTypeInteger VariableType = "integer"
	VariableTypeString  VariableType = "string"
)

// TrafficAllocation is one cumulative range: a bucket value v selects
// EntityID when v < EndOfRange and v was not captured by an earlier range.
// EndOfRange is in basis points out of 10,000; ranges are strictly
// increasing and may leave the tail of the space unallocated.
type TrafficAllocation struct {
	EntityID   string
	EndOfRange int
}

// Variation is one arm of an experiment.
type Variation struct {
	ID             string
	Key            string
	FeatureEnabled bool
	// Variables maps variable id to the override value this variation carries.
	Variables map[string]string
}

// Experiment is a traffic-split over variations, optionally gated by
// audiences and owned by a mutual-exclusion group. Rollout targeting rules
// reuse this type: each rule is a single-variation experiment.
type Experiment struct {
	ID      string
	Key     string
	Status  Status
	LayerID string
	GroupID string

	// AudienceIDs is the legacy OR-list form of audience gating.
	// AudienceConditions, when present, takes precedence over it.
	AudienceIDs        []string
	AudienceConditions *condition.Node

	Variations        []Variation
	TrafficAllocation []TrafficAllocation

	// ForcedVariations maps user id to variation key (datafile whitelist).
	ForcedVariations map[string]string
}

// VariationByID returns the variation with the given id.
func (e *Experiment) VariationByID(id string) (*Variation, bool) {
	for i := range e.Variations {
		if e.Variations[i].ID == id {
			return &e.Variations[i], true
		}
	}
	return nil, false
}

// VariationByKey returns the variation with the given key.
func (e *Experiment) VariationByKey(key string) (*Variation, bool) {
	for i := range e.Variations {
		if e.Variations[i].Key == key {
			return &e.Variations[i], true
		}
	}
	return nil, false
}

// Group is a set of mutually exclusive (or overlapping) experiments sharing
// one traffic pool. Its allocation ranges are keyed by experiment id.
type Group struct {
	ID                string
	Policy            GroupPolicy
	ExperimentIDs     []string
	TrafficAllocation []TrafficAllocation
}

// Audience names a reusable condition tree over user attributes.
type Audience struct {
	ID         string
	Name       string
	Conditions *condition.Node
}

// Variable is a feature variable with a declared type and default value.
// Values are carried as strings on the wire; typed accessors parse them.
type Variable struct {
	ID           string
	Key          string
	Type         VariableType
	DefaultValue string
}

// FeatureFlag gates a feature behind zero or more experiments and an
// optional rollout, and owns the variables the feature exposes.
type FeatureFlag struct {
	ID            string
	Key           string
	RolloutID     string
	ExperimentIDs []string
	Variables     []Variable
}

// VariableByKey returns the flag's variable with the given key.
func (f *FeatureFlag) VariableByKey(key string) (*Variable, error) {
	for i := range f.Variables {
		if f.Variables[i].Key == key {
			return &f.Variables[i], nil
		}
	}
	return nil, ErrUnknownVariable
}

// Rollout is an ordered list of targeting rules for feature-only delivery.
// By convention the last rule carries no audience conditions and acts as
// the catch-all.
type Rollout struct {
	ID    string
	Rules []Experiment
}

// Attribute is a registered user attribute.
type Attribute struct {
	ID  string
	Key string
}

// Event is a named conversion event tied to a set of experiments.
type Event struct {
	ID            string
	Key           string
	ExperimentIDs []string
}
