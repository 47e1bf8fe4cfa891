package config

import "errors"

// ProjectConfig is an immutable snapshot of one datafile revision with id
// and key indices over every entity. It is safe for unsynchronized
// concurrent reads; a new revision fully replaces the old snapshot.
type ProjectConfig struct {
	AccountID    string
	ProjectID    string
	Revision     string
	Version      int
	AnonymizeIP  bool
	BotFiltering *bool

	experiments []*Experiment
	features    []*FeatureFlag

	experimentsByID  map[string]*Experiment
	experimentsByKey map[string]*Experiment
	featuresByID     map[string]*FeatureFlag
	featuresByKey    map[string]*FeatureFlag
	audiencesByID    map[string]*Audience
	groupsByID       map[string]*Group
	rolloutsByID     map[string]*Rollout
	eventsByKey      map[string]*Event
	attributesByKey  map[string]*Attribute
	variablesByID    map[string]*Variable
}

// Experiments returns all experiments in datafile order, including group
// members but not rollout rules.
func (p *ProjectConfig) Experiments() []*Experiment { return p.experiments }

// Features returns all feature flags in datafile order.
func (p *ProjectConfig) Features() []*FeatureFlag { return p.features }

// ExperimentByKey resolves an experiment by its key.
func (p *ProjectConfig) ExperimentByKey(key string) (*Experiment, error) {
	if e, ok := p.experimentsByKey[key]; ok {
		return e, nil
	}
	return nil, errors.Join(ErrUnknownExperiment, errors.New("key "+key))
}

// ExperimentByID resolves an experiment by its id.
func (p *ProjectConfig) ExperimentByID(id string) (*Experiment, error) {
	if e, ok := p.experimentsByID[id]; ok {
		return e, nil
	}
	return nil, errors.Join(ErrUnknownExperiment, errors.New("id "+id))
}

// FeatureByKey resolves a feature flag by its key.
func (p *ProjectConfig) FeatureByKey(key string) (*FeatureFlag, error) {
	if f, ok := p.featuresByKey[key]; ok {
		return f, nil
	}
	return nil, errors.Join(ErrUnknownFeature, errors.New("key "+key))
}

// AudienceByID resolves an audience by its id. Typed audiences shadow
// same-id legacy audiences.
func (p *ProjectConfig) AudienceByID(id string) (*Audience, error) {
	if a, ok := p.audiencesByID[id]; ok {
		return a, nil
	}
	return nil, errors.Join(ErrUnknownAudience, errors.New("id "+id))
}

// GroupByID resolves a mutual-exclusion group by its id.
func (p *ProjectConfig) GroupByID(id string) (*Group, error) {
	if g, ok := p.groupsByID[id]; ok {
		return g, nil
	}
	return nil, errors.Join(ErrUnknownGroup, errors.New("id "+id))
}

// RolloutByID resolves a rollout by its id.
func (p *ProjectConfig) RolloutByID(id string) (*Rollout, error) {
	if r, ok := p.rolloutsByID[id]; ok {
		return r, nil
	}
	return nil, errors.Join(ErrUnknownRollout, errors.New("id "+id))
}

// EventByKey resolves a conversion event by its key.
func (p *ProjectConfig) EventByKey(key string) (*Event, error) {
	if e, ok := p.eventsByKey[key]; ok {
		return e, nil
	}
	return nil, errors.Join(ErrUnknownEvent, errors.New("key "+key))
}

// AttributeByKey resolves a registered attribute by its key.
func (p *ProjectConfig) AttributeByKey(key string) (*Attribute, bool) {
	a, ok := p.attributesByKey[key]
	return a, ok
}

// VariableByID resolves a project-level live variable by its id (schema v3).
func (p *ProjectConfig) VariableByID(id string) (*Variable, bool) {
	v, ok := p.variablesByID[id]
	return v, ok
}

// ExperimentsForEvent returns the experiments tied to the given event key,
// in datafile order. Unknown referenced experiment ids are skipped.
func (p *ProjectConfig) ExperimentsForEvent(eventKey string) []*Experiment {
	ev, ok := p.eventsByKey[eventKey]
	if !ok {
		return nil
	}
	experiments := make([]*Experiment, 0, len(ev.ExperimentIDs))
	for _, id := range ev.ExperimentIDs {
		if e, ok := p.experimentsByID[id]; ok {
			experiments = append(experiments, e)
		}
	}
	return experiments
}
