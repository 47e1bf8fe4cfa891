package decision

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/flagkit/pkg/bucketer"
	"github.com/dmitrymomot/flagkit/pkg/condition"
	"github.com/dmitrymomot/flagkit/pkg/config"
)

// BucketingIDAttribute is the reserved attribute key that overrides the
// bucketing id for a decision. It defaults to the user id when absent or
// not a string.
const BucketingIDAttribute = "$opt_bucketing_id"

// Source reports which stage of the feature cascade produced a decision.
type Source string

const (
	SourceExperiment Source = "experiment"
	SourceRollout    Source = "rollout"
	SourceNone       Source = "none"
)

// FeatureDecision is the outcome of the feature cascade. Variation and
// Experiment are nil when Source is SourceNone.
type FeatureDecision struct {
	Experiment *config.Experiment
	Variation  *config.Variation
	Source     Source
}

// ProfileService persists sticky assignments so repeat evaluations stay
// stable across configuration changes. Both calls are best-effort: a lookup
// miss is ("", nil), and any error degrades the pipeline to fresh
// bucketing.
type ProfileService interface {
	Lookup(ctx context.Context, userID, experimentID string) (string, error)
	Save(ctx context.Context, userID, experimentID, variationID string) error
}

// Service computes experiment and feature decisions against one immutable
// project snapshot. Safe for concurrent use.
type Service struct {
	project   *config.ProjectConfig
	bucketer  *bucketer.Bucketer
	overrides *OverrideStore
	profiles  ProfileService
	log       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger decisions are reported through.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithProfileService enables sticky assignments through the given store.
func WithProfileService(profiles ProfileService) Option {
	return func(s *Service) { s.profiles = profiles }
}

// WithOverrideStore shares a caller-owned override store with the service.
func WithOverrideStore(store *OverrideStore) Option {
	return func(s *Service) {
		if store != nil {
			s.overrides = store
		}
	}
}

// New creates a decision Service over the given snapshot.
func New(project *config.ProjectConfig, opts ...Option) *Service {
	s := &Service{
		project:   project,
		overrides: NewOverrideStore(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bucketer = bucketer.New(bucketer.WithLogger(s.log))
	return s
}

// Overrides exposes the service's override store.
func (s *Service) Overrides() *OverrideStore { return s.overrides }

// GetVariation runs the decision pipeline for one experiment and returns
// the chosen variation, or nil when the user is not part of the experiment.
func (s *Service) GetVariation(ctx context.Context, exp *config.Experiment, userID string, attrs map[string]any) *config.Variation {
	if exp == nil {
		return nil
	}

	// 1. Runtime forced override wins over everything.
	if id, ok := s.overrides.Get(exp.ID, userID); ok {
		if v, ok := exp.VariationByID(id); ok {
			s.log.Debug("returning forced variation",
				slog.String("experiment", exp.Key),
				slog.String("user_id", userID),
				slog.String("variation", v.Key))
			return v
		}
		s.log.Warn("forced variation no longer exists in snapshot, ignoring override",
			slog.String("experiment", exp.Key),
			slog.String("variation_id", id))
	}

	// 2. Datafile whitelist.
	if key, ok := exp.ForcedVariations[userID]; ok {
		if v, ok := exp.VariationByKey(key); ok {
			s.log.Debug("returning whitelisted variation",
				slog.String("experiment", exp.Key),
				slog.String("user_id", userID),
				slog.String("variation", v.Key))
			return v
		}
		s.log.Warn("whitelisted variation key is unknown, continuing pipeline",
			slog.String("experiment", exp.Key),
			slog.String("variation_key", key))
	}

	// 3. Sticky assignment, valid only if the variation still exists.
	if s.profiles != nil {
		if id, err := s.profiles.Lookup(ctx, userID, exp.ID); err != nil {
			s.log.Warn("profile lookup failed, falling back to fresh bucketing",
				slog.String("experiment", exp.Key),
				slog.String("user_id", userID),
				slog.Any("error", err))
		} else if id != "" {
			if v, ok := exp.VariationByID(id); ok {
				s.log.Debug("returning sticky variation",
					slog.String("experiment", exp.Key),
					slog.String("user_id", userID),
					slog.String("variation", v.Key))
				return v
			}
		}
	}

	bucketingID := bucketingIDFor(userID, attrs)

	// 4. Random-policy groups are mutually exclusive: the group's own
	// allocation must pick this experiment before its traffic is consulted.
	if exp.GroupID != "" {
		group, err := s.project.GroupByID(exp.GroupID)
		if err != nil {
			s.log.Error("experiment references unknown group",
				slog.String("experiment", exp.Key),
				slog.String("group_id", exp.GroupID))
			return nil
		}
		if group.Policy == config.PolicyRandom {
			winner, ok := s.bucketer.Bucket(bucketingID, group.ID, group.TrafficAllocation)
			if !ok || winner != exp.ID {
				s.log.Debug("user excluded by mutual-exclusion group",
					slog.String("experiment", exp.Key),
					slog.String("user_id", userID),
					slog.String("group_id", group.ID))
				return nil
			}
		}
	}

	// 5. Audience gate: False and Unknown both fail.
	if !s.meetsAudienceConditions(exp, attrs) {
		s.log.Debug("user does not meet audience conditions",
			slog.String("experiment", exp.Key),
			slog.String("user_id", userID))
		return nil
	}

	// 6. Traffic bucketing.
	entityID, ok := s.bucketer.Bucket(bucketingID, exp.ID, exp.TrafficAllocation)
	if !ok {
		return nil
	}
	v, ok := exp.VariationByID(entityID)
	if !ok {
		s.log.Error("traffic allocation references unknown variation",
			slog.String("experiment", exp.Key),
			slog.String("variation_id", entityID))
		return nil
	}

	// 7. Persist the fresh assignment; failure never affects the decision.
	if s.profiles != nil {
		if err := s.profiles.Save(ctx, userID, exp.ID, v.ID); err != nil {
			s.log.Warn("profile save failed",
				slog.String("experiment", exp.Key),
				slog.String("user_id", userID),
				slog.Any("error", err))
		}
	}

	return v
}

// GetVariationForFeature resolves the feature cascade: associated
// experiments in declared order first, then rollout targeting rules, then
// no decision.
func (s *Service) GetVariationForFeature(ctx context.Context, feature *config.FeatureFlag, userID string, attrs map[string]any) FeatureDecision {
	if feature == nil {
		return FeatureDecision{Source: SourceNone}
	}

	for _, expID := range feature.ExperimentIDs {
		exp, err := s.project.ExperimentByID(expID)
		if err != nil {
			s.log.Error("feature references unknown experiment",
				slog.String("feature", feature.Key),
				slog.String("experiment_id", expID))
			continue
		}
		if v := s.GetVariation(ctx, exp, userID, attrs); v != nil {
			return FeatureDecision{Experiment: exp, Variation: v, Source: SourceExperiment}
		}
	}

	if feature.RolloutID != "" {
		rollout, err := s.project.RolloutByID(feature.RolloutID)
		if err != nil {
			s.log.Error("feature references unknown rollout",
				slog.String("feature", feature.Key),
				slog.String("rollout_id", feature.RolloutID))
			return FeatureDecision{Source: SourceNone}
		}

		bucketingID := bucketingIDFor(userID, attrs)
		for i := range rollout.Rules {
			rule := &rollout.Rules[i]
			if !s.meetsAudienceConditions(rule, attrs) {
				continue
			}
			entityID, ok := s.bucketer.Bucket(bucketingID, rule.ID, rule.TrafficAllocation)
			if !ok {
				continue
			}
			if v, ok := rule.VariationByID(entityID); ok {
				return FeatureDecision{Experiment: rule, Variation: v, Source: SourceRollout}
			}
		}
	}

	return FeatureDecision{Source: SourceNone}
}

// SetForcedVariation forces userID into the named variation for future
// decisions, or clears the override when variationKey is empty. Returns
// false when the experiment or variation is unknown.
func (s *Service) SetForcedVariation(experimentKey, userID, variationKey string) bool {
	exp, err := s.project.ExperimentByKey(experimentKey)
	if err != nil {
		s.log.Error("cannot force variation for unknown experiment",
			slog.String("experiment", experimentKey))
		return false
	}
	if variationKey == "" {
		s.overrides.Remove(exp.ID, userID)
		return true
	}
	v, ok := exp.VariationByKey(variationKey)
	if !ok {
		s.log.Error("cannot force unknown variation",
			slog.String("experiment", experimentKey),
			slog.String("variation", variationKey))
		return false
	}
	s.overrides.Set(exp.ID, userID, v.ID)
	return true
}

// GetForcedVariation returns the currently forced variation for the
// experiment/user pair, if any.
func (s *Service) GetForcedVariation(experimentKey, userID string) *config.Variation {
	exp, err := s.project.ExperimentByKey(experimentKey)
	if err != nil {
		s.log.Error("cannot read forced variation for unknown experiment",
			slog.String("experiment", experimentKey))
		return nil
	}
	id, ok := s.overrides.Get(exp.ID, userID)
	if !ok {
		return nil
	}
	v, ok := exp.VariationByID(id)
	if !ok {
		return nil
	}
	return v
}

// meetsAudienceConditions evaluates the experiment's condition tree, or the
// legacy audience-id list as an implicit Or. No declared conditions always
// pass.
func (s *Service) meetsAudienceConditions(exp *config.Experiment, attrs map[string]any) bool {
	tree := exp.AudienceConditions
	if tree == nil {
		if len(exp.AudienceIDs) == 0 {
			return true
		}
		refs := make([]*condition.Node, 0, len(exp.AudienceIDs))
		for _, id := range exp.AudienceIDs {
			refs = append(refs, condition.AudienceRef(id))
		}
		tree = condition.Or(refs...)
	}
	return condition.Evaluate(tree, attrs, s.resolveAudience(attrs)) == condition.True
}

// resolveAudience resolves audience-id leaves against the snapshot. An
// audience without conditions passes; an unknown audience is undecidable.
func (s *Service) resolveAudience(attrs map[string]any) condition.Resolver {
	return func(audienceID string) condition.Truth {
		aud, err := s.project.AudienceByID(audienceID)
		if err != nil {
			s.log.Error("condition references unknown audience",
				slog.String("audience_id", audienceID))
			return condition.Unknown
		}
		if aud.Conditions == nil {
			return condition.True
		}
		return condition.Evaluate(aud.Conditions, attrs, nil)
	}
}

func bucketingIDFor(userID string, attrs map[string]any) string {
	if v, ok := attrs[BucketingIDAttribute]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return userID
}
