package flagkit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/dmitrymomot/flagkit/pkg/config"
	"github.com/dmitrymomot/flagkit/pkg/decision"
	"github.com/dmitrymomot/flagkit/pkg/event"
	"github.com/dmitrymomot/flagkit/pkg/notification"
)

// Client is the public entry point. It wraps one immutable project
// snapshot together with the decision service, the event pipeline, and the
// notification center. Safe for concurrent use; replace the whole Client
// to pick up a new datafile revision.
type Client struct {
	project       *config.ProjectConfig
	decisions     *decision.Service
	factory       *event.Factory
	dispatcher    event.Dispatcher
	notifications *notification.Center
	log           *slog.Logger
}

type clientOptions struct {
	log           *slog.Logger
	dispatcher    event.Dispatcher
	profiles      decision.ProfileService
	notifications *notification.Center
	clientName    string
	clientVersion string
}

// Option configures a Client.
type Option func(*clientOptions)

// WithLogger sets the logger used across the client and its collaborators.
func WithLogger(log *slog.Logger) Option {
	return func(o *clientOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithDispatcher sets the event dispatcher. Defaults to NoopDispatcher.
func WithDispatcher(d event.Dispatcher) Option {
	return func(o *clientOptions) {
		if d != nil {
			o.dispatcher = d
		}
	}
}

// WithProfileService enables sticky assignments through the given store.
func WithProfileService(profiles decision.ProfileService) Option {
	return func(o *clientOptions) { o.profiles = profiles }
}

// WithNotificationCenter shares a caller-owned notification center.
func WithNotificationCenter(center *notification.Center) Option {
	return func(o *clientOptions) {
		if center != nil {
			o.notifications = center
		}
	}
}

// WithClientInfo sets the client name and version stamped on events.
func WithClientInfo(name, version string) Option {
	return func(o *clientOptions) {
		o.clientName = name
		o.clientVersion = version
	}
}

// New parses the datafile and builds a ready-to-use Client.
func New(datafile []byte, opts ...Option) (*Client, error) {
	if len(datafile) == 0 {
		return nil, ErrEmptyDatafile
	}
	project, err := config.ParseDatafile(datafile)
	if err != nil {
		return nil, err
	}

	o := &clientOptions{
		log:        slog.Default(),
		dispatcher: event.NoopDispatcher{},
		clientName: "flagkit",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notifications == nil {
		o.notifications = notification.NewCenter(notification.WithLogger(o.log))
	}

	decisionOpts := []decision.Option{decision.WithLogger(o.log)}
	if o.profiles != nil {
		decisionOpts = append(decisionOpts, decision.WithProfileService(o.profiles))
	}

	return &Client{
		project:       project,
		decisions:     decision.New(project, decisionOpts...),
		factory:       event.NewFactory(project, event.WithClient(o.clientName, o.clientVersion)),
		dispatcher:    o.dispatcher,
		notifications: o.notifications,
		log:           o.log,
	}, nil
}

// Project exposes the parsed snapshot for read-only inspection.
func (c *Client) Project() *config.ProjectConfig { return c.project }

// Notifications exposes the client's notification center.
func (c *Client) Notifications() *notification.Center { return c.notifications }

// Activate decides the experiment for the user and, when the experiment is
// running, dispatches an impression and notifies listeners. The decision
// itself is computed regardless of status. Returns nil when the user is
// not part of the experiment.
func (c *Client) Activate(ctx context.Context, experimentKey, userID string, attrs map[string]any) (*config.Variation, error) {
	exp, err := c.project.ExperimentByKey(experimentKey)
	if err != nil {
		c.log.Error("cannot activate unknown experiment", slog.String("experiment", experimentKey))
		return nil, err
	}

	v := c.decisions.GetVariation(ctx, exp, userID, attrs)
	if v == nil {
		c.log.Debug("user not activated",
			slog.String("experiment", experimentKey),
			slog.String("user_id", userID))
		return nil, nil
	}

	if exp.Status != config.StatusRunning {
		c.log.Info("experiment is not running, impression not dispatched",
			slog.String("experiment", experimentKey),
			slog.String("status", string(exp.Status)))
		return v, nil
	}

	c.dispatchImpression(ctx, exp, v, userID, attrs)
	c.notifications.SendDecision(notification.DecisionNotification{
		Type:         notification.DecisionTypeExperiment,
		Key:          exp.Key,
		UserID:       userID,
		Attributes:   attrs,
		VariationKey: v.Key,
	})
	return v, nil
}

// GetVariation decides the experiment for the user without dispatching
// anything. Returns nil when the user is not part of the experiment.
func (c *Client) GetVariation(ctx context.Context, experimentKey, userID string, attrs map[string]any) (*config.Variation, error) {
	exp, err := c.project.ExperimentByKey(experimentKey)
	if err != nil {
		c.log.Error("cannot decide unknown experiment", slog.String("experiment", experimentKey))
		return nil, err
	}
	return c.decisions.GetVariation(ctx, exp, userID, attrs), nil
}

// Track records a conversion for every running experiment tied to the
// event that yields a decision for the user. With no qualifying decisions
// nothing is dispatched. Delivery failures are logged, never returned.
func (c *Client) Track(ctx context.Context, eventKey, userID string, attrs, tags map[string]any) error {
	ev, err := c.project.EventByKey(eventKey)
	if err != nil {
		c.log.Error("cannot track unknown event", slog.String("event", eventKey))
		return err
	}

	var decisions []event.Decision
	for _, exp := range c.project.ExperimentsForEvent(eventKey) {
		if exp.Status != config.StatusRunning {
			c.log.Debug("experiment is not running, excluded from conversion",
				slog.String("event", eventKey),
				slog.String("experiment", exp.Key))
			continue
		}
		if v := c.decisions.GetVariation(ctx, exp, userID, attrs); v != nil {
			decisions = append(decisions, event.Decision{
				ExperimentID: exp.ID,
				VariationID:  v.ID,
				CampaignID:   exp.LayerID,
			})
		}
	}
	if len(decisions) == 0 {
		c.log.Info("no running experiments decided for user, conversion not dispatched",
			slog.String("event", eventKey),
			slog.String("user_id", userID))
		return nil
	}

	if err := c.dispatcher.Dispatch(ctx, c.factory.Conversion(ev, userID, attrs, tags, decisions)); err != nil {
		c.log.Warn("conversion dispatch failed",
			slog.String("event", eventKey),
			slog.Any("error", err))
	}
	c.notifications.SendTrack(notification.TrackNotification{
		EventKey:   eventKey,
		UserID:     userID,
		Attributes: attrs,
		Tags:       tags,
	})
	return nil
}

// IsFeatureEnabled runs the feature cascade and reports whether the
// feature is on for the user. Impressions are dispatched only for
// decisions backed by an experiment.
func (c *Client) IsFeatureEnabled(ctx context.Context, featureKey, userID string, attrs map[string]any) (bool, error) {
	f, err := c.project.FeatureByKey(featureKey)
	if err != nil {
		c.log.Error("cannot check unknown feature", slog.String("feature", featureKey))
		return false, err
	}

	d := c.decisions.GetVariationForFeature(ctx, f, userID, attrs)
	enabled := d.Variation != nil && d.Variation.FeatureEnabled

	variationKey := ""
	if d.Variation != nil {
		variationKey = d.Variation.Key
	}
	if d.Source == decision.SourceExperiment {
		c.dispatchImpression(ctx, d.Experiment, d.Variation, userID, attrs)
	}
	c.notifications.SendDecision(notification.DecisionNotification{
		Type:         notification.DecisionTypeFeature,
		Key:          featureKey,
		UserID:       userID,
		Attributes:   attrs,
		VariationKey: variationKey,
		Enabled:      enabled,
		Source:       string(d.Source),
	})
	return enabled, nil
}

// GetEnabledFeatures returns the keys of all features enabled for the
// user, in datafile order.
func (c *Client) GetEnabledFeatures(ctx context.Context, userID string, attrs map[string]any) []string {
	var keys []string
	for _, f := range c.project.Features() {
		enabled, err := c.IsFeatureEnabled(ctx, f.Key, userID, attrs)
		if err == nil && enabled {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// GetFeatureVariableBoolean returns the boolean variable value for the
// user: the decided variation's override when present, the declared
// default otherwise.
func (c *Client) GetFeatureVariableBoolean(ctx context.Context, featureKey, variableKey, userID string, attrs map[string]any) (bool, error) {
	raw, err := c.featureVariable(ctx, featureKey, variableKey, userID, attrs, config.VariableTypeBoolean)
	if err != nil {
		return false, err
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.Join(ErrInvalidVariableValue, err)
	}
	return value, nil
}

// GetFeatureVariableDouble returns the double variable value for the user.
func (c *Client) GetFeatureVariableDouble(ctx context.Context, featureKey, variableKey, userID string, attrs map[string]any) (float64, error) {
	raw, err := c.featureVariable(ctx, featureKey, variableKey, userID, attrs, config.VariableTypeDouble)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Join(ErrInvalidVariableValue, err)
	}
	return value, nil
}

// GetFeatureVariableInteger returns the integer variable value for the
// user.
func (c *Client) GetFeatureVariableInteger(ctx context.Context, featureKey, variableKey, userID string, attrs map[string]any) (int, error) {
	raw, err := c.featureVariable(ctx, featureKey, variableKey, userID, attrs, config.VariableTypeInteger)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Join(ErrInvalidVariableValue, err)
	}
	return value, nil
}

// GetFeatureVariableString returns the string variable value for the user.
func (c *Client) GetFeatureVariableString(ctx context.Context, featureKey, variableKey, userID string, attrs map[string]any) (string, error) {
	return c.featureVariable(ctx, featureKey, variableKey, userID, attrs, config.VariableTypeString)
}

// SetForcedVariation forces the user into the named variation for future
// decisions, or clears the override when variationKey is empty.
func (c *Client) SetForcedVariation(experimentKey, userID, variationKey string) bool {
	return c.decisions.SetForcedVariation(experimentKey, userID, variationKey)
}

// GetForcedVariation returns the currently forced variation for the
// experiment/user pair, if any.
func (c *Client) GetForcedVariation(experimentKey, userID string) *config.Variation {
	return c.decisions.GetForcedVariation(experimentKey, userID)
}

// featureVariable resolves the raw string value of one feature variable
// after checking the declared type. The variation's override applies
// whenever the cascade produced a variation carrying one; everything else
// falls back to the declared default, including cascades with no decision.
func (c *Client) featureVariable(ctx context.Context, featureKey, variableKey, userID string, attrs map[string]any, want config.VariableType) (string, error) {
	f, err := c.project.FeatureByKey(featureKey)
	if err != nil {
		c.log.Error("cannot read variable of unknown feature", slog.String("feature", featureKey))
		return "", err
	}
	v, err := f.VariableByKey(variableKey)
	if err != nil {
		c.log.Error("unknown feature variable",
			slog.String("feature", featureKey),
			slog.String("variable", variableKey))
		return "", err
	}
	if v.Type != want {
		c.log.Error("feature variable type mismatch",
			slog.String("feature", featureKey),
			slog.String("variable", variableKey),
			slog.String("declared", string(v.Type)),
			slog.String("requested", string(want)))
		return "", errors.Join(ErrVariableTypeMismatch,
			errors.New("declared "+string(v.Type)+", requested "+string(want)))
	}

	value := v.DefaultValue
	d := c.decisions.GetVariationForFeature(ctx, f, userID, attrs)
	if d.Variation != nil {
		if override, ok := d.Variation.Variables[v.ID]; ok {
			value = override
		}
	}
	return value, nil
}

// dispatchImpression delivers an impression; failures are logged and
// swallowed so event transport can never affect callers.
func (c *Client) dispatchImpression(ctx context.Context, exp *config.Experiment, v *config.Variation, userID string, attrs map[string]any) {
	if err := c.dispatcher.Dispatch(ctx, c.factory.Impression(exp, v, userID, attrs)); err != nil {
		c.log.Warn("impression dispatch failed",
			slog.String("experiment", exp.Key),
			slog.Any("error", err))
	}
}
