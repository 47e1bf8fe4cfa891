package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/config"
)

// Type distinguishes the two payload kinds.
type Type string

const (
	TypeImpression Type = "impression"
	TypeConversion Type = "conversion"
)

// Decision identifies one experiment decision attached to a conversion.
type Decision struct {
	ExperimentID string `json:"experiment_id"`
	VariationID  string `json:"variation_id"`
	CampaignID   string `json:"campaign_id"`
}

// LogEvent is the wire payload for one impression or conversion. Impression
// events carry the experiment/variation fields; conversions carry the event
// fields, tags, and the decisions they credit.
type LogEvent struct {
	ID            string `json:"id"`
	Type          Type   `json:"type"`
	Timestamp     int64  `json:"timestamp"` // unix milliseconds
	AccountID     string `json:"account_id"`
	ProjectID     string `json:"project_id"`
	Revision      string `json:"revision"`
	ClientName    string `json:"client_name"`
	ClientVersion string `json:"client_version"`
	AnonymizeIP   bool   `json:"anonymize_ip"`
	BotFiltering  *bool  `json:"bot_filtering,omitempty"`

	UserID     string         `json:"user_id"`
	Attributes map[string]any `json:"attributes,omitempty"`

	ExperimentID  string `json:"experiment_id,omitempty"`
	ExperimentKey string `json:"experiment_key,omitempty"`
	VariationID   string `json:"variation_id,omitempty"`
	VariationKey  string `json:"variation_key,omitempty"`
	CampaignID    string `json:"campaign_id,omitempty"`

	EventID   string         `json:"event_id,omitempty"`
	EventKey  string         `json:"event_key,omitempty"`
	Tags      map[string]any `json:"tags,omitempty"`
	Decisions []Decision     `json:"decisions,omitempty"`
}

// Factory builds events stamped with one project snapshot's metadata.
type Factory struct {
	project       *config.ProjectConfig
	clientName    string
	clientVersion string
	now           func() time.Time
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithClient sets the client name and version reported on every event.
func WithClient(name, version string) FactoryOption {
	return func(f *Factory) {
		if name != "" {
			f.clientName = name
		}
		f.clientVersion = version
	}
}

// WithClock overrides the timestamp source, mainly for tests.
func WithClock(now func() time.Time) FactoryOption {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFactory creates a Factory over the given snapshot.
func NewFactory(project *config.ProjectConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		project:    project,
		clientName: "flagkit",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) base(typ Type, userID string, attrs map[string]any) *LogEvent {
	return &LogEvent{
		ID:            uuid.NewString(),
		Type:          typ,
		Timestamp:     f.now().UnixMilli(),
		AccountID:     f.project.AccountID,
		ProjectID:     f.project.ProjectID,
		Revision:      f.project.Revision,
		ClientName:    f.clientName,
		ClientVersion: f.clientVersion,
		AnonymizeIP:   f.project.AnonymizeIP,
		BotFiltering:  f.project.BotFiltering,
		UserID:        userID,
		Attributes:    attrs,
	}
}

// Impression builds the payload reporting that userID was served variation
// in exp.
func (f *Factory) Impression(exp *config.Experiment, variation *config.Variation, userID string, attrs map[string]any) *LogEvent {
	e := f.base(TypeImpression, userID, attrs)
	e.ExperimentID = exp.ID
	e.ExperimentKey = exp.Key
	e.VariationID = variation.ID
	e.VariationKey = variation.Key
	e.CampaignID = exp.LayerID
	return e
}

// Conversion builds the payload crediting the given decisions with the
// tracked event.
func (f *Factory) Conversion(ev *config.Event, userID string, attrs map[string]any, tags map[string]any, decisions []Decision) *LogEvent {
	e := f.base(TypeConversion, userID, attrs)
	e.EventID = ev.ID
	e.EventKey = ev.Key
	e.Tags = tags
	e.Decisions = decisions
	return e
}
