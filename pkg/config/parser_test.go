package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/condition"
	"github.com/dmitrymomot/flagkit/pkg/config"
)

const testDatafile = `{
	"accountId": "12001",
	"projectId": "34001",
	"revision": "42",
	"version": "4",
	"anonymizeIP": true,
	"botFiltering": true,
	"attributes": [
		{"id": "a1", "key": "country"},
		{"id": "a2", "key": "age"}
	],
	"events": [
		{"id": "ev1", "key": "purchase", "experimentIds": ["exp1"]}
	],
	"audiences": [
		{
			"id": "aud1",
			"name": "US visitors",
			"conditions": "[\"and\", [\"or\", [\"or\", {\"name\": \"country\", \"type\": \"custom_attribute\", \"value\": \"US\"}]]]"
		}
	],
	"typedAudiences": [
		{
			"id": "aud2",
			"name": "adults",
			"conditions": ["and", {"name": "age", "type": "custom_attribute", "match": "gt", "value": 18}]
		}
	],
	"groups": [
		{
			"id": "grp1",
			"policy": "random",
			"trafficAllocation": [
				{"entityId": "exp2", "endOfRange": 5000},
				{"entityId": "exp3", "endOfRange": 10000}
			],
			"experiments": [
				{
					"id": "exp2", "key": "grouped_a", "status": "Running", "layerId": "l2",
					"audienceIds": [], "forcedVariations": {},
					"variations": [{"id": "v21", "key": "on"}],
					"trafficAllocation": [{"entityId": "v21", "endOfRange": 10000}]
				},
				{
					"id": "exp3", "key": "grouped_b", "status": "Running", "layerId": "l3",
					"audienceIds": [], "forcedVariations": {},
					"variations": [{"id": "v31", "key": "on"}],
					"trafficAllocation": [{"entityId": "v31", "endOfRange": 10000}]
				}
			]
		}
	],
	"experiments": [
		{
			"id": "exp1",
			"key": "checkout_redesign",
			"status": "Running",
			"layerId": "l1",
			"audienceIds": ["aud1"],
			"forcedVariations": {"qa_user": "treatment"},
			"variations": [
				{"id": "v11", "key": "control", "featureEnabled": false},
				{"id": "v12", "key": "treatment", "featureEnabled": true,
					"variables": [{"id": "var1", "value": "blue"}]}
			],
			"trafficAllocation": [
				{"entityId": "v11", "endOfRange": 5000},
				{"entityId": "v12", "endOfRange": 10000}
			]
		},
		{
			"id": "exp4",
			"key": "paused_exp",
			"status": "Paused",
			"layerId": "l4",
			"audienceIds": [],
			"audienceConditions": ["or", "aud1", "aud2"],
			"forcedVariations": {},
			"variations": [{"id": "v41", "key": "on"}],
			"trafficAllocation": [{"entityId": "v41", "endOfRange": 10000}]
		}
	],
	"featureFlags": [
		{
			"id": "f1",
			"key": "new_checkout",
			"rolloutId": "ro1",
			"experimentIds": ["exp1"],
			"variables": [
				{"id": "var1", "key": "button_color", "type": "string", "defaultValue": "red"},
				{"id": "var2", "key": "max_items", "type": "integer", "defaultValue": "10"}
			]
		}
	],
	"rollouts": [
		{
			"id": "ro1",
			"experiments": [
				{
					"id": "rule1", "key": "rule1", "status": "Running", "layerId": "ro1",
					"audienceIds": ["aud2"], "forcedVariations": {},
					"variations": [{"id": "rv1", "key": "rule1", "featureEnabled": true}],
					"trafficAllocation": [{"entityId": "rv1", "endOfRange": 10000}]
				},
				{
					"id": "rule2", "key": "rule2", "status": "Running", "layerId": "ro1",
					"audienceIds": [], "forcedVariations": {},
					"variations": [{"id": "rv2", "key": "rule2", "featureEnabled": false}],
					"trafficAllocation": [{"entityId": "rv2", "endOfRange": 10000}]
				}
			]
		}
	],
	"variables": []
}`

func TestParseDatafile(t *testing.T) {
	t.Parallel()

	project, err := config.ParseDatafile([]byte(testDatafile))
	require.NoError(t, err)

	assert.Equal(t, "12001", project.AccountID)
	assert.Equal(t, "34001", project.ProjectID)
	assert.Equal(t, "42", project.Revision)
	assert.Equal(t, 4, project.Version)
	assert.True(t, project.AnonymizeIP)
	require.NotNil(t, project.BotFiltering)
	assert.True(t, *project.BotFiltering)

	t.Run("ExperimentIndices", func(t *testing.T) {
		t.Parallel()
		exp, err := project.ExperimentByKey("checkout_redesign")
		require.NoError(t, err)
		assert.Equal(t, "exp1", exp.ID)
		assert.Equal(t, config.StatusRunning, exp.Status)
		assert.Equal(t, []string{"aud1"}, exp.AudienceIDs)
		assert.Equal(t, map[string]string{"qa_user": "treatment"}, exp.ForcedVariations)

		byID, err := project.ExperimentByID("exp1")
		require.NoError(t, err)
		assert.Same(t, exp, byID)

		v, ok := exp.VariationByKey("treatment")
		require.True(t, ok)
		assert.Equal(t, "v12", v.ID)
		assert.True(t, v.FeatureEnabled)
		assert.Equal(t, map[string]string{"var1": "blue"}, v.Variables)

		_, err = project.ExperimentByKey("nope")
		assert.ErrorIs(t, err, config.ErrUnknownExperiment)
	})

	t.Run("GroupMembers", func(t *testing.T) {
		t.Parallel()
		g, err := project.GroupByID("grp1")
		require.NoError(t, err)
		assert.Equal(t, config.PolicyRandom, g.Policy)
		assert.Equal(t, []string{"exp2", "exp3"}, g.ExperimentIDs)

		// Member experiments are hoisted into the global index and point
		// back at their group.
		exp, err := project.ExperimentByKey("grouped_a")
		require.NoError(t, err)
		assert.Equal(t, "grp1", exp.GroupID)
	})

	t.Run("LegacyAudienceConditionsString", func(t *testing.T) {
		t.Parallel()
		aud, err := project.AudienceByID("aud1")
		require.NoError(t, err)
		require.NotNil(t, aud.Conditions)
		res := condition.Evaluate(aud.Conditions, map[string]any{"country": "US"}, nil)
		assert.Equal(t, condition.True, res)
		res = condition.Evaluate(aud.Conditions, map[string]any{"country": "DE"}, nil)
		assert.Equal(t, condition.False, res)
	})

	t.Run("TypedAudienceConditions", func(t *testing.T) {
		t.Parallel()
		aud, err := project.AudienceByID("aud2")
		require.NoError(t, err)
		assert.Equal(t, condition.True, condition.Evaluate(aud.Conditions, map[string]any{"age": 21}, nil))
		assert.Equal(t, condition.False, condition.Evaluate(aud.Conditions, map[string]any{"age": 17}, nil))
		assert.Equal(t, condition.Unknown, condition.Evaluate(aud.Conditions, map[string]any{}, nil))
	})

	t.Run("ExperimentAudienceConditionTree", func(t *testing.T) {
		t.Parallel()
		exp, err := project.ExperimentByKey("paused_exp")
		require.NoError(t, err)
		require.NotNil(t, exp.AudienceConditions)
		assert.Equal(t, config.StatusPaused, exp.Status)
	})

	t.Run("FeatureAndRollout", func(t *testing.T) {
		t.Parallel()
		f, err := project.FeatureByKey("new_checkout")
		require.NoError(t, err)
		assert.Equal(t, "ro1", f.RolloutID)
		assert.Equal(t, []string{"exp1"}, f.ExperimentIDs)

		v, err := f.VariableByKey("button_color")
		require.NoError(t, err)
		assert.Equal(t, config.VariableTypeString, v.Type)
		assert.Equal(t, "red", v.DefaultValue)

		_, err = f.VariableByKey("absent")
		assert.ErrorIs(t, err, config.ErrUnknownVariable)

		ro, err := project.RolloutByID("ro1")
		require.NoError(t, err)
		require.Len(t, ro.Rules, 2)
		assert.Equal(t, "rule1", ro.Rules[0].ID)
	})

	t.Run("Events", func(t *testing.T) {
		t.Parallel()
		ev, err := project.EventByKey("purchase")
		require.NoError(t, err)
		assert.Equal(t, "ev1", ev.ID)

		experiments := project.ExperimentsForEvent("purchase")
		require.Len(t, experiments, 1)
		assert.Equal(t, "exp1", experiments[0].ID)

		_, err = project.EventByKey("signup")
		assert.ErrorIs(t, err, config.ErrUnknownEvent)
	})
}

func TestParseDatafileIdempotent(t *testing.T) {
	t.Parallel()

	first, err := config.ParseDatafile([]byte(testDatafile))
	require.NoError(t, err)
	second, err := config.ParseDatafile([]byte(testDatafile))
	require.NoError(t, err)

	e1, err := first.ExperimentByKey("checkout_redesign")
	require.NoError(t, err)
	e2, err := second.ExperimentByKey("checkout_redesign")
	require.NoError(t, err)
	assert.Equal(t, e1, e2)
}

func TestParseDatafileInvalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		datafile string
	}{
		{"MalformedJSON", `{"accountId": `},
		{"MissingRequiredFields", `{"accountId": "1", "version": "4"}`},
		{"NonNumericVersion", `{"accountId": "1", "projectId": "2", "revision": "3", "version": "four"}`},
		{"ExperimentWithoutKey", `{
			"accountId": "1", "projectId": "2", "revision": "3", "version": "4",
			"experiments": [{"id": "e1"}]
		}`},
		{"NonIncreasingRanges", `{
			"accountId": "1", "projectId": "2", "revision": "3", "version": "4",
			"experiments": [{
				"id": "e1", "key": "k1",
				"variations": [{"id": "v1", "key": "a"}, {"id": "v2", "key": "b"}],
				"trafficAllocation": [
					{"entityId": "v1", "endOfRange": 6000},
					{"entityId": "v2", "endOfRange": 5000}
				]
			}]
		}`},
		{"RangeBeyondLimit", `{
			"accountId": "1", "projectId": "2", "revision": "3", "version": "4",
			"experiments": [{
				"id": "e1", "key": "k1",
				"variations": [{"id": "v1", "key": "a"}],
				"trafficAllocation": [{"entityId": "v1", "endOfRange": 10001}]
			}]
		}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			project, err := config.ParseDatafile([]byte(tc.datafile))
			assert.Nil(t, project)
			assert.ErrorIs(t, err, config.ErrInvalidDatafile)
		})
	}
}

func TestParseDatafileUnsupportedVersion(t *testing.T) {
	t.Parallel()

	_, err := config.ParseDatafile([]byte(`{"accountId": "1", "projectId": "2", "revision": "3", "version": "1"}`))
	assert.ErrorIs(t, err, config.ErrUnsupportedVersion)
}

func TestParseDatafileVersionGating(t *testing.T) {
	t.Parallel()

	// A v2 document ignores v3/v4 sections even when present.
	v2 := `{
		"accountId": "1", "projectId": "2", "revision": "3", "version": "2",
		"anonymizeIP": true,
		"featureFlags": [{"id": "f1", "key": "flag"}],
		"rollouts": []
	}`
	project, err := config.ParseDatafile([]byte(v2))
	require.NoError(t, err)
	assert.False(t, project.AnonymizeIP)
	assert.Nil(t, project.BotFiltering)
	_, err = project.FeatureByKey("flag")
	assert.ErrorIs(t, err, config.ErrUnknownFeature)
}
