package notification_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/notification"
)

func TestCenterDecisionListeners(t *testing.T) {
	t.Parallel()

	t.Run("DeliveryInRegistrationOrder", func(t *testing.T) {
		t.Parallel()
		c := notification.NewCenter()
		var order []string
		c.OnDecision(func(notification.DecisionNotification) { order = append(order, "first") })
		c.OnDecision(func(notification.DecisionNotification) { order = append(order, "second") })
		c.OnDecision(func(notification.DecisionNotification) { order = append(order, "third") })

		c.SendDecision(notification.DecisionNotification{Key: "exp1"})
		assert.Equal(t, []string{"first", "second", "third"}, order)
	})

	t.Run("PayloadDelivered", func(t *testing.T) {
		t.Parallel()
		c := notification.NewCenter()
		var got notification.DecisionNotification
		c.OnDecision(func(n notification.DecisionNotification) { got = n })

		sent := notification.DecisionNotification{
			Type:         notification.DecisionTypeFeature,
			Key:          "new_checkout",
			UserID:       "u1",
			Attributes:   map[string]any{"country": "US"},
			VariationKey: "treatment",
			Enabled:      true,
			Source:       "experiment",
		}
		c.SendDecision(sent)
		assert.Equal(t, sent, got)
	})

	t.Run("PanickingListenerIsIsolated", func(t *testing.T) {
		t.Parallel()
		c := notification.NewCenter()
		var delivered int
		c.OnDecision(func(notification.DecisionNotification) { panic("listener bug") })
		c.OnDecision(func(notification.DecisionNotification) { delivered++ })

		require.NotPanics(t, func() {
			c.SendDecision(notification.DecisionNotification{Key: "exp1"})
		})
		assert.Equal(t, 1, delivered)
	})

	t.Run("Remove", func(t *testing.T) {
		t.Parallel()
		c := notification.NewCenter()
		var calls int
		id := c.OnDecision(func(notification.DecisionNotification) { calls++ })

		require.True(t, c.Remove(id))
		c.SendDecision(notification.DecisionNotification{Key: "exp1"})
		assert.Zero(t, calls)
		assert.False(t, c.Remove(id))
	})
}

func TestCenterTrackListeners(t *testing.T) {
	t.Parallel()

	t.Run("SeparateFromDecisionListeners", func(t *testing.T) {
		t.Parallel()
		c := notification.NewCenter()
		var decisions, tracks int
		c.OnDecision(func(notification.DecisionNotification) { decisions++ })
		c.OnTrack(func(notification.TrackNotification) { tracks++ })

		c.SendTrack(notification.TrackNotification{EventKey: "purchase"})
		assert.Zero(t, decisions)
		assert.Equal(t, 1, tracks)
	})

	t.Run("PayloadDelivered", func(t *testing.T) {
		t.Parallel()
		c := notification.NewCenter()
		var got notification.TrackNotification
		c.OnTrack(func(n notification.TrackNotification) { got = n })

		sent := notification.TrackNotification{
			EventKey:   "purchase",
			UserID:     "u1",
			Attributes: map[string]any{"country": "US"},
			Tags:       map[string]any{"revenue": 4200},
		}
		c.SendTrack(sent)
		assert.Equal(t, sent, got)
	})
}

func TestCenterClear(t *testing.T) {
	t.Parallel()

	c := notification.NewCenter()
	var calls int
	c.OnDecision(func(notification.DecisionNotification) { calls++ })
	c.OnTrack(func(notification.TrackNotification) { calls++ })

	c.Clear()
	c.SendDecision(notification.DecisionNotification{Key: "exp1"})
	c.SendTrack(notification.TrackNotification{EventKey: "purchase"})
	assert.Zero(t, calls)
}

func TestCenterIDsAreUniqueAcrossKinds(t *testing.T) {
	t.Parallel()

	c := notification.NewCenter()
	a := c.OnDecision(func(notification.DecisionNotification) {})
	b := c.OnTrack(func(notification.TrackNotification) {})
	assert.NotEqual(t, a, b)

	require.True(t, c.Remove(b))
	assert.False(t, c.Remove(b))
	require.True(t, c.Remove(a))
}
