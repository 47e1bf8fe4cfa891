package notification

import (
	"log/slog"
	"sync"
)

// DecisionType classifies what kind of decision a notification reports.
type DecisionType string

const (
	DecisionTypeExperiment DecisionType = "experiment"
	DecisionTypeFeature    DecisionType = "feature"
)

// DecisionNotification reports one computed decision.
type DecisionNotification struct {
	Type         DecisionType
	Key          string // experiment or feature key
	UserID       string
	Attributes   map[string]any
	VariationKey string // empty when no variation was assigned
	Enabled      bool   // feature decisions only
	Source       string // feature decisions only: experiment, rollout, none
}

// TrackNotification reports one tracked conversion event.
type TrackNotification struct {
	EventKey   string
	UserID     string
	Attributes map[string]any
	Tags       map[string]any
}

// DecisionListener receives decision notifications.
type DecisionListener func(DecisionNotification)

// TrackListener receives track notifications.
type TrackListener func(TrackNotification)

type entry[T any] struct {
	id int
	fn func(T)
}

// registry keeps listeners in registration order so delivery order is
// deterministic.
type registry[T any] struct {
	entries []entry[T]
}

func (r *registry[T]) add(id int, fn func(T)) {
	r.entries = append(r.entries, entry[T]{id: id, fn: fn})
}

func (r *registry[T]) remove(id int) bool {
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Center fans notifications out to registered listeners. Safe for
// concurrent use; delivery itself is synchronous.
type Center struct {
	mu        sync.RWMutex
	nextID    int
	decisions registry[DecisionNotification]
	tracks    registry[TrackNotification]
	log       *slog.Logger
}

// Option configures a Center.
type Option func(*Center)

// WithLogger sets the logger listener panics are reported through.
func WithLogger(log *slog.Logger) Option {
	return func(c *Center) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCenter creates an empty notification center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		nextID: 1,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnDecision registers a decision listener and returns its id.
func (c *Center) OnDecision(fn DecisionListener) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.decisions.add(id, fn)
	return id
}

// OnTrack registers a track listener and returns its id.
func (c *Center) OnTrack(fn TrackListener) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.tracks.add(id, fn)
	return id
}

// Remove unregisters the listener with the given id. Returns false when no
// listener has that id.
func (c *Center) Remove(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decisions.remove(id) || c.tracks.remove(id)
}

// Clear unregisters all listeners.
func (c *Center) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions.entries = nil
	c.tracks.entries = nil
}

// SendDecision delivers the notification to all decision listeners in
// registration order.
func (c *Center) SendDecision(n DecisionNotification) {
	c.mu.RLock()
	listeners := make([]entry[DecisionNotification], len(c.decisions.entries))
	copy(listeners, c.decisions.entries)
	c.mu.RUnlock()

	for _, e := range listeners {
		c.deliver(func() { e.fn(n) })
	}
}

// SendTrack delivers the notification to all track listeners in
// registration order.
func (c *Center) SendTrack(n TrackNotification) {
	c.mu.RLock()
	listeners := make([]entry[TrackNotification], len(c.tracks.entries))
	copy(listeners, c.tracks.entries)
	c.mu.RUnlock()

	for _, e := range listeners {
		c.deliver(func() { e.fn(n) })
	}
}

func (c *Center) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("notification listener panicked", slog.Any("panic", r))
		}
	}()
	fn()
}
