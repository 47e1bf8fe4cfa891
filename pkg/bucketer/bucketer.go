package bucketer

import (
	"log/slog"

	"github.com/twmb/murmur3"

	"github.com/dmitrymomot/flagkit/pkg/config"
)

const (
	// hashSeed is the fixed MurmurHash3 seed shared by every implementation
	// computing against the same configuration. Never change it.
	hashSeed uint32 = 1

	// maxTrafficValue is the size of the bucket space in basis points.
	maxTrafficValue = 10000
)

// maxHashValue is 2^32, the size of the unsigned 32-bit hash space.
const maxHashValue = float64(1 << 32)

// Bucketer maps identifiers onto traffic allocation ranges.
type Bucketer struct {
	log *slog.Logger
}

// Option configures a Bucketer.
type Option func(*Bucketer)

// WithLogger sets the logger used for bucketing traces.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bucketer) {
		if log != nil {
			b.log = log
		}
	}
}

// New creates a Bucketer.
func New(opts ...Option) *Bucketer {
	b := &Bucketer{log: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bucket assigns bucketingID to the entity owning the range its hash value
// falls into. It returns false when the value lands past the last range,
// meaning the traffic not allocated to any entity.
func (b *Bucketer) Bucket(bucketingID, salt string, ranges []config.TrafficAllocation) (string, bool) {
	value := b.Value(bucketingID, salt)
	for _, r := range ranges {
		if value < r.EndOfRange {
			b.log.Debug("assigned bucket",
				slog.String("bucketing_id", bucketingID),
				slog.String("salt", salt),
				slog.Int("bucket_value", value),
				slog.String("entity_id", r.EntityID))
			return r.EntityID, true
		}
	}
	b.log.Debug("bucket value beyond allocated traffic",
		slog.String("bucketing_id", bucketingID),
		slog.String("salt", salt),
		slog.Int("bucket_value", value))
	return "", false
}

// Value returns the scaled bucket value in [0, maxTrafficValue) for the
// given id and salt. Identical inputs yield identical values on every call,
// run and implementation.
func (b *Bucketer) Value(bucketingID, salt string) int {
	hash := murmur3.SeedStringSum32(hashSeed, bucketingID+salt)
	return int(float64(hash) / maxHashValue * maxTrafficValue)
}
