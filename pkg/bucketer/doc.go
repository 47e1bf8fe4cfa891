// Package bucketer deterministically assigns an identifier to one of a set
// of weighted, cumulative traffic ranges.
//
// The bucketing id concatenated with a salt (experiment id or group id) is
// hashed with MurmurHash3 x86-32 at a fixed seed, scaled proportionally into
// [0, 10000), and matched against the first range whose upper bound exceeds
// the scaled value. The hash function, seed, concatenation order and scaling
// are a cross-implementation compatibility contract: every engine computing
// against the same configuration must produce bit-identical assignments, so
// none of them may change independently.
package bucketer
