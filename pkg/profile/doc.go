// Package profile persists sticky experiment assignments keyed by user and
// experiment. Two stores are provided: an in-process MemoryStore for tests
// and single-instance deployments, and a RedisStore that keeps one hash per
// user so assignments survive restarts and are shared across instances.
//
// Lookup misses are not errors: both stores return ("", nil) for a user or
// experiment they have never seen.
package profile
