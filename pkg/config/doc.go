// Package config models a project configuration snapshot for the decision
// engine: experiments, variations, traffic allocations, mutually exclusive
// groups, audiences, feature flags, rollouts and variables, parsed from a
// versioned JSON datafile and indexed by id and key.
//
// A ProjectConfig is immutable once built. Swapping configuration means
// parsing a new datafile and replacing the whole snapshot; concurrent
// readers never need locking. Rebuilding a snapshot from identical bytes
// yields identical decisions for identical inputs.
//
// # Usage
//
//	project, err := config.ParseDatafile(raw)
//	if err != nil {
//		// the datafile is structurally invalid and must not be used
//	}
//	exp, err := project.ExperimentByKey("checkout_redesign")
//	if errors.Is(err, config.ErrUnknownExperiment) {
//		// referenced key is absent from this revision
//	}
//
// Parsing is the only fatal path: every later lookup reports absence through
// ErrUnknown* sentinels and leaves the snapshot usable.
package config
