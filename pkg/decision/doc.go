// Package decision orchestrates experiment and feature decisions as an
// ordered, short-circuiting pipeline over a project snapshot:
//
//  1. runtime forced override (OverrideStore)
//  2. datafile whitelist (experiment forcedVariations)
//  3. sticky assignment from an optional ProfileService
//  4. mutual-exclusion check for random-policy groups
//  5. audience gate (condition tree or legacy audience-id list)
//  6. deterministic traffic bucketing
//
// Fresh bucketing results are saved back to the profile service on a
// best-effort basis. Profile failures and unknown entity references degrade
// to "no result" and are logged; they never abort a decision.
//
// Experiment status is deliberately not consulted here: a decision is
// computed for paused and not-started experiments too, and only event
// dispatch at the client layer is status-gated. Keep that asymmetry.
//
// The OverrideStore is caller-owned mutable state passed in explicitly, so
// multiple engines can run isolated in one process; everything else the
// pipeline touches is immutable.
package decision
