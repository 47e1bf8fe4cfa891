package config

import "errors"

// Predefined errors for the config package.
var (
	// ErrInvalidDatafile indicates the datafile failed structural validation.
	// A snapshot is never built from an invalid datafile.
	ErrInvalidDatafile = errors.New("invalid datafile")

	// ErrUnsupportedVersion indicates the datafile schema version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported datafile version")

	// ErrUnknownExperiment indicates the referenced experiment is absent from the snapshot.
	ErrUnknownExperiment = errors.New("experiment not found in project config")

	// ErrUnknownFeature indicates the referenced feature flag is absent from the snapshot.
	ErrUnknownFeature = errors.New("feature flag not found in project config")

	// ErrUnknownAudience indicates the referenced audience is absent from the snapshot.
	ErrUnknownAudience = errors.New("audience not found in project config")

	// ErrUnknownGroup indicates the referenced group is absent from the snapshot.
	ErrUnknownGroup = errors.New("group not found in project config")

	// ErrUnknownRollout indicates the referenced rollout is absent from the snapshot.
	ErrUnknownRollout = errors.New("rollout not found in project config")

	// ErrUnknownEvent indicates the referenced event is absent from the snapshot.
	ErrUnknownEvent = errors.New("event not found in project config")

	// ErrUnknownVariable indicates the referenced feature variable is absent from the flag.
	ErrUnknownVariable = errors.New("feature variable not found")
)
