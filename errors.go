package flagkit

import "errors"

var (
	ErrEmptyDatafile        = errors.New("empty datafile")
	ErrVariableTypeMismatch = errors.New("feature variable has a different declared type")
	ErrInvalidVariableValue = errors.New("feature variable value cannot be parsed as its declared type")
	ErrFailedToLoadConfig   = errors.New("failed to load flagkit config")
)
