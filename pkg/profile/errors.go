package profile

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
	ErrLookupFailed                 = errors.New("profile lookup failed")
	ErrSaveFailed                   = errors.New("profile save failed")
)
