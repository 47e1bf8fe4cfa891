package event

import "errors"

var (
	ErrInvalidEndpoint  = errors.New("invalid events endpoint")
	ErrDispatchFailed   = errors.New("event dispatch failed")
	ErrPermanentFailure = errors.New("event rejected by endpoint")
)
