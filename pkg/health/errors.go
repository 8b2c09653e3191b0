package health

import "errors"

var (
	// ErrCheckFailed is returned by Response.Err when at least one check reported unhealthy.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout wraps a check error produced after the shared Run deadline expired.
	ErrCheckTimeout = errors.New("health: check timeout")
)
