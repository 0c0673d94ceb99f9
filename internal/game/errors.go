package game

import "errors"

var (
	// ErrInvalidAction indicates an action outside Pass, Jump and Duck was requested.
	ErrInvalidAction = errors.New("invalid action")
	// ErrEnvironmentUnavailable indicates the game session could not be polled or driven.
	ErrEnvironmentUnavailable = errors.New("environment unavailable")
	// ErrConfiguration indicates the sweep parameters cannot be run.
	ErrConfiguration = errors.New("invalid configuration")
)
