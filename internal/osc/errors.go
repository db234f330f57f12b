package osc

import "errors"

var (
	ErrNotInitialized     = errors.New("osc: not initialized")
	ErrInvalidChannelPath = errors.New("osc: channel path must contain exactly one %d verb")
)
