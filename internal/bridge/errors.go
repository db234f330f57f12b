package bridge

import "errors"

var (
	ErrHubFull        = errors.New("too many viewers connected")
	ErrClientNotFound = errors.New("client not found")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidCommand = errors.New("invalid command")
	ErrSendFailed     = errors.New("osc send failed")
)
