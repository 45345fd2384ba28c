package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidOrder    = errors.New("invalid order parameters")
	ErrOrderRejected   = errors.New("order rejected")
	ErrRateLimited     = errors.New("rate limited")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrLockHeld        = errors.New("lock already held")
	ErrMalformedUpdate = errors.New("malformed market data")
	ErrSequenceGap     = errors.New("sequence gap")
	ErrStaleUpdate     = errors.New("stale update")
	ErrUnknownKind     = errors.New("unknown strategy kind")
)
