package core

import "errors"

// The error kinds of spec §7. Transport and validation errors never
// propagate above the state machine: they are all handled at the
// point they are detected (logged and dropped). InternalInvariant is
// the only kind that is ever fatal.
var (
	ErrTransportSendFailed = errors.New("exchange: transport send failed")
	ErrInvalidMessage      = errors.New("exchange: invalid message")
	ErrUnknownNamespace    = errors.New("exchange: unknown namespace")
	ErrDuplicate           = errors.New("exchange: duplicate message")
	ErrWrongPrincipal      = errors.New("exchange: message from unexpected source for its kind")
	ErrInternalInvariant   = errors.New("exchange: internal invariant violated")
)
