package common

import "errors"

// Decode errors are classified by one of the sentinels below; callers use
// errors.Is to branch on the class. ErrUnsupported is the only class that is
// safe to degrade on (e.g. treat a layer as mask-less); the rest are fatal
// for the unit (block, stream or layer) they occurred in.
var (
	ErrOutOfRange   = errors.New("position out of range")
	ErrCorrupt      = errors.New("corrupt container")
	ErrUnsupported  = errors.New("unsupported feature")
	ErrUnrecognized = errors.New("unrecognized container structure")
)
