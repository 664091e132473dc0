package fecframe

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a packet or ADU is handed to a closed stream.
var ErrClosed = errors.New("fecframe: stream closed")

// ErrRecoveryFailed is wrapped in a FlowError when a block that should be
// recoverable could not be reconstructed.
var ErrRecoveryFailed = errors.New("recovery failed")

// FrameErrorKind classifies framing violations of a single unit or packet.
type FrameErrorKind uint8

const (
	// FrameErrorUnitTooLarge marks an ADU that does not fit its symbol.
	FrameErrorUnitTooLarge FrameErrorKind = iota
	// FrameErrorTooShort marks a packet too short for its payload ID.
	FrameErrorTooShort
	// FrameErrorUnsupportedFlow marks a symbol carrying an unknown flow id.
	FrameErrorUnsupportedFlow
	// FrameErrorBadESI marks a payload ID whose ESI is outside the code.
	FrameErrorBadESI
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorUnitTooLarge:
		return "unit too large"
	case FrameErrorTooShort:
		return "packet too short"
	case FrameErrorUnsupportedFlow:
		return "unsupported flow"
	case FrameErrorBadESI:
		return "bad encoding symbol index"
	default:
		return "unknown"
	}
}

// A FrameError reports a malformed unit or packet. The stream stays usable;
// only the offending unit is dropped.
type FrameError struct {
	Kind  FrameErrorKind
	Cause error
}

func (e *FrameError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("frame error: %s", e.Kind)
	}
	return fmt.Sprintf("frame error: %s: %s", e.Kind, e.Cause)
}

func (e *FrameError) Unwrap() error { return e.Cause }

// A FlowError reports a per-block failure on the receiving side. The block
// named by BlockID is discarded; the stream stays usable.
type FlowError struct {
	BlockID BlockID
	Cause   error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("block %d: %s", e.BlockID, e.Cause)
}

func (e *FlowError) Unwrap() error { return e.Cause }

// A ConfigError reports an invalid Config.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid config: " + e.Reason
}
