package wire

import (
	"errors"
	"fmt"

	"github.com/ddritzenhoff/fecframe/internal/protocol"
)

// Framing errors. ErrUnitTooLarge and ErrPacketTooShort are protocol
// violations; ErrUnsupportedFlow marks a symbol whose ADU belongs to a flow
// this implementation does not handle (the unit is dropped, the stream
// continues).
var (
	ErrUnitTooLarge    = errors.New("ADU does not fit the symbol")
	ErrPacketTooShort  = errors.New("packet too short to hold a payload ID")
	ErrSymbolTooShort  = errors.New("symbol too short to hold its ADU")
	ErrUnsupportedFlow = errors.New("unsupported ADU flow")
)

// FrameSymbol writes an encoding symbol for adu into dst: the flow id, the
// 16-bit big-endian ADU length, the ADU bytes, and zero padding up to
// len(dst). len(dst) is the block's symbol length; every symbol of a block
// must be framed to the same length.
func FrameSymbol(dst []byte, adu []byte) error {
	if len(adu) > protocol.MaxADULength {
		return fmt.Errorf("%w: %d bytes, maximum is %d", ErrUnitTooLarge, len(adu), protocol.MaxADULength)
	}
	if len(adu)+protocol.SymbolHeaderLen > len(dst) {
		return fmt.Errorf("%w: %d+%d bytes for a symbol length of %d", ErrUnitTooLarge, len(adu), protocol.SymbolHeaderLen, len(dst))
	}
	dst[0] = byte(protocol.SupportedFlowID)
	dst[1] = byte(len(adu) >> 8)
	dst[2] = byte(len(adu))
	n := copy(dst[protocol.SymbolHeaderLen:], adu)
	for i := protocol.SymbolHeaderLen + n; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// ParseSymbol extracts the flow id and the ADU bytes from an encoding
// symbol. The returned slice aliases sym. A flow id other than
// protocol.SupportedFlowID yields ErrUnsupportedFlow; the caller is expected
// to discard the unit with a warning rather than abort the stream.
func ParseSymbol(sym []byte) (protocol.FlowID, []byte, error) {
	if len(sym) < protocol.SymbolHeaderLen {
		return 0, nil, ErrSymbolTooShort
	}
	flow := protocol.FlowID(sym[0])
	aduLen := int(sym[1])<<8 | int(sym[2])
	if protocol.SymbolHeaderLen+aduLen > len(sym) {
		return flow, nil, fmt.Errorf("%w: ADU length %d, symbol length %d", ErrSymbolTooShort, aduLen, len(sym))
	}
	adu := sym[protocol.SymbolHeaderLen : protocol.SymbolHeaderLen+aduLen]
	if flow != protocol.SupportedFlowID {
		return flow, adu, ErrUnsupportedFlow
	}
	return flow, adu, nil
}
