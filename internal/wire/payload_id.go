package wire

import (
	"github.com/ddritzenhoff/fecframe/internal/protocol"
)

// PayloadID is the 6-byte FEC payload ID attached to every packet.
// Source packets carry it as a trailer, repair packets as a prefix. The
// asymmetry is an artifact of the original protocol's packet construction
// order and is preserved for wire compatibility.
type PayloadID struct {
	BlockID protocol.BlockID
	ESI     protocol.ESI
	// SourceSymbolCount is informational; receivers ignore it.
	SourceSymbolCount uint16
}

// Append serializes the payload ID and appends it to b.
func (id PayloadID) Append(b []byte) []byte {
	b = append(b,
		byte(id.BlockID>>16),
		byte(id.BlockID>>8),
		byte(id.BlockID),
		byte(id.ESI),
		byte(id.SourceSymbolCount>>8),
		byte(id.SourceSymbolCount),
	)
	return b
}

// ParseSourcePayloadID reads the payload ID from the trailing 6 bytes of a
// source packet.
func ParseSourcePayloadID(packet []byte) (PayloadID, error) {
	if len(packet) < protocol.PayloadIDLen {
		return PayloadID{}, ErrPacketTooShort
	}
	return parsePayloadID(packet[len(packet)-protocol.PayloadIDLen:]), nil
}

// ParseRepairPayloadID reads the payload ID from the leading 6 bytes of a
// repair packet.
func ParseRepairPayloadID(packet []byte) (PayloadID, error) {
	// A repair packet must hold the payload ID plus at least the symbol
	// header of the repair symbol.
	if len(packet) < protocol.PayloadIDLen+protocol.SymbolHeaderLen {
		return PayloadID{}, ErrPacketTooShort
	}
	return parsePayloadID(packet[:protocol.PayloadIDLen]), nil
}

func parsePayloadID(b []byte) PayloadID {
	return PayloadID{
		BlockID:           protocol.BlockID(b[0])<<16 | protocol.BlockID(b[1])<<8 | protocol.BlockID(b[2]),
		ESI:               protocol.ESI(b[3]),
		SourceSymbolCount: uint16(b[4])<<8 | uint16(b[5]),
	}
}
