package fecframe

import (
	"time"

	"github.com/ddritzenhoff/fecframe/internal/fec"
	"github.com/ddritzenhoff/fecframe/internal/protocol"
)

// BlockID is the number of a source block, drawn from a 24-bit ring.
type BlockID = protocol.BlockID

// ESI is an encoding symbol index within a block.
type ESI = protocol.ESI

// Engine is a block erasure code. NewReedSolomonEngine and NewXOREngine
// return the bundled implementations.
type Engine = fec.Engine

// NewReedSolomonEngine returns the default Reed-Solomon erasure engine.
func NewReedSolomonEngine() Engine { return fec.NewReedSolomonEngine() }

// NewXOREngine returns a single-parity XOR engine. It only supports
// NumRepairSymbols == 1.
func NewXOREngine() Engine { return fec.NewXOREngine() }

// A PacketWriter consumes the packets an Encoder produces. Implementations
// must not retain p past the call.
type PacketWriter interface {
	WritePacket(p []byte) error
}

// The PacketWriterFunc type is an adapter to allow the use of ordinary
// functions as packet writers.
type PacketWriterFunc func(p []byte) error

// WritePacket calls f(p).
func (f PacketWriterFunc) WritePacket(p []byte) error { return f(p) }

// An ADU is an application data unit delivered by the Decoder.
type ADU struct {
	Data    []byte
	BlockID BlockID
	ESI     ESI
	// Recovered is set when the unit was reconstructed from repair symbols
	// rather than received in a source packet.
	Recovered bool
	// Timestamp is the emission time. It is zero unless
	// Config.TimestampOutput is set.
	Timestamp time.Time
}
