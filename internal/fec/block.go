package fec

import (
	"fmt"

	"github.com/ddritzenhoff/fecframe/internal/protocol"
	"github.com/ddritzenhoff/fecframe/internal/wire"
)

// A Block collects the packets of one source block on the receiving side.
// Source ADUs are stored without their payload ID trailer, repair packets
// with their payload ID prefix intact. All stored slices are owned by the
// block.
type Block struct {
	ID protocol.BlockID

	numSource int
	numRepair int

	sourceADUs    [][]byte // indexed by ESI, nil when missing
	repairPackets [][]byte // indexed by ESI - numSource, nil when missing

	numSourceSeen int
	numRepairSeen int

	pushed    [4]uint64 // source ESIs whose ADU has been emitted
	recovered [4]uint64 // source ESIs that were reconstructed, not received

	// Complete is set once the block has been processed. Packets arriving
	// for a complete block are duplicates of already delivered data.
	Complete bool
}

// NewBlock returns an empty block for a code with numSource source and
// numRepair repair symbols.
func NewBlock(id protocol.BlockID, numSource, numRepair int) *Block {
	return &Block{
		ID:            id,
		numSource:     numSource,
		numRepair:     numRepair,
		sourceADUs:    make([][]byte, numSource),
		repairPackets: make([][]byte, numRepair),
	}
}

// AddSource stores the ADU of the source symbol at the given ESI. It reports
// false if a symbol with this ESI is already present.
func (b *Block) AddSource(esi protocol.ESI, adu []byte) bool {
	if b.sourceADUs[esi] != nil {
		return false
	}
	b.sourceADUs[esi] = adu
	b.numSourceSeen++
	return true
}

// AddRepair stores a repair packet, payload ID prefix included. It reports
// false if a symbol with this ESI is already present.
func (b *Block) AddRepair(esi protocol.ESI, packet []byte) bool {
	i := int(esi) - b.numSource
	if b.repairPackets[i] != nil {
		return false
	}
	b.repairPackets[i] = packet
	b.numRepairSeen++
	return true
}

// HasSource reports whether the source symbol at the given ESI is present.
func (b *Block) HasSource(esi protocol.ESI) bool {
	return b.sourceADUs[esi] != nil
}

// SourceADU returns the stored ADU at the given ESI, or nil.
func (b *Block) SourceADU(esi protocol.ESI) []byte {
	return b.sourceADUs[esi]
}

// NumSymbols returns the number of stored source and repair symbols.
func (b *Block) NumSymbols() (numSource, numRepair int) {
	return b.numSourceSeen, b.numRepairSeen
}

// CanProcess reports whether enough symbols are present to reconstruct all
// source symbols of the block.
func (b *Block) CanProcess() bool {
	return b.numSourceSeen+b.numRepairSeen >= b.numSource
}

// AllSourcePresent reports whether every source symbol arrived, making
// recovery unnecessary.
func (b *Block) AllSourcePresent() bool {
	return b.numSourceSeen == b.numSource
}

// SymbolLength returns the encoding symbol length of the block, derived from
// the first stored repair packet. It returns 0 while no repair packet is
// present; source packets carry bare ADUs and do not reveal the symbol
// length.
func (b *Block) SymbolLength() int {
	for _, pkt := range b.repairPackets {
		if pkt != nil {
			return len(pkt) - protocol.PayloadIDLen
		}
	}
	return 0
}

// MarkPushed records that the ADU at the given ESI has been emitted.
func (b *Block) MarkPushed(esi protocol.ESI) {
	b.pushed[esi/64] |= 1 << (esi % 64)
}

// IsPushed reports whether the ADU at the given ESI has been emitted.
func (b *Block) IsPushed(esi protocol.ESI) bool {
	return b.pushed[esi/64]&(1<<(esi%64)) != 0
}

// MarkRecovered records that the ADU at the given ESI was reconstructed
// rather than received.
func (b *Block) MarkRecovered(esi protocol.ESI) {
	b.recovered[esi/64] |= 1 << (esi % 64)
}

// IsRecovered reports whether the ADU at the given ESI was reconstructed.
func (b *Block) IsRecovered(esi protocol.ESI) bool {
	return b.recovered[esi/64]&(1<<(esi%64)) != 0
}

// BuildSymbolTable assembles the engine symbol table for recovery. Present
// source ADUs are framed into freshly allocated symbols of symbolLength
// bytes; repair slots alias the stored repair packets past their payload ID.
// Missing symbols are left nil.
func (b *Block) BuildSymbolTable(symbolLength int) (SymbolTable, error) {
	table := make(SymbolTable, b.numSource+b.numRepair)
	for esi, adu := range b.sourceADUs {
		if adu == nil {
			continue
		}
		sym := make([]byte, symbolLength)
		if err := wire.FrameSymbol(sym, adu); err != nil {
			return nil, fmt.Errorf("framing source symbol %d: %w", esi, err)
		}
		table[esi] = sym
	}
	for i, pkt := range b.repairPackets {
		if pkt == nil {
			continue
		}
		sym := pkt[protocol.PayloadIDLen:]
		if len(sym) != symbolLength {
			return nil, fmt.Errorf("repair symbol %d has length %d, block symbol length is %d", b.numSource+i, len(sym), symbolLength)
		}
		table[b.numSource+i] = sym
	}
	return table, nil
}
