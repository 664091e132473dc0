package fec

import "errors"

//go:generate mockgen -package mocks -destination ../mocks/engine.go github.com/ddritzenhoff/fecframe/internal/fec Engine

// ErrEngineFatal marks an engine failure that outlives the current block.
// Callers must stop using the engine when an error wraps it.
var ErrEngineFatal = errors.New("fec engine failure")

// A SymbolTable holds the encoding symbols of one source block, indexed by
// ESI: slots [0, numSource) are source symbols, [numSource, numSource+numRepair)
// repair symbols. A nil slot is a missing symbol. All non-nil slots must have
// the block's symbol length.
type SymbolTable [][]byte

// An Engine implements a block code over symbol tables. Implementations are
// reconfigured between blocks and are not safe for concurrent use.
type Engine interface {
	// Configure prepares the engine for blocks with numSource source symbols,
	// numRepair repair symbols and symbols of symbolLength bytes. It must be
	// called before BuildRepairSymbol or Recover and may be called again with
	// different parameters.
	Configure(numSource, numRepair, symbolLength int) error
	// BuildRepairSymbol fills the repair slot at the given ESI. All source
	// slots must be present, the repair slot must be allocated by the caller,
	// and repair ESIs must be requested in ascending order starting at
	// numSource.
	BuildRepairSymbol(table SymbolTable, esi int) error
	// Recover reconstructs the missing source slots of the table in place.
	// It needs at least numSource non-nil slots.
	Recover(table SymbolTable) error
}
