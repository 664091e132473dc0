package fec

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// reedSolomonEngine implements Engine on top of a systematic GF(2^8)
// Reed-Solomon code. The underlying codec works on whole shard sets, so
// repair symbols are computed for all parity slots on the first
// BuildRepairSymbol call of a block.
type reedSolomonEngine struct {
	enc          reedsolomon.Encoder
	numSource    int
	numRepair    int
	symbolLength int
}

var _ Engine = &reedSolomonEngine{}

// NewReedSolomonEngine returns an unconfigured Reed-Solomon engine.
func NewReedSolomonEngine() Engine {
	return &reedSolomonEngine{}
}

func (e *reedSolomonEngine) Configure(numSource, numRepair, symbolLength int) error {
	if symbolLength <= 0 {
		return fmt.Errorf("%w: invalid symbol length %d", ErrEngineFatal, symbolLength)
	}
	if numSource == e.numSource && numRepair == e.numRepair && e.enc != nil {
		e.symbolLength = symbolLength
		return nil
	}
	enc, err := reedsolomon.New(numSource, numRepair)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrEngineFatal, err)
	}
	e.enc = enc
	e.numSource = numSource
	e.numRepair = numRepair
	e.symbolLength = symbolLength
	return nil
}

func (e *reedSolomonEngine) BuildRepairSymbol(table SymbolTable, esi int) error {
	if e.enc == nil {
		return fmt.Errorf("%w: engine not configured", ErrEngineFatal)
	}
	if esi < e.numSource || esi >= e.numSource+e.numRepair {
		return fmt.Errorf("%w: ESI %d is not a repair index", ErrEngineFatal, esi)
	}
	if table[esi] == nil {
		return fmt.Errorf("%w: repair slot %d not allocated", ErrEngineFatal, esi)
	}
	if esi > e.numSource {
		// Encode already filled every parity shard on the first repair ESI.
		return nil
	}
	if err := e.enc.Encode(table); err != nil {
		return fmt.Errorf("building repair symbols: %w", err)
	}
	return nil
}

func (e *reedSolomonEngine) Recover(table SymbolTable) error {
	if e.enc == nil {
		return fmt.Errorf("%w: engine not configured", ErrEngineFatal)
	}
	if err := e.enc.ReconstructData(table); err != nil {
		return fmt.Errorf("reconstructing source symbols: %w", err)
	}
	return nil
}
