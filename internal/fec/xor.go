package fec

import "fmt"

// xorEngine implements Engine with a single XOR parity symbol. It can repair
// exactly one missing source symbol per block and only supports numRepair == 1.
type xorEngine struct {
	numSource    int
	symbolLength int
	configured   bool
}

var _ Engine = &xorEngine{}

// NewXOREngine returns an unconfigured XOR parity engine.
func NewXOREngine() Engine {
	return &xorEngine{}
}

func (e *xorEngine) Configure(numSource, numRepair, symbolLength int) error {
	if numRepair != 1 {
		return fmt.Errorf("%w: xor supports exactly one repair symbol, got %d", ErrEngineFatal, numRepair)
	}
	if numSource < 1 || symbolLength <= 0 {
		return fmt.Errorf("%w: invalid parameters (%d source symbols, symbol length %d)", ErrEngineFatal, numSource, symbolLength)
	}
	e.numSource = numSource
	e.symbolLength = symbolLength
	e.configured = true
	return nil
}

func (e *xorEngine) BuildRepairSymbol(table SymbolTable, esi int) error {
	if !e.configured {
		return fmt.Errorf("%w: engine not configured", ErrEngineFatal)
	}
	if esi != e.numSource {
		return fmt.Errorf("%w: ESI %d is not a repair index", ErrEngineFatal, esi)
	}
	parity := table[esi]
	if parity == nil {
		return fmt.Errorf("%w: repair slot %d not allocated", ErrEngineFatal, esi)
	}
	for i := range parity {
		parity[i] = 0
	}
	for i := 0; i < e.numSource; i++ {
		if table[i] == nil {
			return fmt.Errorf("source symbol %d missing", i)
		}
		xorInto(parity, table[i])
	}
	return nil
}

func (e *xorEngine) Recover(table SymbolTable) error {
	if !e.configured {
		return fmt.Errorf("%w: engine not configured", ErrEngineFatal)
	}
	missing := -1
	for i := 0; i < e.numSource; i++ {
		if table[i] != nil {
			continue
		}
		if missing != -1 {
			return fmt.Errorf("xor can repair a single missing symbol, %d and %d are missing", missing, i)
		}
		missing = i
	}
	if missing == -1 {
		return nil
	}
	parity := table[e.numSource]
	if parity == nil {
		return fmt.Errorf("repair symbol missing")
	}
	recovered := make([]byte, e.symbolLength)
	xorInto(recovered, parity)
	for i := 0; i < e.numSource; i++ {
		if i != missing {
			xorInto(recovered, table[i])
		}
	}
	table[missing] = recovered
	return nil
}

func xorInto(dst, src []byte) {
	for i := 0; i < len(src) && i < len(dst); i++ {
		dst[i] ^= src[i]
	}
}
