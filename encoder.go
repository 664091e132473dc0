package fecframe

import (
	"fmt"
	"sync"

	"github.com/ddritzenhoff/fecframe/internal/fec"
	"github.com/ddritzenhoff/fecframe/internal/protocol"
	"github.com/ddritzenhoff/fecframe/internal/wire"
)

// An Encoder groups written ADUs into source blocks and produces the two
// packet streams. Every unit leaves as a source packet during the Write call
// that took it; once a block holds NumSourceSymbols units, the repair
// packets for the block follow on the repair stream.
//
// Methods are safe for concurrent use, though units are numbered in Write
// order.
type Encoder struct {
	mutex sync.Mutex

	config       *Config
	engine       fec.Engine
	sourceWriter PacketWriter
	repairWriter PacketWriter

	blockID   BlockID
	aduTable  [][]byte
	maxADULen int
	closed    bool
}

// NewEncoder returns an Encoder writing source packets to sourceWriter and
// repair packets to repairWriter. A nil config selects the defaults;
// repairWriter may be nil when the config has no repair symbols.
func NewEncoder(config *Config, sourceWriter, repairWriter PacketWriter) (*Encoder, error) {
	c, err := populateConfig(config)
	if err != nil {
		return nil, err
	}
	if c.NumRepairSymbols > 0 && repairWriter == nil {
		return nil, &ConfigError{Reason: "a repair packet writer is required when NumRepairSymbols > 0"}
	}
	c.Logger = c.Logger.WithPrefix("encoder")
	return &Encoder{
		config:       c,
		engine:       c.Engine,
		sourceWriter: sourceWriter,
		repairWriter: repairWriter,
		aduTable:     make([][]byte, 0, c.NumSourceSymbols),
	}, nil
}

// Write takes one ADU into the current block and emits its source packet.
// The encoder copies adu, so it may be reused after the call.
//
// A FrameError rejects only the unit. Errors from the repair computation
// discard the pending block; the emitted source packets of that block id
// stand.
func (e *Encoder) Write(adu []byte) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.closed {
		return ErrClosed
	}
	if len(adu) > protocol.MaxADULength {
		return &FrameError{Kind: FrameErrorUnitTooLarge, Cause: fmt.Errorf("%d bytes, maximum is %d", len(adu), protocol.MaxADULength)}
	}

	id := wire.PayloadID{
		BlockID:           e.blockID,
		ESI:               protocol.ESI(len(e.aduTable)),
		SourceSymbolCount: uint16(e.config.NumSourceSymbols),
	}
	pkt := make([]byte, 0, len(adu)+protocol.PayloadIDLen)
	pkt = append(pkt, adu...)
	pkt = id.Append(pkt)
	// The unit leaves before any repair computation. A failed write is
	// logged, not returned: the stream must keep its numbering.
	if err := e.sourceWriter.WritePacket(pkt); err != nil {
		e.config.Logger.Errorf("writing source packet of block %d, ESI %d: %s", id.BlockID, id.ESI, err)
	}

	e.aduTable = append(e.aduTable, pkt[:len(adu):len(adu)])
	if len(adu) > e.maxADULen {
		e.maxADULen = len(adu)
	}
	if len(e.aduTable) < e.config.NumSourceSymbols {
		return nil
	}
	return e.finishBlock()
}

// finishBlock emits the repair packets of the full adu table and advances
// the block id. The id only advances when the block finishes cleanly, so a
// failed block is retried under the same id.
func (e *Encoder) finishBlock() error {
	k, r := e.config.NumSourceSymbols, e.config.NumRepairSymbols
	if r == 0 {
		e.resetTable()
		e.blockID = (e.blockID + 1) % protocol.BlockIDModulus
		return nil
	}

	symbolLength := protocol.SymbolHeaderLen + e.maxADULen
	if err := e.engine.Configure(k, r, symbolLength); err != nil {
		e.resetTable()
		return fmt.Errorf("configuring engine: %w", err)
	}

	table := make(fec.SymbolTable, k+r)
	for esi, adu := range e.aduTable {
		sym := make([]byte, symbolLength)
		if err := wire.FrameSymbol(sym, adu); err != nil {
			e.resetTable()
			return fmt.Errorf("framing source symbol %d: %w", esi, err)
		}
		table[esi] = sym
	}
	repairPkts := make([][]byte, r)
	for i := 0; i < r; i++ {
		pkt := make([]byte, protocol.PayloadIDLen+symbolLength)
		repairPkts[i] = pkt
		table[k+i] = pkt[protocol.PayloadIDLen:]
	}
	for i := 0; i < r; i++ {
		if err := e.engine.BuildRepairSymbol(table, k+i); err != nil {
			e.resetTable()
			return fmt.Errorf("building repair symbol %d: %w", k+i, err)
		}
	}

	for i, pkt := range repairPkts {
		id := wire.PayloadID{
			BlockID:           e.blockID,
			ESI:               protocol.ESI(k + i),
			SourceSymbolCount: uint16(k),
		}
		id.Append(pkt[:0])
		if err := e.repairWriter.WritePacket(pkt); err != nil {
			e.config.Logger.Errorf("writing repair packet of block %d, ESI %d: %s", id.BlockID, id.ESI, err)
		}
	}
	if e.config.Tracer != nil {
		e.config.Tracer.RepairBuilt(e.blockID, r, symbolLength)
	}

	e.resetTable()
	e.blockID = (e.blockID + 1) % protocol.BlockIDModulus
	return nil
}

func (e *Encoder) resetTable() {
	e.aduTable = e.aduTable[:0]
	e.maxADULen = 0
}

// Flush discards the units of the unfinished block without emitting repair
// packets. The block id is not rewound; the discarded units' source packets
// are already on the wire under the current id.
func (e *Encoder) Flush() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.closed {
		return
	}
	if n := len(e.aduTable); n > 0 {
		e.config.Logger.Debugf("flushing %d units of unfinished block %d", n, e.blockID)
	}
	e.resetTable()
}

// Close discards the unfinished block and resets the block id to 0. Further
// writes return ErrClosed.
func (e *Encoder) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.closed {
		return nil
	}
	e.resetTable()
	e.blockID = 0
	e.closed = true
	return nil
}

// SetConfig rejects reconfiguration. The code parameters are fixed at
// construction; changing them mid-stream would desynchronize the two sides.
func (e *Encoder) SetConfig(*Config) error {
	e.config.Logger.Infof("rejecting reconfiguration, parameters are fixed at construction")
	return &ConfigError{Reason: "parameters are fixed at construction"}
}
