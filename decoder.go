package fecframe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/ddritzenhoff/fecframe/internal/fec"
	"github.com/ddritzenhoff/fecframe/internal/protocol"
	"github.com/ddritzenhoff/fecframe/internal/wire"
)

// A Decoder reassembles a stream of ADUs from matching source and repair
// packet streams. Packets may arrive in any order and any mix of the two
// streams; missing source symbols are reconstructed as soon as a block holds
// enough symbols. Finished units are read with ReadADU.
//
// Handle, Close and Flush calls are safe for concurrent use. ReadADU may run
// concurrently with all of them.
type Decoder struct {
	mutex sync.Mutex

	config *Config
	engine fec.Engine
	store  *fec.Store
	window *fec.Window
	queue  *aduQueue

	sourceClosed bool
	repairClosed bool
	dead         bool
}

// NewDecoder returns a Decoder for the given config. A nil config selects
// the defaults.
func NewDecoder(config *Config) (*Decoder, error) {
	c, err := populateConfig(config)
	if err != nil {
		return nil, err
	}
	c.Logger = c.Logger.WithPrefix("decoder")
	return &Decoder{
		config: c,
		engine: c.Engine,
		store:  fec.NewStore(),
		window: fec.NewWindow(c.MaxSourceBlockAge),
		queue:  newADUQueue(),
	}, nil
}

// HandleSourcePacket feeds one packet of the source stream into the decoder.
// The packet is an ADU followed by the 6-byte payload ID; the decoder copies
// what it keeps, so p may be reused after the call.
//
// A FrameError rejects only the packet, a FlowError only the block it names.
// Any other error is fatal for the decoder.
func (d *Decoder) HandleSourcePacket(p []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.dead || d.sourceClosed {
		return ErrClosed
	}

	id, err := wire.ParseSourcePayloadID(p)
	if err != nil {
		return &FrameError{Kind: FrameErrorTooShort, Cause: err}
	}
	if int(id.ESI) >= d.config.NumSourceSymbols {
		return &FrameError{Kind: FrameErrorBadESI, Cause: fmt.Errorf("ESI %d on the source stream of a %d source symbol code", id.ESI, d.config.NumSourceSymbols)}
	}

	b, ok := d.admit(id.BlockID)
	if !ok {
		return nil
	}
	if b.HasSource(id.ESI) {
		d.config.Logger.Debugf("dropping duplicate source symbol %d of block %d", id.ESI, id.BlockID)
		return nil
	}

	adu := make([]byte, len(p)-protocol.PayloadIDLen)
	copy(adu, p)
	b.AddSource(id.ESI, adu)
	if !d.config.SortOutput {
		d.emit(b, id.ESI)
	}
	if b.CanProcess() {
		return d.process(b)
	}
	return nil
}

// HandleRepairPacket feeds one packet of the repair stream into the decoder.
// The packet is the 6-byte payload ID followed by a repair symbol. The
// decoder copies what it keeps, so p may be reused after the call.
func (d *Decoder) HandleRepairPacket(p []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.dead || d.repairClosed {
		return ErrClosed
	}

	id, err := wire.ParseRepairPayloadID(p)
	if err != nil {
		return &FrameError{Kind: FrameErrorTooShort, Cause: err}
	}
	k, r := d.config.NumSourceSymbols, d.config.NumRepairSymbols
	if int(id.ESI) < k || int(id.ESI) >= k+r {
		return &FrameError{Kind: FrameErrorBadESI, Cause: fmt.Errorf("ESI %d on the repair stream of a (%d, %d) code", id.ESI, k, r)}
	}

	b, ok := d.admit(id.BlockID)
	if !ok {
		return nil
	}
	pkt := make([]byte, len(p))
	copy(pkt, p)
	if !b.AddRepair(id.ESI, pkt) {
		d.config.Logger.Debugf("dropping duplicate repair symbol %d of block %d", id.ESI, id.BlockID)
		return nil
	}
	if b.CanProcess() {
		return d.process(b)
	}
	return nil
}

// admit runs the window policy for an incoming packet's block id: advance
// the reference and prune if the id is newer, drop the packet if the id has
// aged out, otherwise hand out the packet's block. ok is false when the
// packet must be dropped without touching any block.
func (d *Decoder) admit(id BlockID) (_ *fec.Block, ok bool) {
	if d.window.Observe(id) {
		d.pruneStale()
	}
	if !d.window.IsRecentEnough(id) {
		d.config.Logger.Debugf("dropping packet of stale block %d", id)
		return nil, false
	}
	b, created := d.store.GetOrCreate(id, d.config.NumSourceSymbols, d.config.NumRepairSymbols)
	if created && d.config.Tracer != nil {
		d.config.Tracer.BlockStarted(id)
	}
	if b.Complete {
		d.config.Logger.Debugf("dropping packet of already complete block %d", id)
		return nil, false
	}
	return b, true
}

// process reconstructs a block that holds enough symbols. The block stays in
// the store, marked complete, to absorb late duplicates until it ages out.
// When sorting, the block's units leave only once it is pruned or drained, so
// a block completing out of order cannot overtake an older pending block.
func (d *Decoder) process(b *fec.Block) error {
	if b.AllSourcePresent() {
		// every source symbol arrived, the engine has nothing to do
		b.Complete = true
		return nil
	}
	if _, numRepair := b.NumSymbols(); numRepair == 0 {
		// enough symbols without any repair symbol implies all source
		// symbols are present, which the branch above handled
		panic("fecframe: processable block with missing source symbols and no repair symbols")
	}

	symbolLength := b.SymbolLength()
	table, err := b.BuildSymbolTable(symbolLength)
	if err != nil {
		return d.discardBlock(b, fmt.Errorf("%w: %s", ErrRecoveryFailed, err))
	}
	if err := d.engine.Configure(d.config.NumSourceSymbols, d.config.NumRepairSymbols, symbolLength); err != nil {
		return d.fatal(err)
	}
	if err := d.engine.Recover(table); err != nil {
		if errors.Is(err, fec.ErrEngineFatal) {
			return d.fatal(err)
		}
		return d.discardBlock(b, fmt.Errorf("%w: %s", ErrRecoveryFailed, err))
	}

	numRecovered := 0
	for esi := protocol.ESI(0); int(esi) < d.config.NumSourceSymbols; esi++ {
		if b.HasSource(esi) {
			continue
		}
		flow, adu, err := wire.ParseSymbol(table[esi])
		if err != nil {
			if errors.Is(err, wire.ErrUnsupportedFlow) {
				d.config.Logger.Errorf("dropping recovered unit of block %d, ESI %d: flow %d is not supported", b.ID, esi, flow)
				continue
			}
			return d.discardBlock(b, fmt.Errorf("%w: %s", ErrRecoveryFailed, err))
		}
		// adu aliases the freshly reconstructed symbol, no copy needed
		b.AddSource(esi, adu)
		b.MarkRecovered(esi)
		numRecovered++
		if !d.config.SortOutput {
			d.emit(b, esi)
		}
	}
	if d.config.Tracer != nil {
		d.config.Tracer.BlockRecovered(b.ID, numRecovered)
	}
	b.Complete = true
	return nil
}

// emit hands a single stored unit to the reader, at most once per ESI.
func (d *Decoder) emit(b *fec.Block, esi protocol.ESI) {
	if b.IsPushed(esi) {
		return
	}
	data := b.SourceADU(esi)
	if data == nil {
		return
	}
	b.MarkPushed(esi)
	a := &ADU{
		Data:      data,
		BlockID:   b.ID,
		ESI:       esi,
		Recovered: b.IsRecovered(esi),
	}
	if d.config.TimestampOutput {
		a.Timestamp = time.Now()
	}
	d.queue.Add(a)
}

// emitBlockUnits delivers every present, not yet delivered unit of a block
// in ascending ESI order.
func (d *Decoder) emitBlockUnits(b *fec.Block) {
	for esi := protocol.ESI(0); int(esi) < d.config.NumSourceSymbols; esi++ {
		d.emit(b, esi)
	}
}

// pruneStale drops every block that aged out of the window. What arrived for
// them is delivered first, blocks in ascending id order.
func (d *Decoder) pruneStale() {
	evicted := d.store.Evict(func(b *fec.Block) bool { return d.window.IsRecentEnough(b.ID) })
	if len(evicted) == 0 {
		return
	}
	slices.SortFunc(evicted, func(a, b *fec.Block) bool { return a.ID < b.ID })
	for _, b := range evicted {
		d.emitBlockUnits(b)
		d.config.Logger.Debugf("pruned block %d (complete: %t)", b.ID, b.Complete)
		if d.config.Tracer != nil {
			d.config.Tracer.BlockPruned(b.ID, b.Complete)
		}
	}
}

func (d *Decoder) discardBlock(b *fec.Block, cause error) error {
	d.store.Remove(b.ID)
	err := &FlowError{BlockID: b.ID, Cause: cause}
	d.config.Logger.Errorf("discarding block %d: %s", b.ID, cause)
	return err
}

func (d *Decoder) fatal(err error) error {
	d.dead = true
	d.store.Evict(func(*fec.Block) bool { return false })
	d.queue.CloseWithError(err)
	d.config.Logger.Errorf("closing decoder: %s", err)
	return err
}

// ReadADU blocks until the next finished unit is available. It returns
// io.EOF once both packet streams are closed and all stored blocks are
// drained, or the fatal error that stopped the decoder.
func (d *Decoder) ReadADU(ctx context.Context) (*ADU, error) {
	return d.queue.Pop(ctx)
}

// CloseSource marks the end of the source packet stream. Once both streams
// are closed (or the source stream alone for a code without repair symbols)
// the stored blocks are drained in ascending id order and ReadADU reports
// io.EOF after the last unit.
func (d *Decoder) CloseSource() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.dead || d.sourceClosed {
		return
	}
	d.sourceClosed = true
	d.maybeDrain()
}

// CloseRepair marks the end of the repair packet stream.
func (d *Decoder) CloseRepair() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.dead || d.repairClosed {
		return
	}
	d.repairClosed = true
	d.maybeDrain()
}

func (d *Decoder) maybeDrain() {
	if !d.sourceClosed {
		return
	}
	if !d.repairClosed && d.config.NumRepairSymbols > 0 {
		return
	}
	drained := d.store.Evict(func(*fec.Block) bool { return false })
	slices.SortFunc(drained, func(a, b *fec.Block) bool { return a.ID < b.ID })
	for _, b := range drained {
		d.emitBlockUnits(b)
	}
	d.queue.Close()
}

// Flush discards all stored blocks, queued units and the window reference
// without delivering anything. The decoder stays usable.
func (d *Decoder) Flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.dead {
		return
	}
	d.store.Evict(func(*fec.Block) bool { return false })
	d.window = fec.NewWindow(d.config.MaxSourceBlockAge)
	d.queue.Clear()
}

// Close tears the decoder down. Pending units are discarded; a blocked
// ReadADU returns ErrClosed.
func (d *Decoder) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.dead {
		return nil
	}
	d.dead = true
	d.store.Evict(func(*fec.Block) bool { return false })
	d.queue.CloseWithError(ErrClosed)
	return nil
}

// SetConfig rejects reconfiguration. The code parameters are fixed at
// construction; changing them mid-stream would desynchronize the two sides.
func (d *Decoder) SetConfig(*Config) error {
	d.config.Logger.Infof("rejecting reconfiguration, parameters are fixed at construction")
	return &ConfigError{Reason: "parameters are fixed at construction"}
}
