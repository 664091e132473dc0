// Package qlog traces block lifecycle events as line-delimited JSON, one
// event object per line.
package qlog

import (
	"io"
	"sync"
	"time"

	"github.com/francoispqt/gojay"

	"github.com/ddritzenhoff/fecframe/internal/protocol"
)

// A Tracer writes block lifecycle events to an io.Writer. Event times are
// relative to the tracer's creation. Methods are safe for concurrent use.
type Tracer struct {
	mutex sync.Mutex

	w         io.Writer
	reference time.Time
}

// NewTracer returns a Tracer writing to w.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{
		w:         w,
		reference: time.Now(),
	}
}

func (t *Tracer) record(details eventDetails) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	ev := event{
		RelativeTime: time.Since(t.reference),
		eventDetails: details,
	}
	enc := gojay.BorrowEncoder(t.w)
	defer enc.Release()
	if err := enc.EncodeObject(ev); err != nil {
		return
	}
	t.w.Write([]byte{'\n'})
}

// BlockStarted records that the first packet of a block arrived.
func (t *Tracer) BlockStarted(id protocol.BlockID) {
	t.record(eventBlockStarted{BlockID: id})
}

// BlockRecovered records a successful reconstruction.
func (t *Tracer) BlockRecovered(id protocol.BlockID, numRecovered int) {
	t.record(eventBlockRecovered{BlockID: id, NumRecovered: numRecovered})
}

// BlockPruned records that a block aged out of the window.
func (t *Tracer) BlockPruned(id protocol.BlockID, complete bool) {
	t.record(eventBlockPruned{BlockID: id, Complete: complete})
}

// RepairBuilt records that the sending side emitted a block's repair packets.
func (t *Tracer) RepairBuilt(id protocol.BlockID, numRepair, symbolLength int) {
	t.record(eventRepairBuilt{BlockID: id, NumRepair: numRepair, SymbolLength: symbolLength})
}
