package qlog

import (
	"time"

	"github.com/francoispqt/gojay"

	"github.com/ddritzenhoff/fecframe/internal/protocol"
)

type event struct {
	RelativeTime time.Duration
	eventDetails
}

var _ gojay.MarshalerJSONObject = event{}

type eventDetails interface {
	Name() string
	gojay.MarshalerJSONObject
}

func (e event) IsNil() bool { return false }
func (e event) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Float64Key("time", milliseconds(e.RelativeTime))
	enc.StringKey("name", e.Name())
	enc.ObjectKey("data", e.eventDetails)
}

func milliseconds(dur time.Duration) float64 { return float64(dur.Nanoseconds()) / 1e6 }

type eventBlockStarted struct {
	BlockID protocol.BlockID
}

func (e eventBlockStarted) Name() string { return "fec:block_started" }
func (e eventBlockStarted) IsNil() bool  { return false }
func (e eventBlockStarted) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Uint64Key("block_id", uint64(e.BlockID))
}

type eventBlockRecovered struct {
	BlockID      protocol.BlockID
	NumRecovered int
}

func (e eventBlockRecovered) Name() string { return "fec:block_recovered" }
func (e eventBlockRecovered) IsNil() bool  { return false }
func (e eventBlockRecovered) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Uint64Key("block_id", uint64(e.BlockID))
	enc.IntKey("num_recovered", e.NumRecovered)
}

type eventBlockPruned struct {
	BlockID  protocol.BlockID
	Complete bool
}

func (e eventBlockPruned) Name() string { return "fec:block_pruned" }
func (e eventBlockPruned) IsNil() bool  { return false }
func (e eventBlockPruned) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Uint64Key("block_id", uint64(e.BlockID))
	enc.BoolKey("complete", e.Complete)
}

type eventRepairBuilt struct {
	BlockID      protocol.BlockID
	NumRepair    int
	SymbolLength int
}

func (e eventRepairBuilt) Name() string { return "fec:repair_built" }
func (e eventRepairBuilt) IsNil() bool  { return false }
func (e eventRepairBuilt) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Uint64Key("block_id", uint64(e.BlockID))
	enc.IntKey("num_repair", e.NumRepair)
	enc.IntKey("symbol_length", e.SymbolLength)
}
