package fec

import "github.com/ddritzenhoff/fecframe/internal/protocol"

// A Window tracks the newest observed block id and decides which block ids
// are still worth keeping. Block ids wrap around at protocol.BlockIDModulus,
// so ordering is only defined relative to a reference id.
type Window struct {
	reference protocol.BlockID
	maxAge    int
	seeded    bool
}

// NewWindow returns a window that keeps blocks whose id is at most maxAge
// behind the reference. maxAge must be at least 1.
func NewWindow(maxAge int) *Window {
	return &Window{maxAge: maxAge}
}

// Reference returns the current reference id. ok is false until the first
// Observe call seeds the window.
func (w *Window) Reference() (_ protocol.BlockID, ok bool) {
	return w.reference, w.seeded
}

// Observe feeds a block id into the window. The first observed id seeds the
// reference; afterwards the reference advances whenever a newer id arrives.
// advanced reports that the reference moved and aged-out blocks must be
// pruned. Seeding does not count as advancing.
func (w *Window) Observe(id protocol.BlockID) (advanced bool) {
	if !w.seeded {
		w.seeded = true
		w.reference = id
		return false
	}
	if IsNewer(id, w.reference) {
		w.reference = id
		return true
	}
	return false
}

// IsRecentEnough reports whether a block with the given id is young enough
// to keep. Before the window is seeded every id qualifies.
func (w *Window) IsRecentEnough(id protocol.BlockID) bool {
	if !w.seeded {
		return true
	}
	return IsRecentEnough(id, w.reference, w.maxAge)
}

// IsNewer reports whether candidate is newer than ref on the block id ring.
// Candidates within the half-open range [ref+1, ref+NewerWindow) count as
// newer; everything else on the ring counts as older. The cutoff makes
// ordering well defined despite the wrap-around.
func IsNewer(candidate, ref protocol.BlockID) bool {
	start := (ref + 1) % protocol.BlockIDModulus
	end := (ref + protocol.NewerWindow) % protocol.BlockIDModulus
	return inRange(candidate, start, end)
}

// IsRecentEnough reports whether candidate lies within maxAge of ref, i.e.
// in the half-open range [ref-(maxAge-1), ref+NewerWindow) on the ring.
// Ids newer than ref are always recent enough.
func IsRecentEnough(candidate, ref protocol.BlockID, maxAge int) bool {
	age := protocol.BlockID((maxAge - 1) % protocol.BlockIDModulus)
	start := (ref - age + protocol.BlockIDModulus) % protocol.BlockIDModulus
	end := (ref + protocol.NewerWindow) % protocol.BlockIDModulus
	return inRange(candidate, start, end)
}

// inRange reports whether v lies within the half-open range [start, end) on
// the ring. start == end denotes the full ring.
func inRange(v, start, end protocol.BlockID) bool {
	switch {
	case start < end:
		return start <= v && v < end
	case start > end:
		return v >= start || v < end
	default:
		return true
	}
}
