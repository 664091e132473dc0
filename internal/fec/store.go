package fec

import "github.com/ddritzenhoff/fecframe/internal/protocol"

// A Store holds the blocks currently kept for reassembly, keyed by block id.
type Store struct {
	blocks map[protocol.BlockID]*Block
}

// NewStore returns an empty block store.
func NewStore() *Store {
	return &Store{blocks: make(map[protocol.BlockID]*Block)}
}

// Get returns the block with the given id, or nil.
func (s *Store) Get(id protocol.BlockID) *Block {
	return s.blocks[id]
}

// GetOrCreate returns the block with the given id, creating it with the
// given code parameters if absent. created reports whether a new block was
// allocated.
func (s *Store) GetOrCreate(id protocol.BlockID, numSource, numRepair int) (b *Block, created bool) {
	if b := s.blocks[id]; b != nil {
		return b, false
	}
	b = NewBlock(id, numSource, numRepair)
	s.blocks[id] = b
	return b, true
}

// Remove drops the block with the given id.
func (s *Store) Remove(id protocol.BlockID) {
	delete(s.blocks, id)
}

// Len returns the number of stored blocks.
func (s *Store) Len() int {
	return len(s.blocks)
}

// Evict removes every block for which keep returns false and returns the
// removed blocks in map order.
func (s *Store) Evict(keep func(*Block) bool) []*Block {
	var evicted []*Block
	for id, b := range s.blocks {
		if keep(b) {
			continue
		}
		evicted = append(evicted, b)
		delete(s.blocks, id)
	}
	return evicted
}
