package wire

import (
	"sync"

	"github.com/ddritzenhoff/fecframe/internal/protocol"
)

// PacketBuffer holds a receive buffer for a single packet. Data aliases the
// full backing array; callers reslice it to the number of bytes actually read.
type PacketBuffer struct {
	Data []byte
}

var pool sync.Pool

func init() {
	pool.New = func() interface{} {
		return &PacketBuffer{Data: make([]byte, 0, protocol.MaxPacketBufferSize)}
	}
}

// GetPacketBuffer returns a buffer large enough for the largest possible packet.
func GetPacketBuffer() *PacketBuffer {
	buf := pool.Get().(*PacketBuffer)
	buf.Data = buf.Data[:0]
	return buf
}

// ReleasePacketBuffer puts a buffer back into the pool.
func ReleasePacketBuffer(buf *PacketBuffer) {
	if cap(buf.Data) != protocol.MaxPacketBufferSize {
		panic("wire.ReleasePacketBuffer called with packet buffer of wrong size!")
	}
	pool.Put(buf)
}
