package protocol

// BlockID is the number of a source block. Block ids are drawn from the
// 24-bit ring [0, BlockIDModulus) and wrap around.
type BlockID uint32

// ESI is an encoding symbol index: the position of a symbol within a block's
// source+repair symbol sequence. Source symbols occupy [0, k), repair symbols
// [k, n), where k is the number of source symbols and n the total number of
// encoding symbols.
type ESI uint8

// FlowID identifies an ADU flow inside a symbol. Only flow 0 is supported.
type FlowID uint8

const (
	// BlockIDModulus is the size of the block id numbering space.
	BlockIDModulus = 1 << 24

	// NewerWindow is the width of the "newer" region of the block id ring.
	// A candidate id within (reference, reference+NewerWindow) is considered
	// newer than the reference; without such a cutoff the wrap-around makes
	// older and newer ids indistinguishable. Fixed protocol constant.
	NewerWindow = 1 << 22
)

// MaxEncodingSymbols bounds num_source_symbols + num_repair_symbols.
// With GF(2^8) Reed-Solomon, at most 2^8 - 1 encoding symbols can be used
// per source block.
const MaxEncodingSymbols = (1 << 8) - 1

const (
	// PayloadIDLen is the length of the FEC payload ID carried by every
	// source and repair packet: a 24-bit block id, an 8-bit ESI and a 16-bit
	// source symbol count, all big endian.
	PayloadIDLen = 6

	// SymbolHeaderLen is the length of the per-symbol header inside an
	// encoding symbol: a 1-byte flow id followed by the 16-bit ADU length.
	SymbolHeaderLen = 3

	// MaxADULength is the largest ADU that fits the 16-bit length field.
	MaxADULength = 65535

	// MaxPacketBufferSize is the size of reusable packet buffers: the
	// largest possible encoding symbol plus the payload ID.
	MaxPacketBufferSize = SymbolHeaderLen + MaxADULength + PayloadIDLen
)

// SupportedFlowID is the single ADU flow this implementation handles.
const SupportedFlowID FlowID = 0
