package fecframe

import (
	"fmt"
	"io"

	"github.com/ddritzenhoff/fecframe/internal/protocol"
	"github.com/ddritzenhoff/fecframe/internal/utils"
	"github.com/ddritzenhoff/fecframe/qlog"
)

// A Config holds the code parameters shared by an Encoder and a Decoder.
// It is read once at construction and never modified afterwards.
type Config struct {
	// NumSourceSymbols is the number of source symbols per block (k).
	// It must be at least 1.
	NumSourceSymbols int
	// NumRepairSymbols is the number of repair symbols per block (r).
	// 0 disables repair: the encoder passes units through and the decoder
	// delivers whatever source packets arrive.
	NumRepairSymbols int
	// MaxSourceBlockAge is how many block ids behind the newest observed
	// block a stored block may fall before it is pruned. It must be at
	// least 1, which keeps only the newest block.
	MaxSourceBlockAge int
	// SortOutput defers delivery until a block leaves the window, either by
	// aging out or at end of stream, so units leave in ascending block id
	// and symbol order. When false, units are delivered as soon as they
	// arrive or are recovered.
	SortOutput bool
	// TimestampOutput stamps delivered units with the emission time.
	TimestampOutput bool
	// Engine is the erasure code implementation. nil selects Reed-Solomon.
	Engine Engine
	// Tracer, if set, receives block lifecycle events.
	Tracer *qlog.Tracer
	// Logger, if set, replaces the package logger.
	Logger utils.Logger
}

// Validate checks the code parameters.
func (c *Config) Validate() error {
	if c.NumSourceSymbols < 1 {
		return &ConfigError{Reason: "NumSourceSymbols must be at least 1"}
	}
	if c.NumRepairSymbols < 0 {
		return &ConfigError{Reason: "NumRepairSymbols must not be negative"}
	}
	if n := c.NumSourceSymbols + c.NumRepairSymbols; n > protocol.MaxEncodingSymbols {
		return &ConfigError{Reason: fmt.Sprintf("at most %d encoding symbols per block, got %d", protocol.MaxEncodingSymbols, n)}
	}
	if c.MaxSourceBlockAge < 1 {
		return &ConfigError{Reason: "MaxSourceBlockAge must be at least 1"}
	}
	return nil
}

// populateConfig fills in the defaults. A nil config selects the default
// parameters; a non-nil config is validated as given.
func populateConfig(config *Config) (*Config, error) {
	if config == nil {
		config = &Config{
			NumSourceSymbols:  4,
			NumRepairSymbols:  2,
			MaxSourceBlockAge: 1,
			SortOutput:        true,
			TimestampOutput:   true,
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := *config
	if c.Engine == nil {
		c.Engine = NewReedSolomonEngine()
	}
	if c.Logger == nil {
		c.Logger = utils.DefaultLogger
	}
	return &c, nil
}

// NewTracer returns a Tracer writing line-delimited JSON events to w.
func NewTracer(w io.Writer) *qlog.Tracer {
	return qlog.NewTracer(w)
}
