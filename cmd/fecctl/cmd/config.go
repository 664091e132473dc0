package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ddritzenhoff/fecframe"
)

// fileConfig holds the fecctl configuration.
type fileConfig struct {
	NumSourceSymbols  int    `yaml:"num_source_symbols"`
	NumRepairSymbols  int    `yaml:"num_repair_symbols"`
	MaxSourceBlockAge int    `yaml:"max_source_block_age"`
	SortOutput        bool   `yaml:"sort_output"`
	TimestampOutput   bool   `yaml:"timestamp_output"`
	Engine            string `yaml:"engine"` // reed-solomon or xor
	SourceAddr        string `yaml:"source_addr"`
	RepairAddr        string `yaml:"repair_addr"`
	QlogFile          string `yaml:"qlog_file"`
}

// defaultConfigPath returns the default config file path: ~/.fecframe/config.yaml
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".fecframe", "config.yaml")
	}
	return filepath.Join(home, ".fecframe", "config.yaml")
}

// loadConfig reads the configuration from the given YAML file path.
// If the file does not exist, it returns the defaults with no error.
func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{
		NumSourceSymbols:  4,
		NumRepairSymbols:  2,
		MaxSourceBlockAge: 1,
		SortOutput:        true,
		Engine:            "reed-solomon",
		SourceAddr:        "127.0.0.1:9500",
		RepairAddr:        "127.0.0.1:9501",
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fecConfig translates the file configuration into a fecframe.Config.
func (c *fileConfig) fecConfig() (*fecframe.Config, error) {
	var engine fecframe.Engine
	switch c.Engine {
	case "", "reed-solomon":
		engine = fecframe.NewReedSolomonEngine()
	case "xor":
		engine = fecframe.NewXOREngine()
	default:
		return nil, fmt.Errorf("unknown engine %q, expected reed-solomon or xor", c.Engine)
	}
	fc := &fecframe.Config{
		NumSourceSymbols:  c.NumSourceSymbols,
		NumRepairSymbols:  c.NumRepairSymbols,
		MaxSourceBlockAge: c.MaxSourceBlockAge,
		SortOutput:        c.SortOutput,
		TimestampOutput:   c.TimestampOutput,
		Engine:            engine,
	}
	if c.QlogFile != "" {
		f, err := os.Create(c.QlogFile)
		if err != nil {
			return nil, fmt.Errorf("creating qlog file: %w", err)
		}
		fc.Tracer = fecframe.NewTracer(f)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return fc, nil
}
