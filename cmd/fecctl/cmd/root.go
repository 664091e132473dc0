package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile    string
	sourceAddr string
	repairAddr string

	// Shared state set during PersistentPreRun
	cfg *fileConfig
)

// rootCmd is the base command for fecctl.
var rootCmd = &cobra.Command{
	Use:   "fecctl",
	Short: "Send and receive erasure-coded packet streams over UDP",
	Long: `fecctl runs the fecframe block erasure coding layer over a pair of UDP
streams: one for source packets, one for repair packets. The send command
splits its input into units and encodes them; the recv command listens on
both streams, reconstructs lost units, and writes the reassembled output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = defaultConfigPath()
		}
		var err error
		cfg, err = loadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if sourceAddr != "" {
			cfg.SourceAddr = sourceAddr
		}
		if repairAddr != "" {
			cfg.RepairAddr = repairAddr
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.fecframe/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&sourceAddr, "source-addr", "", "address of the source packet stream")
	rootCmd.PersistentFlags().StringVar(&repairAddr, "repair-addr", "", "address of the repair packet stream")
}
