package cmd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/ddritzenhoff/fecframe"
)

var chunkSize int

var sendCmd = &cobra.Command{
	Use:   "send [file]",
	Short: "Encode a file (or stdin) and send it as source and repair packet streams",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		fc, err := cfg.fecConfig()
		if err != nil {
			return err
		}
		sourceConn, err := dialUDP(cfg.SourceAddr)
		if err != nil {
			return err
		}
		defer sourceConn.Close()
		var repairWriter fecframe.PacketWriter
		if fc.NumRepairSymbols > 0 {
			repairConn, err := dialUDP(cfg.RepairAddr)
			if err != nil {
				return err
			}
			defer repairConn.Close()
			repairWriter = &udpWriter{conn: repairConn}
		}

		enc, err := fecframe.NewEncoder(fc, &udpWriter{conn: sourceConn}, repairWriter)
		if err != nil {
			return err
		}
		defer enc.Close()

		var units, bytes int
		buf := make([]byte, chunkSize)
		for {
			n, err := io.ReadFull(in, buf)
			if n > 0 {
				if werr := enc.Write(buf[:n]); werr != nil {
					return fmt.Errorf("encoding unit %d: %w", units, werr)
				}
				units++
				bytes += n
			}
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					break
				}
				return err
			}
		}
		// units of an unfinished block have been sent but get no repair cover
		enc.Flush()
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d units (%d bytes) to %s, repair to %s\n",
			units, bytes, cfg.SourceAddr, cfg.RepairAddr)
		return nil
	},
}

type udpWriter struct {
	conn *net.UDPConn
}

func (w *udpWriter) WritePacket(p []byte) error {
	_, err := w.conn.Write(p)
	return err
}

func dialUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.DialUDP("udp", nil, udpAddr)
}

func init() {
	sendCmd.Flags().IntVar(&chunkSize, "chunk-size", 1200, "unit size in bytes")
	rootCmd.AddCommand(sendCmd)
}
