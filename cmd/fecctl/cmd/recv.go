package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ddritzenhoff/fecframe"
	"github.com/ddritzenhoff/fecframe/internal/wire"
)

var recvCmd = &cobra.Command{
	Use:   "recv [file]",
	Short: "Listen on both packet streams, reconstruct lost units, and write the output",
	Long: `recv listens for the source stream on --source-addr and the repair stream
on --repair-addr, reassembles the ADU stream, and writes it to the given
file or stdout. It runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := io.Writer(os.Stdout)
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		fc, err := cfg.fecConfig()
		if err != nil {
			return err
		}
		dec, err := fecframe.NewDecoder(fc)
		if err != nil {
			return err
		}

		sourceConn, err := listenUDP(cfg.SourceAddr)
		if err != nil {
			return err
		}
		repairConn, err := listenUDP(cfg.RepairAddr)
		if err != nil {
			sourceConn.Close()
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		// closing the sockets unblocks the read loops on shutdown
		g.Go(func() error {
			<-ctx.Done()
			sourceConn.Close()
			repairConn.Close()
			return nil
		})
		g.Go(func() error {
			defer dec.CloseSource()
			return readLoop(sourceConn, dec.HandleSourcePacket)
		})
		g.Go(func() error {
			defer dec.CloseRepair()
			return readLoop(repairConn, dec.HandleRepairPacket)
		})

		var units, recovered, bytes int
		g.Go(func() error {
			for {
				a, err := dec.ReadADU(context.Background())
				if err != nil {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}
				if _, err := out.Write(a.Data); err != nil {
					return err
				}
				units++
				bytes += len(a.Data)
				if a.Recovered {
					recovered++
				}
			}
		})

		if err := g.Wait(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "received %d units (%d bytes), %d recovered\n", units, bytes, recovered)
		return nil
	},
}

// readLoop feeds every received packet into handle until the socket closes.
// Buffers come from the shared packet pool; the decoder copies what it keeps.
func readLoop(conn *net.UDPConn, handle func([]byte) error) error {
	for {
		buf := wire.GetPacketBuffer()
		data := buf.Data[:cap(buf.Data)]
		n, _, err := conn.ReadFromUDP(data)
		if err != nil {
			wire.ReleasePacketBuffer(buf)
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if err := handle(data[:n]); err != nil {
			var frameErr *fecframe.FrameError
			var flowErr *fecframe.FlowError
			if !errors.As(err, &frameErr) && !errors.As(err, &flowErr) {
				wire.ReleasePacketBuffer(buf)
				return err
			}
			fmt.Fprintf(os.Stderr, "dropping packet: %s\n", err)
		}
		wire.ReleasePacketBuffer(buf)
	}
}

func listenUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", udpAddr)
}

func init() {
	rootCmd.AddCommand(recvCmd)
}
