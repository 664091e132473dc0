// Command loopback runs an encoder and a decoder back to back in memory.
// Every third source packet is dropped on the way; the printout shows the
// decoder filling the holes from the repair stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ddritzenhoff/fecframe"
)

const numUnits = 20

func main() {
	config := &fecframe.Config{
		NumSourceSymbols:  4,
		NumRepairSymbols:  2,
		MaxSourceBlockAge: 2,
		SortOutput:        true,
		Tracer:            fecframe.NewTracer(os.Stderr),
	}

	decoder, err := fecframe.NewDecoder(config)
	if err != nil {
		log.Fatal(err)
	}

	var sent, dropped int
	sourceWriter := fecframe.PacketWriterFunc(func(p []byte) error {
		sent++
		if sent%3 == 0 {
			dropped++
			return nil // lost on the wire
		}
		return decoder.HandleSourcePacket(p)
	})
	repairWriter := fecframe.PacketWriterFunc(func(p []byte) error {
		return decoder.HandleRepairPacket(p)
	})

	encoder, err := fecframe.NewEncoder(config, sourceWriter, repairWriter)
	if err != nil {
		log.Fatal(err)
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer func() {
			decoder.CloseSource()
			decoder.CloseRepair()
		}()
		for i := 0; i < numUnits; i++ {
			unit := []byte(fmt.Sprintf("unit %02d", i))
			if err := encoder.Write(unit); err != nil {
				return err
			}
		}
		return encoder.Close()
	})
	g.Go(func() error {
		for {
			adu, err := decoder.ReadADU(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			marker := " "
			if adu.Recovered {
				marker = "R"
			}
			fmt.Printf("%s block %d ESI %d: %s\n", marker, adu.BlockID, adu.ESI, adu.Data)
		}
	})
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("sent %d source packets, dropped %d\n", sent, dropped)
}
