package fecframe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/ddritzenhoff/fecframe/internal/fec"
	"github.com/ddritzenhoff/fecframe/internal/mocks"
	"github.com/ddritzenhoff/fecframe/internal/protocol"
	"github.com/ddritzenhoff/fecframe/internal/wire"
)

// sourcePacket builds a source packet: the ADU followed by its payload ID.
func sourcePacket(blockID BlockID, esi ESI, k int, adu []byte) []byte {
	id := wire.PayloadID{BlockID: blockID, ESI: esi, SourceSymbolCount: uint16(k)}
	return id.Append(append([]byte(nil), adu...))
}

// readAll drains every immediately available unit from the decoder.
func readAll(d *Decoder, n int) []*ADU {
	adus := make([]*ADU, 0, n)
	for i := 0; i < n; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		a, err := d.ReadADU(ctx)
		cancel()
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		adus = append(adus, a)
	}
	return adus
}

func expectNoADU(d *Decoder) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.ReadADU(ctx)
	ExpectWithOffset(1, err).To(MatchError(context.DeadlineExceeded))
}

var _ = Describe("Decoder", func() {
	newDecoder := func(config *Config) *Decoder {
		d, err := NewDecoder(config)
		Expect(err).ToNot(HaveOccurred())
		return d
	}

	Context("with source packets only", func() {
		It("delivers a complete block when it leaves the window", func() {
			d := newDecoder(&Config{NumSourceSymbols: 3, NumRepairSymbols: 1, MaxSourceBlockAge: 1, SortOutput: true})
			units := [][]byte{[]byte("alpha"), []byte("bravo"), []byte("charlie")}
			for esi, adu := range units {
				Expect(d.HandleSourcePacket(sourcePacket(0, ESI(esi), 3, adu))).To(Succeed())
			}
			// the completed block is held back until it is pruned
			expectNoADU(d)
			Expect(d.HandleSourcePacket(sourcePacket(1, 0, 3, []byte("next")))).To(Succeed())
			for esi, a := range readAll(d, 3) {
				Expect(a.BlockID).To(Equal(BlockID(0)))
				Expect(a.ESI).To(Equal(ESI(esi)))
				Expect(a.Data).To(Equal(units[esi]))
				Expect(a.Recovered).To(BeFalse())
			}
		})

		It("keeps ascending block order when a newer block completes first", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 3, SortOutput: true})
			Expect(d.HandleSourcePacket(sourcePacket(5, 0, 2, []byte("b5 first")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(5, 1, 2, []byte("b5 second")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(3, 0, 2, []byte("b3 first")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(3, 1, 2, []byte("b3 second")))).To(Succeed())
			// both blocks are complete, neither has left the window yet
			expectNoADU(d)
			d.CloseSource()
			adus := readAll(d, 4)
			Expect(adus[0].BlockID).To(Equal(BlockID(3)))
			Expect(adus[1].BlockID).To(Equal(BlockID(3)))
			Expect(adus[2].BlockID).To(Equal(BlockID(5)))
			Expect(adus[3].BlockID).To(Equal(BlockID(5)))
			Expect(adus[0].Data).To(Equal([]byte("b3 first")))
			Expect(adus[3].Data).To(Equal([]byte("b5 second")))
		})

		It("delivers units immediately when not sorting", func() {
			d := newDecoder(&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 1})
			Expect(d.HandleSourcePacket(sourcePacket(0, 2, 4, []byte("middle")))).To(Succeed())
			a := readAll(d, 1)[0]
			Expect(a.ESI).To(Equal(ESI(2)))
			Expect(a.Data).To(Equal([]byte("middle")))
		})

		It("drops duplicate source symbols", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 1})
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("one")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("one")))).To(Succeed())
			readAll(d, 1)
			expectNoADU(d)
		})

		It("drops packets for an already complete block", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 2, SortOutput: true})
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("one")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(0, 1, 2, []byte("two")))).To(Succeed())
			// a duplicate for the complete block is absorbed, not re-stored
			Expect(d.HandleSourcePacket(sourcePacket(0, 1, 2, []byte("two")))).To(Succeed())
			d.CloseSource()
			readAll(d, 2)
			_, err := d.ReadADU(context.Background())
			Expect(err).To(MatchError(io.EOF))
		})

		It("never calls the engine when no repair symbols are configured", func() {
			engine := mocks.NewMockEngine(mockCtrl)
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 1, SortOutput: true, Engine: engine})
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("one")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(0, 1, 2, []byte("two")))).To(Succeed())
			d.CloseSource()
			readAll(d, 2)
		})
	})

	Context("recovering lost units", func() {
		var (
			units      [][]byte
			sourcePkts [][]byte
			repairPkts [][]byte
		)

		// Run a real encoder to produce matching packet streams.
		BeforeEach(func() {
			units = [][]byte{[]byte("unit zero"), []byte("u1"), []byte("the third unit"), []byte("unit3")}
			sourcePkts = nil
			repairPkts = nil
			enc, err := NewEncoder(
				&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 1},
				PacketWriterFunc(func(p []byte) error {
					sourcePkts = append(sourcePkts, append([]byte(nil), p...))
					return nil
				}),
				PacketWriterFunc(func(p []byte) error {
					repairPkts = append(repairPkts, append([]byte(nil), p...))
					return nil
				}),
			)
			Expect(err).ToNot(HaveOccurred())
			for _, u := range units {
				Expect(enc.Write(u)).To(Succeed())
			}
			Expect(sourcePkts).To(HaveLen(4))
			Expect(repairPkts).To(HaveLen(2))
		})

		It("reconstructs a missing unit from a repair symbol", func() {
			d := newDecoder(&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 1, SortOutput: true})
			for _, i := range []int{0, 1, 3} {
				Expect(d.HandleSourcePacket(sourcePkts[i])).To(Succeed())
			}
			expectNoADU(d)
			Expect(d.HandleRepairPacket(repairPkts[0])).To(Succeed())
			d.CloseSource()
			d.CloseRepair()
			adus := readAll(d, 4)
			for esi, a := range adus {
				Expect(a.ESI).To(Equal(ESI(esi)))
				Expect(a.Data).To(Equal(units[esi]))
			}
			Expect(adus[2].Recovered).To(BeTrue())
			Expect(adus[0].Recovered).To(BeFalse())
		})

		It("reconstructs two missing units from two repair symbols", func() {
			d := newDecoder(&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 1, SortOutput: true})
			Expect(d.HandleSourcePacket(sourcePkts[1])).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePkts[2])).To(Succeed())
			Expect(d.HandleRepairPacket(repairPkts[0])).To(Succeed())
			Expect(d.HandleRepairPacket(repairPkts[1])).To(Succeed())
			d.CloseSource()
			d.CloseRepair()
			adus := readAll(d, 4)
			for esi, a := range adus {
				Expect(a.Data).To(Equal(units[esi]))
			}
			Expect(adus[0].Recovered).To(BeTrue())
			Expect(adus[3].Recovered).To(BeTrue())
		})

		It("emits recovered units immediately when not sorting", func() {
			d := newDecoder(&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 1})
			for _, i := range []int{0, 1, 3} {
				Expect(d.HandleSourcePacket(sourcePkts[i])).To(Succeed())
			}
			// the three received units left immediately
			readAll(d, 3)
			Expect(d.HandleRepairPacket(repairPkts[0])).To(Succeed())
			a := readAll(d, 1)[0]
			Expect(a.ESI).To(Equal(ESI(2)))
			Expect(a.Data).To(Equal(units[2]))
			Expect(a.Recovered).To(BeTrue())
			expectNoADU(d)
		})

		It("drops duplicate repair symbols", func() {
			d := newDecoder(&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 1, SortOutput: true})
			Expect(d.HandleRepairPacket(repairPkts[0])).To(Succeed())
			Expect(d.HandleRepairPacket(repairPkts[0])).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePkts[0])).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePkts[1])).To(Succeed())
			// 3 distinct symbols of a 4 symbol code: not processable yet
			expectNoADU(d)
		})
	})

	Context("window and aging", func() {
		It("keeps older blocks within the age limit and prunes beyond it", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 3, SortOutput: true})
			Expect(d.HandleSourcePacket(sourcePacket(5, 0, 2, []byte("b5 first")))).To(Succeed())
			// 3 is within the age limit of reference 5
			Expect(d.HandleSourcePacket(sourcePacket(3, 0, 2, []byte("b3 first")))).To(Succeed())
			expectNoADU(d)
			// 6 advances the reference, 3 falls out and its unit drains
			Expect(d.HandleSourcePacket(sourcePacket(6, 0, 2, []byte("b6 first")))).To(Succeed())
			a := readAll(d, 1)[0]
			Expect(a.BlockID).To(Equal(BlockID(3)))
			Expect(a.Data).To(Equal([]byte("b3 first")))
		})

		It("drops packets of pruned blocks without recreating them", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 1, SortOutput: true})
			Expect(d.HandleSourcePacket(sourcePacket(5, 0, 2, []byte("old")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(8, 0, 2, []byte("new")))).To(Succeed())
			// block 5 drained on pruning
			Expect(readAll(d, 1)[0].BlockID).To(Equal(BlockID(5)))
			// a late packet for 5 is stale now
			Expect(d.HandleSourcePacket(sourcePacket(5, 1, 2, []byte("late")))).To(Succeed())
			expectNoADU(d)
		})

		It("drains pruned blocks in ascending id order", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 3, SortOutput: true})
			Expect(d.HandleSourcePacket(sourcePacket(4, 0, 2, []byte("b4")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(2, 0, 2, []byte("b2")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(3, 1, 2, []byte("b3")))).To(Succeed())
			// jump far ahead, everything ages out
			Expect(d.HandleSourcePacket(sourcePacket(100, 0, 2, []byte("b100")))).To(Succeed())
			adus := readAll(d, 3)
			Expect(adus[0].BlockID).To(Equal(BlockID(2)))
			Expect(adus[1].BlockID).To(Equal(BlockID(3)))
			Expect(adus[2].BlockID).To(Equal(BlockID(4)))
		})

		It("orders blocks across the id wrap-around", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 2, SortOutput: true})
			last := BlockID(protocol.BlockIDModulus - 1)
			Expect(d.HandleSourcePacket(sourcePacket(last, 0, 2, []byte("wrap")))).To(Succeed())
			// 0 is newer than the last id of the ring
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("zero")))).To(Succeed())
			expectNoADU(d) // both blocks still within the age limit
			Expect(d.HandleSourcePacket(sourcePacket(1, 0, 2, []byte("one")))).To(Succeed())
			Expect(readAll(d, 1)[0].BlockID).To(Equal(last))
		})
	})

	Context("malformed packets", func() {
		It("rejects a packet shorter than a payload ID", func() {
			d := newDecoder(nil)
			err := d.HandleSourcePacket([]byte{1, 2, 3})
			var frameErr *FrameError
			Expect(errors.As(err, &frameErr)).To(BeTrue())
			Expect(frameErr.Kind).To(Equal(FrameErrorTooShort))
		})

		It("rejects a source packet with a repair ESI", func() {
			d := newDecoder(&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 1})
			err := d.HandleSourcePacket(sourcePacket(0, 5, 4, []byte("x")))
			var frameErr *FrameError
			Expect(errors.As(err, &frameErr)).To(BeTrue())
			Expect(frameErr.Kind).To(Equal(FrameErrorBadESI))
		})

		It("rejects a repair packet with a source ESI", func() {
			d := newDecoder(&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 1})
			id := wire.PayloadID{BlockID: 0, ESI: 1, SourceSymbolCount: 4}
			pkt := id.Append(nil)
			pkt = append(pkt, make([]byte, 8)...)
			err := d.HandleRepairPacket(pkt)
			var frameErr *FrameError
			Expect(errors.As(err, &frameErr)).To(BeTrue())
			Expect(frameErr.Kind).To(Equal(FrameErrorBadESI))
		})
	})

	Context("engine failures", func() {
		repairPacket := func(blockID BlockID, esi ESI, k, symbolLength int) []byte {
			id := wire.PayloadID{BlockID: blockID, ESI: esi, SourceSymbolCount: uint16(k)}
			return append(id.Append(nil), make([]byte, symbolLength)...)
		}

		It("discards only the failing block on a recovery error", func() {
			engine := mocks.NewMockEngine(mockCtrl)
			engine.EXPECT().Configure(2, 1, 10).Return(nil)
			engine.EXPECT().Recover(gomock.Any()).Return(fmt.Errorf("singular matrix"))
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 1, MaxSourceBlockAge: 1, SortOutput: true, Engine: engine})
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("present")))).To(Succeed())
			err := d.HandleRepairPacket(repairPacket(0, 2, 2, 10))
			var flowErr *FlowError
			Expect(errors.As(err, &flowErr)).To(BeTrue())
			Expect(flowErr.BlockID).To(Equal(BlockID(0)))
			Expect(errors.Is(err, ErrRecoveryFailed)).To(BeTrue())
			// the stream stays usable
			Expect(d.HandleSourcePacket(sourcePacket(1, 0, 2, []byte("next")))).To(Succeed())
		})

		It("closes the decoder on a fatal engine error", func() {
			engine := mocks.NewMockEngine(mockCtrl)
			engine.EXPECT().Configure(2, 1, 10).Return(nil)
			engine.EXPECT().Recover(gomock.Any()).Return(fmt.Errorf("%w: broken", fec.ErrEngineFatal))
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 1, MaxSourceBlockAge: 1, SortOutput: true, Engine: engine})
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("present")))).To(Succeed())
			err := d.HandleRepairPacket(repairPacket(0, 2, 2, 10))
			Expect(errors.Is(err, fec.ErrEngineFatal)).To(BeTrue())
			_, err = d.ReadADU(context.Background())
			Expect(errors.Is(err, fec.ErrEngineFatal)).To(BeTrue())
			Expect(d.HandleSourcePacket(sourcePacket(1, 0, 2, []byte("next")))).To(MatchError(ErrClosed))
		})
	})

	Context("end of stream", func() {
		It("drains stored blocks and reports EOF after both streams close", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 1, MaxSourceBlockAge: 3, SortOutput: true})
			Expect(d.HandleSourcePacket(sourcePacket(2, 0, 2, []byte("b2")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(1, 1, 2, []byte("b1")))).To(Succeed())
			d.CloseSource()
			expectNoADU(d) // repair stream still open
			d.CloseRepair()
			adus := readAll(d, 2)
			Expect(adus[0].BlockID).To(Equal(BlockID(1)))
			Expect(adus[1].BlockID).To(Equal(BlockID(2)))
			_, err := d.ReadADU(context.Background())
			Expect(err).To(MatchError(io.EOF))
		})

		It("drains after source EOS alone when no repair symbols are configured", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 1, SortOutput: true})
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("pending")))).To(Succeed())
			d.CloseSource()
			Expect(readAll(d, 1)[0].Data).To(Equal([]byte("pending")))
			_, err := d.ReadADU(context.Background())
			Expect(err).To(MatchError(io.EOF))
		})

		It("rejects packets arriving after their stream closed", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 1, MaxSourceBlockAge: 1})
			d.CloseSource()
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("late")))).To(MatchError(ErrClosed))
		})
	})

	Context("flushing and closing", func() {
		It("discards stored blocks and queued units on Flush", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 1})
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 2, []byte("queued")))).To(Succeed())
			d.Flush()
			d.CloseSource()
			_, err := d.ReadADU(context.Background())
			Expect(err).To(MatchError(io.EOF))
		})

		It("resets the window reference on Flush", func() {
			d := newDecoder(&Config{NumSourceSymbols: 2, NumRepairSymbols: 0, MaxSourceBlockAge: 1, SortOutput: true})
			Expect(d.HandleSourcePacket(sourcePacket(100, 0, 2, []byte("seed")))).To(Succeed())
			d.Flush()
			// far older ids are acceptable again
			Expect(d.HandleSourcePacket(sourcePacket(1, 0, 2, []byte("one")))).To(Succeed())
			Expect(d.HandleSourcePacket(sourcePacket(1, 1, 2, []byte("two")))).To(Succeed())
			d.CloseSource()
			readAll(d, 2)
		})

		It("unblocks a pending ReadADU on Close", func() {
			d := newDecoder(nil)
			done := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := d.ReadADU(context.Background())
				done <- err
			}()
			Consistently(done, 20*time.Millisecond).ShouldNot(Receive())
			Expect(d.Close()).To(Succeed())
			Eventually(done).Should(Receive(MatchError(ErrClosed)))
		})
	})

	Context("configuration", func() {
		It("rejects invalid configs", func() {
			_, err := NewDecoder(&Config{NumSourceSymbols: 0, MaxSourceBlockAge: 1})
			var configErr *ConfigError
			Expect(errors.As(err, &configErr)).To(BeTrue())
			_, err = NewDecoder(&Config{NumSourceSymbols: 200, NumRepairSymbols: 100, MaxSourceBlockAge: 1})
			Expect(errors.As(err, &configErr)).To(BeTrue())
			_, err = NewDecoder(&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 0})
			Expect(errors.As(err, &configErr)).To(BeTrue())
		})

		It("rejects reconfiguration after construction", func() {
			d := newDecoder(&Config{NumSourceSymbols: 4, NumRepairSymbols: 2, MaxSourceBlockAge: 1})
			var configErr *ConfigError
			Expect(errors.As(d.SetConfig(&Config{NumSourceSymbols: 8, MaxSourceBlockAge: 1}), &configErr)).To(BeTrue())
		})

		It("stamps units when TimestampOutput is set", func() {
			d := newDecoder(&Config{NumSourceSymbols: 1, NumRepairSymbols: 0, MaxSourceBlockAge: 1, TimestampOutput: true})
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 1, []byte("x")))).To(Succeed())
			Expect(readAll(d, 1)[0].Timestamp).ToNot(BeZero())
		})

		It("leaves the timestamp zero when TimestampOutput is not set", func() {
			d := newDecoder(&Config{NumSourceSymbols: 1, NumRepairSymbols: 0, MaxSourceBlockAge: 1})
			Expect(d.HandleSourcePacket(sourcePacket(0, 0, 1, []byte("x")))).To(Succeed())
			Expect(readAll(d, 1)[0].Timestamp).To(BeZero())
		})
	})
})
