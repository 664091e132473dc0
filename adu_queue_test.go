package fecframe

import (
	"context"
	"errors"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ADU queue", func() {
	var q *aduQueue

	BeforeEach(func() {
		q = newADUQueue()
	})

	It("delivers units in FIFO order", func() {
		q.Add(&ADU{ESI: 0})
		q.Add(&ADU{ESI: 1})
		q.Add(&ADU{ESI: 2})
		for i := 0; i < 3; i++ {
			a, err := q.Pop(context.Background())
			Expect(err).ToNot(HaveOccurred())
			Expect(a.ESI).To(Equal(ESI(i)))
		}
	})

	It("blocks until a unit is added", func() {
		done := make(chan *ADU, 1)
		go func() {
			defer GinkgoRecover()
			a, err := q.Pop(context.Background())
			Expect(err).ToNot(HaveOccurred())
			done <- a
		}()
		Consistently(done, 20*time.Millisecond).ShouldNot(Receive())
		q.Add(&ADU{ESI: 7})
		var a *ADU
		Eventually(done).Should(Receive(&a))
		Expect(a.ESI).To(Equal(ESI(7)))
	})

	It("respects context cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := q.Pop(ctx)
			done <- err
		}()
		Consistently(done, 20*time.Millisecond).ShouldNot(Receive())
		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})

	It("drains queued units before reporting EOF on a graceful close", func() {
		q.Add(&ADU{ESI: 0})
		q.Add(&ADU{ESI: 1})
		q.Close()
		for i := 0; i < 2; i++ {
			a, err := q.Pop(context.Background())
			Expect(err).ToNot(HaveOccurred())
			Expect(a.ESI).To(Equal(ESI(i)))
		}
		_, err := q.Pop(context.Background())
		Expect(err).To(MatchError(io.EOF))
	})

	It("returns the close error immediately, pending units included", func() {
		testErr := errors.New("test error")
		q.Add(&ADU{ESI: 0})
		q.CloseWithError(testErr)
		_, err := q.Pop(context.Background())
		Expect(err).To(MatchError(testErr))
	})

	It("unblocks a pending Pop on close", func() {
		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			_, err := q.Pop(context.Background())
			done <- err
		}()
		Consistently(done, 20*time.Millisecond).ShouldNot(Receive())
		q.Close()
		Eventually(done).Should(Receive(MatchError(io.EOF)))
	})

	It("drops units added after close", func() {
		q.Close()
		q.Add(&ADU{ESI: 0})
		_, err := q.Pop(context.Background())
		Expect(err).To(MatchError(io.EOF))
	})

	It("keeps the first close error", func() {
		first := errors.New("first")
		q.CloseWithError(first)
		q.CloseWithError(errors.New("second"))
		_, err := q.Pop(context.Background())
		Expect(err).To(MatchError(first))
	})

	It("drops queued units on Clear without closing", func() {
		q.Add(&ADU{ESI: 0})
		q.Clear()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := q.Pop(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})
})
