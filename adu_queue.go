package fecframe

import (
	"context"
	"io"
	"sync"

	"github.com/ddritzenhoff/fecframe/internal/utils/ringbuffer"
)

// aduQueue hands finished ADUs from the decoder to the reader. Add never
// blocks; the decoder produces units in the packet-processing path and must
// not stall on a slow consumer.
type aduQueue struct {
	mx    sync.Mutex
	queue ringbuffer.RingBuffer[*ADU]

	added chan struct{} // used to notify Pop that a unit was queued

	closeErr error
	closed   chan struct{}
	isClosed bool
}

func newADUQueue() *aduQueue {
	return &aduQueue{
		added:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Add queues a finished unit for delivery. Units added after close are
// dropped.
func (q *aduQueue) Add(a *ADU) {
	q.mx.Lock()
	if q.isClosed {
		q.mx.Unlock()
		return
	}
	q.queue.PushBack(a)
	q.mx.Unlock()
	select {
	case q.added <- struct{}{}:
	default:
	}
}

// Pop blocks until a unit is available, the queue is closed, or ctx is done.
// After a graceful Close the remaining units drain first, then Pop returns
// io.EOF. After CloseWithError the error is returned immediately, pending
// units included.
func (q *aduQueue) Pop(ctx context.Context) (*ADU, error) {
	for {
		q.mx.Lock()
		if q.isClosed && q.closeErr != nil {
			err := q.closeErr
			q.mx.Unlock()
			return nil, err
		}
		if !q.queue.Empty() {
			a := q.queue.PopFront()
			q.mx.Unlock()
			return a, nil
		}
		if q.isClosed {
			q.mx.Unlock()
			return nil, io.EOF
		}
		q.mx.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.added:
		case <-q.closed:
		}
	}
}

// Close stops the queue gracefully. Queued units stay readable.
func (q *aduQueue) Close() {
	q.closeWithError(nil)
}

// CloseWithError stops the queue and discards delivery of queued units.
func (q *aduQueue) CloseWithError(e error) {
	q.closeWithError(e)
}

func (q *aduQueue) closeWithError(e error) {
	q.mx.Lock()
	defer q.mx.Unlock()
	if q.isClosed {
		return
	}
	q.closeErr = e
	q.isClosed = true
	close(q.closed)
}

// Clear drops all queued units without closing the queue.
func (q *aduQueue) Clear() {
	q.mx.Lock()
	defer q.mx.Unlock()
	q.queue.Clear()
}
