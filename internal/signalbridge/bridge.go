// Package signalbridge buffers operation-completion signals in memory and
// drains them in batches once a notification threshold is crossed, the
// same bounded-queue shape a blocking job queue uses, adapted to a single
// process rather than a distributed worker pool.
package signalbridge

import (
	"context"
	"sync"

	"github.com/evalgo-org/couchkit/internal/errctx"
)

// Signal is one record emitted by the dispatcher, compound-operation
// fan-out, or range-scan orchestrator when an operation finishes.
type Signal struct {
	OperationID string
	Operation   string
	Outcome     string
	DurationMS  float64
	Ctx         *errctx.Context
}

// Bridge is a bounded, lossy multi-producer, multi-consumer buffer of
// Signals. Producers call Emplace; once the buffer holds at least
// NotificationThreshold signals a waiting drainer wakes up via
// WaitForBufferReady and removes them with TakeBuffer. Once the buffer
// is at BufferLimit, Emplace drops the incoming signal rather than
// blocking the producer.
type Bridge struct {
	mu   sync.Mutex
	cond *sync.Cond

	buffer []Signal
	closed bool

	bufferLimit           int
	notificationThreshold int
}

// New builds a Bridge. bufferLimit bounds how many signals Emplace will
// hold before it starts dropping new ones; notificationThreshold is how
// many signals must accumulate before a waiting drainer is woken early.
func New(bufferLimit, notificationThreshold int) *Bridge {
	if bufferLimit <= 0 {
		bufferLimit = 1024
	}
	if notificationThreshold <= 0 || notificationThreshold > bufferLimit {
		notificationThreshold = bufferLimit
	}
	b := &Bridge{
		buffer:                make([]Signal, 0, bufferLimit),
		bufferLimit:           bufferLimit,
		notificationThreshold: notificationThreshold,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Emplace adds sig to the buffer, waking any drainer once the
// notification threshold is reached. It is lossy by design: if the
// buffer is already at bufferLimit, or the bridge has been closed, sig
// is dropped and Emplace returns false without blocking the caller.
func (b *Bridge) Emplace(sig Signal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || len(b.buffer) >= b.bufferLimit {
		return false
	}

	b.buffer = append(b.buffer, sig)
	if len(b.buffer) >= b.notificationThreshold {
		b.cond.Broadcast()
	}
	return true
}

// WaitForBufferReady blocks until the buffer holds at least
// NotificationThreshold signals, the bridge is closed, or ctx is done.
// It returns false if ctx was canceled before either condition held.
func (b *Bridge) WaitForBufferReady(ctx context.Context) bool {
	done := make(chan struct{})
	var canceled bool

	go func() {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			canceled = true
			b.cond.Broadcast()
			b.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.buffer) < b.notificationThreshold && !b.closed && !canceled {
		b.cond.Wait()
	}
	return !canceled
}

// TakeBuffer atomically removes and returns everything currently
// buffered.
func (b *Bridge) TakeBuffer() []Signal {
	b.mu.Lock()
	defer b.mu.Unlock()

	taken := b.buffer
	b.buffer = make([]Signal, 0, b.bufferLimit)
	return taken
}

// Len reports how many signals are currently buffered.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Close marks the bridge closed and wakes every blocked drainer. Further Emplace calls return false.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}
