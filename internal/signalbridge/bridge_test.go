package signalbridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmplaceAndTakeBuffer(t *testing.T) {
	b := New(10, 2)

	assert.True(t, b.Emplace(Signal{OperationID: "op-1"}))
	assert.Equal(t, 1, b.Len())

	taken := b.TakeBuffer()
	require.Len(t, taken, 1)
	assert.Equal(t, "op-1", taken[0].OperationID)
	assert.Equal(t, 0, b.Len())
}

func TestWaitForBufferReadyWakesAtThreshold(t *testing.T) {
	b := New(10, 3)

	ready := make(chan bool, 1)
	go func() {
		ready <- b.WaitForBufferReady(context.Background())
	}()

	for i := 0; i < 3; i++ {
		b.Emplace(Signal{OperationID: "op"})
	}

	select {
	case ok := <-ready:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForBufferReady did not wake up after threshold was reached")
	}
}

func TestWaitForBufferReadyRespectsContextCancellation(t *testing.T) {
	b := New(10, 5)
	ctx, cancel := context.WithCancel(context.Background())

	ready := make(chan bool, 1)
	go func() {
		ready <- b.WaitForBufferReady(ctx)
	}()

	cancel()

	select {
	case ok := <-ready:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForBufferReady did not respect context cancellation")
	}
}

// TestEmplaceDropsWhenFull exercises the lossy-by-design contract: once
// the buffer is at bufferLimit, Emplace drops the incoming signal and
// returns false instead of blocking, and take_buffer afterward returns
// exactly bufferLimit items.
func TestEmplaceDropsWhenFull(t *testing.T) {
	const bufferLimit = 5
	b := New(bufferLimit, bufferLimit)

	for i := 0; i < bufferLimit; i++ {
		require.True(t, b.Emplace(Signal{OperationID: "kept"}))
	}

	accepted := b.Emplace(Signal{OperationID: "overflow"})
	assert.False(t, accepted, "Emplace should drop once the buffer is full")
	assert.Equal(t, bufferLimit, b.Len())

	taken := b.TakeBuffer()
	require.Len(t, taken, bufferLimit)
	for _, sig := range taken {
		assert.Equal(t, "kept", sig.OperationID, "the overflow signal must not have displaced a buffered one")
	}
}

func TestEmplaceAfterCloseIsRejected(t *testing.T) {
	b := New(10, 10)
	b.Close()

	accepted := b.Emplace(Signal{OperationID: "after-close"})
	assert.False(t, accepted)
	assert.Equal(t, 0, b.Len())
}

func TestDefaultsAppliedForInvalidConfig(t *testing.T) {
	b := New(0, 0)
	assert.Equal(t, 1024, b.bufferLimit)
	assert.Equal(t, 1024, b.notificationThreshold)
}
