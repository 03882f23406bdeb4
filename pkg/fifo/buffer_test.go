package fifo

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/softuart/pkg/hal"
)

type countingIRQ struct {
	disabled atomic.Int32
	masked   atomic.Bool
}

func (c *countingIRQ) Disable() hal.InterruptState {
	c.disabled.Add(1)
	if c.masked.Swap(true) {
		return 1
	}
	return 0
}

func (c *countingIRQ) Restore(s hal.InterruptState) { c.masked.Store(s != 0) }
func (c *countingIRQ) EnableGlobal()                {}

func TestNewRejectsBadCapacity(t *testing.T) {
	_, err := New(0)
	require.ErrorIs(t, err, ErrNoStorage)
	_, err = New(MaxCapacity + 1)
	require.ErrorIs(t, err, ErrNoStorage)
	b, err := New(4)
	require.NoError(t, err)
	require.Equal(t, 4, b.Cap())
	require.Zero(t, b.Len())
}

func TestAppendStopsAtCapacity(t *testing.T) {
	b, err := New(3)
	require.NoError(t, err)
	isr := b.Interrupt()
	for _, v := range []byte{1, 2, 3} {
		require.True(t, isr.Append(v))
	}
	require.False(t, isr.Append(4))
	require.Equal(t, 3, b.Len())
	require.Equal(t, byte(1), isr.Front())
}

func TestCompactFrontKeepsOrder(t *testing.T) {
	b, _ := New(4)
	isr := b.Interrupt()
	isr.Append('a')
	isr.Append('b')
	isr.Append('c')
	require.True(t, isr.TryCompactFront())
	require.Equal(t, 2, b.Len())
	require.Equal(t, byte('b'), isr.Front())
	require.True(t, isr.TryCompactFront())
	require.True(t, isr.TryCompactFront())
	require.Zero(t, b.Len())
	// compacting an empty buffer is a no-op.
	require.True(t, isr.TryCompactFront())
	require.Zero(t, b.Len())
}

func TestTryCompactFrontFailsWhenLocked(t *testing.T) {
	b, _ := New(2)
	isr := b.Interrupt()
	isr.Append(7)
	require.True(t, isr.TryLock())
	require.False(t, isr.TryLock())
	require.False(t, isr.TryCompactFront())
	require.Equal(t, 1, b.Len())
	isr.Unlock()
	require.True(t, isr.TryCompactFront())
	require.False(t, b.Locked())
}

func TestDeferredCompaction(t *testing.T) {
	b, _ := New(4)
	isr, fg := b.Interrupt(), b.Foreground()
	isr.Append(10)
	isr.Append(20)

	require.Equal(t, byte(10), fg.Pop())
	require.True(t, b.Dirty())
	// the slot is reclaimed only by the interrupt side.
	require.Equal(t, 2, b.Len())
	_, ok := fg.TryPop()
	require.False(t, ok)

	require.True(t, isr.Service())
	require.False(t, b.Dirty())
	require.Equal(t, 1, b.Len())

	v, ok := fg.TryPop()
	require.True(t, ok)
	require.Equal(t, byte(20), v)
	require.True(t, isr.Service())
	require.Zero(t, b.Len())

	_, ok = fg.TryPop()
	require.False(t, ok)
}

func TestServiceRetriesWhenLocked(t *testing.T) {
	b, _ := New(2)
	isr, fg := b.Interrupt(), b.Foreground()
	isr.Append(1)
	fg.Pop()
	require.True(t, isr.TryLock())
	require.False(t, isr.Service())
	require.True(t, b.Dirty())
	isr.Unlock()
	require.True(t, isr.Service())
	require.False(t, b.Dirty())
}

func TestPopWaitsForService(t *testing.T) {
	b, _ := New(4)
	isr, fg := b.Interrupt(), b.Foreground()
	isr.Append('x')
	isr.Append('y')
	require.Equal(t, byte('x'), fg.Pop())

	got := make(chan byte, 1)
	go func() { got <- fg.Pop() }()

	select {
	case <-got:
		t.Fatal("second Pop returned before compaction")
	case <-time.After(20 * time.Millisecond):
	}
	require.True(t, isr.Service())
	select {
	case v := <-got:
		require.Equal(t, byte('y'), v)
	case <-time.After(time.Second):
		t.Fatal("second Pop did not return")
	}
}

func TestAcquireMasksInterrupts(t *testing.T) {
	b, _ := New(2)
	irq := &countingIRQ{}
	fg := b.Foreground()

	fg.Acquire(irq)
	require.True(t, b.Locked())
	require.Equal(t, int32(1), irq.disabled.Load())
	require.False(t, irq.masked.Load())
	require.False(t, b.Interrupt().TryLock())
	require.True(t, fg.Append(5))
	fg.Release()
	require.False(t, b.Locked())
}

func TestAcquireSpinsUntilUnlocked(t *testing.T) {
	b, _ := New(2)
	irq := &countingIRQ{}
	isr := b.Interrupt()
	require.True(t, isr.TryLock())

	done := make(chan struct{})
	go func() {
		b.Foreground().Acquire(irq)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Acquire returned while locked")
	case <-time.After(20 * time.Millisecond):
	}
	isr.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return")
	}
	require.True(t, b.Locked())
}
