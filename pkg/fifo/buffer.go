// Package fifo provides the fixed capacity byte queue shared between
// interrupt handlers and foreground code.
//
// Removing the front byte shifts the whole array, so only the interrupt
// side ever does it. A foreground consumer reads the front byte and marks
// the buffer dirty; the next timer tick performs the shift and clears the
// flag. Index 0 never changes while bytes are pending, so reading it
// without the lock is safe.
//
// The two sides get different views of a Buffer: Foreground has no way to
// compact, Interrupt never blocks.
package fifo

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/robotalks/softuart/pkg/hal"
)

// MaxCapacity is the largest buffer that can be created.
const MaxCapacity = 0xffff

// ErrNoStorage indicates the requested storage cannot be reserved.
var ErrNoStorage = errors.New("buffer storage unavailable")

// Buffer is a byte queue of fixed capacity.
type Buffer struct {
	data   []byte
	top    atomic.Uint32
	locked atomic.Bool
	dirty  atomic.Bool
}

// New reserves a buffer of the given capacity.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, ErrNoStorage
	}
	return &Buffer{data: make([]byte, capacity)}, nil
}

// Cap returns the capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of pending bytes, including a front byte that
// has been popped but not yet compacted.
func (b *Buffer) Len() int {
	return int(b.top.Load())
}

// Dirty reports whether a compaction is outstanding.
func (b *Buffer) Dirty() bool {
	return b.dirty.Load()
}

// Locked reports whether some context holds the lock.
func (b *Buffer) Locked() bool {
	return b.locked.Load()
}

// Foreground returns the view used outside interrupt context.
func (b *Buffer) Foreground() Foreground {
	return Foreground{b: b}
}

// Interrupt returns the view used by interrupt handlers.
func (b *Buffer) Interrupt() Interrupt {
	return Interrupt{b: b}
}

func (b *Buffer) tryLock() bool {
	return b.locked.CompareAndSwap(false, true)
}

func (b *Buffer) unlock() {
	b.locked.Store(false)
}

func (b *Buffer) append(v byte) bool {
	top := b.top.Load()
	if int(top) >= len(b.data) {
		return false
	}
	b.data[top] = v
	b.top.Store(top + 1)
	return true
}

func (b *Buffer) front() byte {
	return b.data[0]
}

// compactFront must only run with the lock held.
func (b *Buffer) compactFront() {
	top := b.top.Load()
	if top == 0 {
		return
	}
	copy(b.data, b.data[1:top])
	b.top.Store(top - 1)
}

// spin yields while busy waiting. Waits are bounded by about one bit
// period because the timer tick always resolves them.
func spin() {
	runtime.Gosched()
}

// Foreground is the consumer/producer view for non-interrupt code.
type Foreground struct {
	b *Buffer
}

// Len returns the number of pending bytes.
func (f Foreground) Len() int {
	return f.b.Len()
}

// Acquire spins until the lock is free and takes it. The test-and-set runs
// with interrupts masked so it cannot interleave with an interrupt
// handler's TryLock.
func (f Foreground) Acquire(irq hal.Interrupts) {
	for {
		for f.b.locked.Load() {
			spin()
		}
		state := irq.Disable()
		acquired := f.b.tryLock()
		irq.Restore(state)
		if acquired {
			return
		}
	}
}

// TryAcquire takes the lock if it is free, without spinning.
func (f Foreground) TryAcquire(irq hal.Interrupts) bool {
	state := irq.Disable()
	acquired := f.b.tryLock()
	irq.Restore(state)
	return acquired
}

// Release drops the lock. No masking is needed: interrupt handlers never
// return while holding it.
func (f Foreground) Release() {
	f.b.unlock()
}

// Append adds a byte at the tail. The caller holds the lock.
func (f Foreground) Append(v byte) bool {
	return f.b.append(v)
}

// WaitClean spins until no compaction is outstanding.
func (f Foreground) WaitClean() {
	for f.b.dirty.Load() {
		spin()
	}
}

// Pop waits for an outstanding compaction, reads the front byte and asks
// for its removal. The buffer must not be empty.
func (f Foreground) Pop() byte {
	f.WaitClean()
	v := f.b.front()
	f.b.dirty.Store(true)
	return v
}

// TryPop is Pop without waiting. It fails while a compaction is
// outstanding or when the buffer is empty.
func (f Foreground) TryPop() (byte, bool) {
	if f.b.dirty.Load() || f.b.Len() == 0 {
		return 0, false
	}
	v := f.b.front()
	f.b.dirty.Store(true)
	return v, true
}

// Interrupt is the view for interrupt handlers. None of its operations
// block.
type Interrupt struct {
	b *Buffer
}

// Len returns the number of pending bytes.
func (i Interrupt) Len() int {
	return i.b.Len()
}

// TryLock attempts to take the lock without waiting.
func (i Interrupt) TryLock() bool {
	return i.b.tryLock()
}

// Unlock drops the lock.
func (i Interrupt) Unlock() {
	i.b.unlock()
}

// Append adds a byte at the tail, false when full.
func (i Interrupt) Append(v byte) bool {
	return i.b.append(v)
}

// Front reads the oldest byte without removing it.
func (i Interrupt) Front() byte {
	return i.b.front()
}

// TryCompactFront removes the front byte if the lock is free.
func (i Interrupt) TryCompactFront() bool {
	if !i.b.tryLock() {
		return false
	}
	i.b.compactFront()
	i.b.unlock()
	return true
}

// Service performs an outstanding compaction. It returns false when the
// buffer is dirty but locked, leaving the work for the next tick.
func (i Interrupt) Service() bool {
	if !i.b.dirty.Load() {
		return true
	}
	if !i.TryCompactFront() {
		return false
	}
	i.b.dirty.Store(false)
	return true
}
