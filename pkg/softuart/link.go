package softuart

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/softuart/pkg/bitclock"
	"github.com/robotalks/softuart/pkg/fifo"
	"github.com/robotalks/softuart/pkg/hal"
)

// DefaultBufferSize is the FIFO capacity used when none is configured.
const DefaultBufferSize = 64

// MinCyclesPerTick is the CPU cycle budget below which the interrupt
// handler is unlikely to finish before the next compare match.
const MinCyclesPerTick = 200

// Config selects the speed and buffer sizes of a link.
type Config struct {
	Speed        bitclock.Speed
	CPUFrequency uint32
	RxBufferSize int
	TxBufferSize int
}

// Timing derives the timer programming for the configured speed.
func (c Config) Timing() (bitclock.Timing, error) {
	plan, err := bitclock.NewPlan(c.CPUFrequency)
	if err != nil {
		return bitclock.Timing{}, err
	}
	return plan.Timing(c.Speed)
}

func bufferSize(n int) int {
	if n == 0 {
		return DefaultBufferSize
	}
	return n
}

// Link is one software UART. It owns both FIFOs and all engine state; the
// interrupt handlers it installs are the only writers of framing state.
type Link struct {
	timing bitclock.Timing
	plat   hal.Platform
	rxBuf  *fifo.Buffer
	txBuf  *fifo.Buffer

	rx rxEngine
	tx txEngine
	// pass counts compare matches within the current half-bit tick.
	pass uint8

	initialized atomic.Bool
	listening   atomic.Bool
	overflow    atomic.Bool
	stats       counters
	readable    chan struct{}
}

// Initialise sets up a link on the platform: reserves both FIFOs, sets the
// TX pin idle high, arms the edge interrupt and starts the timer. It fails
// if the timer already runs, which is the case when a link was started on
// this platform before.
func Initialise(cfg Config, p hal.Platform) (*Link, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Timer.Running() {
		return nil, ErrAlreadyRunning
	}
	timing, err := cfg.Timing()
	if err != nil {
		return nil, err
	}
	rxBuf, err := fifo.New(bufferSize(cfg.RxBufferSize))
	if err != nil {
		return nil, fmt.Errorf("receive buffer: %w", err)
	}
	txBuf, err := fifo.New(bufferSize(cfg.TxBufferSize))
	if err != nil {
		return nil, fmt.Errorf("transmit buffer: %w", err)
	}

	l := &Link{
		timing:   timing,
		plat:     p,
		rxBuf:    rxBuf,
		txBuf:    txBuf,
		readable: make(chan struct{}, 1),
	}
	p.TX.Configure(hal.PinOutput)
	p.TX.Set(true)
	p.RX.Configure(hal.PinInputPullup)

	p.Edge.Attach(l.handleEdge)
	l.listening.Store(true)
	p.Edge.Enable()

	p.Timer.Program(uint16(timing.Prescaler), timing.Reload)
	p.Timer.Start(l.handleTimer)
	l.initialized.Store(true)
	p.Interrupts.EnableGlobal()

	if cycles := timing.CyclesPerTick(); cycles < MinCyclesPerTick {
		glog.Warningf("softuart: %d CPU cycles per tick at %s baud, below budget of %d", cycles, timing.Speed, MinCyclesPerTick)
	}
	glog.Infof("softuart: link up, %s", timing)
	return l, nil
}

// handleTimer runs on every compare match.
func (l *Link) handleTimer() {
	if l.timing.Passes > 1 {
		l.pass++
		if l.pass < l.timing.Passes {
			return
		}
		l.pass = 0
	}
	l.stats.ticks.Add(1)
	l.rxTick()
	l.txTick()
	// the only place the receive FIFO is compacted.
	l.rxBuf.Interrupt().Service()
}

// Timing returns the timer programming in use.
func (l *Link) Timing() bitclock.Timing {
	return l.timing
}

// PutChar queues one byte for transmission, false if the transmit FIFO is
// full. It spins while the transmit engine holds the FIFO lock.
func (l *Link) PutChar(b byte) bool {
	if !l.initialized.Load() {
		return false
	}
	fg := l.txBuf.Foreground()
	fg.Acquire(l.plat.Interrupts)
	ok := fg.Append(b)
	fg.Release()
	return ok
}

// TryPutChar is PutChar without spinning on the lock.
func (l *Link) TryPutChar(b byte) bool {
	if !l.initialized.Load() {
		return false
	}
	fg := l.txBuf.Foreground()
	if !fg.TryAcquire(l.plat.Interrupts) {
		return false
	}
	ok := fg.Append(b)
	fg.Release()
	return ok
}

// Send queues bytes in order and stops at the first one not accepted. It
// returns the number accepted, which the caller must check.
func (l *Link) Send(data []byte) int {
	for n, b := range data {
		if !l.PutChar(b) {
			return n
		}
	}
	return len(data)
}

// DataPending returns the number of received bytes waiting. When bytes are
// pending it first waits for an outstanding removal to be applied.
func (l *Link) DataPending() int {
	if !l.initialized.Load() {
		return 0
	}
	fg := l.rxBuf.Foreground()
	if fg.Len() == 0 {
		return 0
	}
	fg.WaitClean()
	return fg.Len()
}

// GetChar returns the oldest received byte and requests its removal. It
// waits for a previous removal to be applied but never for new data; on
// an empty buffer it returns 0, so guard it with DataPending.
func (l *Link) GetChar() byte {
	if !l.initialized.Load() {
		return 0
	}
	fg := l.rxBuf.Foreground()
	fg.WaitClean()
	if fg.Len() == 0 {
		return 0
	}
	return fg.Pop()
}

// TryGetChar returns the oldest received byte without waiting. It fails
// when nothing is pending or the previous removal is still outstanding.
func (l *Link) TryGetChar() (byte, bool) {
	if !l.initialized.Load() {
		return 0, false
	}
	return l.rxBuf.Foreground().TryPop()
}

// EnableReceive resumes listening for start edges.
func (l *Link) EnableReceive() {
	if !l.initialized.Load() {
		return
	}
	l.listening.Store(true)
	l.plat.Edge.Enable()
}

// DisableReceive stops listening for start edges. A frame already being
// received completes.
func (l *Link) DisableReceive() {
	if !l.initialized.Load() {
		return
	}
	l.listening.Store(false)
	l.plat.Edge.Disable()
}

// Receiving reports whether the link listens for start edges.
func (l *Link) Receiving() bool {
	return l.listening.Load()
}

// Overflow reports the sticky receive overflow condition.
func (l *Link) Overflow() bool {
	return l.overflow.Load()
}

// ClearOverflow resets the receive overflow condition.
func (l *Link) ClearOverflow() {
	l.overflow.Store(false)
}

// Status returns a snapshot of the link.
func (l *Link) Status() Status {
	if !l.initialized.Load() {
		return Status{}
	}
	return Status{
		Initialized: true,
		RX:          l.rx.load(),
		TX:          l.tx.load(),
		Overflow:    l.overflow.Load(),
		RxPending:   l.rxBuf.Len(),
		TxPending:   l.txBuf.Len(),
	}
}

// Stats returns the event counters.
func (l *Link) Stats() Stats {
	return l.stats.snapshot()
}

// Readable is signalled when a received byte has been queued. The signal
// is coalesced; re-check DataPending after waking.
func (l *Link) Readable() <-chan struct{} {
	return l.readable
}

// WaitReadable blocks until a received byte is pending or ctx is done.
func (l *Link) WaitReadable(ctx context.Context) error {
	for {
		if l.DataPending() > 0 {
			return nil
		}
		select {
		case <-l.readable:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
