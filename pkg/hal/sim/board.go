// Package sim simulates a single-core board with an 8-bit timer, two pins
// and a falling-edge interrupt on the RX pin. Time advances in timer
// counts; interrupt handlers run synchronously inside Step, serialized with
// the interrupt mask taken by foreground code.
package sim

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robotalks/softuart/pkg/hal"
)

// Line drives the RX pin as a function of time in timer counts.
type Line func(now uint64) bool

// Probe observes the pin levels after every count.
type Probe func(now uint64, tx, rx bool)

// Board is the simulated hardware.
type Board struct {
	// Batch is the number of counts Run advances between yields.
	Batch int
	// Pace is the wall time Run waits between batches, 0 for none.
	Pace time.Duration

	// mu is the CPU: held while a handler runs or interrupts are masked.
	mu      sync.Mutex
	now     uint64
	global  atomic.Bool
	line    Line
	probe   Probe
	lastRX  bool
	tx, rx  Pin
	timer   Timer
	edge    EdgeDetector
	masking Interrupts
}

// NewBoard creates a board with both lines idle high, RX looped back from
// TX until a Line is set.
func NewBoard() *Board {
	b := &Board{Batch: 64, lastRX: true}
	b.tx.level.Store(true)
	b.rx.level.Store(true)
	b.timer.board = b
	b.edge.board = b
	b.masking.board = b
	return b
}

// Platform returns the collaborators for a link on this board.
func (b *Board) Platform() hal.Platform {
	return hal.Platform{
		TX:         &b.tx,
		RX:         &b.rx,
		Timer:      &b.timer,
		Edge:       &b.edge,
		Interrupts: &b.masking,
	}
}

// SetLine drives RX from a waveform; nil loops TX back to RX.
func (b *Board) SetLine(l Line) {
	b.mu.Lock()
	b.line = l
	b.mu.Unlock()
}

// SetProbe installs an observer called after every count.
func (b *Board) SetProbe(p Probe) {
	b.mu.Lock()
	b.probe = p
	b.mu.Unlock()
}

// Now returns the elapsed timer counts.
func (b *Board) Now() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.now
}

// TXLevel reads the transmit line.
func (b *Board) TXLevel() bool {
	return b.tx.level.Load()
}

// Step advances the board by the given number of timer counts.
func (b *Board) Step(counts int) {
	for i := 0; i < counts; i++ {
		b.mu.Lock()
		b.step()
		b.mu.Unlock()
	}
}

// StepUntil advances until cond holds or max counts elapsed, reporting
// whether cond was met. cond runs with the CPU held.
func (b *Board) StepUntil(max int, cond func() bool) bool {
	for i := 0; i < max; i++ {
		b.mu.Lock()
		b.step()
		ok := cond()
		b.mu.Unlock()
		if ok {
			return true
		}
	}
	return false
}

// Run advances the board until ctx is done.
func (b *Board) Run(ctx context.Context) error {
	batch := b.Batch
	if batch <= 0 {
		batch = 64
	}
	var pace <-chan time.Time
	if b.Pace > 0 {
		ticker := time.NewTicker(b.Pace)
		defer ticker.Stop()
		pace = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		b.Step(batch)
		if pace != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-pace:
			}
		} else {
			runtime.Gosched()
		}
	}
}

func (b *Board) step() {
	b.now++
	b.timer.count(b.global.Load())
	level := b.tx.level.Load()
	if b.line != nil {
		level = b.line(b.now)
	}
	b.rx.level.Store(level)
	if b.lastRX && !level && b.edge.enabled.Load() && b.global.Load() && b.edge.handler != nil {
		b.edge.handler()
	}
	b.lastRX = level
	if b.probe != nil {
		b.probe(b.now, b.tx.level.Load(), level)
	}
}

// Pin is a simulated digital line.
type Pin struct {
	mode  atomic.Int32
	level atomic.Bool
}

// Configure implements hal.Pin.
func (p *Pin) Configure(mode hal.PinMode) {
	p.mode.Store(int32(mode))
}

// Mode returns the configured direction.
func (p *Pin) Mode() hal.PinMode {
	return hal.PinMode(p.mode.Load())
}

// Get implements hal.Pin.
func (p *Pin) Get() bool {
	return p.level.Load()
}

// Set implements hal.Pin.
func (p *Pin) Set(high bool) {
	p.level.Store(high)
}

// Timer is the simulated 8-bit compare timer.
type Timer struct {
	board     *Board
	running   atomic.Bool
	prescaler uint16
	reload    uint8
	counter   uint8
	handler   func()
}

// Running implements hal.Timer.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Program implements hal.Timer. The simulation counts in timer counts, so
// the prescaler is only recorded.
func (t *Timer) Program(prescaler uint16, reload uint8) {
	t.board.mu.Lock()
	t.prescaler, t.reload, t.counter = prescaler, reload, 0
	t.board.mu.Unlock()
}

// Prescaler returns the programmed prescaler.
func (t *Timer) Prescaler() uint16 {
	t.board.mu.Lock()
	defer t.board.mu.Unlock()
	return t.prescaler
}

// Start implements hal.Timer.
func (t *Timer) Start(handler func()) {
	t.board.mu.Lock()
	t.handler = handler
	t.running.Store(true)
	t.board.mu.Unlock()
}

// Counter implements hal.Timer. It is read from interrupt context.
func (t *Timer) Counter() uint8 {
	return t.counter
}

func (t *Timer) count(deliver bool) {
	if !t.running.Load() {
		return
	}
	if t.counter < t.reload {
		t.counter++
		return
	}
	t.counter = 0
	if deliver && t.handler != nil {
		t.handler()
	}
}

// EdgeDetector is the simulated falling-edge interrupt. Edges seen while
// disabled are dropped rather than latched.
type EdgeDetector struct {
	board   *Board
	enabled atomic.Bool
	handler func()
}

// Attach implements hal.EdgeDetector.
func (e *EdgeDetector) Attach(handler func()) {
	e.board.mu.Lock()
	e.handler = handler
	e.board.mu.Unlock()
}

// Enable implements hal.EdgeDetector.
func (e *EdgeDetector) Enable() { e.enabled.Store(true) }

// Disable implements hal.EdgeDetector.
func (e *EdgeDetector) Disable() { e.enabled.Store(false) }

// Enabled reports whether edges are delivered.
func (e *EdgeDetector) Enabled() bool { return e.enabled.Load() }

// Interrupts masks the simulated CPU. Disable must not be called from a
// handler.
type Interrupts struct {
	board *Board
}

// Disable implements hal.Interrupts.
func (i *Interrupts) Disable() hal.InterruptState {
	i.board.mu.Lock()
	return 0
}

// Restore implements hal.Interrupts.
func (i *Interrupts) Restore(hal.InterruptState) {
	i.board.mu.Unlock()
}

// EnableGlobal implements hal.Interrupts.
func (i *Interrupts) EnableGlobal() {
	i.board.global.Store(true)
}

// TX returns the transmit pin.
func (b *Board) TX() *Pin { return &b.tx }

// RX returns the receive pin.
func (b *Board) RX() *Pin { return &b.rx }

// Timer returns the compare timer.
func (b *Board) Timer() *Timer { return &b.timer }

// Edge returns the falling-edge detector.
func (b *Board) Edge() *EdgeDetector { return &b.edge }
