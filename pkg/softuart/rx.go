package softuart

import "sync/atomic"

// Half-bit ticks to wait after the tick that closes the window the start
// edge landed in. Together with the rest of that window the first data bit
// is sampled 2.5 to 3.5 half bits after the edge, its center being at 3.
const (
	earlyCountdown uint8 = 2
	lateCountdown  uint8 = 3
)

type rxEngine struct {
	state     atomic.Uint32
	countdown uint8
	toggle    uint8
	bit       uint8
	acc       byte
}

func (r *rxEngine) load() RxState {
	return RxState(r.state.Load())
}

func (r *rxEngine) store(s RxState) {
	r.state.Store(uint32(s))
}

// arm selects the countdown from the position of the start edge within
// the current half-bit window.
func (r *rxEngine) arm(pos, threshold uint16) {
	if pos < threshold {
		r.countdown = earlyCountdown
	} else {
		r.countdown = lateCountdown
	}
	r.store(RxArmedCountdown)
}

func (r *rxEngine) sample(level bool) {
	if level {
		r.acc |= 1 << r.bit
	}
	r.bit++
}

func (r *rxEngine) reset() {
	r.acc, r.bit, r.toggle, r.countdown = 0, 0, 0, 0
	r.store(RxIdle)
}

// handleEdge runs on a falling level of the RX pin.
func (l *Link) handleEdge() {
	counter := l.plat.Timer.Counter()
	l.plat.Edge.Disable()
	if l.rx.load() != RxIdle {
		return
	}
	pos := uint16(l.pass)*uint16(l.timing.WindowCounts()) + uint16(counter)
	l.rx.arm(pos, l.timing.Threshold)
}

func (l *Link) rxTick() {
	r := &l.rx
	switch r.load() {
	case RxArmedCountdown:
		if r.countdown > 0 {
			r.countdown--
			return
		}
		r.acc, r.bit, r.toggle = 0, 0, 0
		r.sample(l.plat.RX.Get())
		r.store(RxReceiving)
	case RxReceiving:
		r.toggle ^= 1
		if r.toggle != 0 {
			return
		}
		level := l.plat.RX.Get()
		if r.bit < 8 {
			r.sample(level)
			return
		}
		l.completeFrame(level)
	}
}

// completeFrame checks the stop bit and hands the byte to the receive
// FIFO. Every outcome returns the engine to idle.
func (l *Link) completeFrame(stop bool) {
	switch {
	case !stop:
		l.stats.framingErrors.Add(1)
	case l.rxBuf.Interrupt().Append(l.rx.acc):
		l.stats.received.Add(1)
		select {
		case l.readable <- struct{}{}:
		default:
		}
	default:
		l.overflow.Store(true)
		l.stats.overflows.Add(1)
	}
	l.rx.reset()
	if l.listening.Load() {
		l.plat.Edge.Enable()
	}
}
