package bitclock

import (
	"errors"
	"fmt"
)

// Prescaler divides the CPU clock before it reaches the timer.
type Prescaler uint16

// Prescalers available on the timer, smallest first.
var Prescalers = []Prescaler{1, 8, 64, 256, 1024}

const (
	// CounterWidth is the number of distinct values of the 8-bit counter.
	CounterWidth = 256
	// MaxPasses bounds how many compare matches may make up one half-bit
	// tick when the half-bit period does not fit in the counter.
	MaxPasses = 16
	// MaxRateErrorPermille is the largest accepted deviation between the
	// configured and the generated bit rate.
	MaxRateErrorPermille = 25
)

var (
	// ErrNoTiming indicates the clock cannot generate a speed.
	ErrNoTiming = errors.New("no timer configuration for clock")
	// ErrTimerTooSlow indicates the timer clock cannot resolve the rate.
	ErrTimerTooSlow = errors.New("timer clock too slow for rate")
	// ErrTimerTooFast indicates the counter cannot span a half bit period.
	ErrTimerTooFast = errors.New("timer clock too fast for rate")
	// ErrRateError indicates the generated rate is too far off.
	ErrRateError = errors.New("rate error out of tolerance")
)

// Timing is the timer programming for one speed.
type Timing struct {
	Speed        Speed
	CPUFrequency uint32
	Prescaler    Prescaler
	// Reload is the compare value; one compare period is Reload+1 counts.
	Reload uint8
	// Passes is the number of compare periods per half-bit tick.
	Passes uint8
	// Threshold is compared against the position within the half-bit
	// window at the time a start edge is detected.
	Threshold uint16
}

// WindowCounts is the number of timer counts between compare interrupts.
func (t Timing) WindowCounts() uint32 {
	return uint32(t.Reload) + 1
}

// HalfBitCounts is the number of timer counts in one half-bit tick.
func (t Timing) HalfBitCounts() uint32 {
	return t.WindowCounts() * uint32(t.Passes)
}

// CyclesPerTick is the CPU cycle budget between two compare interrupts.
func (t Timing) CyclesPerTick() uint32 {
	return t.WindowCounts() * uint32(t.Prescaler)
}

// ActualBitsPerSecond is the rate generated by this timing.
func (t Timing) ActualBitsPerSecond() uint32 {
	div := 2 * t.HalfBitCounts() * uint32(t.Prescaler)
	if div == 0 {
		return 0
	}
	return (t.CPUFrequency + div/2) / div
}

// String implements fmt.Stringer.
func (t Timing) String() string {
	return fmt.Sprintf("%s baud: prescaler=%d reload=%d passes=%d threshold=%d",
		t.Speed, t.Prescaler, t.Reload, t.Passes, t.Threshold)
}

// Compute derives the timing of one speed for the given clock and prescaler.
func Compute(cpuHz uint32, p Prescaler, s Speed) (Timing, error) {
	if !s.IsValid() {
		return Timing{}, ErrUnknownSpeed
	}
	if p == 0 || cpuHz == 0 {
		return Timing{}, ErrTimerTooSlow
	}
	// counts of the timer per half bit, rounded.
	perHalf := uint64(p) * 2 * uint64(s.BitsPerSecond())
	total := (uint64(cpuHz) + perHalf/2) / perHalf
	passes := (total + CounterWidth - 1) / CounterWidth
	if passes == 0 {
		passes = 1
	}
	if passes > MaxPasses {
		return Timing{}, fmt.Errorf("%w: %s at prescaler %d", ErrTimerTooFast, s, p)
	}
	div := perHalf * passes
	window := (uint64(cpuHz) + div/2) / div
	if window > CounterWidth {
		window = CounterWidth
	}
	if window < 2 {
		return Timing{}, fmt.Errorf("%w: %s at prescaler %d", ErrTimerTooSlow, s, p)
	}
	generated := window * div
	diff := generated - uint64(cpuHz)
	if generated < uint64(cpuHz) {
		diff = uint64(cpuHz) - generated
	}
	if diff*1000 > MaxRateErrorPermille*uint64(cpuHz) {
		return Timing{}, fmt.Errorf("%w: %s at prescaler %d", ErrRateError, s, p)
	}
	half := window * passes
	return Timing{
		Speed:        s,
		CPUFrequency: cpuHz,
		Prescaler:    p,
		Reload:       uint8(window - 1),
		Passes:       uint8(passes),
		Threshold:    uint16(half / 2),
	}, nil
}

// Plan holds the timings of every speed for one CPU clock. All timings
// share a single prescaler; a speed the prescaler cannot generate keeps
// the reason in its slot.
type Plan struct {
	CPUFrequency uint32
	Prescaler    Prescaler
	timings      [numSpeeds]Timing
	errs         [numSpeeds]error
}

// NewPlan selects the prescaler that serves the most supported speeds,
// the smallest one on a tie. It fails only when no speed can be served.
func NewPlan(cpuHz uint32) (*Plan, error) {
	var best *Plan
	bestServed := 0
	for _, p := range Prescalers {
		plan := &Plan{CPUFrequency: cpuHz, Prescaler: p}
		served := 0
		for _, s := range Speeds() {
			plan.timings[s], plan.errs[s] = Compute(cpuHz, p, s)
			if plan.errs[s] == nil {
				served++
			}
		}
		if served > bestServed {
			best, bestServed = plan, served
		}
		if served == int(numSpeeds) {
			break
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %d Hz", ErrNoTiming, cpuHz)
	}
	return best, nil
}

// MustPlan is NewPlan for package level variables of a firmware build, so
// a clock serving no speed at all stops the program before anything runs.
func MustPlan(cpuHz uint32) *Plan {
	plan, err := NewPlan(cpuHz)
	if err != nil {
		panic(err)
	}
	return plan
}

// Timing returns the timing of a speed, ErrNoTiming when the plan's
// prescaler cannot generate it.
func (p *Plan) Timing(s Speed) (Timing, error) {
	if !s.IsValid() {
		return Timing{}, ErrUnknownSpeed
	}
	if err := p.errs[s]; err != nil {
		return Timing{}, fmt.Errorf("%w: %s baud at %d Hz: %w", ErrNoTiming, s, p.CPUFrequency, err)
	}
	return p.timings[s], nil
}

// Supported lists the speeds this plan can generate.
func (p *Plan) Supported() []Speed {
	var speeds []Speed
	for _, s := range Speeds() {
		if p.errs[s] == nil {
			speeds = append(speeds, s)
		}
	}
	return speeds
}
