// Package hal defines the hardware the transceiver needs, reduced to the
// operations it actually calls. Pin setup and validation, clock source
// selection and interrupt vector wiring belong to the implementations.
package hal

import "errors"

// PinMode selects the direction of a pin.
type PinMode int

// Pin modes.
const (
	PinOutput PinMode = iota
	PinInputPullup
)

// Pin is a single digital line.
type Pin interface {
	Configure(PinMode)
	// Get reads the current level, true is high.
	Get() bool
	// Set drives the level of an output pin.
	Set(high bool)
}

// Timer is a free running counter with a compare interrupt.
type Timer interface {
	// Running reports whether the timer has been started.
	Running() bool
	// Program sets the prescaler and the compare value. The compare
	// interrupt fires every reload+1 counts.
	Program(prescaler uint16, reload uint8)
	// Start enables the compare interrupt with the given handler.
	Start(handler func())
	// Counter reads the live counter value.
	Counter() uint8
}

// EdgeDetector raises an interrupt on a falling level of the RX pin.
type EdgeDetector interface {
	Attach(handler func())
	Enable()
	Disable()
}

// InterruptState is the saved interrupt mask returned by Disable.
type InterruptState uintptr

// Interrupts masks and unmasks interrupts globally.
type Interrupts interface {
	// Disable masks all interrupts and returns the previous state.
	Disable() InterruptState
	// Restore returns to a state saved by Disable.
	Restore(InterruptState)
	// EnableGlobal unmasks interrupts once setup is complete.
	EnableGlobal()
}

// Platform bundles the collaborators of one link.
type Platform struct {
	TX         Pin
	RX         Pin
	Timer      Timer
	Edge       EdgeDetector
	Interrupts Interrupts
}

// ErrIncompletePlatform indicates a collaborator is missing.
var ErrIncompletePlatform = errors.New("incomplete platform")

// Validate checks all collaborators are present.
func (p Platform) Validate() error {
	if p.TX == nil || p.RX == nil || p.Timer == nil || p.Edge == nil || p.Interrupts == nil {
		return ErrIncompletePlatform
	}
	return nil
}
