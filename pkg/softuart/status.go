package softuart

import (
	"fmt"
	"sync/atomic"
)

// RxState is the state of the receive engine.
type RxState uint32

// Receive states.
const (
	// RxIdle waits for a start edge.
	RxIdle RxState = iota
	// RxArmedCountdown counts down to the first data bit sample.
	RxArmedCountdown
	// RxReceiving samples data bits and the stop bit.
	RxReceiving
)

func (s RxState) String() string {
	switch s {
	case RxIdle:
		return "idle"
	case RxArmedCountdown:
		return "armed"
	case RxReceiving:
		return "receiving"
	default:
		return fmt.Sprintf("RxState(%d)", uint32(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s RxState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TxState is the state of the transmit engine.
type TxState uint32

// Transmit states.
const (
	// TxIdle waits for the transmit FIFO to fill.
	TxIdle TxState = iota
	// TxSentStartBit has driven the start bit.
	TxSentStartBit
	// TxSendingData shifts out data bits, then the stop bit.
	TxSendingData
	// TxBufferLocked retries removing the sent byte from a locked FIFO.
	TxBufferLocked
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxSentStartBit:
		return "start-bit"
	case TxSendingData:
		return "sending"
	case TxBufferLocked:
		return "buffer-locked"
	default:
		return fmt.Sprintf("TxState(%d)", uint32(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TxState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a snapshot of the link.
type Status struct {
	Initialized bool
	RX          RxState
	TX          TxState
	// Overflow is sticky: set when a valid frame found the receive FIFO
	// full, cleared only by ClearOverflow.
	Overflow  bool
	RxPending int
	TxPending int
}

// IsIdle reports both engines are idle.
func (s Status) IsIdle() bool {
	return s.Initialized && s.RX == RxIdle && s.TX == TxIdle
}

// Stats counts link events since initialisation.
type Stats struct {
	Ticks         uint64
	Received      uint64
	FramingErrors uint64
	Overflows     uint64
	Sent          uint64
	TxLockRetries uint64
}

type counters struct {
	ticks         atomic.Uint64
	received      atomic.Uint64
	framingErrors atomic.Uint64
	overflows     atomic.Uint64
	sent          atomic.Uint64
	txLockRetries atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Ticks:         c.ticks.Load(),
		Received:      c.received.Load(),
		FramingErrors: c.framingErrors.Load(),
		Overflows:     c.overflows.Load(),
		Sent:          c.sent.Load(),
		TxLockRetries: c.txLockRetries.Load(),
	}
}
