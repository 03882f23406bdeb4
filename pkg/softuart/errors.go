package softuart

import "errors"

var (
	// ErrAlreadyRunning indicates the timer is already active, so a link
	// has been started on this platform before.
	ErrAlreadyRunning = errors.New("timer already running")
	// ErrNotInitialized indicates the link has not been set up.
	ErrNotInitialized = errors.New("link not initialised")
	// ErrBufferEmpty indicates no received byte is pending.
	ErrBufferEmpty = errors.New("receive buffer empty")
	// ErrTxFull indicates the transmit FIFO did not accept all bytes.
	ErrTxFull = errors.New("transmit buffer full")
)
