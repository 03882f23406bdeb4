package softuart

import (
	"context"
	"io"
	"runtime"
)

var (
	_ io.Reader     = (*Link)(nil)
	_ io.Writer     = (*Link)(nil)
	_ io.ByteReader = (*Link)(nil)
	_ io.ByteWriter = (*Link)(nil)
)

// ReadByte returns the oldest received byte or ErrBufferEmpty.
func (l *Link) ReadByte() (byte, error) {
	if !l.initialized.Load() {
		return 0, ErrNotInitialized
	}
	if l.DataPending() == 0 {
		return 0, ErrBufferEmpty
	}
	return l.GetChar(), nil
}

// Read copies pending received bytes into p. It does not wait for data and
// returns 0, nil when nothing is pending.
func (l *Link) Read(p []byte) (int, error) {
	if !l.initialized.Load() {
		return 0, ErrNotInitialized
	}
	n := 0
	for n < len(p) && l.DataPending() > 0 {
		p[n] = l.GetChar()
		n++
	}
	return n, nil
}

// ReadContext copies pending received bytes into p. Between bytes it waits
// for the previous removal until ctx is done, but never after the last.
func (l *Link) ReadContext(ctx context.Context, p []byte) (int, error) {
	if !l.initialized.Load() {
		return 0, ErrNotInitialized
	}
	n := 0
	for n < len(p) {
		if v, ok := l.TryGetChar(); ok {
			p[n] = v
			n++
			continue
		}
		pending := l.rxBuf.Len()
		if l.rxBuf.Dirty() {
			pending--
		}
		if pending <= 0 {
			break
		}
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		default:
			runtime.Gosched()
		}
	}
	return n, nil
}

// WriteByte queues one byte or returns ErrTxFull.
func (l *Link) WriteByte(b byte) error {
	if !l.initialized.Load() {
		return ErrNotInitialized
	}
	if !l.PutChar(b) {
		return ErrTxFull
	}
	return nil
}

// Write queues p in order. When the transmit FIFO fills, it returns the
// count accepted together with ErrTxFull.
func (l *Link) Write(p []byte) (int, error) {
	if !l.initialized.Load() {
		return 0, ErrNotInitialized
	}
	n := l.Send(p)
	if n < len(p) {
		return n, ErrTxFull
	}
	return n, nil
}
