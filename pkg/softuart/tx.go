package softuart

import "sync/atomic"

type txEngine struct {
	state  atomic.Uint32
	toggle uint8
	bit    uint8
	shift  byte
}

func (t *txEngine) load() TxState {
	return TxState(t.state.Load())
}

func (t *txEngine) store(s TxState) {
	t.state.Store(uint32(s))
}

// txTick acts on every other tick, one action per bit period.
func (l *Link) txTick() {
	t := &l.tx
	t.toggle ^= 1
	if t.toggle != 0 {
		return
	}
	isr := l.txBuf.Interrupt()
	switch t.load() {
	case TxIdle:
		if isr.Len() == 0 {
			return
		}
		l.plat.TX.Set(false)
		// the byte stays in the FIFO until its stop bit is out.
		t.shift, t.bit = isr.Front(), 0
		t.store(TxSentStartBit)
	case TxSentStartBit:
		l.plat.TX.Set(t.shift&1 != 0)
		t.bit = 1
		t.store(TxSendingData)
	case TxSendingData:
		if t.bit < 8 {
			l.plat.TX.Set(t.shift&(1<<t.bit) != 0)
			t.bit++
			return
		}
		l.plat.TX.Set(true)
		l.stats.sent.Add(1)
		l.releaseSent()
	case TxBufferLocked:
		l.stats.txLockRetries.Add(1)
		l.releaseSent()
	}
}

func (l *Link) releaseSent() {
	if l.txBuf.Interrupt().TryCompactFront() {
		l.tx.store(TxIdle)
		return
	}
	l.tx.store(TxBufferLocked)
}
