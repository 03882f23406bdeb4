package sh

import (
	"fmt"

	"github.com/robotalks/softuart/pkg/hal/sim"
	"github.com/robotalks/softuart/pkg/softuart"
)

// Session is a link on a paused simulated board with TX looped back to
// RX. Time only advances when a command asks for it.
type Session struct {
	Board *sim.Board
	Link  *softuart.Link
}

// NewSession sets up a link on a fresh board.
func NewSession(conf softuart.Config) (*Session, error) {
	board := sim.NewBoard()
	link, err := softuart.Initialise(conf, board.Platform())
	if err != nil {
		return nil, err
	}
	return &Session{Board: board, Link: link}, nil
}

// Advance runs the board for a number of half-bit ticks.
func (s *Session) Advance(ticks int) {
	s.Board.Step(ticks * int(s.Link.Timing().HalfBitCounts()))
}

// Send queues text and reports how many bytes were accepted.
func (s *Session) Send(data []byte) int {
	return s.Link.Send(data)
}

// Receive takes every pending byte, advancing the board whenever the
// previous removal is still outstanding.
func (s *Session) Receive() []byte {
	var out []byte
	for s.Link.Status().RxPending > 0 {
		if v, ok := s.Link.TryGetChar(); ok {
			out = append(out, v)
			continue
		}
		s.Advance(1)
	}
	return out
}

// Flush advances until the transmit FIFO is empty and both engines are
// idle, at most maxTicks ticks. It returns the ticks spent.
func (s *Session) Flush(maxTicks int) (int, error) {
	for n := 0; n < maxTicks; n++ {
		if st := s.Link.Status(); st.IsIdle() && st.TxPending == 0 {
			return n, nil
		}
		s.Advance(1)
	}
	return maxTicks, fmt.Errorf("link busy after %d ticks", maxTicks)
}
