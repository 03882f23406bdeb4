package sim

// Frame is one character on the simulated wire.
type Frame struct {
	Data byte
	// BadStop drives the stop bit low.
	BadStop bool
}

// FramesOf wraps bytes as well formed frames.
func FramesOf(data ...byte) []Frame {
	frames := make([]Frame, len(data))
	for n, b := range data {
		frames[n].Data = b
	}
	return frames
}

// Frames returns a Line carrying the frames back to back, the first start
// bit beginning at count start. Each bit lasts bitCounts counts and gapBits
// idle bits separate consecutive frames. The line is high outside frames.
func Frames(start, bitCounts, gapBits uint64, frames ...Frame) Line {
	frameCounts := (10 + gapBits) * bitCounts
	return func(now uint64) bool {
		if now < start || bitCounts == 0 {
			return true
		}
		off := now - start
		n := off / frameCounts
		if n >= uint64(len(frames)) {
			return true
		}
		bit := (off % frameCounts) / bitCounts
		switch {
		case bit == 0:
			return false
		case bit <= 8:
			return frames[n].Data&(1<<(bit-1)) != 0
		case bit == 9:
			return !frames[n].BadStop
		}
		return true
	}
}

// Decoder recovers frames from a sampled TX line at a known bit period.
// Feed it from a Probe.
type Decoder struct {
	BitCounts uint64
	Frames    []Frame

	last    bool
	started bool
	startAt uint64
	nextBit uint64
	data    byte
}

// NewDecoder creates a Decoder for an idle high line.
func NewDecoder(bitCounts uint64) *Decoder {
	return &Decoder{BitCounts: bitCounts, last: true}
}

// Sample consumes the line level at a count.
func (d *Decoder) Sample(now uint64, level bool) {
	defer func() { d.last = level }()
	if !d.started {
		if d.last && !level {
			d.started, d.startAt, d.nextBit, d.data = true, now, 1, 0
		}
		return
	}
	// sample each bit at its center.
	if now != d.startAt+d.nextBit*d.BitCounts+d.BitCounts/2 {
		return
	}
	switch {
	case d.nextBit <= 8:
		if level {
			d.data |= 1 << (d.nextBit - 1)
		}
		d.nextBit++
	default:
		d.Frames = append(d.Frames, Frame{Data: d.data, BadStop: !level})
		d.started = false
	}
}

// Bytes returns the data of the decoded frames.
func (d *Decoder) Bytes() []byte {
	out := make([]byte, len(d.Frames))
	for n, f := range d.Frames {
		out[n] = f.Data
	}
	return out
}
