// Package bitclock derives the timer settings that make the compare
// interrupt fire once per half bit period for each supported speed.
package bitclock

import (
	"errors"
	"fmt"
	"strconv"
)

// Speed selects one of the supported data rates. Rates are selected by
// index because their timer reload values are precomputed per build.
type Speed uint8

// Supported speeds.
const (
	Speed2400 Speed = iota
	Speed9600
	Speed19200
	Speed38400
	Speed57600
	Speed115200

	numSpeeds
)

var bitRates = [numSpeeds]uint32{2400, 9600, 19200, 38400, 57600, 115200}

// ErrUnknownSpeed indicates a rate outside the supported set.
var ErrUnknownSpeed = errors.New("unsupported speed")

// Speeds lists all supported speeds, slowest first.
func Speeds() []Speed {
	s := make([]Speed, numSpeeds)
	for i := range s {
		s[i] = Speed(i)
	}
	return s
}

// IsValid checks the speed is one of the supported values.
func (s Speed) IsValid() bool {
	return s < numSpeeds
}

// BitsPerSecond returns the bit rate, 0 for an invalid speed.
func (s Speed) BitsPerSecond() uint32 {
	if !s.IsValid() {
		return 0
	}
	return bitRates[s]
}

// String implements fmt.Stringer.
func (s Speed) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("Speed(%d)", uint8(s))
	}
	return strconv.FormatUint(uint64(bitRates[s]), 10)
}

// ParseSpeed maps a bit rate such as "9600" to its Speed.
func ParseSpeed(str string) (Speed, error) {
	bps, err := strconv.ParseUint(str, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSpeed, str)
	}
	for i, rate := range bitRates {
		if uint64(rate) == bps {
			return Speed(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownSpeed, bps)
}

// MarshalText implements encoding.TextMarshaler.
func (s Speed) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, ErrUnknownSpeed
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Speed) UnmarshalText(text []byte) error {
	v, err := ParseSpeed(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
