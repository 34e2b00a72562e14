package timing

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
)

// VTimeInSec defines the virtual time of the scheduler in the unit of second.
type VTimeInSec float64

// ErrZeroFrequency is returned when a frequency that must tick is zero or
// negative.
var ErrZeroFrequency = errors.New("frequency must be positive")

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// ParseFreq parses a frequency such as "10Hz", "2.5kHz" or "1MHz". A bare
// number is taken in Hz.
func ParseFreq(s string) (Freq, error) {
	text := strings.TrimSpace(s)
	unit := Hz

	lower := strings.ToLower(text)
	for _, suffix := range []struct {
		name string
		unit Freq
	}{
		{"ghz", GHz},
		{"mhz", MHz},
		{"khz", KHz},
		{"hz", Hz},
	} {
		if strings.HasSuffix(lower, suffix.name) {
			unit = suffix.unit
			text = strings.TrimSpace(text[:len(text)-len(suffix.name)])
			break
		}
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frequency %q: %w", s, err)
	}

	f := Freq(v) * unit
	if err := f.Validate(); err != nil {
		return 0, fmt.Errorf("parse frequency %q: %w", s, err)
	}

	return f, nil
}

// Validate reports ErrZeroFrequency for frequencies that cannot tick.
func (f Freq) Validate() error {
	if f <= 0 || math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return ErrZeroFrequency
	}

	return nil
}

// Period returns the time between two consecutive ticks
func (f Freq) Period() VTimeInSec {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return VTimeInSec(1.0 / f)
}

// Cycle converts a time to the number of cycles passed since time 0.
func (f Freq) Cycle(time VTimeInSec) uint64 {
	return uint64(math.Round(float64(time) * float64(f)))
}

// ThisTick returns the tick at or right after now.
//
//	           Input
//	           (          ]
//	|----------|----------|----------|----->
//	                      |
//	                      Output
func (f Freq) ThisTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Ceil(math.Round(float64(now)*10*float64(f)) / 10)

	return VTimeInSec(count / float64(f))
}

// NextTick returns the tick strictly after now.
//
//	           Input
//	           [          )
//	|----------|----------|----------|----->
//	                      |
//	                      Output
func (f Freq) NextTick(now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	count := math.Floor(math.Round(float64(now)*10*float64(f)) / 10)

	return VTimeInSec((count + 1) / float64(f))
}

// NCyclesLater returns the tick n cycles after now.
func (f Freq) NCyclesLater(n int, now VTimeInSec) VTimeInSec {
	mustBeValidTime(now)

	return f.ThisTick(now + VTimeInSec(Freq(n)/f))
}

func mustBeValidTime(t VTimeInSec) {
	if math.IsNaN(float64(t)) {
		log.Panic("invalid time")
	}
}
