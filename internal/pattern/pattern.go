// Package pattern classifies candles and matches 3-candle color sequences on
// the 15-minute series.
package pattern

import (
	"errors"
	"fmt"

	"github.com/gyan21/heikenashi/internal/market"
)

// ErrInsufficientCandles means fewer than 3 completed candles are available.
// Callers treat it as "pattern not yet confirmed", not a failure.
var ErrInsufficientCandles = errors.New("insufficient candles for pattern match")

type Color int

const (
	Red Color = iota
	Green
	Doji
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	default:
		return "doji"
	}
}

// Sequence is an ordered 3-candle color pattern, oldest first.
type Sequence [3]Color

var (
	// BullExit closes a bull position: two green candles then a red one.
	BullExit = Sequence{Green, Green, Red}
	// BearExit closes a bear position: two red candles then a green one.
	BearExit = Sequence{Red, Red, Green}
	// BullReentry gates a next-day supplemental bull entry, the mirror of
	// the bull exit.
	BullReentry = Sequence{Red, Red, Green}
	// BearReentry gates a next-day supplemental bear entry.
	BearReentry = Sequence{Green, Green, Red}
)

func (s Sequence) String() string {
	return fmt.Sprintf("%s-%s-%s", s[0], s[1], s[2])
}

// ExitSequence returns the exit pattern for an open position's direction.
func ExitSequence(d market.Direction) Sequence {
	if d == market.Bull {
		return BullExit
	}

	return BearExit
}

// ReentrySequence returns the supplemental entry pattern for a direction.
func ReentrySequence(d market.Direction) Sequence {
	if d == market.Bull {
		return BullReentry
	}

	return BearReentry
}

// ColorOf classifies a single candle. Green when the close is above the open,
// red when below, doji on an exact match.
func ColorOf(b market.Bar) Color {
	switch {
	case b.Close.GreaterThan(b.Open):
		return Green
	case b.Close.LessThan(b.Open):
		return Red
	default:
		return Doji
	}
}

// Matches reports whether the 3 most recent completed candles form the wanted
// sequence. Order matters: Green-Green-Red does not match Red-Green-Green.
func Matches(bars []market.Bar, want Sequence) (bool, error) {
	if len(bars) < len(want) {
		return false, fmt.Errorf("%w: have %d, need %d", ErrInsufficientCandles, len(bars), len(want))
	}

	recent := bars[len(bars)-len(want):]
	for i, b := range recent {
		if ColorOf(b) != want[i] {
			return false, nil
		}
	}

	return true, nil
}
