// Package options selects credit-spread legs from an option chain snapshot.
package options

import (
	"errors"
	"math"

	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
)

// ErrNotFound means no chain contract lies within tolerance of any target
// delta. The day's trade is skipped, not aborted.
var ErrNotFound = errors.New("no option contract matches the delta search range")

type Selector struct {
	Tolerance float64
}

// FindByDelta walks targets in the given order and, for the first target with
// any candidate within tolerance, returns the contract with the smallest
// absolute delta distance. On an exact distance tie the contract with the
// higher delta magnitude wins: it sits closer to the money and collects more
// premium.
func (s Selector) FindByDelta(chain []market.OptionContract, targets []float64) (market.OptionContract, error) {
	for _, target := range targets {
		best := -1
		bestDist := math.MaxFloat64

		for i, c := range chain {
			dist := math.Abs(math.Abs(c.Delta) - target)
			if dist > s.Tolerance {
				continue
			}

			if dist < bestDist || dist == bestDist && best >= 0 && math.Abs(c.Delta) > math.Abs(chain[best].Delta) {
				best = i
				bestDist = dist
			}
		}

		if best >= 0 {
			return chain[best], nil
		}
	}

	return market.OptionContract{}, ErrNotFound
}

// LocateLongLeg finds the protective leg by strike arithmetic, not by an
// independent delta search: shortStrike - width for puts, shortStrike + width
// for calls. When the exact strike is not listed the nearest further-OTM
// listed strike is used instead.
func LocateLongLeg(chain []market.OptionContract, short market.OptionContract, width decimal.Decimal) (market.OptionContract, error) {
	target := short.Strike.Add(width)
	if short.Right == market.Put {
		target = short.Strike.Sub(width)
	}

	best := -1
	for i, c := range chain {
		if c.Right != short.Right || c.Symbol == short.Symbol {
			continue
		}

		// Only strikes at or beyond the target, so the spread never
		// narrows below the configured width.
		if short.Right == market.Put && c.Strike.GreaterThan(target) {
			continue
		}
		if short.Right == market.Call && c.Strike.LessThan(target) {
			continue
		}

		if best < 0 || c.Strike.Sub(target).Abs().LessThan(chain[best].Strike.Sub(target).Abs()) {
			best = i
		}
	}

	if best < 0 {
		return market.OptionContract{}, ErrNotFound
	}

	return chain[best], nil
}
