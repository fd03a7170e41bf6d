// Package heikinashi derives smoothed synthetic candles from raw OHLC bars.
package heikinashi

import (
	"errors"
	"time"

	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
)

// ErrInsufficientData means there are not enough bars to derive the series.
// Treated as "not yet decidable", never as a fatal condition.
var ErrInsufficientData = errors.New("insufficient data for heikin-ashi series")

type Candle struct {
	Time  time.Time
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

var (
	two  = decimal.NewFromInt(2)
	four = decimal.NewFromInt(4)
)

// Compute folds the chronological bar sequence into the derived series.
// Each candle depends on its predecessor, so the fold is strictly sequential:
//
//	haClose = (open + high + low + close) / 4
//	haOpen  = (prevHaOpen + prevHaClose) / 2, seeded from the first raw bar
//	haHigh  = max(high, haOpen, haClose)
//	haLow   = min(low, haOpen, haClose)
func Compute(bars []market.Bar) ([]Candle, error) {
	if len(bars) == 0 {
		return nil, ErrInsufficientData
	}

	ha := make([]Candle, len(bars))
	for i, b := range bars {
		var open decimal.Decimal
		if i == 0 {
			open = b.Open.Add(b.Close).Div(two)
		} else {
			open = ha[i-1].Open.Add(ha[i-1].Close).Div(two)
		}

		close := b.Open.Add(b.High).Add(b.Low).Add(b.Close).Div(four)
		ha[i] = Candle{
			Time:  b.Time,
			Open:  open,
			Close: close,
			High:  decimal.Max(b.High, open, close),
			Low:   decimal.Min(b.Low, open, close),
		}
	}

	return ha, nil
}

// DailyCloses returns the last raw close and the last derived close of the
// day's series. The comparison between the two sets the trade direction.
func DailyCloses(bars []market.Bar) (raw, ha decimal.Decimal, err error) {
	series, err := Compute(bars)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}

	return bars[len(bars)-1].Close, series[len(series)-1].Close, nil
}
