package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntervalAggregator folds fine-grained bars into fixed-interval candles.
// The replay platform uses it to serve 15-minute candles from 1-minute data.
type IntervalAggregator struct {
	BarDuration time.Duration
	Interval    time.Duration
}

// Aggregate returns only completed candles: a candle is emitted once the next
// incoming bar falls past its interval, or once the last contributing bar ends
// exactly on the interval boundary. A trailing half-formed candle is dropped,
// which is what pattern analysis requires.
func (a *IntervalAggregator) Aggregate(bars []Bar) []Bar {
	res, _ := a.fold(bars)
	return res
}

// AggregateAll also includes the trailing half-formed candle, matching feeds
// that expose the current period's bar.
func (a *IntervalAggregator) AggregateAll(bars []Bar) []Bar {
	res, partial := a.fold(bars)
	if partial != nil {
		res = append(res, *partial)
	}

	return res
}

func (a *IntervalAggregator) fold(bars []Bar) ([]Bar, *Bar) {
	var res []Bar

	var cur *Bar
	var end time.Time
	for _, b := range bars {
		if cur != nil && !b.Time.Before(end) {
			res = append(res, *cur)
			cur = nil
		}

		if cur == nil {
			end = b.Time.Truncate(a.Interval).Add(a.Interval)
			cur = &Bar{
				Time: b.Time.Truncate(a.Interval),
				Open: b.Open,
				High: b.High,
				Low:  b.Low,
			}
		}

		cur.Close = b.Close
		cur.High = decimal.Max(cur.High, b.High)
		cur.Low = decimal.Min(cur.Low, b.Low)
		cur.Volume = cur.Volume.Add(b.Volume)

		if !b.Time.Add(a.BarDuration).Before(end) {
			res = append(res, *cur)
			cur = nil
		}
	}

	return res, cur
}
