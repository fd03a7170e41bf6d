// Package replay drives the strategy deterministically from recorded
// 1-minute bars. Quotes, candles and synthetic option chains are all served
// from the same tape, so a run is exactly reproducible.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
)

type openSpread struct {
	short    market.OptionContract
	long     market.OptionContract
	quantity int
	credit   decimal.Decimal
	openTime time.Time
	closed   bool
}

type restingClose struct {
	spread *openSpread
	limit  decimal.Decimal
}

type ReplayPlatform struct {
	cfg    config.Replay
	model  chainModel
	bars   []market.Bar
	asset  *market.Asset
	cursor int
	report *reportBuilder
	log    *slog.Logger

	spreads map[string]*openSpread
	resting []restingClose
}

func NewReplayPlatform(log *slog.Logger, symbol string, cfg config.Replay) (*ReplayPlatform, error) {
	bars, err := readBars(cfg.Data, cfg.Start, cfg.End)
	if err != nil {
		return nil, fmt.Errorf("failed to load replay data: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars in [%s, %s)", cfg.Start, cfg.End)
	}

	return &ReplayPlatform{
		cfg:     cfg,
		model:   chainModel{symbol: symbol, cfg: cfg},
		bars:    bars,
		asset:   market.NewAsset(symbol, len(bars)),
		cursor:  -1,
		report:  newReportBuilder(log),
		log:     log,
		spreads: make(map[string]*openSpread),
	}, nil
}

// Step advances the tape one bar and settles resting orders and expiries
// against the new price. Returns false once the tape is exhausted.
func (r *ReplayPlatform) Step() bool {
	r.cursor++
	if r.cursor >= len(r.bars) {
		return false
	}

	r.asset.Receive(r.bars[r.cursor])
	r.settleResting()
	r.settleExpired()
	return true
}

// Tape returns the full replayed bar series.
func (r *ReplayPlatform) Tape() []market.Bar {
	return r.bars
}

// Now is the end of the current bar; the replay run drives every clock read
// through here.
func (r *ReplayPlatform) Now() time.Time {
	return r.bars[r.cursor].Time.Add(time.Minute)
}

func (r *ReplayPlatform) WriteReport() error {
	return r.report.WriteToFile(r.cfg.Report)
}

func (r *ReplayPlatform) price() decimal.Decimal {
	bar, _ := r.asset.GetLastBar()
	return bar.Close
}

func (r *ReplayPlatform) LatestQuote(ctx context.Context, symbol string) (market.Quote, error) {
	return market.Quote{Price: r.price(), Time: r.Now()}, nil
}

func (r *ReplayPlatform) HistoricalBars(ctx context.Context, symbol string, interval time.Duration, count int) ([]market.Bar, error) {
	minutes := int(interval / time.Minute)
	need := (count + 1) * minutes
	full := need >= r.cursor+1
	if full {
		need = r.cursor + 1
	}

	window, err := r.asset.GetBars(need)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay history: %w", err)
	}

	if interval > time.Minute {
		agg := market.IntervalAggregator{BarDuration: time.Minute, Interval: interval}
		window = agg.AggregateAll(window)
		// A window cut mid-interval leaves a clipped first candle.
		if !full && len(window) > 0 {
			window = window[1:]
		}
	}

	if len(window) > count {
		window = window[len(window)-count:]
	}

	return window, nil
}

func (r *ReplayPlatform) OptionChain(ctx context.Context, symbol string, expiry civil.Date, right market.OptionRight) ([]market.OptionContract, error) {
	return r.model.chain(r.price(), expiry, right), nil
}

func (r *ReplayPlatform) SubmitSpread(ctx context.Context, short, long market.OptionContract, quantity int, side broker.Side, limit decimal.Decimal) (broker.OrderID, error) {
	key := short.Symbol + "/" + long.Symbol
	if side == broker.SellToOpen {
		r.spreads[key] = &openSpread{
			short:    short,
			long:     long,
			quantity: quantity,
			credit:   limit.Mul(hundred).Mul(decimal.NewFromInt(int64(quantity))).Sub(r.commission(quantity)),
			openTime: r.Now(),
		}

		return broker.OrderID(uuid.NewString()), nil
	}

	spread, ok := r.spreads[key]
	if !ok || spread.closed {
		return broker.OrderID(uuid.NewString()), nil
	}

	r.close(spread, limit, false)
	return broker.OrderID(uuid.NewString()), nil
}

// SubmitCloseOrder fills immediately when the synthetic spread already trades
// at or under the limit; otherwise it rests and is re-checked every Step,
// which is how the cheap safety order behaves at a live broker.
func (r *ReplayPlatform) SubmitCloseOrder(ctx context.Context, p market.Position, limit decimal.Decimal) (broker.OrderID, error) {
	key := p.ShortLeg.Symbol + "/" + p.LongLeg.Symbol
	spread, ok := r.spreads[key]
	if !ok || spread.closed {
		return broker.OrderID(uuid.NewString()), nil
	}

	if r.costOf(spread).LessThanOrEqual(limit) {
		r.close(spread, limit, false)
	} else {
		r.resting = append(r.resting, restingClose{spread: spread, limit: limit})
	}

	return broker.OrderID(uuid.NewString()), nil
}

// Orders fill instantly against the synthetic book.
func (r *ReplayPlatform) FillStatus(ctx context.Context, id broker.OrderID) (broker.FillState, error) {
	return broker.Filled, nil
}

// costOf reprices the spread's legs from the model at the current underlying.
func (r *ReplayPlatform) costOf(s *openSpread) decimal.Decimal {
	_, shortAsk := r.model.priceAt(r.price(), s.short.Strike, s.short.Right)
	longBid, _ := r.model.priceAt(r.price(), s.long.Strike, s.long.Right)
	return shortAsk.Sub(longBid)
}

func (r *ReplayPlatform) close(s *openSpread, perShare decimal.Decimal, safety bool) {
	s.closed = true
	r.report.SubmitDeal(deal{
		legs:      market.SpreadLabel(s.short, s.long),
		openTime:  s.openTime,
		closeTime: r.Now(),
		quantity:  s.quantity,
		credit:    s.credit,
		debit:     perShare.Mul(hundred).Mul(decimal.NewFromInt(int64(s.quantity))).Add(r.commission(s.quantity)),
		safety:    safety,
	})
}

func (r *ReplayPlatform) settleResting() {
	kept := r.resting[:0]
	for _, rc := range r.resting {
		if rc.spread.closed {
			continue
		}

		if r.costOf(rc.spread).LessThanOrEqual(rc.limit) {
			r.close(rc.spread, rc.limit, true)
			continue
		}

		kept = append(kept, rc)
	}

	r.resting = kept
}

// settleExpired cash-settles any spread past its expiry date at the model
// price of the next session.
func (r *ReplayPlatform) settleExpired() {
	today := civil.DateOf(r.Now())
	for _, s := range r.spreads {
		if s.closed || !s.short.Expiry.Before(today) {
			continue
		}

		r.close(s, r.costOf(s), false)
	}
}

func (r *ReplayPlatform) commission(quantity int) decimal.Decimal {
	return decimal.NewFromFloat(r.cfg.Commission).Mul(decimal.NewFromInt(int64(quantity)))
}

var hundred = decimal.NewFromInt(100)
