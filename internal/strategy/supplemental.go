package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/clock"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/heikinashi"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/gyan21/heikenashi/internal/options"
	"github.com/gyan21/heikenashi/internal/pattern"
	"github.com/shopspring/decimal"
)

// Sessions the scanner still considers "the next day" after a main trade.
// Three calendar days covers a trade placed on Friday.
const reentryWindowDays = 3

// SupplementalScanner opens a smaller follow-up spread the session after a
// main trade, in the same direction, once the 15-minute series prints the
// mirror of that direction's exit pattern. At most one per day; the resulting
// position rides to expiry behind its resting close order.
type SupplementalScanner struct {
	cfg      config.Strategy
	symbol   string
	loc      *time.Location
	data     broker.MarketDataProvider
	ledger   broker.Ledger
	selector options.Selector
	clock    clock.Clock
	log      *slog.Logger
	placer   placer
}

func NewSupplementalScanner(
	cfg config.Strategy,
	symbol string,
	loc *time.Location,
	data broker.MarketDataProvider,
	orders broker.OrderExecutionService,
	ledger broker.Ledger,
	clk clock.Clock,
	log *slog.Logger,
) *SupplementalScanner {
	return &SupplementalScanner{
		cfg:      cfg,
		symbol:   symbol,
		loc:      loc,
		data:     data,
		ledger:   ledger,
		selector: options.Selector{Tolerance: cfg.DeltaTolerance},
		clock:    clk,
		log:      log,
		placer:   placer{cfg: cfg, symbol: symbol, orders: orders, ledger: ledger, log: log},
	}
}

// Scan runs one tick of the re-entry check.
func (s *SupplementalScanner) Scan(ctx context.Context) error {
	now := s.clock.Now()
	if !s.cfg.MarketOpen.Contains(s.cfg.ExecutionEnd, now, s.loc) {
		return nil
	}

	today := civil.DateOf(now.In(s.loc))
	exists, err := s.ledger.TradeExistsForDay(today, market.SupplementalTrade)
	if err != nil {
		return fmt.Errorf("failed to check today's supplemental record: %w", err)
	}
	if exists {
		return nil
	}

	last, err := s.ledger.LastMainTrade()
	if err != nil {
		return fmt.Errorf("failed to load last main trade: %w", err)
	}
	if last == nil || !last.Day.Before(today) || today.DaysSince(last.Day) > reentryWindowDays {
		return nil
	}

	bars, err := s.data.HistoricalBars(ctx, s.symbol, patternInterval, s.cfg.PatternBars+1)
	if err != nil {
		return fmt.Errorf("failed to fetch pattern bars: %w", err)
	}

	closed := market.CompletedBars(bars, patternInterval, now)
	matched, err := pattern.Matches(closed, pattern.ReentrySequence(last.Direction))
	if err != nil {
		return err
	}
	if !matched {
		return nil
	}

	s.log.Info("re-entry pattern confirmed",
		"direction", last.Direction.String(),
		"pattern", pattern.ReentrySequence(last.Direction).String())

	expiry := today.AddDays(s.cfg.ExpiryOffsetDays)
	chain, err := s.data.OptionChain(ctx, s.symbol, expiry, last.Direction.Right())
	if err != nil {
		return fmt.Errorf("failed to fetch option chain: %w", err)
	}

	short, err := s.selector.FindByDelta(chain, s.cfg.DeltaSearch)
	if err != nil {
		return fmt.Errorf("short leg search: %w", err)
	}

	long, err := options.LocateLongLeg(chain, short, decimal.NewFromFloat(s.cfg.SpreadWidth))
	if err != nil {
		return fmt.Errorf("long leg search: %w", err)
	}

	perShare := short.Bid.Sub(long.Ask)
	credit := perShare.Mul(hundred)
	if credit.LessThan(decimal.NewFromFloat(s.cfg.PremiumSupplemental)) {
		return fmt.Errorf("credit %s per contract: %w", credit, ErrPremiumNotMet)
	}

	daily, err := s.data.HistoricalBars(ctx, s.symbol, day, 2)
	if err != nil {
		return fmt.Errorf("failed to fetch daily bars: %w", err)
	}

	closedDaily := market.CompletedBars(daily, day, now)
	if len(closedDaily) == 0 {
		return fmt.Errorf("no completed daily bars: %w", heikinashi.ErrInsufficientData)
	}
	prevDay := closedDaily[len(closedDaily)-1]

	return s.placer.place(ctx, entryIntent{
		day:       today,
		tradeType: market.SupplementalTrade,
		direction: last.Direction,
		short:     short,
		long:      long,
		quantity:  supplementalQuantity(last.Quantity),
		credit:    credit,
		perShare:  perShare,
		prevHigh:  prevDay.High,
		prevLow:   prevDay.Low,
		now:       now,
	})
}

// supplementalQuantity is a third of the main trade's size, floored, with a
// minimum of one contract.
func supplementalQuantity(mainQuantity int) int {
	q := mainQuantity / 3
	if q < 1 {
		return 1
	}

	return q
}
