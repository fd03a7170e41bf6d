// Package strategy contains the decision engines: daily entry, per-position
// exit monitoring, the next-day supplemental scanner and adaptive sizing.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/clock"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/heikinashi"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/gyan21/heikenashi/internal/options"
	"github.com/shopspring/decimal"
)

// ErrPremiumNotMet means no premium tier was satisfied by the snapshot. The
// day's trade is skipped; this is a normal outcome, not a failure.
var ErrPremiumNotMet = errors.New("no premium tier met")

var hundred = decimal.NewFromInt(100)

const day = 24 * time.Hour

// EntryEngine makes the single daily trade decision inside the execution
// window: direction from the daily close vs its derived close, legs from the
// delta ladder, size from the QuantityManager, gated by the premium tiers.
type EntryEngine struct {
	cfg      config.Strategy
	symbol   string
	loc      *time.Location
	data     broker.MarketDataProvider
	ledger   broker.Ledger
	selector options.Selector
	quantity *QuantityManager
	clock    clock.Clock
	log      *slog.Logger
	placer   placer
}

func NewEntryEngine(
	cfg config.Strategy,
	symbol string,
	loc *time.Location,
	data broker.MarketDataProvider,
	orders broker.OrderExecutionService,
	ledger broker.Ledger,
	quantity *QuantityManager,
	clk clock.Clock,
	log *slog.Logger,
) *EntryEngine {
	return &EntryEngine{
		cfg:      cfg,
		symbol:   symbol,
		loc:      loc,
		data:     data,
		ledger:   ledger,
		selector: options.Selector{Tolerance: cfg.DeltaTolerance},
		quantity: quantity,
		clock:    clk,
		log:      log,
		placer:   placer{cfg: cfg, symbol: symbol, orders: orders, ledger: ledger, log: log},
	}
}

// Evaluate runs one tick of the entry decision. Outside the execution window
// or once today's record exists it is a no-op, so overlapping ticks inside
// the window can never double-trade.
func (e *EntryEngine) Evaluate(ctx context.Context) error {
	now := e.clock.Now()
	if !e.cfg.ExecutionStart.Contains(e.cfg.ExecutionEnd, now, e.loc) {
		return nil
	}

	today := civil.DateOf(now.In(e.loc))
	exists, err := e.ledger.TradeExistsForDay(today, market.MainTrade)
	if err != nil {
		return fmt.Errorf("failed to check today's trade record: %w", err)
	}
	if exists {
		return nil
	}

	bars, err := e.data.HistoricalBars(ctx, e.symbol, day, e.cfg.DailyBars)
	if err != nil {
		return fmt.Errorf("failed to fetch daily bars: %w", err)
	}

	closed := market.CompletedBars(bars, day, now)
	if len(closed) == 0 || len(bars) < 2 {
		return fmt.Errorf("%d daily bars: %w", len(bars), heikinashi.ErrInsufficientData)
	}
	prevDay := closed[len(closed)-1]

	rawClose, haClose, err := heikinashi.DailyCloses(bars)
	if err != nil {
		return fmt.Errorf("failed to derive daily closes: %w", err)
	}

	direction := market.Bear
	if rawClose.GreaterThan(haClose) {
		direction = market.Bull
	}

	e.log.Info("entry direction decided",
		"direction", direction.String(),
		"close", rawClose.String(),
		"ha_close", haClose.String())

	expiry := today.AddDays(e.cfg.ExpiryOffsetDays)
	chain, err := e.data.OptionChain(ctx, e.symbol, expiry, direction.Right())
	if err != nil {
		return fmt.Errorf("failed to fetch option chain: %w", err)
	}

	short, err := e.selector.FindByDelta(chain, e.cfg.DeltaSearch)
	if err != nil {
		return fmt.Errorf("short leg search: %w", err)
	}

	long, err := options.LocateLongLeg(chain, short, decimal.NewFromFloat(e.cfg.SpreadWidth))
	if err != nil {
		return fmt.Errorf("long leg search: %w", err)
	}

	perShare := short.Bid.Sub(long.Ask)
	credit := perShare.Mul(hundred)
	if _, ok := meetsTier(credit, e.cfg.PremiumPrimary, e.cfg.PremiumFallback); !ok {
		return fmt.Errorf("credit %s per contract: %w", credit, ErrPremiumNotMet)
	}

	return e.placer.place(ctx, entryIntent{
		day:       today,
		tradeType: market.MainTrade,
		direction: direction,
		short:     short,
		long:      long,
		quantity:  e.quantity.Current(),
		credit:    credit,
		perShare:  perShare,
		closeDiff: rawClose.Sub(haClose),
		prevHigh:  prevDay.High,
		prevLow:   prevDay.Low,
		now:       now,
	})
}

// meetsTier checks the tiers in order and reports the one satisfied.
func meetsTier(credit decimal.Decimal, tiers ...float64) (float64, bool) {
	for _, tier := range tiers {
		if credit.GreaterThanOrEqual(decimal.NewFromFloat(tier)) {
			return tier, true
		}
	}

	return 0, false
}

type entryIntent struct {
	day       civil.Date
	tradeType market.TradeType
	direction market.Direction
	short     market.OptionContract
	long      market.OptionContract
	quantity  int
	credit    decimal.Decimal
	perShare  decimal.Decimal
	closeDiff decimal.Decimal
	prevHigh  decimal.Decimal
	prevLow   decimal.Decimal
	now       time.Time
}

// placer turns an intent into a live position: it submits the spread, waits
// for the fill, persists the record and the position, and rests the
// buy-to-close safety order. Shared by the daily entry and the supplemental
// scanner, which produce the same position and record shapes.
type placer struct {
	cfg    config.Strategy
	symbol string
	orders broker.OrderExecutionService
	ledger broker.Ledger
	log    *slog.Logger
}

// place submits the spread and persists the outcome. A partial fill is
// persisted for reconciliation and surfaced, never silently accepted.
func (e placer) place(ctx context.Context, in entryIntent) error {
	orderID, err := e.orders.SubmitSpread(ctx, in.short, in.long, in.quantity, broker.SellToOpen, in.perShare)
	if err != nil {
		return fmt.Errorf("failed to submit spread order: %w", err)
	}

	state, err := e.awaitFill(ctx, orderID)
	if err != nil {
		return err
	}
	if state == broker.Rejected {
		e.log.Warn("spread order rejected", "order", string(orderID))
		return nil
	}

	recordID, err := e.ledger.Append(market.TradeRecord{
		Day:        in.day,
		Type:       in.tradeType,
		Direction:  in.direction,
		Legs:       market.SpreadLabel(in.short, in.long),
		CloseDiff:  in.closeDiff,
		OpenTime:   in.now,
		Quantity:   in.quantity,
		ShortDelta: in.short.Delta,
		LongDelta:  in.long.Delta,
		SellPrice:  in.credit,
	})
	if err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}

	position := market.Position{
		ID:          uuid.NewString(),
		RecordID:    recordID,
		Symbol:      e.symbol,
		Type:        in.tradeType,
		Direction:   in.direction,
		ShortLeg:    in.short,
		LongLeg:     in.long,
		Quantity:    in.quantity,
		EntryTime:   in.now,
		EntryCredit: in.credit,
		PrevDayHigh: in.prevHigh,
		PrevDayLow:  in.prevLow,
		Status:      market.StatusOpen,
	}

	if state == broker.PartialFill {
		position.Status = market.StatusReconcile
		if err := e.ledger.SavePosition(position); err != nil {
			return fmt.Errorf("failed to save partially filled position: %w", err)
		}

		return fmt.Errorf("order %s: %w", orderID, broker.ErrPartialFill)
	}

	closeID, err := e.orders.SubmitCloseOrder(ctx, position, decimal.NewFromFloat(e.cfg.CloseLimit))
	if err != nil {
		// The position is live either way; persist it so monitoring
		// picks it up, then surface the failure.
		e.log.Error("failed to rest safety close order", "error", err)
	} else {
		position.CloseOrderID = string(closeID)
	}

	if saveErr := e.ledger.SavePosition(position); saveErr != nil {
		return fmt.Errorf("failed to save position: %w", saveErr)
	}

	e.log.Info("spread opened",
		"type", string(in.tradeType),
		"direction", in.direction.String(),
		"legs", market.SpreadLabel(in.short, in.long),
		"quantity", in.quantity,
		"credit", in.credit.String())

	if err != nil {
		return fmt.Errorf("failed to rest safety close order: %w", err)
	}

	return nil
}

// awaitFill polls the order status until it leaves the pending state or the
// context expires.
func (e placer) awaitFill(ctx context.Context, id broker.OrderID) (broker.FillState, error) {
	for {
		state, err := e.orders.FillStatus(ctx, id)
		if err != nil {
			return state, fmt.Errorf("failed to check fill status of %s: %w", id, err)
		}
		if state != broker.FillPending {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return state, fmt.Errorf("order %s still pending: %w", id, ctx.Err())
		case <-time.After(e.cfg.FillPoll.Std()):
		}
	}
}
