package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/clock"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/gyan21/heikenashi/internal/options"
	"github.com/gyan21/heikenashi/internal/pattern"
	"github.com/shopspring/decimal"
)

const patternInterval = 15 * time.Minute

// pendingClose is a submitted close whose ledger write has not landed yet.
// Retried on later ticks until it does; the order is never resubmitted.
type pendingClose struct {
	close market.TradeClose
	state market.QuantityState
}

// ExitMonitor closes an open position when the price breach, the time gate
// and the 3-candle pattern all hold on the same tick. The conditions are
// re-checked from scratch each tick, so monitoring resumes correctly from
// persisted positions after a restart.
type ExitMonitor struct {
	cfg      config.Strategy
	loc      *time.Location
	data     broker.MarketDataProvider
	orders   broker.OrderExecutionService
	ledger   broker.Ledger
	quantity *QuantityManager
	clock    clock.Clock
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string]pendingClose
}

func NewExitMonitor(
	cfg config.Strategy,
	loc *time.Location,
	data broker.MarketDataProvider,
	orders broker.OrderExecutionService,
	ledger broker.Ledger,
	quantity *QuantityManager,
	clk clock.Clock,
	log *slog.Logger,
) *ExitMonitor {
	return &ExitMonitor{
		cfg:      cfg,
		loc:      loc,
		data:     data,
		orders:   orders,
		ledger:   ledger,
		quantity: quantity,
		clock:    clk,
		log:      log,
		pending:  make(map[string]pendingClose),
	}
}

// Check evaluates one position for one tick. Supplemental positions ride to
// expiry behind their resting close orders and are never force-closed here.
func (m *ExitMonitor) Check(ctx context.Context, p market.Position) error {
	if p.Status != market.StatusOpen || p.Type == market.SupplementalTrade {
		return nil
	}

	if pc, ok := m.pendingFor(p.ID); ok {
		return m.finalize(p, pc)
	}

	now := m.clock.Now()
	if !m.cfg.MonitorStart.Reached(now, m.loc) {
		return nil
	}

	quote, err := m.data.LatestQuote(ctx, p.Symbol)
	if err != nil {
		return fmt.Errorf("failed to fetch quote for %s: %w", p.Symbol, err)
	}
	if err := quote.CheckFresh(now, m.cfg.Staleness.Std()); err != nil {
		return err
	}

	if !breached(p, quote.Price) {
		return nil
	}

	bars, err := m.data.HistoricalBars(ctx, p.Symbol, patternInterval, m.cfg.PatternBars+1)
	if err != nil {
		return fmt.Errorf("failed to fetch pattern bars: %w", err)
	}

	closed := market.CompletedBars(bars, patternInterval, now)
	matched, err := pattern.Matches(closed, pattern.ExitSequence(p.Direction))
	if err != nil {
		return err
	}
	if !matched {
		return nil
	}

	m.log.Info("exit conditions met",
		"position", p.ID,
		"direction", p.Direction.String(),
		"price", quote.Price.String())

	return m.close(ctx, p, now)
}

// breached reports whether the price moved against the position: below the
// previous day's low or the short strike for a bull spread, above the
// previous day's high or the short strike for a bear spread.
func breached(p market.Position, price decimal.Decimal) bool {
	if p.Direction == market.Bull {
		return price.LessThan(p.PrevDayLow) || price.LessThan(p.ShortLeg.Strike)
	}

	return price.GreaterThan(p.PrevDayHigh) || price.GreaterThan(p.ShortLeg.Strike)
}

func (m *ExitMonitor) close(ctx context.Context, p market.Position, now time.Time) error {
	chain, err := m.data.OptionChain(ctx, p.Symbol, p.ShortLeg.Expiry, p.ShortLeg.Right)
	if err != nil {
		return fmt.Errorf("failed to fetch chain for close pricing: %w", err)
	}

	short, err := findContract(chain, p.ShortLeg.Symbol)
	if err != nil {
		return err
	}

	long, err := findContract(chain, p.LongLeg.Symbol)
	if err != nil {
		return err
	}

	perShare := short.Ask.Sub(long.Bid)
	if _, err := m.orders.SubmitCloseOrder(ctx, p, perShare); err != nil {
		return fmt.Errorf("failed to submit close order for %s: %w", p.ID, err)
	}

	buyPrice := perShare.Mul(hundred)
	netPL := p.EntryCredit.Sub(buyPrice).Mul(decimal.NewFromInt(int64(p.Quantity)))

	label := market.Loss
	won := netPL.GreaterThanOrEqual(decimal.Zero)
	if won {
		label = market.Profit
	}

	pc := pendingClose{
		close: market.TradeClose{
			CloseTime: now,
			BuyPrice:  buyPrice,
			NetPL:     netPL,
			Label:     label,
		},
		state: m.quantity.Preview(won),
	}
	m.setPending(p.ID, pc)

	return m.finalize(p, pc)
}

// finalize commits a pending close. The sizing state is adopted only after
// the ledger write lands, so a retry can never count the same trade twice.
func (m *ExitMonitor) finalize(p market.Position, pc pendingClose) error {
	if err := m.ledger.FinalizeTrade(p.ID, p.RecordID, pc.close, pc.state); err != nil {
		return fmt.Errorf("failed to finalize trade %d: %w", p.RecordID, err)
	}

	m.quantity.Commit(pc.state)
	m.clearPending(p.ID)

	m.log.Info("position closed",
		"position", p.ID,
		"label", string(pc.close.Label),
		"net_pl", pc.close.NetPL.String(),
		"next_quantity", pc.state.Quantity)

	return nil
}

func (m *ExitMonitor) pendingFor(id string) (pendingClose, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pc, ok := m.pending[id]
	return pc, ok
}

func (m *ExitMonitor) setPending(id string, pc pendingClose) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[id] = pc
}

func (m *ExitMonitor) clearPending(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, id)
}

func findContract(chain []market.OptionContract, symbol string) (market.OptionContract, error) {
	for _, c := range chain {
		if c.Symbol == symbol {
			return c, nil
		}
	}

	return market.OptionContract{}, fmt.Errorf("contract %s missing from chain snapshot: %w", symbol, options.ErrNotFound)
}
