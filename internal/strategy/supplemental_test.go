package strategy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/clock"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bullReentryBars yields Red-Red-Green, the gate for a follow-up bull entry.
func bullReentryBars(now time.Time) []market.Bar {
	return []market.Bar{
		patternBar(now.Add(-55*time.Minute), 602, 601),
		patternBar(now.Add(-40*time.Minute), 601, 600),
		patternBar(now.Add(-25*time.Minute), 600, 603),
		patternBar(now.Add(-10*time.Minute), 603, 604),
	}
}

func newScannerFixture(lastMain *market.TradeRecord, bars []market.Bar, at time.Time) (*SupplementalScanner, *mockOrders, *mockLedger) {
	data := &mockData{
		bars: map[time.Duration][]market.Bar{
			15 * time.Minute: bars,
			24 * time.Hour:   bullDailyBars(),
		},
		chains: map[market.OptionRight][]market.OptionContract{
			market.Put:  putChain(),
			market.Call: callChain(),
		},
	}
	orders := &mockOrders{fill: broker.Filled}
	ledger := &mockLedger{lastMain: lastMain}
	cfg := config.DefaultStrategy()

	scanner := NewSupplementalScanner(cfg, "SPY", time.UTC, data, orders, ledger, &clock.Fixed{Time: at}, discardLog())
	return scanner, orders, ledger
}

func mainTrade(day civil.Date, d market.Direction, quantity int) *market.TradeRecord {
	return &market.TradeRecord{
		ID:        1,
		Day:       day,
		Type:      market.MainTrade,
		Direction: d,
		Quantity:  quantity,
	}
}

func TestScan_OpensFollowUpSpread(t *testing.T) {
	now := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)
	yesterday := civil.Date{Year: 2026, Month: time.August, Day: 27}

	scanner, orders, ledger := newScannerFixture(mainTrade(yesterday, market.Bull, 30), bullReentryBars(now), now)
	require.NoError(t, scanner.Scan(context.Background()))

	require.Len(t, orders.spreads, 1)
	spread := orders.spreads[0]
	assert.Equal(t, "p600", spread.short.Symbol)
	assert.Equal(t, 10, spread.quantity)

	require.Len(t, ledger.records, 1)
	assert.Equal(t, market.SupplementalTrade, ledger.records[0].Type)
	assert.Equal(t, market.Bull, ledger.records[0].Direction)

	require.Len(t, ledger.positions, 1)
	assert.Equal(t, market.SupplementalTrade, ledger.positions[0].Type)
}

func TestScan_NoAction(t *testing.T) {
	now := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)
	today := civil.DateOf(now)
	yesterday := today.AddDays(-1)

	tbl := []struct {
		name     string
		lastMain *market.TradeRecord
		bars     []market.Bar
		at       time.Time
	}{
		{
			name: "no_main_trade",
			bars: bullReentryBars(now),
			at:   now,
		},
		{
			name:     "main_trade_today",
			lastMain: mainTrade(today, market.Bull, 30),
			bars:     bullReentryBars(now),
			at:       now,
		},
		{
			name:     "main_trade_too_old",
			lastMain: mainTrade(today.AddDays(-5), market.Bull, 30),
			bars:     bullReentryBars(now),
			at:       now,
		},
		{
			name:     "pattern_not_confirmed",
			lastMain: mainTrade(yesterday, market.Bull, 30),
			bars:     bullExitBars(now),
			at:       now,
		},
		{
			name:     "outside_market_hours",
			lastMain: mainTrade(yesterday, market.Bull, 30),
			bars:     bullReentryBars(now),
			at:       time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC),
		},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d_%s", i, c.name), func(t *testing.T) {
			scanner, orders, _ := newScannerFixture(c.lastMain, c.bars, c.at)
			require.NoError(t, scanner.Scan(context.Background()))
			assert.Empty(t, orders.spreads)
		})
	}
}

func TestScan_OncePerDay(t *testing.T) {
	now := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)
	yesterday := civil.Date{Year: 2026, Month: time.August, Day: 27}

	scanner, orders, _ := newScannerFixture(mainTrade(yesterday, market.Bull, 30), bullReentryBars(now), now)
	require.NoError(t, scanner.Scan(context.Background()))
	require.NoError(t, scanner.Scan(context.Background()))

	assert.Len(t, orders.spreads, 1)
}

func TestSupplementalQuantity(t *testing.T) {
	tbl := []struct {
		main int
		out  int
	}{
		{main: 30, out: 10},
		{main: 40, out: 13},
		{main: 2, out: 1},
		{main: 3, out: 1},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			assert.Equal(t, c.out, supplementalQuantity(c.main))
		})
	}
}
