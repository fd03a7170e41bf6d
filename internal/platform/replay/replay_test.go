package replay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTape(t *testing.T, start time.Time, minutes int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bars.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	fmt.Fprintln(f, "timestamp,open,high,low,close,volume")
	for i := 0; i < minutes; i++ {
		at := start.Add(time.Duration(i) * time.Minute)
		price := 600.0 + float64(i)*0.1
		fmt.Fprintf(f, "%d,%.2f,%.2f,%.2f,%.2f,100\n", at.Unix(), price, price+0.2, price-0.2, price+0.1)
	}

	return path
}

func newTestPlatform(t *testing.T, minutes int) (*ReplayPlatform, time.Time) {
	t.Helper()

	start := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	cfg := config.Replay{
		Data:        writeTape(t, start, minutes),
		Start:       start.Add(-time.Hour),
		End:         start.Add(24 * time.Hour),
		Report:      filepath.Join(t.TempDir(), "report.json"),
		StrikeStep:  5,
		DeltaSlope:  0.02,
		PremiumPer:  3.5,
		SpreadBasis: 0.05,
	}

	p, err := NewReplayPlatform(discardLog(), "SPY", cfg)
	require.NoError(t, err)
	return p, start
}

func TestReplayStep(t *testing.T) {
	p, start := newTestPlatform(t, 3)

	require.True(t, p.Step())
	assert.Equal(t, start.Add(time.Minute), p.Now())

	quote, err := p.LatestQuote(context.Background(), "SPY")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.NewFromFloat(600.1)), "price %s", quote.Price)
	assert.Equal(t, p.Now(), quote.Time)

	require.True(t, p.Step())
	require.True(t, p.Step())
	assert.False(t, p.Step())
}

func TestReplayHistoricalBars(t *testing.T) {
	p, start := newTestPlatform(t, 40)

	for i := 0; i < 35; i++ {
		require.True(t, p.Step())
	}

	bars, err := p.HistoricalBars(context.Background(), "SPY", 15*time.Minute, 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	// Two completed quarters plus the forming one.
	assert.Equal(t, start, bars[0].Time)
	assert.Equal(t, start.Add(15*time.Minute), bars[1].Time)
	assert.Equal(t, start.Add(30*time.Minute), bars[2].Time)
}

func TestReplaySafetyOrderFill(t *testing.T) {
	p, _ := newTestPlatform(t, 10)
	require.True(t, p.Step())

	chain, err := p.OptionChain(context.Background(), "SPY", civil.DateOf(p.Now()), market.Put)
	require.NoError(t, err)
	require.NotEmpty(t, chain)

	short := chain[0]
	long := chain[1]
	_, err = p.SubmitSpread(context.Background(), short, long, 10, broker.SellToOpen, short.Bid.Sub(long.Ask))
	require.NoError(t, err)

	// A close limit above the current spread cost fills immediately and
	// lands in the report.
	position := market.Position{ShortLeg: short, LongLeg: long, Quantity: 10}
	_, err = p.SubmitCloseOrder(context.Background(), position, decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.Len(t, p.report.report.Deals, 1)
}
