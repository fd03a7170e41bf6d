package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()

	l, err := OpenSQLite(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	return l
}

func testRecord(day civil.Date, tradeType market.TradeType) market.TradeRecord {
	return market.TradeRecord{
		Day:        day,
		Type:       tradeType,
		Direction:  market.Bull,
		Legs:       "P600/P590",
		CloseDiff:  decimal.NewFromFloat(3.25),
		OpenTime:   time.Date(2026, 8, 28, 15, 57, 0, 0, time.UTC),
		Quantity:   30,
		ShortDelta: -0.22,
		LongDelta:  -0.12,
		SellPrice:  decimal.NewFromInt(65),
	}
}

func testPosition(id string, recordID int64) market.Position {
	return market.Position{
		ID:       id,
		RecordID: recordID,
		Symbol:   "SPY",
		Type:     market.MainTrade,
		ShortLeg: market.OptionContract{
			Symbol: "p600",
			Strike: decimal.NewFromInt(600),
			Right:  market.Put,
			Delta:  -0.22,
			Bid:    decimal.NewFromFloat(0.80),
			Ask:    decimal.NewFromFloat(0.85),
			Expiry: civil.Date{Year: 2026, Month: time.August, Day: 28},
		},
		LongLeg: market.OptionContract{
			Symbol: "p590",
			Strike: decimal.NewFromInt(590),
			Right:  market.Put,
			Delta:  -0.12,
			Expiry: civil.Date{Year: 2026, Month: time.August, Day: 28},
		},
		Quantity:    30,
		EntryTime:   time.Date(2026, 8, 28, 15, 57, 0, 0, time.UTC),
		EntryCredit: decimal.NewFromInt(65),
		PrevDayHigh: decimal.NewFromInt(612),
		PrevDayLow:  decimal.NewFromInt(596),
		Status:      market.StatusOpen,
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	l := openTestLedger(t)
	day := civil.Date{Year: 2026, Month: time.August, Day: 28}

	recordID, err := l.Append(testRecord(day, market.MainTrade))
	require.NoError(t, err)

	require.NoError(t, l.SavePosition(testPosition("pos-1", recordID)))

	open, err := l.OpenPositions()
	require.NoError(t, err)
	require.Len(t, open, 1)

	got := open[0]
	assert.Equal(t, "pos-1", got.ID)
	assert.Equal(t, recordID, got.RecordID)
	assert.Equal(t, market.Bull, got.Direction)
	assert.Equal(t, "p600", got.ShortLeg.Symbol)
	assert.True(t, got.ShortLeg.Strike.Equal(decimal.NewFromInt(600)))
	assert.True(t, got.EntryCredit.Equal(decimal.NewFromInt(65)))
	assert.True(t, got.PrevDayLow.Equal(decimal.NewFromInt(596)))

	exists, err := l.TradeExistsForDay(day, market.MainTrade)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = l.TradeExistsForDay(day, market.SupplementalTrade)
	require.NoError(t, err)
	assert.False(t, exists)

	last, err := l.LastMainTrade()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, day, last.Day)
	assert.Equal(t, market.Bull, last.Direction)
	assert.Equal(t, 30, last.Quantity)
}

func TestLedgerFinalizeTrade(t *testing.T) {
	l := openTestLedger(t)
	day := civil.Date{Year: 2026, Month: time.August, Day: 28}

	recordID, err := l.Append(testRecord(day, market.MainTrade))
	require.NoError(t, err)
	require.NoError(t, l.SavePosition(testPosition("pos-1", recordID)))

	err = l.FinalizeTrade("pos-1", recordID, market.TradeClose{
		CloseTime: time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC),
		BuyPrice:  decimal.NewFromInt(90),
		NetPL:     decimal.NewFromInt(-750),
		Label:     market.Loss,
	}, market.QuantityState{Quantity: 30, Outcomes: []bool{false}})
	require.NoError(t, err)

	// The close, the position status, the outcome and the sizing state
	// all land together.
	open, err := l.OpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)

	outcomes, err := l.LastNOutcomes(10)
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, outcomes)

	state, err := l.QuantityState()
	require.NoError(t, err)
	assert.Equal(t, 30, state.Quantity)
	assert.Equal(t, []bool{false}, state.Outcomes)
}

func TestLedgerOutcomeOrder(t *testing.T) {
	l := openTestLedger(t)
	day := civil.Date{Year: 2026, Month: time.August, Day: 24}

	results := []bool{true, false, true, true}
	for i, won := range results {
		recordID, err := l.Append(testRecord(day.AddDays(i), market.MainTrade))
		require.NoError(t, err)
		require.NoError(t, l.SavePosition(testPosition(string(rune('a'+i)), recordID)))

		label := market.Loss
		if won {
			label = market.Profit
		}

		err = l.FinalizeTrade(string(rune('a'+i)), recordID, market.TradeClose{
			CloseTime: time.Date(2026, 8, 24+i, 14, 0, 0, 0, time.UTC),
			Label:     label,
			BuyPrice:  decimal.Zero,
			NetPL:     decimal.Zero,
		}, market.QuantityState{Quantity: 30})
		require.NoError(t, err)
	}

	// Oldest first, truncated from the old end.
	outcomes, err := l.LastNOutcomes(3)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true}, outcomes)
}

func TestLedgerEmptyState(t *testing.T) {
	l := openTestLedger(t)

	last, err := l.LastMainTrade()
	require.NoError(t, err)
	assert.Nil(t, last)

	state, err := l.QuantityState()
	require.NoError(t, err)
	assert.Zero(t, state.Quantity)
	assert.Empty(t, state.Outcomes)

	open, err := l.OpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestLedgerUpdatePositionStatus(t *testing.T) {
	l := openTestLedger(t)
	day := civil.Date{Year: 2026, Month: time.August, Day: 28}

	recordID, err := l.Append(testRecord(day, market.MainTrade))
	require.NoError(t, err)
	require.NoError(t, l.SavePosition(testPosition("pos-1", recordID)))

	require.NoError(t, l.UpdatePositionStatus("pos-1", market.StatusReconcile))

	open, err := l.OpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)
}
