package replay

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/gyan21/heikenashi/internal/options"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel() chainModel {
	return chainModel{
		symbol: "SPY",
		cfg: config.Replay{
			StrikeStep:  5,
			DeltaSlope:  0.02,
			PremiumPer:  3.5,
			SpreadBasis: 0.05,
		},
	}
}

func TestChain(t *testing.T) {
	m := testModel()
	expiry := civil.Date{Year: 2026, Month: time.August, Day: 28}
	price := decimal.NewFromInt(600)

	chain := m.chain(price, expiry, market.Put)
	require.NotEmpty(t, chain)

	for _, c := range chain {
		assert.Equal(t, market.Put, c.Right)
		assert.Negative(t, c.Delta, "put delta for %s", c.Symbol)
		assert.True(t, c.Bid.LessThan(c.Ask), "%s bid %s ask %s", c.Symbol, c.Bid, c.Ask)
		assert.Equal(t, expiry, c.Expiry)
	}

	// Delta magnitude shrinks as puts move further out of the money, so
	// the ladder always has something to land on.
	selector := options.Selector{Tolerance: 0.01}
	short, err := selector.FindByDelta(chain, []float64{0.24, 0.23, 0.22, 0.21, 0.20})
	require.NoError(t, err)
	assert.True(t, short.Strike.LessThan(price))

	long, err := options.LocateLongLeg(chain, short, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, long.Strike.Equal(short.Strike.Sub(decimal.NewFromInt(10))))
}

func TestOccSymbol(t *testing.T) {
	expiry := civil.Date{Year: 2026, Month: time.August, Day: 28}

	got := occSymbol("SPY", expiry, market.Put, decimal.NewFromInt(580))
	assert.Equal(t, "SPY260828P00580000", got)

	got = occSymbol("SPY", expiry, market.Call, decimal.NewFromFloat(622.5))
	assert.Equal(t, "SPY260828C00622500", got)
}
