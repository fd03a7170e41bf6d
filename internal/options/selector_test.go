package options

import (
	"fmt"
	"testing"

	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contract(symbol string, strike float64, right market.OptionRight, delta float64) market.OptionContract {
	return market.OptionContract{
		Symbol: symbol,
		Strike: decimal.NewFromFloat(strike),
		Right:  right,
		Delta:  delta,
	}
}

var ladder = []float64{0.24, 0.23, 0.22, 0.21, 0.20}

func TestFindByDelta(t *testing.T) {
	tbl := []struct {
		chain   []market.OptionContract
		targets []float64
		out     string
	}{
		{
			// Ladder walks 0.24 down; first target with a candidate
			// within tolerance wins.
			chain: []market.OptionContract{
				contract("c19", 590, market.Put, -0.19),
				contract("c22", 600, market.Put, -0.22),
				contract("c26", 610, market.Put, -0.26),
			},
			targets: ladder,
			out:     "c22",
		},
		{
			chain: []market.OptionContract{
				contract("c24", 615, market.Call, 0.24),
				contract("c20", 630, market.Call, 0.20),
			},
			targets: ladder,
			out:     "c24",
		},
		{
			// Equal distance from the target: the higher delta
			// magnitude wins.
			chain: []market.OptionContract{
				contract("c23", 620, market.Call, 0.23),
				contract("c25", 615, market.Call, 0.25),
			},
			targets: ladder,
			out:     "c25",
		},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			s := Selector{Tolerance: 0.01}
			got, err := s.FindByDelta(c.chain, c.targets)
			require.NoError(t, err)
			assert.Equal(t, c.out, got.Symbol)
		})
	}
}

func TestFindByDelta_NotFound(t *testing.T) {
	chain := []market.OptionContract{
		contract("c10", 580, market.Put, -0.10),
		contract("c40", 620, market.Put, -0.40),
	}

	s := Selector{Tolerance: 0.01}
	_, err := s.FindByDelta(chain, ladder)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocateLongLeg(t *testing.T) {
	width := decimal.NewFromInt(10)

	tbl := []struct {
		chain []market.OptionContract
		short market.OptionContract
		out   string
	}{
		{
			// Exact strike listed: put long leg sits width below.
			chain: []market.OptionContract{
				contract("p580", 580, market.Put, -0.12),
				contract("p590", 590, market.Put, -0.17),
				contract("p600", 600, market.Put, -0.22),
			},
			short: contract("p600", 600, market.Put, -0.22),
			out:   "p590",
		},
		{
			// 590 missing: the nearest strike further out of the
			// money is used, never one inside the width.
			chain: []market.OptionContract{
				contract("p585", 585, market.Put, -0.13),
				contract("p595", 595, market.Put, -0.19),
				contract("p600", 600, market.Put, -0.22),
			},
			short: contract("p600", 600, market.Put, -0.22),
			out:   "p585",
		},
		{
			chain: []market.OptionContract{
				contract("c620", 620, market.Call, 0.22),
				contract("c630", 630, market.Call, 0.15),
				contract("c640", 640, market.Call, 0.09),
			},
			short: contract("c620", 620, market.Call, 0.22),
			out:   "c630",
		},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			got, err := LocateLongLeg(c.chain, c.short, width)
			require.NoError(t, err)
			assert.Equal(t, c.out, got.Symbol)
		})
	}
}

func TestLocateLongLeg_NotFound(t *testing.T) {
	chain := []market.OptionContract{
		contract("p600", 600, market.Put, -0.22),
		contract("p595", 595, market.Put, -0.19),
	}

	_, err := LocateLongLeg(chain, contract("p600", 600, market.Put, -0.22), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrNotFound)
}
