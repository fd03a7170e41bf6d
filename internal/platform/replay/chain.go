package replay

import (
	"fmt"
	"math"

	"cloud.google.com/go/civil"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
)

// chainModel synthesizes option chains around the current underlying price.
// Delta decays linearly with distance from the money and premium scales with
// delta, which keeps the delta ladder and premium tiers meaningful without
// recorded chain data.
type chainModel struct {
	symbol string
	cfg    config.Replay
}

const chainSpan = 30 // strikes generated on each side of the money

func (m chainModel) chain(price decimal.Decimal, expiry civil.Date, right market.OptionRight) []market.OptionContract {
	step := decimal.NewFromFloat(m.cfg.StrikeStep)
	atm := price.Div(step).Round(0).Mul(step)

	contracts := make([]market.OptionContract, 0, 2*chainSpan+1)
	for i := -chainSpan; i <= chainSpan; i++ {
		strike := atm.Add(step.Mul(decimal.NewFromInt(int64(i))))
		if strike.Sign() <= 0 {
			continue
		}

		bid, ask := m.priceAt(price, strike, right)
		contracts = append(contracts, market.OptionContract{
			Symbol: occSymbol(m.symbol, expiry, right, strike),
			Strike: strike,
			Right:  right,
			Delta:  m.delta(price, strike, right),
			Bid:    bid,
			Ask:    ask,
			Expiry: expiry,
		})
	}

	return contracts
}

// delta is signed the way chains report it: negative for puts.
func (m chainModel) delta(price, strike decimal.Decimal, right market.OptionRight) float64 {
	otm, _ := otmDistance(price, strike, right).Float64()
	magnitude := 0.5 - m.cfg.DeltaSlope*otm
	magnitude = math.Min(0.98, math.Max(0.01, magnitude))

	if right == market.Put {
		return -magnitude
	}

	return magnitude
}

func (m chainModel) priceAt(price, strike decimal.Decimal, right market.OptionRight) (bid, ask decimal.Decimal) {
	magnitude := math.Abs(m.delta(price, strike, right))
	mid := decimal.NewFromFloat(m.cfg.PremiumPer * magnitude)
	basis := decimal.NewFromFloat(m.cfg.SpreadBasis)

	bid = mid.Mul(decimal.NewFromInt(1).Sub(basis))
	ask = mid.Mul(decimal.NewFromInt(1).Add(basis))
	return bid, ask
}

// otmDistance is how far the strike sits out of the money; negative means in
// the money.
func otmDistance(price, strike decimal.Decimal, right market.OptionRight) decimal.Decimal {
	if right == market.Put {
		return price.Sub(strike)
	}

	return strike.Sub(price)
}

// occSymbol renders the standard OCC code: root + YYMMDD + right + strike in
// thousandths, e.g. SPY260829P00580000.
func occSymbol(root string, expiry civil.Date, right market.OptionRight, strike decimal.Decimal) string {
	return fmt.Sprintf("%s%02d%02d%02d%s%08d",
		root, expiry.Year%100, int(expiry.Month), expiry.Day,
		right, strike.Mul(decimal.NewFromInt(1000)).IntPart())
}
