// Package alpaca adapts the Alpaca trading and market data APIs to the
// strategy's collaborator contracts.
package alpaca

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

type AlpacaPlatform struct {
	api *alpacaApi
}

func NewAlpacaPlatform(cfg config.Alpaca) (*AlpacaPlatform, error) {
	return &AlpacaPlatform{api: newAlpacaApi(cfg)}, nil
}

func (ap *AlpacaPlatform) LatestQuote(ctx context.Context, symbol string) (market.Quote, error) {
	t, err := ap.api.GetLatestTrade(symbol)
	if err != nil {
		return market.Quote{}, fmt.Errorf("failed to get latest trade: %w", err)
	}

	return market.Quote{
		Price: decimal.NewFromFloat(t.Price),
		Time:  t.Timestamp,
	}, nil
}

func (ap *AlpacaPlatform) HistoricalBars(ctx context.Context, symbol string, interval time.Duration, count int) ([]market.Bar, error) {
	tf := marketdata.OneDay
	if interval < 24*time.Hour {
		tf = marketdata.NewTimeFrame(int(interval/time.Minute), marketdata.Min)
	}

	// Generous lookback so weekends and holidays still leave enough bars.
	lookback := time.Duration(count)*interval*4 + 72*time.Hour
	bars, err := ap.api.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     time.Now().Add(-lookback),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars: %w", err)
	}

	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}

	out := make([]market.Bar, len(bars))
	for i, b := range bars {
		out[i] = market.Bar{
			Time:   b.Timestamp,
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: decimal.NewFromInt(int64(b.Volume)),
		}
	}

	return out, nil
}

func (ap *AlpacaPlatform) OptionChain(ctx context.Context, symbol string, expiry civil.Date, right market.OptionRight) ([]market.OptionContract, error) {
	optType := marketdata.Call
	if right == market.Put {
		optType = marketdata.Put
	}

	snapshots, err := ap.api.GetOptionChain(symbol, marketdata.GetOptionChainRequest{
		Type:           optType,
		ExpirationDate: expiry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get option chain: %w", err)
	}

	var chain []market.OptionContract
	for occ, s := range snapshots {
		// Contracts without greeks or a live quote cannot be selected.
		if s.Greeks == nil || s.LatestQuote == nil {
			continue
		}

		strike, err := occStrike(occ)
		if err != nil {
			return nil, err
		}

		chain = append(chain, market.OptionContract{
			Symbol: occ,
			Strike: strike,
			Right:  right,
			Delta:  s.Greeks.Delta,
			Bid:    decimal.NewFromFloat(s.LatestQuote.BidPrice),
			Ask:    decimal.NewFromFloat(s.LatestQuote.AskPrice),
			Expiry: expiry,
		})
	}

	return chain, nil
}

// occStrike extracts the strike from an OCC option symbol, where the last 8
// digits carry the strike in thousandths: SPY260829C00620000 -> 620.
func occStrike(symbol string) (decimal.Decimal, error) {
	if len(symbol) < 9 {
		return decimal.Decimal{}, fmt.Errorf("malformed option symbol: %s", symbol)
	}

	milli, err := strconv.ParseInt(symbol[len(symbol)-8:], 10, 64)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("malformed option symbol %s: %w", symbol, err)
	}

	return decimal.NewFromInt(milli).Div(decimal.NewFromInt(1000)), nil
}

func (ap *AlpacaPlatform) SubmitSpread(ctx context.Context, short, long market.OptionContract, quantity int, side broker.Side, limit decimal.Decimal) (broker.OrderID, error) {
	var legs []alpaca.Leg
	// Alpaca prices multi-leg limit orders from the taker's view: a net
	// credit is a negative limit.
	price := limit
	if side == broker.SellToOpen {
		price = limit.Neg()
		legs = []alpaca.Leg{
			{Symbol: short.Symbol, Side: alpaca.Sell, PositionIntent: alpaca.SellToOpen, RatioQty: one},
			{Symbol: long.Symbol, Side: alpaca.Buy, PositionIntent: alpaca.BuyToOpen, RatioQty: one},
		}
	} else {
		legs = []alpaca.Leg{
			{Symbol: short.Symbol, Side: alpaca.Buy, PositionIntent: alpaca.BuyToClose, RatioQty: one},
			{Symbol: long.Symbol, Side: alpaca.Sell, PositionIntent: alpaca.SellToClose, RatioQty: one},
		}
	}

	qty := decimal.NewFromInt(int64(quantity))
	ord, err := ap.api.PlaceOrder(alpaca.PlaceOrderRequest{
		Qty:         &qty,
		Type:        alpaca.Limit,
		LimitPrice:  &price,
		TimeInForce: alpaca.Day,
		OrderClass:  alpaca.MLeg,
		Legs:        legs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to place spread order: %w", err)
	}

	return broker.OrderID(ord.ID), nil
}

func (ap *AlpacaPlatform) SubmitCloseOrder(ctx context.Context, p market.Position, limit decimal.Decimal) (broker.OrderID, error) {
	return ap.SubmitSpread(ctx, p.ShortLeg, p.LongLeg, p.Quantity, broker.BuyToClose, limit)
}

func (ap *AlpacaPlatform) FillStatus(ctx context.Context, id broker.OrderID) (broker.FillState, error) {
	ord, err := ap.api.GetOrder(string(id))
	if err != nil {
		return broker.FillPending, fmt.Errorf("failed to get order state: %w", err)
	}

	switch ord.Status {
	case "filled":
		return broker.Filled, nil
	case "partially_filled":
		return broker.PartialFill, nil
	case "canceled", "expired", "rejected":
		return broker.Rejected, nil
	default:
		return broker.FillPending, nil
	}
}
