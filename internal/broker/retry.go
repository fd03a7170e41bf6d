package broker

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cenkalti/backoff/v4"
	"github.com/gyan21/heikenashi/internal/market"
)

// RetryingData wraps a MarketDataProvider with bounded exponential backoff.
// A call that keeps failing gives up within MaxElapsed so the tick is skipped
// rather than stalled; the next tick starts fresh.
type RetryingData struct {
	Inner      MarketDataProvider
	MaxElapsed time.Duration
}

func (r *RetryingData) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = r.MaxElapsed
	return backoff.WithContext(b, ctx)
}

func (r *RetryingData) LatestQuote(ctx context.Context, symbol string) (market.Quote, error) {
	return backoff.RetryWithData(func() (market.Quote, error) {
		return r.Inner.LatestQuote(ctx, symbol)
	}, r.policy(ctx))
}

func (r *RetryingData) HistoricalBars(ctx context.Context, symbol string, interval time.Duration, count int) ([]market.Bar, error) {
	return backoff.RetryWithData(func() ([]market.Bar, error) {
		return r.Inner.HistoricalBars(ctx, symbol, interval, count)
	}, r.policy(ctx))
}

func (r *RetryingData) OptionChain(ctx context.Context, symbol string, expiry civil.Date, right market.OptionRight) ([]market.OptionContract, error) {
	return backoff.RetryWithData(func() ([]market.OptionContract, error) {
		return r.Inner.OptionChain(ctx, symbol, expiry, right)
	}, r.policy(ctx))
}
