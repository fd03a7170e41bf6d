// Package broker declares the external collaborator contracts the strategy
// consumes: market data, order execution, and the trade ledger.
package broker

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
)

// ErrPartialFill means one spread leg filled and the other did not. The
// position must be reconciled before any further automated action; it is
// never silently accepted as a naked position.
var ErrPartialFill = errors.New("spread order partially filled")

// MarketDataProvider serves quotes, historical bars and chain snapshots.
// HistoricalBars returns bars oldest first and may include the currently
// forming period's bar; callers that need closed candles drop it with
// market.CompletedBars. Implementations bound every call with the caller's
// context so a slow feed cannot stall the monitoring loop.
type MarketDataProvider interface {
	LatestQuote(ctx context.Context, symbol string) (market.Quote, error)
	HistoricalBars(ctx context.Context, symbol string, interval time.Duration, count int) ([]market.Bar, error)
	OptionChain(ctx context.Context, symbol string, expiry civil.Date, right market.OptionRight) ([]market.OptionContract, error)
}

type OrderID string

type FillState int

const (
	FillPending FillState = iota
	Filled
	PartialFill
	Rejected
)

func (s FillState) String() string {
	switch s {
	case FillPending:
		return "pending"
	case Filled:
		return "filled"
	case PartialFill:
		return "partial"
	default:
		return "rejected"
	}
}

type Side int

const (
	SellToOpen Side = iota
	BuyToClose
)

// OrderExecutionService submits both legs of a vertical spread as one logical
// order.
type OrderExecutionService interface {
	SubmitSpread(ctx context.Context, short, long market.OptionContract, quantity int, side Side, limit decimal.Decimal) (OrderID, error)
	SubmitCloseOrder(ctx context.Context, p market.Position, limit decimal.Decimal) (OrderID, error)
	FillStatus(ctx context.Context, id OrderID) (FillState, error)
}

// Ledger is the append-only record keeper. Writes are all-or-nothing: a trade
// close and its sizing outcome commit in one transaction.
type Ledger interface {
	Append(r market.TradeRecord) (int64, error)
	FinalizeTrade(positionID string, recordID int64, c market.TradeClose, qs market.QuantityState) error
	SavePosition(p market.Position) error
	UpdatePositionStatus(id string, status market.PositionStatus) error
	OpenPositions() ([]market.Position, error)
	TradeExistsForDay(day civil.Date, t market.TradeType) (bool, error)
	LastMainTrade() (*market.TradeRecord, error)
	LastNOutcomes(n int) ([]bool, error)
	QuantityState() (market.QuantityState, error)
}
