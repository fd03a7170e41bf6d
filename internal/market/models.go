package market

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// ErrStaleData marks a quote or bar older than the allowed staleness bound.
// Callers skip the tick and retry on the next one.
var ErrStaleData = errors.New("market data is stale")

type Quote struct {
	Price decimal.Decimal
	Time  time.Time
}

// CheckFresh returns ErrStaleData when the quote is older than bound at now.
func (q Quote) CheckFresh(now time.Time, bound time.Duration) error {
	if now.Sub(q.Time) > bound {
		return fmt.Errorf("quote from %s at tick %s: %w", q.Time.Format(time.RFC3339), now.Format(time.RFC3339), ErrStaleData)
	}

	return nil
}

type OptionRight string

const (
	Call OptionRight = "C"
	Put  OptionRight = "P"
)

// OptionContract is a single chain entry. Snapshots are fetched fresh per
// selection call and never cached across ticks.
type OptionContract struct {
	Symbol string
	Strike decimal.Decimal
	Right  OptionRight
	Delta  float64
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Expiry civil.Date
}

type Direction int

const (
	Bull Direction = iota
	Bear
)

func (d Direction) String() string {
	if d == Bull {
		return "bull"
	}

	return "bear"
}

// Right returns the option right a credit spread uses for the direction:
// puts for bull spreads, calls for bear spreads.
func (d Direction) Right() OptionRight {
	if d == Bull {
		return Put
	}

	return Call
}

type TradeType string

const (
	MainTrade         TradeType = "main"
	SupplementalTrade TradeType = "supplemental"
)

type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
	// StatusReconcile marks a position with a partial fill on one leg.
	// Automated handling stops until it is resolved.
	StatusReconcile PositionStatus = "RECONCILE"
)

type Position struct {
	ID           string
	RecordID     int64
	Symbol       string
	Type         TradeType
	Direction    Direction
	ShortLeg     OptionContract
	LongLeg      OptionContract
	Quantity     int
	EntryTime    time.Time
	EntryCredit  decimal.Decimal // dollars per contract
	PrevDayHigh  decimal.Decimal
	PrevDayLow   decimal.Decimal
	Status       PositionStatus
	CloseOrderID string
}

type Label string

const (
	Profit Label = "PROFIT"
	Loss   Label = "LOSS"
)

// TradeRecord is the append-only ledger row for one spread trade.
type TradeRecord struct {
	ID         int64
	Day        civil.Date
	Type       TradeType
	Direction  Direction
	Legs       string          // e.g. "C620/C630"
	CloseDiff  decimal.Decimal // dailyClosePrice - dailyCloseHA
	OpenTime   time.Time
	CloseTime  time.Time
	Quantity   int
	ShortDelta float64
	LongDelta  float64
	SellPrice  decimal.Decimal // credit collected, dollars per contract
	BuyPrice   decimal.Decimal // paid to close, dollars per contract
	NetPL      decimal.Decimal
	Label      Label
}

// TradeClose carries the fields finalized when a position exits.
type TradeClose struct {
	CloseTime time.Time
	BuyPrice  decimal.Decimal
	NetPL     decimal.Decimal
	Label     Label
}

// QuantityState is the persisted sizing record: the next trade's contract
// count plus the sliding window of recent outcomes.
type QuantityState struct {
	Quantity int
	Outcomes []bool
}

// SpreadLabel renders the legs the way the trade log shows them, short leg
// first: C620/C630, P580/P570.
func SpreadLabel(short, long OptionContract) string {
	return fmt.Sprintf("%s%d/%s%d", short.Right, short.Strike.IntPart(), long.Right, long.Strike.IntPart())
}
