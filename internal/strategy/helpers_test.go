package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/shopspring/decimal"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockData struct {
	quote       market.Quote
	bars        map[time.Duration][]market.Bar
	chains      map[market.OptionRight][]market.OptionContract
	chainRights []market.OptionRight
}

func (m *mockData) LatestQuote(_ context.Context, symbol string) (market.Quote, error) {
	return m.quote, nil
}

func (m *mockData) HistoricalBars(_ context.Context, symbol string, interval time.Duration, count int) ([]market.Bar, error) {
	bars := m.bars[interval]
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}

	return bars, nil
}

func (m *mockData) OptionChain(_ context.Context, symbol string, expiry civil.Date, right market.OptionRight) ([]market.OptionContract, error) {
	m.chainRights = append(m.chainRights, right)
	return m.chains[right], nil
}

type spreadOrder struct {
	short    market.OptionContract
	long     market.OptionContract
	quantity int
	side     broker.Side
	limit    decimal.Decimal
}

type closeOrder struct {
	position market.Position
	limit    decimal.Decimal
}

type mockOrders struct {
	fill    broker.FillState
	spreads []spreadOrder
	closes  []closeOrder
}

func (m *mockOrders) SubmitSpread(_ context.Context, short, long market.OptionContract, quantity int, side broker.Side, limit decimal.Decimal) (broker.OrderID, error) {
	m.spreads = append(m.spreads, spreadOrder{short: short, long: long, quantity: quantity, side: side, limit: limit})
	return "spread-order", nil
}

func (m *mockOrders) SubmitCloseOrder(_ context.Context, p market.Position, limit decimal.Decimal) (broker.OrderID, error) {
	m.closes = append(m.closes, closeOrder{position: p, limit: limit})
	return "close-order", nil
}

func (m *mockOrders) FillStatus(_ context.Context, id broker.OrderID) (broker.FillState, error) {
	return m.fill, nil
}

type finalizedTrade struct {
	positionID string
	recordID   int64
	close      market.TradeClose
	state      market.QuantityState
}

type mockLedger struct {
	records          []market.TradeRecord
	positions        []market.Position
	finalized        []finalizedTrade
	lastMain         *market.TradeRecord
	outcomes         []bool
	state            market.QuantityState
	finalizeFailures int
}

func (m *mockLedger) Append(r market.TradeRecord) (int64, error) {
	r.ID = int64(len(m.records) + 1)
	m.records = append(m.records, r)
	return r.ID, nil
}

func (m *mockLedger) FinalizeTrade(positionID string, recordID int64, c market.TradeClose, qs market.QuantityState) error {
	if m.finalizeFailures > 0 {
		m.finalizeFailures--
		return errors.New("database is locked")
	}

	m.finalized = append(m.finalized, finalizedTrade{
		positionID: positionID,
		recordID:   recordID,
		close:      c,
		state:      qs,
	})
	return nil
}

func (m *mockLedger) SavePosition(p market.Position) error {
	m.positions = append(m.positions, p)
	return nil
}

func (m *mockLedger) UpdatePositionStatus(id string, status market.PositionStatus) error {
	for i := range m.positions {
		if m.positions[i].ID == id {
			m.positions[i].Status = status
		}
	}
	return nil
}

func (m *mockLedger) OpenPositions() ([]market.Position, error) {
	var open []market.Position
	for _, p := range m.positions {
		if p.Status == market.StatusOpen {
			open = append(open, p)
		}
	}
	return open, nil
}

func (m *mockLedger) TradeExistsForDay(day civil.Date, t market.TradeType) (bool, error) {
	for _, r := range m.records {
		if r.Day == day && r.Type == t {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) LastMainTrade() (*market.TradeRecord, error) {
	return m.lastMain, nil
}

func (m *mockLedger) LastNOutcomes(n int) ([]bool, error) {
	if len(m.outcomes) > n {
		return m.outcomes[len(m.outcomes)-n:], nil
	}
	return m.outcomes, nil
}

func (m *mockLedger) QuantityState() (market.QuantityState, error) {
	return m.state, nil
}
