// Package ledger persists trade records, positions and sizing state in
// SQLite. It is the append-only record keeper behind the strategy's feedback
// loop and the source of truth when monitoring resumes after a restart.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/gyan21/heikenashi/internal/market"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const defaultStrategyKey = "heikin-ashi-credit-spread"

type SQLiteLedger struct {
	db  *sql.DB
	key string
}

func OpenSQLite(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// Serialized writes per position come for free with a single writer.
	db.SetMaxOpenConns(1)

	l := &SQLiteLedger{db: db, key: defaultStrategyKey}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return l, nil
}

func (l *SQLiteLedger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trade_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day TEXT NOT NULL,
		trade_type TEXT NOT NULL,
		direction TEXT NOT NULL,
		legs TEXT NOT NULL,
		close_diff TEXT NOT NULL,
		open_time DATETIME NOT NULL,
		close_time DATETIME,
		quantity INTEGER NOT NULL,
		short_delta REAL NOT NULL,
		long_delta REAL NOT NULL,
		sell_price TEXT NOT NULL,
		buy_price TEXT,
		net_pl TEXT,
		label TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		record_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		trade_type TEXT NOT NULL,
		direction TEXT NOT NULL,
		short_leg TEXT NOT NULL,
		long_leg TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_time DATETIME NOT NULL,
		entry_credit TEXT NOT NULL,
		prev_day_high TEXT NOT NULL,
		prev_day_low TEXT NOT NULL,
		status TEXT NOT NULL,
		close_order_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (record_id) REFERENCES trade_records(id)
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id INTEGER NOT NULL,
		won INTEGER NOT NULL,
		recorded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quantity_state (
		strategy TEXT PRIMARY KEY,
		quantity INTEGER NOT NULL,
		outcomes TEXT NOT NULL,
		updated_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_records_day ON trade_records(day, trade_type);
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
	CREATE INDEX IF NOT EXISTS idx_outcomes_record ON outcomes(record_id);
	`

	_, err := l.db.Exec(schema)
	return err
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) Append(r market.TradeRecord) (int64, error) {
	res, err := l.db.Exec(`
		INSERT INTO trade_records
			(day, trade_type, direction, legs, close_diff, open_time,
			 quantity, short_delta, long_delta, sell_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Day.String(), string(r.Type), r.Direction.String(), r.Legs,
		r.CloseDiff.String(), r.OpenTime, r.Quantity, r.ShortDelta,
		r.LongDelta, r.SellPrice.String())
	if err != nil {
		return 0, fmt.Errorf("failed to append trade record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read trade record id: %w", err)
	}

	return id, nil
}

// FinalizeTrade commits the close fields, the position's terminal status, the
// win/loss outcome and the new sizing state in one transaction, so a restart
// mid-write can never lose an outcome or double-count one.
func (l *SQLiteLedger) FinalizeTrade(positionID string, recordID int64, c market.TradeClose, qs market.QuantityState) (err error) {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin finalize transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`
		UPDATE trade_records
		SET close_time = ?, buy_price = ?, net_pl = ?, label = ?
		WHERE id = ?`,
		c.CloseTime, c.BuyPrice.String(), c.NetPL.String(), string(c.Label), recordID)
	if err != nil {
		return fmt.Errorf("failed to finalize trade record %d: %w", recordID, err)
	}

	_, err = tx.Exec(`
		UPDATE positions SET status = ? WHERE id = ?`,
		string(market.StatusClosed), positionID)
	if err != nil {
		return fmt.Errorf("failed to close position %s: %w", positionID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO outcomes (record_id, won, recorded_at) VALUES (?, ?, ?)`,
		recordID, c.Label == market.Profit, c.CloseTime)
	if err != nil {
		return fmt.Errorf("failed to append outcome for record %d: %w", recordID, err)
	}

	window, err := json.Marshal(qs.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to encode outcome window: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO quantity_state (strategy, quantity, outcomes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(strategy) DO UPDATE SET
			quantity = excluded.quantity,
			outcomes = excluded.outcomes,
			updated_at = excluded.updated_at`,
		l.key, qs.Quantity, string(window), c.CloseTime)
	if err != nil {
		return fmt.Errorf("failed to store quantity state: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade close: %w", err)
	}

	return nil
}

func (l *SQLiteLedger) SavePosition(p market.Position) error {
	short, err := json.Marshal(p.ShortLeg)
	if err != nil {
		return fmt.Errorf("failed to encode short leg: %w", err)
	}

	long, err := json.Marshal(p.LongLeg)
	if err != nil {
		return fmt.Errorf("failed to encode long leg: %w", err)
	}

	_, err = l.db.Exec(`
		INSERT INTO positions
			(id, record_id, symbol, trade_type, direction, short_leg, long_leg,
			 quantity, entry_time, entry_credit, prev_day_high, prev_day_low,
			 status, close_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.RecordID, p.Symbol, string(p.Type), p.Direction.String(),
		string(short), string(long), p.Quantity, p.EntryTime,
		p.EntryCredit.String(), p.PrevDayHigh.String(), p.PrevDayLow.String(),
		string(p.Status), p.CloseOrderID)
	if err != nil {
		return fmt.Errorf("failed to save position %s: %w", p.ID, err)
	}

	return nil
}

func (l *SQLiteLedger) UpdatePositionStatus(id string, status market.PositionStatus) error {
	_, err := l.db.Exec(`UPDATE positions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update position %s status: %w", id, err)
	}

	return nil
}

func (l *SQLiteLedger) OpenPositions() ([]market.Position, error) {
	rows, err := l.db.Query(`
		SELECT id, record_id, symbol, trade_type, direction, short_leg,
		       long_leg, quantity, entry_time, entry_credit, prev_day_high,
		       prev_day_low, status, close_order_id
		FROM positions
		WHERE status = ?
		ORDER BY entry_time`, string(market.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	var positions []market.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}

		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate open positions: %w", err)
	}

	return positions, nil
}

func scanPosition(rows *sql.Rows) (market.Position, error) {
	var p market.Position
	var direction, tradeType, status, short, long string
	var credit, high, low string

	err := rows.Scan(&p.ID, &p.RecordID, &p.Symbol, &tradeType, &direction,
		&short, &long, &p.Quantity, &p.EntryTime, &credit, &high, &low,
		&status, &p.CloseOrderID)
	if err != nil {
		return market.Position{}, fmt.Errorf("failed to scan position: %w", err)
	}

	if err := json.Unmarshal([]byte(short), &p.ShortLeg); err != nil {
		return market.Position{}, fmt.Errorf("failed to decode short leg: %w", err)
	}
	if err := json.Unmarshal([]byte(long), &p.LongLeg); err != nil {
		return market.Position{}, fmt.Errorf("failed to decode long leg: %w", err)
	}

	p.Type = market.TradeType(tradeType)
	p.Status = market.PositionStatus(status)
	p.Direction = parseDirection(direction)

	if p.EntryCredit, err = decimal.NewFromString(credit); err != nil {
		return market.Position{}, fmt.Errorf("failed to decode entry credit: %w", err)
	}
	if p.PrevDayHigh, err = decimal.NewFromString(high); err != nil {
		return market.Position{}, fmt.Errorf("failed to decode prev day high: %w", err)
	}
	if p.PrevDayLow, err = decimal.NewFromString(low); err != nil {
		return market.Position{}, fmt.Errorf("failed to decode prev day low: %w", err)
	}

	return p, nil
}

// TradeExistsForDay is the idempotency guard: the entry engine acts at most
// once per trading day, the scanner at most once per day as well.
func (l *SQLiteLedger) TradeExistsForDay(day civil.Date, t market.TradeType) (bool, error) {
	var n int
	err := l.db.QueryRow(`
		SELECT COUNT(*) FROM trade_records WHERE day = ? AND trade_type = ?`,
		day.String(), string(t)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check records for %s: %w", day, err)
	}

	return n > 0, nil
}

func (l *SQLiteLedger) LastMainTrade() (*market.TradeRecord, error) {
	row := l.db.QueryRow(`
		SELECT id, day, direction, legs, quantity, open_time
		FROM trade_records
		WHERE trade_type = ?
		ORDER BY open_time DESC
		LIMIT 1`, string(market.MainTrade))

	var r market.TradeRecord
	var day, direction string
	err := row.Scan(&r.ID, &day, &direction, &r.Legs, &r.Quantity, &r.OpenTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last main trade: %w", err)
	}

	r.Type = market.MainTrade
	r.Direction = parseDirection(direction)
	if r.Day, err = civil.ParseDate(day); err != nil {
		return nil, fmt.Errorf("failed to parse trade day %q: %w", day, err)
	}

	return &r, nil
}

func (l *SQLiteLedger) LastNOutcomes(n int) ([]bool, error) {
	rows, err := l.db.Query(`
		SELECT won FROM outcomes ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var newestFirst []bool
	for rows.Next() {
		var won bool
		if err := rows.Scan(&won); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}

		newestFirst = append(newestFirst, won)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}

	// Oldest first, the order the sliding window consumes.
	out := make([]bool, len(newestFirst))
	for i, won := range newestFirst {
		out[len(out)-1-i] = won
	}

	return out, nil
}

func (l *SQLiteLedger) QuantityState() (market.QuantityState, error) {
	row := l.db.QueryRow(`
		SELECT quantity, outcomes FROM quantity_state WHERE strategy = ?`, l.key)

	var qs market.QuantityState
	var window string
	err := row.Scan(&qs.Quantity, &window)
	if err == sql.ErrNoRows {
		return market.QuantityState{}, nil
	}
	if err != nil {
		return market.QuantityState{}, fmt.Errorf("failed to load quantity state: %w", err)
	}

	if err := json.Unmarshal([]byte(window), &qs.Outcomes); err != nil {
		return market.QuantityState{}, fmt.Errorf("failed to decode outcome window: %w", err)
	}

	return qs, nil
}

func parseDirection(s string) market.Direction {
	if s == market.Bull.String() {
		return market.Bull
	}

	return market.Bear
}
