// Replay runs the strategy against recorded bars and writes a deal report.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/heikinashi"
	"github.com/gyan21/heikenashi/internal/ledger"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/gyan21/heikenashi/internal/platform"
	"github.com/gyan21/heikenashi/internal/strategy"
)

func main() {
	ctx := context.Background()

	cfg, err := config.ReadFromFile(os.Getenv("CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Strategy.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal(err)
	}

	p, err := platform.Create(logger, cfg)
	if err != nil {
		log.Fatal(err)
	}
	if p.Replay == nil {
		log.Fatal("replay run requires a replay platform config")
	}

	db, err := ledger.OpenSQLite(cfg.Ledger)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	state, err := db.QuantityState()
	if err != nil {
		log.Fatal(err)
	}

	quantity := strategy.NewQuantityManager(cfg.Strategy, state)

	entry := strategy.NewEntryEngine(cfg.Strategy, cfg.Symbol, loc, p.Data, p.Orders, db, quantity, p.Clock, logger)
	scanner := strategy.NewSupplementalScanner(cfg.Strategy, cfg.Symbol, loc, p.Data, p.Orders, db, p.Clock, logger)
	monitor := strategy.NewExitMonitor(cfg.Strategy, loc, p.Data, p.Orders, db, quantity, p.Clock, logger)
	runner := strategy.NewRunner(cfg.Strategy, entry, scanner, monitor, db, logger)

	for p.Replay.Step() {
		runner.Tick(ctx)
	}

	if err := p.Replay.WriteReport(); err != nil {
		log.Fatal(err)
	}

	if path := os.Getenv("PLOT"); path != "" {
		if err := drawCloses(p.Replay.Tape(), path); err != nil {
			log.Fatal(err)
		}
	}
}

// drawCloses renders the daily close vs its derived close over the whole
// tape, the comparison the entry direction comes from.
func drawCloses(tape []market.Bar, path string) error {
	agg := market.IntervalAggregator{BarDuration: time.Minute, Interval: 24 * time.Hour}
	daily := agg.AggregateAll(tape)

	series, err := heikinashi.Compute(daily)
	if err != nil {
		return err
	}

	d := heikinashi.NewDebugPlot(1200, 400)
	if err := d.DrawCloses(daily, series); err != nil {
		return err
	}

	return d.Save(path)
}
