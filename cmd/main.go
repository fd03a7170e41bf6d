package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/ledger"
	"github.com/gyan21/heikenashi/internal/platform"
	"github.com/gyan21/heikenashi/internal/strategy"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.ReadFromFile(os.Getenv("CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Strategy.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.Log)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal(err)
	}

	p, err := platform.Create(logger, cfg)
	if err != nil {
		log.Fatal(err)
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
	data := &broker.RetryingData{Inner: p.Data, MaxElapsed: cfg.Strategy.RetryBudget.Std()}

	entry := strategy.NewEntryEngine(cfg.Strategy, cfg.Symbol, loc, data, p.Orders, db, quantity, p.Clock, logger)
	scanner := strategy.NewSupplementalScanner(cfg.Strategy, cfg.Symbol, loc, data, p.Orders, db, p.Clock, logger)
	monitor := strategy.NewExitMonitor(cfg.Strategy, loc, data, p.Orders, db, quantity, p.Clock, logger)

	runner := strategy.NewRunner(cfg.Strategy, entry, scanner, monitor, db, logger)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

func newLogger(cfg config.Log) *slog.Logger {
	var w io.Writer = os.Stdout
	if cfg.File != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}

	return slog.New(slog.NewJSONHandler(w, nil))
}
