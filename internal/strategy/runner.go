package strategy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/heikinashi"
	"github.com/gyan21/heikenashi/internal/market"
	"github.com/gyan21/heikenashi/internal/options"
	"github.com/gyan21/heikenashi/internal/pattern"
	"golang.org/x/sync/errgroup"
)

// Runner drives the engines on a periodic tick. Entry and the supplemental
// scan run sequentially; open positions are monitored concurrently, each
// against its own persisted state, so one stalled position cannot delay the
// rest.
type Runner struct {
	cfg     config.Strategy
	entry   *EntryEngine
	scanner *SupplementalScanner
	monitor *ExitMonitor
	ledger  broker.Ledger
	log     *slog.Logger
}

func NewRunner(
	cfg config.Strategy,
	entry *EntryEngine,
	scanner *SupplementalScanner,
	monitor *ExitMonitor,
	ledger broker.Ledger,
	log *slog.Logger,
) *Runner {
	return &Runner{
		cfg:     cfg,
		entry:   entry,
		scanner: scanner,
		monitor: monitor,
		ledger:  ledger,
		log:     log,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval.Std())
	defer ticker.Stop()

	for {
		r.Tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick runs one evaluation pass. Every call is bounded by the tick interval
// so a slow collaborator can never stall the loop across ticks.
func (r *Runner) Tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TickInterval.Std())
	defer cancel()

	if err := r.entry.Evaluate(ctx); err != nil {
		r.report("entry", err)
	}

	if err := r.scanner.Scan(ctx); err != nil {
		r.report("supplemental", err)
	}

	positions, err := r.ledger.OpenPositions()
	if err != nil {
		r.log.Error("failed to load open positions", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range positions {
		p := p
		g.Go(func() error {
			if err := r.monitor.Check(gctx, p); err != nil {
				r.report("exit "+p.ID, err)
			}

			return nil
		})
	}

	g.Wait()
}

// report separates expected non-trade outcomes from real failures. Skipped
// days, unconfirmed patterns and stale ticks are part of normal operation.
func (r *Runner) report(stage string, err error) {
	switch {
	case errors.Is(err, ErrPremiumNotMet),
		errors.Is(err, options.ErrNotFound),
		errors.Is(err, heikinashi.ErrInsufficientData),
		errors.Is(err, pattern.ErrInsufficientCandles),
		errors.Is(err, market.ErrStaleData):
		r.log.Info("no action", "stage", stage, "reason", err.Error())
	case errors.Is(err, broker.ErrPartialFill):
		r.log.Error("partial fill requires reconciliation", "stage", stage, "error", err)
	default:
		r.log.Error("tick failed", "stage", stage, "error", err)
	}
}
