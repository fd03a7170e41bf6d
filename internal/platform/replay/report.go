package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type deal struct {
	legs      string
	openTime  time.Time
	closeTime time.Time
	quantity  int
	credit    decimal.Decimal
	debit     decimal.Decimal
	safety    bool
}

type reportBuilder struct {
	log    *slog.Logger
	report JsonReport
	spent  decimal.Decimal
	gained decimal.Decimal
	mu     sync.Mutex
}

type JsonReport struct {
	TotalGain string     `json:"total_gain,omitempty"`
	Deals     []JsonDeal `json:"deals,omitempty"`
}

type JsonDeal struct {
	Legs       string    `json:"legs,omitempty"`
	OpenTime   time.Time `json:"open_time,omitzero,omitempty"`
	CloseTime  time.Time `json:"close_time,omitzero,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	Credit     string    `json:"credit,omitempty"`
	Debit      string    `json:"debit,omitempty"`
	Gain       string    `json:"gain,omitempty"`
	SafetyFill bool      `json:"safety_fill,omitempty"`
}

func newReportBuilder(log *slog.Logger) *reportBuilder {
	return &reportBuilder{log: log}
}

func (r *reportBuilder) SubmitDeal(d deal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gain := d.credit.Sub(d.debit)
	r.report.Deals = append(r.report.Deals, JsonDeal{
		Legs:       d.legs,
		OpenTime:   d.openTime,
		CloseTime:  d.closeTime,
		Quantity:   d.quantity,
		Credit:     d.credit.String(),
		Debit:      d.debit.String(),
		Gain:       gain.String(),
		SafetyFill: d.safety,
	})

	r.spent = r.spent.Add(d.debit)
	r.gained = r.gained.Add(gain)
	r.report.TotalGain = r.gained.String()

	r.log.Info("deal closed",
		slog.String("legs", d.legs),
		slog.String("gain", gain.String()),
		slog.Bool("safety_fill", d.safety),
		slog.Time("close_time", d.closeTime))
}

func (r *reportBuilder) Write(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(r.report); err != nil {
		return fmt.Errorf("failed to write trading report: %w", err)
	}

	return nil
}

func (r *reportBuilder) WriteToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	return r.Write(f)
}
