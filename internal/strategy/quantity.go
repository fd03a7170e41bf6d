package strategy

import (
	"sync"

	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/market"
)

// QuantityManager sizes the main trade from a sliding window of recent
// outcomes. The contract count starts at the configured default and grows one
// step each time the full window's win rate clears the threshold. It never
// goes back down, not even after a losing streak.
//
// Recording an outcome is a two-step handshake: Preview computes the state a
// new outcome would produce, the caller persists it, and only then Commit
// adopts it. A failed write therefore never leaves a phantom outcome in the
// window.
type QuantityManager struct {
	base      int
	step      int
	window    int
	threshold float64

	mu       sync.Mutex
	quantity int
	outcomes []bool
}

func NewQuantityManager(cfg config.Strategy, state market.QuantityState) *QuantityManager {
	m := &QuantityManager{
		base:      cfg.DefaultQuantity,
		step:      cfg.QuantityStep,
		window:    cfg.WinRateWindow,
		threshold: cfg.WinRateThreshold,
		quantity:  state.Quantity,
		outcomes:  append([]bool(nil), state.Outcomes...),
	}

	if m.quantity < m.base {
		m.quantity = m.base
	}
	if len(m.outcomes) > m.window {
		m.outcomes = m.outcomes[len(m.outcomes)-m.window:]
	}

	return m
}

func (m *QuantityManager) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.quantity
}

// Preview computes the state one more outcome would produce without adopting
// it. A partial window never triggers a promotion.
func (m *QuantityManager) Preview(won bool) market.QuantityState {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcomes := append(append([]bool(nil), m.outcomes...), won)
	if len(outcomes) > m.window {
		outcomes = outcomes[1:]
	}

	quantity := m.quantity
	if len(outcomes) == m.window && winRate(outcomes) >= m.threshold {
		quantity += m.step
	}

	return market.QuantityState{
		Quantity: quantity,
		Outcomes: outcomes,
	}
}

// Commit adopts a previewed state once it has been persisted.
func (m *QuantityManager) Commit(state market.QuantityState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.quantity = state.Quantity
	m.outcomes = append([]bool(nil), state.Outcomes...)
}

func winRate(outcomes []bool) float64 {
	wins := 0
	for _, won := range outcomes {
		if won {
			wins++
		}
	}

	return float64(wins) / float64(len(outcomes))
}
