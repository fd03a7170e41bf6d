package platform

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gyan21/heikenashi/internal/broker"
	"github.com/gyan21/heikenashi/internal/clock"
	"github.com/gyan21/heikenashi/internal/config"
	"github.com/gyan21/heikenashi/internal/platform/alpaca"
	"github.com/gyan21/heikenashi/internal/platform/replay"
)

// Platform bundles one backend's collaborator implementations. In replay mode
// the clock is the tape's clock and Replay exposes the stepping controls.
type Platform struct {
	Data   broker.MarketDataProvider
	Orders broker.OrderExecutionService
	Clock  clock.Clock
	Replay *replay.ReplayPlatform
}

func Create(log *slog.Logger, cfg *config.Config) (*Platform, error) {
	if alpacaCfg, ok := cfg.PlatformRef.Platform.(config.Alpaca); ok {
		ap, err := alpaca.NewAlpacaPlatform(alpacaCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create alpaca platform: %w", err)
		}

		return &Platform{Data: ap, Orders: ap, Clock: clock.System{}}, nil
	}

	if replayCfg, ok := cfg.PlatformRef.Platform.(config.Replay); ok {
		rp, err := replay.NewReplayPlatform(log, cfg.Symbol, replayCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create replay platform: %w", err)
		}

		return &Platform{Data: rp, Orders: rp, Clock: rp, Replay: rp}, nil
	}

	return nil, errors.New("unknown trading platform")
}
