package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type Platform interface{}

type PlatformReference struct {
	Platform Platform
}

// Alpaca is the live trading platform configuration.
type Alpaca struct {
	BaseUrl string `yaml:"base_url"`
	ApiKey  string `yaml:"api_key"`
	Secret  string `yaml:"secret"`
}

// Replay drives the strategy deterministically from recorded bars. Option
// chains are synthesized around the current underlying price.
type Replay struct {
	Data        string    `yaml:"data"` // csv of 1-minute bars
	Start       time.Time `yaml:"start"`
	End         time.Time `yaml:"end"`
	Report      string    `yaml:"report"`
	StrikeStep  float64   `yaml:"strike_step"`
	DeltaSlope  float64   `yaml:"delta_slope"`  // delta lost per point OTM
	PremiumPer  float64   `yaml:"premium_per"`  // dollars of premium per unit of delta
	Commission  float64   `yaml:"commission"`   // dollars per contract per side
	SpreadBasis float64   `yaml:"spread_basis"` // half-width of bid/ask around mid, fraction
}

func (w *PlatformReference) UnmarshalYAML(value *yaml.Node) error {
	if len(value.Content) == 0 {
		return nil
	}

	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return errors.New("invalid platform yaml format")
	}

	key := value.Content[0].Value
	switch key {
	case "alpaca":
		var alpaca Alpaca
		if err := value.Content[1].Decode(&alpaca); err != nil {
			return fmt.Errorf("failed parsing Alpaca platform config: %w", err)
		}
		w.Platform = alpaca
	case "replay":
		var replay Replay
		if err := value.Content[1].Decode(&replay); err != nil {
			return fmt.Errorf("failed parsing replay platform config: %w", err)
		}
		w.Platform = replay
	default:
		return fmt.Errorf("unknown platform type: %s", key)
	}

	return nil
}
