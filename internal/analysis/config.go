package analysis

import (
	"fmt"

	"github.com/roman-kulish/docsis-pnm/internal/stats"
)

// MovingAverageConfig controls the smoothed traces. A zero Window disables smoothing.
type MovingAverageConfig struct {
	Window int `yaml:"window"`
	Points int `yaml:"points"`
}

// Config carries the fixed-point formats of every payload and the smoothing parameters.
type Config struct {
	RxMER           stats.Scaler        `yaml:"rxmer"`           // quarter dB
	Spectrum        stats.Scaler        `yaml:"spectrum"`        // hundredths of dBmV
	Constellation   stats.Scaler        `yaml:"constellation"`   // s2.13
	ChannelEstimate stats.Scaler        `yaml:"channelEstimate"` // s2.13
	PreEqualizer    stats.Scaler        `yaml:"preEqualizer"`    // s1.14
	MovingAverage   MovingAverageConfig `yaml:"movingAverage"`
}

func DefaultConfig() Config {
	return Config{
		RxMER:           stats.Scaler{Factor: 4, Precision: 2},
		Spectrum:        stats.Scaler{Factor: 100, Precision: 2},
		Constellation:   stats.Scaler{Factor: 1 << 13, Precision: -1},
		ChannelEstimate: stats.Scaler{Factor: 1 << 13, Precision: -1},
		PreEqualizer:    stats.Scaler{Factor: 1 << 14, Precision: -1},
		MovingAverage:   MovingAverageConfig{Window: 32},
	}
}

func (c Config) Validate() error {
	scalers := map[string]stats.Scaler{
		"rxmer":           c.RxMER,
		"spectrum":        c.Spectrum,
		"constellation":   c.Constellation,
		"channelEstimate": c.ChannelEstimate,
		"preEqualizer":    c.PreEqualizer,
	}
	for name, s := range scalers {
		if s.Factor <= 0 {
			return fmt.Errorf("%s scale factor must be positive, got %v", name, s.Factor)
		}
	}
	if c.MovingAverage.Window < 0 || c.MovingAverage.Points < 0 {
		return fmt.Errorf("moving average window and points must not be negative")
	}
	return nil
}
