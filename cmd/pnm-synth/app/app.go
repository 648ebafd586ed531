package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/rand"

	"github.com/roman-kulish/docsis-pnm/internal/pnm"
	"github.com/roman-kulish/docsis-pnm/internal/synth"
)

const (
	preEqTaps    = 24
	preEqMainTap = 7
	echoDelay    = 5 // taps after the main tap

	spectrumSegments = 3
	spectrumBins     = 256
	binSpacing       = 30_000 // Hz
)

var layout = pnm.SubcarrierLayout{ZeroFrequency: 600_000_000, FirstActiveIndex: 148, SpacingKHz: 50}

// Capture is a generated capture file.
type Capture struct {
	FileType pnm.FileType
	Name     string
	Raw      []byte
}

// Generate builds the captures config asks for.
func Generate(config *Config) ([]Capture, error) {
	h := pnm.CaptureHeader{
		FormatVersion: pnm.Version{Major: 1},
		CaptureTime:   uint32(config.CaptureTime.Unix()),
		ChannelID:     config.Channel,
	}
	rnd := rand.New(rand.NewSource(uint64(config.Seed)))

	out := make([]Capture, 0, len(config.FileTypes))
	for _, ft := range config.FileTypes {
		var raw []byte
		var err error

		switch ft {
		case pnm.FileTypeConstellation:
			var c *synth.Constellation
			c, err = synth.NewConstellation(h, config.MAC, synth.ConstellationOptions{
				Order:     config.Order,
				Samples:   config.Samples,
				Layout:    layout,
				Seed:      config.Seed,
				Noise:     config.Noise,
				NoiseSeed: uint64(config.Seed),
			})
			if c != nil {
				raw = c.Raw
			}
		case pnm.FileTypeRxMER:
			raw, err = synth.RxMER(h, config.MAC, layout, merProfile(config, rnd))
		case pnm.FileTypeSpectrum:
			raw, err = synth.Spectrum(h, config.MAC, sweep(), amplitudes(rnd))
		case pnm.FileTypePreEqualizer:
			raw, err = synth.PreEqualizer(h, config.MAC, pnm.MAC{}, layout, taps(config.Echo))
		case pnm.FileTypeFECSummary:
			raw, err = synth.FECSummary(h, config.MAC, 2, fecProfiles(h.CaptureTime, rnd))
		case pnm.FileTypeLatency:
			raw, err = synth.Latency(h, latencyEntries(h.CaptureTime, rnd))
		default:
			err = fmt.Errorf("cannot generate %s captures", ft)
		}
		if err != nil {
			return nil, fmt.Errorf("generating %s capture: %w", ft, err)
		}

		out = append(out, Capture{FileType: ft, Name: fileName(ft, config), Raw: raw})
	}
	return out, nil
}

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	captures, err := Generate(config)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var size uint64
	for _, c := range captures {
		if err = ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(config.OutputDir, c.Name)
		if err = os.WriteFile(path, c.Raw, 0o644); err != nil {
			return fmt.Errorf("writing capture: %w", err)
		}
		size += uint64(len(c.Raw))

		logger.Debug("capture written",
			slog.String("fileType", c.FileType.String()),
			slog.String("path", path),
			slog.String("size", humanize.Bytes(uint64(len(c.Raw)))),
		)
	}

	logger.Info("captures generated",
		slog.String("mac", config.MAC.String()),
		slog.String("channel", config.Channel.String()),
		slog.Int("captures", len(captures)),
		slog.String("size", humanize.Bytes(size)),
	)
	return nil
}

// fileName follows the <type>_<mac>_<channel>_<epoch>.bin pattern.
func fileName(ft pnm.FileType, config *Config) string {
	mac := strings.ReplaceAll(config.MAC.String(), ":", "")
	ch := "none"
	if config.Channel.Valid() {
		ch = fmt.Sprintf("ch%d", config.Channel)
	}
	return fmt.Sprintf("%s_%s_%s_%d.bin", ft, mac, ch, config.CaptureTime.Unix())
}

// merProfile tilts the mean MER linearly across the channel and adds a
// quarter dB of gaussian noise per subcarrier.
func merProfile(config *Config, rnd *rand.Rand) []float64 {
	out := make([]float64, config.Subcarriers)
	n := float64(config.Subcarriers - 1)
	for i := range out {
		out[i] = config.MER + config.Tilt*(float64(i)/n-0.5) + 0.25*rnd.NormFloat64()
	}
	return out
}

func sweep() pnm.Spectrum {
	span := uint32(spectrumBins * binSpacing)
	first := uint32(300_000_000)
	return pnm.Spectrum{
		FirstSegmentCenter:       first,
		LastSegmentCenter:        first + (spectrumSegments-1)*span,
		SegmentSpan:              span,
		BinsPerSegment:           spectrumBins,
		EquivalentNoiseBandwidth: 110,
		WindowFunction:           1,
		BinSpacing:               binSpacing,
	}
}

// amplitudes is a noise floor around -45 dBmV with one carrier per segment.
func amplitudes(rnd *rand.Rand) []float64 {
	out := make([]float64, spectrumSegments*spectrumBins)
	for i := range out {
		out[i] = -45 + rnd.NormFloat64()
		if bin := i % spectrumBins; bin > spectrumBins/4 && bin < 3*spectrumBins/4 {
			out[i] += 50
		}
	}
	return out
}

// taps is a unit main tap with a single delayed echo.
func taps(echo float64) []complex128 {
	out := make([]complex128, preEqTaps)
	out[preEqMainTap] = 1
	out[preEqMainTap+echoDelay] = cmplx.Rect(echo, math.Pi/4)
	return out
}

func fecProfiles(start uint32, rnd *rand.Rand) []pnm.FECProfile {
	profiles := make([]pnm.FECProfile, 2)
	for p := range profiles {
		sets := make([]pnm.CodewordSet, 10)
		for i := range sets {
			sets[i] = pnm.CodewordSet{
				Timestamp:     start + uint32(i),
				Total:         100_000,
				Corrected:     uint32(rnd.Intn(50 * (p + 1))),
				Uncorrectable: uint32(rnd.Intn(2*p + 1)),
			}
		}
		profiles[p] = pnm.FECProfile{ProfileID: uint8(p), Sets: sets}
	}
	return profiles
}

func latencyEntries(at uint32, rnd *rand.Rand) []pnm.LatencySummaryEntry {
	out := make([]pnm.LatencySummaryEntry, 2)
	for i := range out {
		low := 200 + uint32(rnd.Intn(100))
		out[i] = pnm.LatencySummaryEntry{
			ServiceFlowID: uint32(i + 1),
			MeasuredAt:    at,
			MinLatencyUs:  low,
			MaxLatencyUs:  low + 1000,
			MeanLatencyUs: low + 300,
			Packets:       1000 + uint32(rnd.Intn(1000)),
		}
	}
	return out
}
