package app

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roman-kulish/docsis-pnm/internal/modulation"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

// Generated are the file types the generator can build.
var Generated = []pnm.FileType{
	pnm.FileTypeConstellation,
	pnm.FileTypeRxMER,
	pnm.FileTypeSpectrum,
	pnm.FileTypePreEqualizer,
	pnm.FileTypeFECSummary,
	pnm.FileTypeLatency,
}

type Config struct {
	OutputDir   string
	MAC         pnm.MAC
	Channel     pnm.ChannelID
	CaptureTime time.Time
	FileTypes   []pnm.FileType

	Order       modulation.Order
	Samples     int
	Subcarriers int
	Seed        uint32
	Noise       float64 // constellation noise, standard deviation per axis
	MER         float64 // mean RxMER, dB
	Tilt        float64 // RxMER change across the channel, dB
	Echo        float64 // pre-equalizer echo amplitude relative to the main tap

	Verbose bool
}

// NewConfigFromArgs parses the command line of the generator.
func NewConfigFromArgs(name string, args []string) (*Config, error) {
	c := &Config{}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	var mac, fileTypes, captureTime string
	var channel, order int
	var seed uint
	fs.StringVar(&c.OutputDir, "out", "", "Directory to write the captures to")
	fs.StringVar(&mac, "mac", "00:00:5e:00:53:01", "Cable modem MAC written into the captures")
	fs.IntVar(&channel, "channel", 33, "Channel id written into the captures (0 for none)")
	fs.StringVar(&captureTime, "time", "", "Capture time (RFC 3339, default: now)")
	fs.StringVar(&fileTypes, "type", "", "Comma separated file types to generate (default: all)")
	fs.IntVar(&order, "order", 256, "Constellation QAM order")
	fs.IntVar(&c.Samples, "samples", 1024, "Constellation sample count")
	fs.IntVar(&c.Subcarriers, "subcarriers", 512, "RxMER and pre-equalizer subcarrier count")
	fs.UintVar(&seed, "seed", 1, "Seed of the bit and noise sources")
	fs.Float64Var(&c.Noise, "noise", 0.01, "Constellation noise standard deviation per axis")
	fs.Float64Var(&c.MER, "mer", 40, "Mean RxMER in dB")
	fs.Float64Var(&c.Tilt, "tilt", -2, "RxMER change across the channel in dB")
	fs.Float64Var(&c.Echo, "echo", 0.05, "Pre-equalizer echo amplitude relative to the main tap")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c.Channel = pnm.ChannelID(channel)
	if channel == 0 {
		c.Channel = pnm.NoChannel
	}
	c.Seed = uint32(seed)

	err := c.parse(mac, fileTypes, captureTime, order)
	switch {
	case err != nil:
	case c.OutputDir == "":
		err = errors.New("output directory is required")
	case c.Channel != pnm.NoChannel && !c.Channel.Valid():
		err = fmt.Errorf("invalid channel: %d", channel)
	case c.Samples <= 0 || c.Subcarriers < 2:
		err = fmt.Errorf("need at least one sample and two subcarriers, got %d and %d", c.Samples, c.Subcarriers)
	case c.Noise < 0 || c.Echo < 0:
		err = errors.New("noise and echo must not be negative")
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}
	return c, nil
}

func (c *Config) parse(mac, fileTypes, captureTime string, order int) error {
	var err error
	if c.MAC, err = pnm.ParseMAC(mac); err != nil {
		return err
	}
	if c.Order, err = modulation.ParseOrder(order); err != nil {
		return err
	}

	c.CaptureTime = time.Now()
	if captureTime != "" {
		if c.CaptureTime, err = time.Parse(time.RFC3339, captureTime); err != nil {
			return fmt.Errorf("invalid -time: %w", err)
		}
	}

	for _, s := range strings.Split(fileTypes, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		ft, err := pnm.ParseFileType(s)
		if err != nil {
			return err
		}
		if !slices.Contains(Generated, ft) {
			return fmt.Errorf("cannot generate %s captures", ft)
		}
		c.FileTypes = append(c.FileTypes, ft)
	}
	if len(c.FileTypes) == 0 {
		c.FileTypes = slices.Clone(Generated)
	}
	return nil
}
