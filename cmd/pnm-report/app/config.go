package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/docsis-pnm/internal/config"
	"github.com/roman-kulish/docsis-pnm/internal/index"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

type Config struct {
	DBPath    string
	MAC       *pnm.MAC
	Channel   *pnm.ChannelID
	FileTypes []pnm.FileType
	From      *time.Time
	To        *time.Time
	SortKeys  []index.SortKey
	Verbose   bool

	// Pipeline carries the decoder and analysis settings loaded with -c.
	// Nil falls back to config.Default().
	Pipeline *config.Config
}

func (c *Config) pipeline() *config.Config {
	if c.Pipeline == nil {
		return config.Default()
	}
	return c.Pipeline
}

// NewConfigFromArgs parses the command line of the report tool.
func NewConfigFromArgs(name string, args []string) (*Config, error) {
	c := &Config{}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	var configPath, mac, fileTypes, from, to, sortKeys string
	var channel int
	fs.StringVar(&configPath, "c", "", "Path to the configuration file with the decoder and analysis settings")
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.StringVar(&mac, "mac", "", "Report only captures of this device MAC")
	fs.IntVar(&channel, "channel", 0, "Report only captures of this channel (0 selects captures without a channel)")
	fs.StringVar(&fileTypes, "type", "", "Comma separated file types to report, e.g. rxmer,spectrum")
	fs.StringVar(&from, "from", "", "Report captures taken at or after this time (RFC 3339)")
	fs.StringVar(&to, "to", "", "Report captures taken at or before this time (RFC 3339)")
	fs.StringVar(&sortKeys, "sort", "", "Comma separated sort keys [channel, captureTime, fileType, mac]")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "channel" {
			ch := pnm.ChannelID(channel)
			if channel == 0 {
				ch = pnm.NoChannel
			}
			c.Channel = &ch
		}
	})

	err := c.parseFilters(mac, fileTypes, from, to, sortKeys)
	switch {
	case err != nil:
	case c.DBPath == "":
		err = errors.New("db path is required")
	case c.Channel != nil && *c.Channel != pnm.NoChannel && !c.Channel.Valid():
		err = fmt.Errorf("invalid channel: %d", channel)
	case c.From != nil && c.To != nil && c.From.After(*c.To):
		err = fmt.Errorf("-from %s is after -to %s", from, to)
	case configPath != "":
		c.Pipeline, err = config.Load(configPath)
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}
	return c, nil
}

func (c *Config) parseFilters(mac, fileTypes, from, to, sortKeys string) error {
	if mac != "" {
		m, err := pnm.ParseMAC(mac)
		if err != nil {
			return err
		}
		c.MAC = &m
	}

	for _, name := range split(fileTypes) {
		ft, err := pnm.ParseFileType(name)
		if err != nil {
			return err
		}
		c.FileTypes = append(c.FileTypes, ft)
	}

	for _, name := range split(sortKeys) {
		k, err := index.ParseSortKey(name)
		if err != nil {
			return err
		}
		c.SortKeys = append(c.SortKeys, k)
	}

	var err error
	if c.From, err = parseTime(from); err != nil {
		return fmt.Errorf("invalid -from: %w", err)
	}
	if c.To, err = parseTime(to); err != nil {
		return fmt.Errorf("invalid -to: %w", err)
	}
	return nil
}

func split(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
