package index

import "fmt"

// Eviction is the policy applied when the index reaches its capacity.
type Eviction string

const (
	EvictionNone Eviction = "none"
	EvictionLRU  Eviction = "lru"
)

type Config struct {
	Eviction Eviction `yaml:"eviction"`
	Capacity int      `yaml:"capacity"` // entries kept under EvictionLRU
}

func DefaultConfig() Config {
	return Config{Eviction: EvictionNone}
}

func (c Config) Validate() error {
	switch c.Eviction {
	case EvictionNone, "":
		return nil
	case EvictionLRU:
		if c.Capacity < 1 {
			return fmt.Errorf("lru eviction needs a positive capacity, got %d", c.Capacity)
		}
		return nil
	default:
		return fmt.Errorf("unknown eviction policy %q", c.Eviction)
	}
}
