package analysis

import (
	"maps"
	"slices"

	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

// MultiAnalysis collects the analyses of a multi-channel capture in insertion
// order. It does not enforce unique channels; ByChannel resolves duplicates.
// It is not safe for concurrent use.
type MultiAnalysis struct {
	analyses []Analysis
}

func (m *MultiAnalysis) Add(a Analysis) {
	m.analyses = append(m.analyses, a)
}

// All returns a copy of the analyses in insertion order.
func (m *MultiAnalysis) All() []Analysis {
	return slices.Clone(m.analyses)
}

func (m *MultiAnalysis) Count() int {
	return len(m.analyses)
}

// ByChannel keys the analyses by channel. When a channel was added more than
// once, the last analysis added wins.
func (m *MultiAnalysis) ByChannel() map[pnm.ChannelID]Analysis {
	out := make(map[pnm.ChannelID]Analysis, len(m.analyses))
	for _, a := range m.analyses {
		out[a.Channel()] = a
	}
	return out
}

// Channels returns the distinct channels in ascending order.
func (m *MultiAnalysis) Channels() []pnm.ChannelID {
	return slices.Sorted(maps.Keys(m.ByChannel()))
}

// ToMap builds a plain keyed structure of the deduplicated analyses, keyed by channel.
func (m *MultiAnalysis) ToMap() map[string]any {
	channels := make(map[string]any)
	for ch, a := range m.ByChannel() {
		channels[ch.String()] = ToMap(a)
	}
	return map[string]any{
		"count":    len(channels),
		"channels": channels,
	}
}
