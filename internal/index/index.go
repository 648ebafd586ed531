// Package index catalogues decoded captures by transaction, device MAC and channel.
package index

import (
	"cmp"
	"container/list"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

var (
	// ErrIndexConsistency is returned by Check when the views disagree with the canonical store.
	ErrIndexConsistency = errors.New("index consistency violation")

	// ErrInvalidEntry is returned by Insert for entries that cannot be catalogued.
	ErrInvalidEntry = errors.New("invalid index entry")
)

// Observer is notified after every change of the index size.
type Observer interface {
	IndexSize(n int)
	EntryEvicted()
}

type nopObserver struct{}

func (nopObserver) IndexSize(int) {}
func (nopObserver) EntryEvicted() {}

// WithLogger sets the logger for the index
func WithLogger(logger *slog.Logger) func(ix *Index) {
	return func(ix *Index) {
		ix.logger = logger.With(slog.String("component", "capture-index"))
	}
}

// WithObserver sets the observer that receives size changes
func WithObserver(o Observer) func(ix *Index) {
	return func(ix *Index) {
		if o != nil {
			ix.observer = o
		}
	}
}

type stored struct {
	entry Entry
	seq   uint64        // insertion sequence, the base order of query results
	lru   *list.Element // nil unless eviction is EvictionLRU
}

type txSet map[string]struct{}

// Index is an in-memory catalogue. One canonical store keyed by transaction id
// backs a flat view (MAC to entries) and a grouped view (MAC to channel to
// entries). Every mutation updates the store and both views under the same
// write lock, so readers never see one view ahead of the other.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*stored
	flat    map[pnm.MAC]txSet
	grouped map[pnm.MAC]map[pnm.ChannelID]txSet
	recency *list.List // most recently used at the front
	seq     uint64

	cfg      Config
	logger   *slog.Logger
	observer Observer
}

func New(cfg Config, options ...func(ix *Index)) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating index config: %w", err)
	}

	ix := Index{
		entries:  make(map[string]*stored),
		flat:     make(map[pnm.MAC]txSet),
		grouped:  make(map[pnm.MAC]map[pnm.ChannelID]txSet),
		recency:  list.New(),
		cfg:      cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: nopObserver{},
	}

	for _, option := range options {
		option(&ix)
	}

	return &ix, nil
}

func (ix *Index) lruEnabled() bool {
	return ix.cfg.Eviction == EvictionLRU
}

// Insert catalogues e. An entry with the same transaction id is replaced.
// Under LRU eviction the least recently used entries are dropped once the
// capacity is exceeded.
func (ix *Index) Insert(e Entry) error {
	if e.TransactionID == "" {
		return fmt.Errorf("%w: empty transaction id", ErrInvalidEntry)
	}
	if !e.FileType.Known() {
		return fmt.Errorf("%w: %w: %s", ErrInvalidEntry, pnm.ErrUnknownFileType, e.FileType)
	}
	e = e.clone()

	ix.mu.Lock()
	if _, ok := ix.entries[e.TransactionID]; ok {
		ix.removeLocked(e.TransactionID)
	}

	ix.seq++
	s := &stored{entry: e, seq: ix.seq}
	if ix.lruEnabled() {
		s.lru = ix.recency.PushFront(e.TransactionID)
	}
	ix.entries[e.TransactionID] = s

	if ix.flat[e.MAC] == nil {
		ix.flat[e.MAC] = make(txSet)
		ix.grouped[e.MAC] = make(map[pnm.ChannelID]txSet)
	}
	ix.flat[e.MAC][e.TransactionID] = struct{}{}
	if ix.grouped[e.MAC][e.ChannelID] == nil {
		ix.grouped[e.MAC][e.ChannelID] = make(txSet)
	}
	ix.grouped[e.MAC][e.ChannelID][e.TransactionID] = struct{}{}

	var evicted []string
	for ix.lruEnabled() && len(ix.entries) > ix.cfg.Capacity {
		oldest := ix.recency.Back().Value.(string)
		ix.removeLocked(oldest)
		evicted = append(evicted, oldest)
	}
	size := len(ix.entries)
	ix.mu.Unlock()

	for _, txID := range evicted {
		ix.logger.Debug("entry evicted", slog.String("transactionId", txID))
		ix.observer.EntryEvicted()
	}
	ix.observer.IndexSize(size)

	return nil
}

// Remove drops the entry of txID from the store and both views.
func (ix *Index) Remove(txID string) bool {
	ix.mu.Lock()
	ok := ix.removeLocked(txID)
	size := len(ix.entries)
	ix.mu.Unlock()

	if ok {
		ix.observer.IndexSize(size)
	}
	return ok
}

func (ix *Index) removeLocked(txID string) bool {
	s, ok := ix.entries[txID]
	if !ok {
		return false
	}
	delete(ix.entries, txID)
	if s.lru != nil {
		ix.recency.Remove(s.lru)
	}

	mac, ch := s.entry.MAC, s.entry.ChannelID
	delete(ix.flat[mac], txID)
	if len(ix.flat[mac]) == 0 {
		delete(ix.flat, mac)
	}
	delete(ix.grouped[mac][ch], txID)
	if len(ix.grouped[mac][ch]) == 0 {
		delete(ix.grouped[mac], ch)
	}
	if len(ix.grouped[mac]) == 0 {
		delete(ix.grouped, mac)
	}
	return true
}

// Get returns the entry of txID. Under LRU eviction it also marks the entry as recently used.
func (ix *Index) Get(txID string) (Entry, bool) {
	if ix.lruEnabled() {
		ix.mu.Lock()
		defer ix.mu.Unlock()
	} else {
		ix.mu.RLock()
		defer ix.mu.RUnlock()
	}

	s, ok := ix.entries[txID]
	if !ok {
		return Entry{}, false
	}
	if s.lru != nil {
		ix.recency.MoveToFront(s.lru)
	}
	return s.entry.clone(), true
}

// ByMAC returns the flat view of mac sorted by keys.
func (ix *Index) ByMAC(mac string, keys ...SortKey) ([]Entry, error) {
	m, err := pnm.ParseMAC(mac)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	out := ix.collectLocked(ix.flat[m])
	ix.mu.RUnlock()

	Sort(out, keys...)
	return out, nil
}

// ByMACAndChannel returns the grouped view of mac and channel sorted by keys.
func (ix *Index) ByMACAndChannel(mac string, ch pnm.ChannelID, keys ...SortKey) ([]Entry, error) {
	m, err := pnm.ParseMAC(mac)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	out := ix.collectLocked(ix.grouped[m][ch])
	ix.mu.RUnlock()

	Sort(out, keys...)
	return out, nil
}

// Channels returns the channels catalogued for mac in ascending order.
func (ix *Index) Channels(mac string) ([]pnm.ChannelID, error) {
	m, err := pnm.ParseMAC(mac)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]pnm.ChannelID, 0, len(ix.grouped[m]))
	for ch := range ix.grouped[m] {
		out = append(out, ch)
	}
	slices.Sort(out)
	return out, nil
}

// All returns every entry sorted by keys.
func (ix *Index) All(keys ...SortKey) []Entry {
	ix.mu.RLock()
	out := make([]*stored, 0, len(ix.entries))
	for _, s := range ix.entries {
		out = append(out, s)
	}
	ix.mu.RUnlock()

	entries := ordered(out)
	Sort(entries, keys...)
	return entries
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// collectLocked resolves a view's transaction ids into entries in insertion order.
func (ix *Index) collectLocked(set txSet) []Entry {
	out := make([]*stored, 0, len(set))
	for txID := range set {
		if s, ok := ix.entries[txID]; ok {
			out = append(out, s)
		}
	}
	return ordered(out)
}

func ordered(s []*stored) []Entry {
	slices.SortFunc(s, func(a, b *stored) int {
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Entry, len(s))
	for i, v := range s {
		out[i] = v.entry.clone()
	}
	return out
}

// Check verifies that both views hold exactly the entries of the canonical
// store, under the MAC and channel each entry carries.
func (ix *Index) Check() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var errs []error
	var flatCount, groupedCount int

	for txID, s := range ix.entries {
		if _, ok := ix.flat[s.entry.MAC][txID]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s missing from flat view", ErrIndexConsistency, txID))
		}
		if _, ok := ix.grouped[s.entry.MAC][s.entry.ChannelID][txID]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s missing from grouped view", ErrIndexConsistency, txID))
		}
	}

	for mac, set := range ix.flat {
		flatCount += len(set)
		for txID := range set {
			if s, ok := ix.entries[txID]; !ok || s.entry.MAC != mac {
				errs = append(errs, fmt.Errorf("%w: stale flat entry %s under %s", ErrIndexConsistency, txID, mac))
			}
		}
	}

	for mac, channels := range ix.grouped {
		for ch, set := range channels {
			groupedCount += len(set)
			for txID := range set {
				if s, ok := ix.entries[txID]; !ok || s.entry.MAC != mac || s.entry.ChannelID != ch {
					errs = append(errs, fmt.Errorf("%w: stale grouped entry %s under %s/%s", ErrIndexConsistency, txID, mac, ch))
				}
			}
		}
	}

	if flatCount != len(ix.entries) || groupedCount != len(ix.entries) {
		errs = append(errs, fmt.Errorf("%w: %d entries, %d in flat view, %d in grouped view",
			ErrIndexConsistency, len(ix.entries), flatCount, groupedCount))
	}
	if ix.lruEnabled() && ix.recency.Len() != len(ix.entries) {
		errs = append(errs, fmt.Errorf("%w: %d entries, %d tracked for eviction",
			ErrIndexConsistency, len(ix.entries), ix.recency.Len()))
	}

	return errors.Join(errs...)
}
