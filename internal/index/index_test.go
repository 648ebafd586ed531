package index

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

const testMAC = "aa:bb:cc:dd:ee:ff"

type countingObserver struct {
	mu      sync.Mutex
	size    int
	evicted int
}

func (o *countingObserver) IndexSize(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.size = n
}

func (o *countingObserver) EntryEvicted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evicted++
}

func entry(txID, mac string, ch pnm.ChannelID, ft pnm.FileType, captureTime uint32) Entry {
	return Entry{
		TransactionID: txID,
		FileName:      txID + ".bin",
		FileType:      ft,
		CaptureTime:   captureTime,
		ChannelID:     ch,
		MAC:           pnm.MustParseMAC(mac),
	}
}

func newIndex(t *testing.T, cfg Config, options ...func(ix *Index)) *Index {
	t.Helper()
	ix, err := New(cfg, options...)
	if err != nil {
		t.Fatalf("creating index: %v", err)
	}
	return ix
}

func txIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.TransactionID
	}
	return out
}

func TestIndex_InsertVisibleInBothViews(t *testing.T) {
	observer := &countingObserver{}
	ix := newIndex(t, DefaultConfig(), WithObserver(observer))

	if err := ix.Insert(entry("tx-1", testMAC, 5, pnm.FileTypeRxMER, 100)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	flat, err := ix.ByMAC(testMAC)
	if err != nil {
		t.Fatalf("by mac: %v", err)
	}
	if !slices.Equal(txIDs(flat), []string{"tx-1"}) {
		t.Errorf("unexpected flat view %v", txIDs(flat))
	}

	grouped, err := ix.ByMACAndChannel(testMAC, 5)
	if err != nil {
		t.Fatalf("by mac and channel: %v", err)
	}
	if !slices.Equal(txIDs(grouped), []string{"tx-1"}) {
		t.Errorf("unexpected grouped view %v", txIDs(grouped))
	}

	// the hyphenated upper-case form names the same device
	if upper, _ := ix.ByMAC("AA-BB-CC-DD-EE-FF"); len(upper) != 1 {
		t.Errorf("expected MAC lookup to be case and delimiter insensitive")
	}
	if observer.size != 1 {
		t.Errorf("expected observer size 1, got %d", observer.size)
	}

	if !ix.Remove("tx-1") {
		t.Fatalf("expected tx-1 to be removed")
	}
	if flat, _ := ix.ByMAC(testMAC); len(flat) != 0 {
		t.Errorf("expected empty flat view after remove, got %v", txIDs(flat))
	}
	if grouped, _ := ix.ByMACAndChannel(testMAC, 5); len(grouped) != 0 {
		t.Errorf("expected empty grouped view after remove, got %v", txIDs(grouped))
	}
	if ix.Remove("tx-1") {
		t.Errorf("expected second remove to report nothing removed")
	}
	if err := ix.Check(); err != nil {
		t.Errorf("check: %v", err)
	}
	if observer.size != 0 || ix.Len() != 0 {
		t.Errorf("expected empty index, observer size %d len %d", observer.size, ix.Len())
	}
}

func TestIndex_InsertReplacesTransaction(t *testing.T) {
	ix := newIndex(t, DefaultConfig())

	_ = ix.Insert(entry("tx-1", testMAC, 5, pnm.FileTypeRxMER, 100))
	_ = ix.Insert(entry("tx-1", testMAC, 7, pnm.FileTypeRxMER, 200))

	if ix.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", ix.Len())
	}
	if old, _ := ix.ByMACAndChannel(testMAC, 5); len(old) != 0 {
		t.Errorf("replaced entry still visible under its old channel")
	}
	got, ok := ix.Get("tx-1")
	if !ok || got.ChannelID != 7 || got.CaptureTime != 200 {
		t.Errorf("unexpected entry %+v", got)
	}
	if err := ix.Check(); err != nil {
		t.Errorf("check: %v", err)
	}
}

func TestIndex_InsertErrors(t *testing.T) {
	ix := newIndex(t, DefaultConfig())

	if err := ix.Insert(entry("", testMAC, 1, pnm.FileTypeRxMER, 0)); !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}
	err := ix.Insert(entry("tx", testMAC, 1, pnm.FileTypeUnknown, 0))
	if !errors.Is(err, ErrInvalidEntry) || !errors.Is(err, pnm.ErrUnknownFileType) {
		t.Errorf("expected ErrInvalidEntry wrapping ErrUnknownFileType, got %v", err)
	}
	if _, err := ix.ByMAC("not-a-mac"); !errors.Is(err, pnm.ErrInvalidMAC) {
		t.Errorf("expected ErrInvalidMAC, got %v", err)
	}
}

func TestIndex_PayloadIsCopied(t *testing.T) {
	ix := newIndex(t, DefaultConfig())

	e := entry("tx", testMAC, 1, pnm.FileTypeRxMER, 0)
	e.Payload = []byte{1, 2, 3}
	_ = ix.Insert(e)
	e.Payload[0] = 9

	got, _ := ix.Get("tx")
	if got.Payload[0] != 1 {
		t.Errorf("index entry aliases the caller's payload")
	}

	reads := []struct {
		name string
		read func() []Entry
	}{
		{"Get", func() []Entry { e, _ := ix.Get("tx"); return []Entry{e} }},
		{"ByMAC", func() []Entry { out, _ := ix.ByMAC(testMAC); return out }},
		{"ByMACAndChannel", func() []Entry { out, _ := ix.ByMACAndChannel(testMAC, 1); return out }},
		{"All", func() []Entry { return ix.All() }},
	}
	for _, r := range reads {
		t.Run(r.name, func(t *testing.T) {
			out := r.read()
			if len(out) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(out))
			}
			out[0].Payload[0] = 99

			stored, _ := ix.Get("tx")
			if !bytes.Equal(stored.Payload, []byte{1, 2, 3}) {
				t.Errorf("changing a returned payload changed the indexed capture: %v", stored.Payload)
			}
		})
	}
}

func TestIndex_SortKeys(t *testing.T) {
	ix := newIndex(t, DefaultConfig())

	other := "00:11:22:33:44:55"
	for _, e := range []Entry{
		entry("a", testMAC, 3, pnm.FileTypeSpectrum, 300),
		entry("b", testMAC, 1, pnm.FileTypeRxMER, 200),
		entry("c", testMAC, 3, pnm.FileTypeRxMER, 100),
		entry("d", testMAC, 1, pnm.FileTypeConstellation, 300),
		entry("e", other, 1, pnm.FileTypeRxMER, 50),
	} {
		if err := ix.Insert(e); err != nil {
			t.Fatalf("insert %s: %v", e.TransactionID, err)
		}
	}

	testCases := []struct {
		name     string
		keys     []SortKey
		expected []string
	}{
		{"default capture time", nil, []string{"c", "b", "a", "d"}},
		{"channel then time", []SortKey{SortByChannel, SortByCaptureTime}, []string{"b", "d", "c", "a"}},
		{"file type is stable", []SortKey{SortByFileType}, []string{"d", "b", "c", "a"}},
		{"channel keeps insertion order on ties", []SortKey{SortByChannel}, []string{"b", "d", "a", "c"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ix.ByMAC(testMAC, tc.keys...)
			if err != nil {
				t.Fatalf("by mac: %v", err)
			}
			if !slices.Equal(txIDs(got), tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, txIDs(got))
			}
		})
	}

	all := ix.All(SortByMAC, SortByCaptureTime)
	if !slices.Equal(txIDs(all), []string{"e", "c", "b", "a", "d"}) {
		t.Errorf("unexpected order across devices %v", txIDs(all))
	}

	channels, _ := ix.Channels(testMAC)
	if !slices.Equal(channels, []pnm.ChannelID{1, 3}) {
		t.Errorf("unexpected channels %v", channels)
	}
}

func TestParseSortKey(t *testing.T) {
	for _, k := range []SortKey{SortByChannel, SortByCaptureTime, SortByFileType, SortByMAC} {
		got, err := ParseSortKey(k.String())
		if err != nil || got != k {
			t.Errorf("ParseSortKey(%q) = %v, %v", k.String(), got, err)
		}
	}
	if got, err := ParseSortKey("CAPTURETIME"); err != nil || got != SortByCaptureTime {
		t.Errorf("expected case-insensitive parse, got %v, %v", got, err)
	}
	if _, err := ParseSortKey("size"); err == nil {
		t.Errorf("expected error for unknown sort key")
	}
}

func TestIndex_LRUEviction(t *testing.T) {
	observer := &countingObserver{}
	ix := newIndex(t, Config{Eviction: EvictionLRU, Capacity: 2}, WithObserver(observer))

	_ = ix.Insert(entry("tx-1", testMAC, 1, pnm.FileTypeRxMER, 1))
	_ = ix.Insert(entry("tx-2", testMAC, 2, pnm.FileTypeRxMER, 2))

	// touching tx-1 leaves tx-2 as the least recently used
	if _, ok := ix.Get("tx-1"); !ok {
		t.Fatalf("expected tx-1")
	}
	_ = ix.Insert(entry("tx-3", testMAC, 3, pnm.FileTypeRxMER, 3))

	if ix.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", ix.Len())
	}
	if _, ok := ix.Get("tx-2"); ok {
		t.Errorf("expected tx-2 to be evicted")
	}
	if grouped, _ := ix.ByMACAndChannel(testMAC, 2); len(grouped) != 0 {
		t.Errorf("evicted entry still in grouped view")
	}
	if observer.evicted != 1 || observer.size != 2 {
		t.Errorf("unexpected observer state %+v", observer)
	}
	if err := ix.Check(); err != nil {
		t.Errorf("check: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		cfg   Config
		valid bool
	}{
		{DefaultConfig(), true},
		{Config{}, true},
		{Config{Eviction: EvictionLRU, Capacity: 10}, true},
		{Config{Eviction: EvictionLRU}, false},
		{Config{Eviction: "fifo"}, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.cfg.Eviction), func(t *testing.T) {
			_, err := New(tc.cfg)
			if (err == nil) != tc.valid {
				t.Errorf("expected valid=%v, got %v", tc.valid, err)
			}
		})
	}
}

func TestIndex_CheckDetectsDivergence(t *testing.T) {
	ix := newIndex(t, DefaultConfig())
	_ = ix.Insert(entry("tx-1", testMAC, 5, pnm.FileTypeRxMER, 100))

	// corrupt the grouped view directly
	delete(ix.grouped[pnm.MustParseMAC(testMAC)], 5)

	if err := ix.Check(); !errors.Is(err, ErrIndexConsistency) {
		t.Fatalf("expected ErrIndexConsistency, got %v", err)
	}
}

func TestIndex_ConcurrentAccess(t *testing.T) {
	ix := newIndex(t, Config{Eviction: EvictionLRU, Capacity: 50})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				txID := fmt.Sprintf("w%d-%d", w, i)
				_ = ix.Insert(entry(txID, testMAC, pnm.ChannelID(i%4+1), pnm.FileTypeRxMER, uint32(i)))
				if _, err := ix.ByMACAndChannel(testMAC, pnm.ChannelID(i%4+1)); err != nil {
					t.Errorf("query: %v", err)
				}
				if i%3 == 0 {
					ix.Remove(txID)
				}
			}
		}(w)
	}
	wg.Wait()

	if err := ix.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	if ix.Len() > 50 {
		t.Errorf("capacity exceeded: %d", ix.Len())
	}
}

func TestNewTransactionID(t *testing.T) {
	a, b := NewTransactionID(), NewTransactionID()
	if a == b {
		t.Fatalf("expected distinct transaction ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("expected a uuid, got %q: %v", a, err)
	}
}

func TestEntryFromRecord(t *testing.T) {
	rec := &pnm.CaptureRecord{
		Header: pnm.CaptureHeader{
			FileType:    pnm.FileTypeLatency,
			ChannelID:   pnm.NoChannel,
			CaptureTime: 1_700_000_000,
		},
		SourceMAC:     pnm.MustParseMAC(testMAC),
		TransactionID: "tx",
	}

	e := EntryFromRecord(rec, "latency.bin", []byte{1}, DeviceDetails{IPAddress: "10.0.0.1"})
	if e.TransactionID != "tx" || e.FileType != pnm.FileTypeLatency || e.ChannelID != pnm.NoChannel {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Time().Unix() != 1_700_000_000 || e.Device.IPAddress != "10.0.0.1" {
		t.Errorf("unexpected entry details %+v", e)
	}
}
