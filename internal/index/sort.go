package index

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SortKey selects one ordering of query results.
type SortKey uint8

const (
	SortByChannel SortKey = iota + 1
	SortByCaptureTime
	SortByFileType
	SortByMAC
)

var sortKeyNames = map[SortKey]string{
	SortByChannel:     "channel",
	SortByCaptureTime: "captureTime",
	SortByFileType:    "fileType",
	SortByMAC:         "mac",
}

func (k SortKey) String() string {
	if name, ok := sortKeyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("SortKey(%d)", uint8(k))
}

// ParseSortKey accepts the names returned by SortKey.String, case-insensitively.
func ParseSortKey(s string) (SortKey, error) {
	for k, name := range sortKeyNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown sort key %q", s)
}

func (k *SortKey) UnmarshalText(b []byte) error {
	parsed, err := ParseSortKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k SortKey) compare(a, b *Entry) int {
	switch k {
	case SortByChannel:
		return cmp.Compare(a.ChannelID, b.ChannelID)
	case SortByCaptureTime:
		return cmp.Compare(a.CaptureTime, b.CaptureTime)
	case SortByFileType:
		return cmp.Compare(a.FileType.String(), b.FileType.String())
	case SortByMAC:
		return bytes.Compare(a.MAC[:], b.MAC[:])
	default:
		return 0
	}
}

// Sort orders entries by keys, the first key being primary. The sort is
// stable: entries equal under every key keep their order. Without keys the
// entries are ordered by ascending capture time.
func Sort(entries []Entry, keys ...SortKey) {
	if len(keys) == 0 {
		keys = []SortKey{SortByCaptureTime}
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		for _, k := range keys {
			if c := k.compare(&a, &b); c != 0 {
				return c
			}
		}
		return 0
	})
}
