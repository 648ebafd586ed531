package pnm

import (
	"fmt"
	"strings"
)

// FileType identifies the payload layout of a capture. The set is closed: every
// value below has exactly one wire tag and exactly one payload decoder.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeChannelEstimate
	FileTypeConstellation
	FileTypeRxMER
	FileTypeHistogram
	FileTypePreEqualizer
	FileTypeFECSummary
	FileTypeSpectrum
	FileTypeLatency
)

// TagSize is the width of the file-type tag that opens every capture.
const TagSize = 4

var fileTypes = [...]struct {
	tag  [TagSize]byte
	name string
}{
	FileTypeUnknown:         {name: "unknown"},
	FileTypeChannelEstimate: {tag: [TagSize]byte{'P', 'N', 'N', 0x02}, name: "channel-estimate"},
	FileTypeConstellation:   {tag: [TagSize]byte{'P', 'N', 'N', 0x03}, name: "constellation"},
	FileTypeRxMER:           {tag: [TagSize]byte{'P', 'N', 'N', 0x04}, name: "rxmer"},
	FileTypeHistogram:       {tag: [TagSize]byte{'P', 'N', 'N', 0x05}, name: "histogram"},
	FileTypePreEqualizer:    {tag: [TagSize]byte{'P', 'N', 'N', 0x06}, name: "pre-equalizer"},
	FileTypeFECSummary:      {tag: [TagSize]byte{'P', 'N', 'N', 0x08}, name: "fec-summary"},
	FileTypeSpectrum:        {tag: [TagSize]byte{'P', 'N', 'N', 0x09}, name: "spectrum"},
	FileTypeLatency:         {tag: [TagSize]byte{'L', 'L', 'D', 0x01}, name: "latency"},
}

// FileTypes returns every known file type in enumeration order.
func FileTypes() []FileType {
	out := make([]FileType, 0, len(fileTypes)-1)
	for ft := FileTypeChannelEstimate; int(ft) < len(fileTypes); ft++ {
		out = append(out, ft)
	}
	return out
}

func (ft FileType) Known() bool {
	return ft > FileTypeUnknown && int(ft) < len(fileTypes)
}

func (ft FileType) String() string {
	if !ft.Known() {
		return fmt.Sprintf("unknown(%d)", uint8(ft))
	}
	return fileTypes[ft].name
}

// Tag returns the wire tag of the file type.
func (ft FileType) Tag() ([TagSize]byte, bool) {
	if !ft.Known() {
		return [TagSize]byte{}, false
	}
	return fileTypes[ft].tag, true
}

func (ft FileType) MarshalText() ([]byte, error) {
	if !ft.Known() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFileType, uint8(ft))
	}
	return []byte(ft.String()), nil
}

func (ft *FileType) UnmarshalText(text []byte) error {
	parsed, err := ParseFileType(string(text))
	if err != nil {
		return err
	}
	*ft = parsed
	return nil
}

// ParseFileType resolves a file type by its name, as returned by String.
func ParseFileType(name string) (FileType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, ft := range FileTypes() {
		if fileTypes[ft].name == name {
			return ft, nil
		}
	}
	return FileTypeUnknown, fmt.Errorf("%w: %q", ErrUnknownFileType, name)
}

func fileTypeByTag(tag [TagSize]byte) (FileType, bool) {
	for _, ft := range FileTypes() {
		if fileTypes[ft].tag == tag {
			return ft, true
		}
	}
	return FileTypeUnknown, false
}
