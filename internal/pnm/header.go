package pnm

import (
	"encoding/binary"
	"fmt"
	"time"
)

// HeaderSize is the fixed width of the capture envelope:
//
//	tag[4] | major u8 | minor u8 | captureTime u32 | channelId u8
const HeaderSize = TagSize + 1 + 1 + 4 + 1

// ChannelID identifies a DOCSIS channel. Channel ids start at 1; NoChannel marks
// captures that carry no channel.
type ChannelID int

const NoChannel ChannelID = -1

func (c ChannelID) Valid() bool {
	return c > 0 && c <= 0xFF
}

func (c ChannelID) String() string {
	if !c.Valid() {
		return "none"
	}
	return fmt.Sprintf("%d", int(c))
}

// Version is the format version of a capture file.
type Version struct {
	Major uint8 `json:"major"`
	Minor uint8 `json:"minor"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CaptureHeader is the envelope every capture shares.
type CaptureHeader struct {
	FormatVersion Version   `json:"formatVersion"`
	FileType      FileType  `json:"fileType"`
	ChannelID     ChannelID `json:"channelId"`   // NoChannel when absent
	CaptureTime   uint32    `json:"captureTime"` // Unix epoch seconds
}

// Time returns the capture time as a UTC time.
func (h CaptureHeader) Time() time.Time {
	return time.Unix(int64(h.CaptureTime), 0).UTC()
}

// DecodeHeader parses the envelope and returns it together with the bytes that follow it.
func DecodeHeader(b []byte) (CaptureHeader, []byte, error) {
	var h CaptureHeader
	if len(b) < HeaderSize {
		return h, nil, &DecodeError{
			Err:   ErrMalformedHeader,
			Field: "header",
			Need:  HeaderSize,
			Have:  len(b),
		}
	}

	var tag [TagSize]byte
	copy(tag[:], b[:TagSize])

	ft, ok := fileTypeByTag(tag)
	if !ok {
		return h, nil, fmt.Errorf("%w: tag %q", ErrUnknownFileType, tag[:])
	}

	h.FileType = ft
	h.FormatVersion = Version{Major: b[4], Minor: b[5]}
	h.CaptureTime = binary.BigEndian.Uint32(b[6:10])
	h.ChannelID = NoChannel
	if ch := b[10]; ch != 0 {
		h.ChannelID = ChannelID(ch)
	}

	return h, b[HeaderSize:], nil
}

// AppendHeader appends the wire form of h to dst.
func AppendHeader(dst []byte, h CaptureHeader) ([]byte, error) {
	tag, ok := h.FileType.Tag()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFileType, h.FileType)
	}

	var ch uint8
	switch {
	case h.ChannelID == NoChannel, h.ChannelID == 0:
	case h.ChannelID.Valid():
		ch = uint8(h.ChannelID)
	default:
		return nil, fmt.Errorf("channel id %d does not fit the header", int(h.ChannelID))
	}

	dst = append(dst, tag[:]...)
	dst = append(dst, h.FormatVersion.Major, h.FormatVersion.Minor)
	dst = binary.BigEndian.AppendUint32(dst, h.CaptureTime)
	dst = append(dst, ch)
	return dst, nil
}

// MarshalBinary encodes the header. It is the inverse of DecodeHeader.
func (h CaptureHeader) MarshalBinary() ([]byte, error) {
	return AppendHeader(make([]byte, 0, HeaderSize), h)
}

func (h *CaptureHeader) UnmarshalBinary(b []byte) error {
	parsed, rest, err := DecodeHeader(b)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: %d bytes after header", ErrMalformedHeader, len(rest))
	}
	*h = parsed
	return nil
}
