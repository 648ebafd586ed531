package pnm

import "encoding/binary"

// cursor walks a payload strictly forward. Every read checks the remaining
// length first, so a short buffer surfaces as ErrTruncatedPayload with the
// offset of the field that could not be read.
type cursor struct {
	ft  FileType
	buf []byte
	off int
}

func newCursor(ft FileType, b []byte) *cursor {
	return &cursor{ft: ft, buf: b}
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

func (c *cursor) need(field string, n int) error {
	if n < 0 || c.remaining() < n {
		return &DecodeError{
			Err:      ErrTruncatedPayload,
			FileType: c.ft,
			Field:    field,
			Offset:   c.off,
			Need:     n,
			Have:     c.remaining(),
		}
	}
	return nil
}

func (c *cursor) u8(field string) (uint8, error) {
	if err := c.need(field, 1); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *cursor) u16(field string) (uint16, error) {
	if err := c.need(field, 2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

func (c *cursor) u32(field string) (uint32, error) {
	if err := c.need(field, 4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

func (c *cursor) i16(field string) (int16, error) {
	v, err := c.u16(field)
	return int16(v), err
}

// bytes returns a copy so decoded records never alias the caller's buffer.
func (c *cursor) bytes(field string, n int) ([]byte, error) {
	if err := c.need(field, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[c.off:c.off+n])
	c.off += n
	return out, nil
}

func (c *cursor) mac(field string) (MAC, error) {
	var m MAC
	if err := c.need(field, len(m)); err != nil {
		return m, err
	}
	copy(m[:], c.buf[c.off:])
	c.off += len(m)
	return m, nil
}

// length reads a u32 byte length and checks it against the remaining bytes and
// the element width.
func (c *cursor) length(field string, width int) (int, error) {
	n, err := c.u32(field + " length")
	if err != nil {
		return 0, err
	}
	if err = c.need(field, int(n)); err != nil {
		return 0, err
	}
	if rem := int(n) % width; rem != 0 {
		return 0, &DecodeError{
			Err:      ErrTruncatedPayload,
			FileType: c.ft,
			Field:    field + " element",
			Offset:   c.off + int(n) - rem,
			Need:     width,
			Have:     rem,
		}
	}
	return int(n) / width, nil
}

func (c *cursor) complexes(field string, count int) ([]Complex, error) {
	if err := c.need(field, count*4); err != nil {
		return nil, err
	}
	out := make([]Complex, count)
	for i := range out {
		out[i].Real = int16(binary.BigEndian.Uint16(c.buf[c.off:]))
		out[i].Imag = int16(binary.BigEndian.Uint16(c.buf[c.off+2:]))
		c.off += 4
	}
	return out, nil
}

func (c *cursor) u32s(field string, count int) ([]uint32, error) {
	if err := c.need(field, count*4); err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(c.buf[c.off:])
		c.off += 4
	}
	return out, nil
}

func (c *cursor) layout() (SubcarrierLayout, error) {
	var (
		l   SubcarrierLayout
		err error
	)
	if l.ZeroFrequency, err = c.u32("subcarrier zero frequency"); err != nil {
		return l, err
	}
	if l.FirstActiveIndex, err = c.u16("first active subcarrier"); err != nil {
		return l, err
	}
	if l.SpacingKHz, err = c.u8("subcarrier spacing"); err != nil {
		return l, err
	}
	return l, nil
}

// finish reports unread bytes as a warning; they never fail the decode.
func (c *cursor) finish() []Warning {
	if n := c.remaining(); n > 0 {
		return []Warning{{Kind: WarningTrailingBytes, FileType: c.ft, Offset: c.off, Bytes: n}}
	}
	return nil
}
