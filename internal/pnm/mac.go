package pnm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMAC is returned for strings that are not a colon- or hyphen-delimited 48-bit address.
var ErrInvalidMAC = errors.New("invalid MAC address")

// MAC is a 48-bit hardware address. It is an opaque indexing key; only its
// syntax is ever validated.
type MAC [6]byte

// ParseMAC accepts six two-digit hex octets separated consistently by ':' or '-'.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	if len(s) != 17 {
		return m, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}

	sep := s[2]
	if sep != ':' && sep != '-' {
		return m, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}

	for i := 0; i < 6; i++ {
		pos := i * 3
		if i > 0 && s[pos-1] != sep {
			return m, fmt.Errorf("%w: %q: mixed separators", ErrInvalidMAC, s)
		}
		hi, okHi := fromHex(s[pos])
		lo, okLo := fromHex(s[pos+1])
		if !okHi || !okLo {
			return m, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
		}
		m[i] = hi<<4 | lo
	}
	return m, nil
}

// MustParseMAC is like ParseMAC but panics on error. Intended for constants and tests.
func MustParseMAC(s string) MAC {
	m, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String returns the lowercase colon-delimited form.
func (m MAC) String() string {
	var sb strings.Builder
	sb.Grow(17)
	for i, b := range m {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}

func (m MAC) IsZero() bool {
	return m == MAC{}
}

func (m MAC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MAC) UnmarshalText(text []byte) error {
	parsed, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
