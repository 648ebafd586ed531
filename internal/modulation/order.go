// Package modulation provides the QAM reference constellations used to
// classify captured symbols, and the deterministic bit and codeword sources
// used to build synthetic captures.
package modulation

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// ErrUnsupportedModulationOrder is returned for any order without a reference table.
var ErrUnsupportedModulationOrder = errors.New("unsupported modulation order")

// Order is the number of points of a square QAM constellation.
type Order int

const (
	QPSK    Order = 4
	QAM16   Order = 16
	QAM64   Order = 64
	QAM256  Order = 256
	QAM1024 Order = 1024
	QAM4096 Order = 4096
)

var orders = []Order{QPSK, QAM16, QAM64, QAM256, QAM1024, QAM4096}

// Orders lists the supported orders, smallest first.
func Orders() []Order {
	return append([]Order(nil), orders...)
}

// ParseOrder validates n as a supported order. There is no nearest-order fallback.
func ParseOrder(n int) (Order, error) {
	for _, o := range orders {
		if int(o) == n {
			return o, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrUnsupportedModulationOrder, n)
}

func (o Order) Valid() bool {
	_, err := ParseOrder(int(o))
	return err == nil
}

// BitsPerSymbol is log2 of the order.
func (o Order) BitsPerSymbol() int {
	return bits.TrailingZeros(uint(o))
}

// MaxCodeword is the largest codeword a single symbol can carry.
func (o Order) MaxCodeword() uint32 {
	return uint32(1)<<o.BitsPerSymbol() - 1
}

// side is the number of levels on each axis.
func (o Order) side() int {
	return 1 << (o.BitsPerSymbol() / 2)
}

func (o Order) String() string {
	if o == QPSK {
		return "qpsk"
	}
	return "qam" + strconv.Itoa(int(o))
}

func (o Order) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedModulationOrder, int(o))
	}
	return []byte(o.String()), nil
}

func (o *Order) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	if s == "qpsk" {
		*o = QPSK
		return nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(s, "qam"))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnsupportedModulationOrder, b)
	}
	parsed, err := ParseOrder(n)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
