package modulation

import (
	"errors"
	"fmt"
	"iter"
)

// ErrBitsExhausted is returned when a bit source ends before the requested codewords are complete.
var ErrBitsExhausted = errors.New("bit source exhausted")

// Codewords packs BitsPerSymbol bits, most significant first, into each of
// count codewords. Every codeword is at most o.MaxCodeword().
func Codewords(o Order, count int, src iter.Seq[uint8]) ([]uint32, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedModulationOrder, int(o))
	}
	if count < 0 {
		return nil, fmt.Errorf("negative codeword count %d", count)
	}

	next, stop := iter.Pull(src)
	defer stop()

	bps := o.BitsPerSymbol()
	out := make([]uint32, count)
	for i := range out {
		var cw uint32
		for b := 0; b < bps; b++ {
			bit, ok := next()
			if !ok {
				return nil, fmt.Errorf("%w: after %d of %d codewords", ErrBitsExhausted, i, count)
			}
			cw = cw<<1 | uint32(bit&1)
		}
		out[i] = cw
	}
	return out, nil
}

// Symbols maps codewords onto the hard-decision table of o.
func Symbols(o Order, codewords []uint32) ([]Point, error) {
	t, ok := tables[o]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedModulationOrder, int(o))
	}

	out := make([]Point, len(codewords))
	for i, cw := range codewords {
		if cw > o.MaxCodeword() {
			return nil, fmt.Errorf("codeword %d at %d exceeds %s range", cw, i, o)
		}
		out[i] = t[cw]
	}
	return out, nil
}
