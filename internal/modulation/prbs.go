package modulation

import (
	"errors"
	"fmt"
	"iter"
	"math/bits"
)

// ErrInvalidSeed is returned for a seed that would lock the shift register at zero.
var ErrInvalidSeed = errors.New("invalid prbs seed")

// Polynomial is a feedback polynomial x^Degree + ... + 1. Mask has bit k-1 set
// for every term x^k other than the constant.
type Polynomial struct {
	Degree int
	Mask   uint32
}

var (
	PRBS7  = Polynomial{Degree: 7, Mask: 1<<6 | 1<<5}    // x^7 + x^6 + 1
	PRBS9  = Polynomial{Degree: 9, Mask: 1<<8 | 1<<4}    // x^9 + x^5 + 1
	PRBS15 = Polynomial{Degree: 15, Mask: 1<<14 | 1<<13} // x^15 + x^14 + 1
	PRBS23 = Polynomial{Degree: 23, Mask: 1<<22 | 1<<17} // x^23 + x^18 + 1
	PRBS31 = Polynomial{Degree: 31, Mask: 1<<30 | 1<<27} // x^31 + x^28 + 1
)

func (p Polynomial) width() uint32 {
	return uint32(1)<<p.Degree - 1
}

// PRBS is a Fibonacci linear feedback shift register. It keeps only its seed,
// so every sequence it hands out starts over from the same state.
type PRBS struct {
	poly Polynomial
	seed uint32
}

// NewPRBS validates the polynomial and the seed. Seed bits above the degree are dropped.
func NewPRBS(poly Polynomial, seed uint32) (*PRBS, error) {
	if poly.Degree < 2 || poly.Degree > 31 {
		return nil, fmt.Errorf("prbs polynomial degree %d out of range", poly.Degree)
	}
	if poly.Mask == 0 || poly.Mask&^poly.width() != 0 {
		return nil, fmt.Errorf("prbs mask %#x does not fit degree %d", poly.Mask, poly.Degree)
	}
	if seed&poly.width() == 0 {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidSeed, seed)
	}
	return &PRBS{poly: poly, seed: seed & poly.width()}, nil
}

func (p *PRBS) Seed() uint32 {
	return p.seed
}

// Bits yields n bits, or an unbounded stream when n is negative. Each range
// over the returned sequence restarts from the seed.
func (p *PRBS) Bits(n int) iter.Seq[uint8] {
	return func(yield func(uint8) bool) {
		state := p.seed
		width := p.poly.width()
		for i := 0; n < 0 || i < n; i++ {
			fb := uint32(bits.OnesCount32(state&p.poly.Mask) & 1)
			state = (state<<1 | fb) & width
			if !yield(uint8(fb)) {
				return
			}
		}
	}
}
