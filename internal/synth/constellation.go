package synth

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/roman-kulish/docsis-pnm/internal/modulation"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

// ConstellationOptions describes a synthetic constellation display capture.
type ConstellationOptions struct {
	Order   modulation.Order
	Samples int
	Layout  pnm.SubcarrierLayout

	// Polynomial and Seed drive the PRBS the codewords are drawn from.
	// A zero Polynomial selects PRBS23.
	Polynomial modulation.Polynomial
	Seed       uint32

	// Noise is the standard deviation of the gaussian noise added to each
	// axis of every symbol, relative to the unit average symbol energy.
	Noise     float64
	NoiseSeed uint64
}

// Constellation is a built capture together with the codewords its samples were mapped from.
type Constellation struct {
	Raw       []byte
	Codewords []uint32
}

// NewConstellation builds a constellation display capture. Samples are
// encoded as s2.13.
func NewConstellation(h pnm.CaptureHeader, mac pnm.MAC, opts ConstellationOptions) (*Constellation, error) {
	if opts.Samples < 0 || opts.Samples > math.MaxUint16 {
		return nil, fmt.Errorf("sample count %d out of range", opts.Samples)
	}
	if opts.Noise < 0 {
		return nil, fmt.Errorf("negative noise %v", opts.Noise)
	}

	poly := opts.Polynomial
	if poly == (modulation.Polynomial{}) {
		poly = modulation.PRBS23
	}
	prbs, err := modulation.NewPRBS(poly, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("creating bit source: %w", err)
	}

	codewords, err := modulation.Codewords(opts.Order, opts.Samples, prbs.Bits(-1))
	if err != nil {
		return nil, fmt.Errorf("drawing codewords: %w", err)
	}
	symbols, err := modulation.Symbols(opts.Order, codewords)
	if err != nil {
		return nil, fmt.Errorf("mapping codewords: %w", err)
	}

	b, err := header(h, pnm.FileTypeConstellation, 6+4+7+4*len(symbols))
	if err != nil {
		return nil, err
	}

	b = append(b, mac[:]...)
	b = binary.BigEndian.AppendUint16(b, uint16(opts.Order))
	b = binary.BigEndian.AppendUint16(b, uint16(len(symbols)))
	b = appendLayout(b, opts.Layout)

	noise := rand.New(rand.NewSource(opts.NoiseSeed))
	for _, s := range symbols {
		i, q := s.I, s.Q
		if opts.Noise > 0 {
			i += noise.NormFloat64() * opts.Noise
			q += noise.NormFloat64() * opts.Noise
		}
		b = appendComplex(b, fixed(i, s2_13), fixed(q, s2_13))
	}

	return &Constellation{Raw: b, Codewords: codewords}, nil
}
