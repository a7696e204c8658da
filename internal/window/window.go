// SPDX-License-Identifier: MIT
/*
Package window builds the coefficient tensors the filter consumes: the
analysis/synthesis window, the per-bin noise profile and the window's mean
spectrum.

The spatial window is the outer product of one periodic 1-D shape with
itself, the temporal window a symmetric shape over 2r+1 frames. The tensor
is normalized so that overlap-adding analysis x synthesis over the block
grid has unit gain for the center frame, provided the squared spatial shape
sums to a constant at the chosen step (rectangular at any step, sine at
B/2, Hann at B/4).
*/
package window

import (
	"errors"
	"fmt"
	"strings"

	"dfttest/internal/rdft"
	"dfttest/internal/spectral"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Func selects a 1-D window shape.
type Func int

const (
	Rectangular Func = iota
	Sine
	Hann
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Nuttall
	Lanczos
)

var funcNames = [...]string{
	Rectangular:     "rectangular",
	Sine:            "sine",
	Hann:            "hann",
	Hamming:         "hamming",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	BartlettHann:    "bartletthann",
	Nuttall:         "nuttall",
	Lanczos:         "lanczos",
}

var (
	ErrUnknownFunc = errors.New("window: unknown window function")
	ErrGeometry    = errors.New("window: invalid block geometry")
	ErrSigma       = errors.New("window: sigma array has wrong length")
	ErrDegenerate  = errors.New("window: window has no energy")
)

func (f Func) String() string {
	if f < Rectangular || f > Lanczos {
		return fmt.Sprintf("Func(%d)", int(f))
	}
	return funcNames[f]
}

// ParseFunc converts a case-insensitive name to a Func. "hanning" and
// "sqrthann" are accepted as aliases of Hann and Sine.
func ParseFunc(name string) (Func, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "hanning":
		return Hann, nil
	case "sqrthann", "sqrt_hann":
		return Sine, nil
	case "rect", "flat", "boxcar":
		return Rectangular, nil
	default:
		for i, s := range funcNames {
			if s == n {
				return Func(i), nil
			}
		}
	}
	return Hann, fmt.Errorf("%w: '%s'", ErrUnknownFunc, name)
}

// apply multiplies seq in place by the shape of f.
func apply(seq []float64, f Func) {
	switch f {
	case Rectangular:
		window.Rectangular(seq)
	case Sine:
		window.Sine(seq)
	case Hann:
		window.Hann(seq)
	case Hamming:
		window.Hamming(seq)
	case Blackman:
		window.Blackman(seq)
	case BlackmanNuttall:
		window.BlackmanNuttall(seq)
	case BartlettHann:
		window.BartlettHann(seq)
	case Nuttall:
		window.Nuttall(seq)
	case Lanczos:
		window.Lanczos(seq)
	}
}

func ones(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

// Periodic returns the n-point periodic form of f: the symmetric n+1 point
// window without its last sample.
func Periodic(f Func, n int) []float64 {
	seq := ones(n + 1)
	apply(seq, f)
	return seq[:n]
}

// Temporal returns the 2r+1 frame weights of f. The shape is evaluated on
// 2r+3 points and both zero-valued ends are dropped, so every frame in the
// window contributes.
func Temporal(f Func, radius int) []float64 {
	seq := ones(2*radius + 3)
	apply(seq, f)
	return seq[1 : 2*radius+2]
}

// Params describes the block geometry and window shapes.
type Params struct {
	Radius    int
	BlockSize int
	BlockStep int
	Spatial   Func
	Temporal  Func
}

func (p Params) validate() error {
	if p.Radius < 0 || p.BlockSize < 1 || p.BlockStep < 1 || p.BlockStep > p.BlockSize {
		return fmt.Errorf("%w: radius %d, block %d, step %d", ErrGeometry, p.Radius, p.BlockSize, p.BlockStep)
	}
	if p.Spatial < Rectangular || p.Spatial > Lanczos || p.Temporal < Rectangular || p.Temporal > Lanczos {
		return fmt.Errorf("%w: %v/%v", ErrUnknownFunc, p.Spatial, p.Temporal)
	}
	return nil
}

// Tensor returns the normalized (2r+1) x B x B window. Its center slice is
// the synthesis window.
func Tensor(p Params) ([]float64, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	b := p.BlockSize
	spatial := Periodic(p.Spatial, b)
	temporal := Temporal(p.Temporal, p.Radius)

	// Mean overlap energy of one axis at this step.
	energy := floats.Dot(spatial, spatial) / float64(p.BlockStep)
	center := temporal[p.Radius]
	if energy == 0 || center == 0 {
		return nil, fmt.Errorf("%w: %v spatial, %v temporal", ErrDegenerate, p.Spatial, p.Temporal)
	}
	if center < 0 {
		center = -center
	}
	norm := 1 / (center * energy)

	out := make([]float64, spectral.BlockLen(p.Radius, b))
	for t, wt := range temporal {
		for y, wy := range spatial {
			row := out[(t*b+y)*b : (t*b+y+1)*b]
			copy(row, spatial)
			floats.Scale(norm*wt*wy, row)
		}
	}
	return out, nil
}

// Coefficients is everything the filter needs besides its scalar options.
type Coefficients struct {
	Window     []float64
	Sigma      []float64
	WindowFreq []float64 // interleaved (re, im)
	PMin       float64
	PMax       float64
}

// Noise holds the user facing noise parameters before window scaling.
type Noise struct {
	Sigma      float64
	SigmaArray []float64 // optional per-bin override, (2r+1) x B x (B/2+1)
	PMin       float64
	PMax       float64
	Type       spectral.FilterType
}

// Build computes the window tensor, the per-bin noise profile and the mean
// spectrum. Noise powers are given per sample and grow with the window
// energy in the frequency domain; which parameters are powers depends on
// the filter type.
func Build(p Params, n Noise) (*Coefficients, error) {
	w, err := Tensor(p)
	if err != nil {
		return nil, err
	}
	if !n.Type.Valid() {
		return nil, fmt.Errorf("%w: %d", spectral.ErrFilterType, int(n.Type))
	}

	bins := spectral.SpectrumLen(p.Radius, p.BlockSize)
	sigma := make([]float64, bins)
	switch {
	case n.SigmaArray == nil:
		for i := range sigma {
			sigma[i] = n.Sigma
		}
	case len(n.SigmaArray) != bins:
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrSigma, len(n.SigmaArray), bins)
	default:
		copy(sigma, n.SigmaArray)
	}

	energy := floats.Dot(w, w)
	c := &Coefficients{Window: w, Sigma: sigma, PMin: n.PMin, PMax: n.PMax}
	if n.Type.ScalesWithWindow() {
		floats.Scale(energy, sigma)
	}
	if n.Type.ScalesBand() {
		c.PMin *= energy
		c.PMax *= energy
	}

	freq, err := MeanSpectrum(w, p.Radius, p.BlockSize)
	if err != nil {
		return nil, err
	}
	c.WindowFreq = freq
	return c, nil
}

// MeanSpectrum returns the interleaved spectrum of a window tensor.
func MeanSpectrum(w []float64, radius, blockSize int) ([]float64, error) {
	freq, err := rdft.Transform(w, []int{2*radius + 1, blockSize, blockSize})
	if err != nil {
		return nil, err
	}
	return rdft.Interleave(freq), nil
}
