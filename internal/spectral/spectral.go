// SPDX-License-Identifier: MIT
/*
Package spectral implements the per-block frequency domain step of the
denoiser: a forward real FFT over the (time, y, x) block volume, an
attenuation curve driven by a per-bin noise profile, and the inverse FFT.

Layout:

	spatial block  [t][y][x]       (2r+1) x B x B    float64
	spectrum       [t][y][x']      (2r+1) x B x B/2+1 complex128

The forward transform is unnormalized, matching package rdft; the inverse
divides by (2r+1)*B*B so that Forward followed by Inverse is the identity.

Filter is immutable and safe for concurrent use. Each goroutine needs its
own Workspace because the gonum plans carry scratch memory.
*/
package spectral

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

var (
	ErrFilterType   = errors.New("spectral: unknown filter type")
	ErrCoefficients = errors.New("spectral: coefficient array has wrong length")
	ErrGeometry     = errors.New("spectral: invalid block geometry")
)

const eps = 1e-15

// Params configures a Filter.
type Params struct {
	Radius    int
	BlockSize int

	// Sigma is the per-bin noise profile, (2r+1)*B*(B/2+1) values.
	Sigma  []float64
	Sigma2 float64
	PMin   float64
	PMax   float64
	Type   FilterType

	// Mean is the spectrum of the analysis window, same length as Sigma.
	// Only consulted when ZeroMean is set.
	ZeroMean bool
	Mean     []complex128
}

// Filter applies one attenuation curve to windowed blocks.
type Filter struct {
	depth     int
	blockSize int
	bins      int

	sigma  []float64
	sigma2 float64
	pmin   float64
	pmax   float64
	typ    FilterType

	zeroMean bool
	mean     []complex128
}

// Workspace holds the FFT plans and the spectrum buffer for one worker.
type Workspace struct {
	depth     int
	blockSize int

	rows     *fourier.FFT      // real transform along x
	cols     *fourier.CmplxFFT // complex transform along y
	temporal *fourier.CmplxFFT // complex transform along t, nil when depth == 1

	freq  []complex128 // (2r+1)*B*(B/2+1)
	col   []complex128 // one y line
	tline []complex128 // one t line
}

// BlockLen returns the number of samples in a block volume.
func BlockLen(radius, blockSize int) int {
	return (2*radius + 1) * blockSize * blockSize
}

// SpectrumLen returns the number of Hermitian-compressed bins of a block.
func SpectrumLen(radius, blockSize int) int {
	return (2*radius + 1) * blockSize * (blockSize/2 + 1)
}

// New validates p and returns a Filter. The coefficient slices are copied.
func New(p Params) (*Filter, error) {
	if p.Radius < 0 || p.BlockSize < 1 {
		return nil, fmt.Errorf("%w: radius %d, block size %d", ErrGeometry, p.Radius, p.BlockSize)
	}
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrFilterType, int(p.Type))
	}

	n := SpectrumLen(p.Radius, p.BlockSize)
	if len(p.Sigma) != n {
		return nil, fmt.Errorf("%w: sigma has %d values, want %d", ErrCoefficients, len(p.Sigma), n)
	}
	if p.ZeroMean && len(p.Mean) != n {
		return nil, fmt.Errorf("%w: mean spectrum has %d bins, want %d", ErrCoefficients, len(p.Mean), n)
	}

	f := &Filter{
		depth:     2*p.Radius + 1,
		blockSize: p.BlockSize,
		bins:      n,
		sigma:     append([]float64(nil), p.Sigma...),
		sigma2:    p.Sigma2,
		pmin:      p.PMin,
		pmax:      p.PMax,
		typ:       p.Type,
		zeroMean:  p.ZeroMean,
	}
	if p.ZeroMean {
		f.mean = append([]complex128(nil), p.Mean...)
	}
	return f, nil
}

// Type returns the configured attenuation curve.
func (f *Filter) Type() FilterType {
	return f.typ
}

// NewWorkspace allocates plans and buffers for blocks of the filter's shape.
func (f *Filter) NewWorkspace() *Workspace {
	return NewWorkspace((f.depth-1)/2, f.blockSize)
}

// NewWorkspace allocates plans and buffers for (2r+1) x B x B blocks.
func NewWorkspace(radius, blockSize int) *Workspace {
	depth := 2*radius + 1
	ws := &Workspace{
		depth:     depth,
		blockSize: blockSize,
		rows:      fourier.NewFFT(blockSize),
		cols:      fourier.NewCmplxFFT(blockSize),
		freq:      make([]complex128, SpectrumLen(radius, blockSize)),
		col:       make([]complex128, blockSize),
		tline:     make([]complex128, depth),
	}
	if depth > 1 {
		ws.temporal = fourier.NewCmplxFFT(depth)
	}
	return ws
}

// Spectrum exposes the workspace's frequency buffer, valid after Forward.
func (ws *Workspace) Spectrum() []complex128 {
	return ws.freq
}

// Forward transforms block into the workspace spectrum.
func (ws *Workspace) Forward(block []float64) {
	b, half := ws.blockSize, ws.blockSize/2+1

	for i := range ws.depth * b {
		ws.rows.Coefficients(ws.freq[i*half:(i+1)*half], block[i*b:(i+1)*b])
	}

	for t := range ws.depth {
		slice := ws.freq[t*b*half : (t+1)*b*half]
		for x := range half {
			for y := range b {
				ws.col[y] = slice[y*half+x]
			}
			ws.cols.Coefficients(ws.col, ws.col)
			for y := range b {
				slice[y*half+x] = ws.col[y]
			}
		}
	}

	if ws.temporal == nil {
		return
	}
	stride := b * half
	for i := range stride {
		for t := range ws.depth {
			ws.tline[t] = ws.freq[t*stride+i]
		}
		ws.temporal.Coefficients(ws.tline, ws.tline)
		for t := range ws.depth {
			ws.freq[t*stride+i] = ws.tline[t]
		}
	}
}

// Inverse transforms the workspace spectrum back into block, normalized.
func (ws *Workspace) Inverse(block []float64) {
	b, half := ws.blockSize, ws.blockSize/2+1
	stride := b * half

	if ws.temporal != nil {
		for i := range stride {
			for t := range ws.depth {
				ws.tline[t] = ws.freq[t*stride+i]
			}
			ws.temporal.Sequence(ws.tline, ws.tline)
			for t := range ws.depth {
				ws.freq[t*stride+i] = ws.tline[t]
			}
		}
	}

	for t := range ws.depth {
		slice := ws.freq[t*stride : (t+1)*stride]
		for x := range half {
			for y := range b {
				ws.col[y] = slice[y*half+x]
			}
			ws.cols.Sequence(ws.col, ws.col)
			for y := range b {
				slice[y*half+x] = ws.col[y]
			}
		}
	}

	scale := 1 / float64(ws.depth*b*b)
	for i := range ws.depth * b {
		row := block[i*b : (i+1)*b]
		ws.rows.Sequence(row, ws.freq[i*half:(i+1)*half])
		for j := range row {
			row[j] *= scale
		}
	}
}

// Apply filters a windowed block in place.
func (f *Filter) Apply(ws *Workspace, block []float64) {
	ws.Forward(block)
	f.Attenuate(ws.freq)
	ws.Inverse(block)
}

// Attenuate applies the zero-mean step and the attenuation curve to a
// spectrum of the filter's shape.
func (f *Filter) Attenuate(freq []complex128) {
	var gf float64
	if f.zeroMean {
		if m0 := real(f.mean[0]); m0 != 0 {
			gf = real(freq[0]) / m0
			for i, m := range f.mean {
				freq[i] -= complex(gf, 0) * m
			}
		}
	}

	for i, c := range freq {
		psd := real(c)*real(c) + imag(c)*imag(c)
		freq[i] = c * complex(f.multiplier(psd, f.sigma[i]), 0)
	}

	if gf != 0 {
		for i, m := range f.mean {
			freq[i] += complex(gf, 0) * m
		}
	}
}

func (f *Filter) multiplier(psd, sigma float64) float64 {
	switch f.typ {
	case Wiener:
		return math.Max((psd-sigma)/(psd+eps), 0)
	case HardThreshold:
		if psd < sigma {
			return 0
		}
		return 1
	case Multiplier:
		return sigma
	case BandMultiplier:
		if psd >= f.pmin && psd <= f.pmax {
			return sigma
		}
		return f.sigma2
	case ModifiedMultiplier:
		return sigma * math.Sqrt(psd*f.pmax/((psd+f.pmin)*(psd+f.pmax)+eps))
	case GeneralizedWiener:
		return math.Pow(math.Max((psd-sigma)/(psd+eps), 0), f.pmin)
	case SqrtWiener:
		return math.Sqrt(math.Max((psd-sigma)/(psd+eps), 0))
	default:
		return 1
	}
}
