// SPDX-License-Identifier: MIT
/*
Package dfttest implements a block-based frequency domain video denoiser.

For each output frame the filter:
  - reflection-pads the 2r+1 input planes around it (Pad)
  - slides a B x B block grid with step S across the padded planes
  - windows each (2r+1) x B x B volume, filters it in the frequency domain
    (package spectral) and overlap-adds its center slice into a float
    accumulator
  - crops and quantizes the accumulator into the output plane

Thread Safety:
  - Filter is immutable after New and shared by all workers
  - every worker passes its own WorkerID; scratch buffers are per worker
  - the denormal mode is switched per call and restored on return
*/
package dfttest

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"dfttest/internal/fpmode"
	"dfttest/internal/log"
	"dfttest/internal/plane"
	"dfttest/internal/rdft"
	"dfttest/internal/spectral"
)

// Limits and defaults of the filter geometry.
const (
	DefaultBlockSize = 16
	MaxRadius        = 3
	MaxPlanes        = 3
)

var (
	ErrRadius       = errors.New(`dfttest: "radius" must be in [0, 1, 2, 3]`)
	ErrBlockSize    = errors.New(`dfttest: "block_size" must be 16`)
	ErrBlockStep    = errors.New(`dfttest: "block_step" must be positive`)
	ErrPlaneIndex   = errors.New("dfttest: plane index out of range")
	ErrPlaneTwice   = errors.New("dfttest: plane specified twice")
	ErrFilterType   = errors.New("dfttest: unknown filter type")
	ErrCoefficients = errors.New("dfttest: coefficient array has wrong length")
	ErrDimensions   = errors.New("dfttest: invalid clip dimensions")
	ErrFrames       = errors.New("dfttest: temporal window does not match the clip")
)

// Config describes the clip and the filter parameters. It is validated and
// copied by New; later changes by the caller have no effect.
type Config struct {
	// Clip properties.
	Format    plane.Format
	Width     int
	Height    int
	NumFrames int

	// Geometry. BlockStep 0 means BlockSize.
	Radius    int
	BlockSize int
	BlockStep int

	// Planes lists the plane indices to filter; nil filters all planes.
	// Unlisted planes are copied from the center frame.
	Planes []int

	// Window is the analysis window, (2r+1) x B x B. Its center slice is
	// also the synthesis window.
	Window []float64
	// Sigma is the per-bin noise profile, (2r+1) x B x (B/2+1).
	Sigma      []float64
	Sigma2     float64
	PMin       float64
	PMax       float64
	FilterType spectral.FilterType

	// ZeroMean removes the window's spectrum, scaled to the block's DC,
	// before attenuation. WindowFreq holds that spectrum as interleaved
	// (re, im) pairs, 2 x (2r+1) x B x (B/2+1) values.
	ZeroMean   bool
	WindowFreq []float64

	// Workers is the number of distinct WorkerIDs that will call Process.
	// 0 means runtime.GOMAXPROCS(0).
	Workers int
}

// DefaultConfig returns the parameter defaults: radius 0, 16x16 blocks
// without overlap, every plane, zero-mean on.
func DefaultConfig() Config {
	return Config{
		BlockSize: DefaultBlockSize,
		ZeroMean:  true,
	}
}

// Filter denoises frames of one clip.
type Filter struct {
	format    plane.Format
	width     int
	height    int
	numFrames int

	radius    int
	blockSize int
	blockStep int
	process   [MaxPlanes]bool

	window    []float64
	synthesis []float64
	spectral  *spectral.Filter
	pool      *ScratchPool
}

// New validates cfg and builds a Filter. Every error wraps one of the
// package's sentinel errors; no buffers are allocated on failure.
func New(cfg Config) (*Filter, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.NumFrames <= 0 {
		return nil, fmt.Errorf("%w: %dx%d, %d frames", ErrDimensions, cfg.Width, cfg.Height, cfg.NumFrames)
	}
	if cfg.Radius < 0 || cfg.Radius > MaxRadius {
		return nil, fmt.Errorf("%w: got %d", ErrRadius, cfg.Radius)
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.BlockSize != DefaultBlockSize {
		return nil, fmt.Errorf("%w: got %d", ErrBlockSize, cfg.BlockSize)
	}
	if cfg.BlockStep == 0 {
		cfg.BlockStep = cfg.BlockSize
	}
	// Any positive step is accepted. Unit overlap gain is a property of
	// the supplied window at that step, and steps above the block size
	// leave gaps that come out as zero.
	if cfg.BlockStep < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrBlockStep, cfg.BlockStep)
	}
	if !cfg.FilterType.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrFilterType, int(cfg.FilterType))
	}

	var process [MaxPlanes]bool
	if len(cfg.Planes) == 0 {
		for i := range cfg.Format.NumPlanes {
			process[i] = true
		}
	}
	for _, p := range cfg.Planes {
		if p < 0 || p >= cfg.Format.NumPlanes {
			return nil, fmt.Errorf("%w: %d", ErrPlaneIndex, p)
		}
		if process[p] {
			return nil, fmt.Errorf("%w: %d", ErrPlaneTwice, p)
		}
		process[p] = true
	}

	blockLen := spectral.BlockLen(cfg.Radius, cfg.BlockSize)
	bins := spectral.SpectrumLen(cfg.Radius, cfg.BlockSize)
	if len(cfg.Window) != blockLen {
		return nil, fmt.Errorf("%w: window has %d values, want %d", ErrCoefficients, len(cfg.Window), blockLen)
	}
	if len(cfg.Sigma) != bins {
		return nil, fmt.Errorf("%w: sigma has %d values, want %d", ErrCoefficients, len(cfg.Sigma), bins)
	}
	var mean []complex128
	if cfg.ZeroMean {
		if len(cfg.WindowFreq) != 2*bins {
			return nil, fmt.Errorf("%w: window_freq has %d values, want %d", ErrCoefficients, len(cfg.WindowFreq), 2*bins)
		}
		mean = rdft.Deinterleave(cfg.WindowFreq)
	}

	sf, err := spectral.New(spectral.Params{
		Radius:    cfg.Radius,
		BlockSize: cfg.BlockSize,
		Sigma:     cfg.Sigma,
		Sigma2:    cfg.Sigma2,
		PMin:      cfg.PMin,
		PMax:      cfg.PMax,
		Type:      cfg.FilterType,
		ZeroMean:  cfg.ZeroMean,
		Mean:      mean,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	window := append([]float64(nil), cfg.Window...)
	area := cfg.BlockSize * cfg.BlockSize
	padW := PadSize(cfg.Width, cfg.BlockSize, cfg.BlockStep)
	padH := PadSize(cfg.Height, cfg.BlockSize, cfg.BlockStep)
	depth := 2*cfg.Radius + 1

	f := &Filter{
		format:    cfg.Format,
		width:     cfg.Width,
		height:    cfg.Height,
		numFrames: cfg.NumFrames,
		radius:    cfg.Radius,
		blockSize: cfg.BlockSize,
		blockStep: cfg.BlockStep,
		process:   process,
		window:    window,
		synthesis: window[cfg.Radius*area : (cfg.Radius+1)*area],
		spectral:  sf,
	}
	// Plane 0 is never smaller than the chroma planes, so its padded size
	// bounds every plane.
	f.pool = NewScratchPool(cfg.Workers,
		depth*padW*padH*cfg.Format.BytesPerSample(),
		padW*padH,
		blockLen,
		sf.NewWorkspace)

	log.Infof("dfttest: %dx%d %s/%d-bit, radius %d, block %d step %d, %s filter, zero mean %v, %d workers",
		cfg.Width, cfg.Height, cfg.Format.SampleType, cfg.Format.BitsPerSample,
		cfg.Radius, cfg.BlockSize, cfg.BlockStep, cfg.FilterType, cfg.ZeroMean, cfg.Workers)

	return f, nil
}

// Radius returns the temporal radius.
func (f *Filter) Radius() int {
	return f.radius
}

// Workers returns the number of worker ids the filter accepts.
func (f *Filter) Workers() int {
	return f.pool.Workers()
}

// RequestRange returns the inclusive range of input frames output frame n
// depends on.
func (f *Filter) RequestRange(n int) (start, end int) {
	return max(n-f.radius, 0), min(n+f.radius, f.numFrames-1)
}

// TemporalIndices returns the 2r+1 input indices forming the temporal
// window of frame n, clamped at the clip boundaries.
func (f *Filter) TemporalIndices(n int) []int {
	idx := make([]int, 2*f.radius+1)
	for i := range idx {
		idx[i] = min(max(n-f.radius+i, 0), f.numFrames-1)
	}
	return idx
}

// Process filters the center of frames, which must hold the 2r+1 frames
// returned for TemporalIndices, and returns a newly allocated frame.
// worker must be in [0, Workers()) and must not be used by two goroutines
// at the same time.
func (f *Filter) Process(worker WorkerID, frames []*plane.Frame) (*plane.Frame, error) {
	if err := f.checkFrames(frames); err != nil {
		return nil, err
	}

	fp := fpmode.Enter()
	defer fp.Restore()

	start := time.Now()
	sc := f.pool.Acquire(worker)
	center := frames[f.radius]
	dst := plane.NewFrame(center.Format, center.Width, center.Height)

	for p := range center.Format.NumPlanes {
		if !f.process[p] {
			if err := dst.Planes[p].CopyFrom(center.Planes[p]); err != nil {
				return nil, err
			}
			continue
		}
		f.processPlane(sc, frames, p, dst.Planes[p])
	}

	if log.Enabled(log.LevelDebug) {
		log.Debugf("dfttest: worker %d filtered frame in %s", worker, time.Since(start))
	}
	return dst, nil
}

func (f *Filter) checkFrames(frames []*plane.Frame) error {
	if len(frames) != 2*f.radius+1 {
		return fmt.Errorf("%w: got %d frames, want %d", ErrFrames, len(frames), 2*f.radius+1)
	}
	for i, fr := range frames {
		if fr == nil {
			return fmt.Errorf("%w: frame %d is nil", ErrFrames, i)
		}
		if fr.Format != f.format || fr.Width != f.width || fr.Height != f.height || len(fr.Planes) != f.format.NumPlanes {
			return fmt.Errorf("%w: frame %d is %dx%d, want %dx%d", ErrFrames, i, fr.Width, fr.Height, f.width, f.height)
		}
		for p, pl := range fr.Planes {
			w, h := f.format.PlaneSize(p, f.width, f.height)
			if pl.Width != w || pl.Height != h || pl.Stride < w {
				return fmt.Errorf("%w: frame %d plane %d is %dx%d, want %dx%d", plane.ErrGeometry, i, p, pl.Width, pl.Height, w, h)
			}
		}
	}
	return nil
}

func (f *Filter) processPlane(sc *Scratch, frames []*plane.Frame, p int, dst *plane.Plane) {
	width, height := dst.Width, dst.Height
	b, step := f.blockSize, f.blockStep
	padW, padH := PadSize(width, b, step), PadSize(height, b, step)
	sliceLen := padW * padH
	sliceBytes := sliceLen * f.format.BytesPerSample()
	depth := 2*f.radius + 1

	accum := sc.Accum[:sliceLen]
	clear(accum)

	for t := range depth {
		Pad(sc.Padded[t*sliceBytes:(t+1)*sliceBytes], frames[t].Planes[p], b, step)
	}

	g := blockGeometry{depth: depth, blockSize: b, padW: padW, sliceLen: sliceLen}
	area := b * b
	center := sc.Block[f.radius*area : (f.radius+1)*area]
	for i := range PadNum(height, b, step) {
		for j := range PadNum(width, b, step) {
			g.y, g.x = i*step, j*step
			loadBlock(sc.Block, sc.Padded, g, f.window, f.format)
			f.spectral.Apply(sc.Spectral, sc.Block)
			storeBlock(accum, padW, g.y, g.x, center, f.synthesis, b)
		}
	}

	assemble(dst, accum, padW, PadOffset(height, b, step), PadOffset(width, b, step))
}

// Close releases every worker's scratch buffers. Process must not be
// called afterwards.
func (f *Filter) Close() error {
	f.pool.Close()
	log.Debugf("dfttest: released scratch buffers")
	return nil
}
