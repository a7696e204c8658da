// SPDX-License-Identifier: MIT
/*
Package plane defines the sample grids the filter reads and writes.

A Plane stores its samples as raw bytes so that padding and copying stay
encoding-agnostic; integer samples wider than 8 bits and 32-bit floats are
kept little-endian. Typed access goes through At/Set, which are meant for
fixtures and tooling rather than the per-block hot path.
*/
package plane

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// SampleType distinguishes integer from floating point samples.
type SampleType int

const (
	Integer SampleType = iota
	Float
)

func (s SampleType) String() string {
	switch s {
	case Integer:
		return "integer"
	case Float:
		return "float"
	default:
		return "unknown"
	}
}

var (
	ErrFormat   = errors.New("plane: unsupported sample format")
	ErrGeometry = errors.New("plane: geometry mismatch")
)

// Format describes the sample encoding and plane layout of a frame.
type Format struct {
	SampleType    SampleType
	BitsPerSample int
	NumPlanes     int // 1 (gray) or 3 (YUV)
	SubSamplingW  int // log2 horizontal chroma subsampling
	SubSamplingH  int // log2 vertical chroma subsampling
}

// Gray8 and friends are the formats exercised by the CLI and tests.
var (
	Gray8    = Format{SampleType: Integer, BitsPerSample: 8, NumPlanes: 1}
	Gray16   = Format{SampleType: Integer, BitsPerSample: 16, NumPlanes: 1}
	GrayS    = Format{SampleType: Float, BitsPerSample: 32, NumPlanes: 1}
	YUV420P8 = Format{SampleType: Integer, BitsPerSample: 8, NumPlanes: 3, SubSamplingW: 1, SubSamplingH: 1}
	YUV444P8 = Format{SampleType: Integer, BitsPerSample: 8, NumPlanes: 3}
)

// BytesPerSample returns the storage width of one sample.
func (f Format) BytesPerSample() int {
	return (f.BitsPerSample + 7) / 8
}

// Peak returns the largest representable integer sample value.
func (f Format) Peak() int {
	return 1<<f.BitsPerSample - 1
}

// Validate accepts 8-16 bit integer and 32-bit float encodings with one or
// three planes.
func (f Format) Validate() error {
	switch f.SampleType {
	case Integer:
		if f.BitsPerSample < 8 || f.BitsPerSample > 16 {
			return fmt.Errorf("%w: only 8-16 bit integer input is supported, got %d bits", ErrFormat, f.BitsPerSample)
		}
	case Float:
		if f.BitsPerSample != 32 {
			return fmt.Errorf("%w: only 32-bit float input is supported, got %d bits", ErrFormat, f.BitsPerSample)
		}
	default:
		return fmt.Errorf("%w: unknown sample type %d", ErrFormat, f.SampleType)
	}
	if f.NumPlanes != 1 && f.NumPlanes != 3 {
		return fmt.Errorf("%w: %d planes", ErrFormat, f.NumPlanes)
	}
	if f.SubSamplingW < 0 || f.SubSamplingW > 2 || f.SubSamplingH < 0 || f.SubSamplingH > 2 {
		return fmt.Errorf("%w: subsampling %d/%d", ErrFormat, f.SubSamplingW, f.SubSamplingH)
	}
	return nil
}

// PlaneSize returns the dimensions of plane p for a frame of width x height.
func (f Format) PlaneSize(p, width, height int) (int, int) {
	if p == 0 {
		return width, height
	}
	w := (width + 1<<f.SubSamplingW - 1) >> f.SubSamplingW
	h := (height + 1<<f.SubSamplingH - 1) >> f.SubSamplingH
	return w, h
}

// Plane is a 2-D grid of samples. Stride is measured in samples.
type Plane struct {
	Format Format
	Width  int
	Height int
	Stride int
	Pix    []byte
}

// New allocates a zeroed plane with Stride == width.
func New(format Format, width, height int) *Plane {
	return &Plane{
		Format: format,
		Width:  width,
		Height: height,
		Stride: width,
		Pix:    make([]byte, width*height*format.BytesPerSample()),
	}
}

// Row returns the bytes of the valid samples on row y.
func (p *Plane) Row(y int) []byte {
	bps := p.Format.BytesPerSample()
	start := y * p.Stride * bps
	return p.Pix[start : start+p.Width*bps]
}

// At returns the sample at (x, y) as a float64 in the plane's native range.
func (p *Plane) At(x, y int) float64 {
	bps := p.Format.BytesPerSample()
	i := (y*p.Stride + x) * bps
	switch {
	case p.Format.SampleType == Float:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p.Pix[i:])))
	case bps == 2:
		return float64(binary.LittleEndian.Uint16(p.Pix[i:]))
	default:
		return float64(p.Pix[i])
	}
}

// Set stores v at (x, y). Integer values are rounded and clamped to the
// format's range.
func (p *Plane) Set(x, y int, v float64) {
	bps := p.Format.BytesPerSample()
	i := (y*p.Stride + x) * bps
	if p.Format.SampleType == Float {
		binary.LittleEndian.PutUint32(p.Pix[i:], math.Float32bits(float32(v)))
		return
	}
	q := math.Round(v)
	q = math.Max(0, math.Min(q, float64(p.Format.Peak())))
	if bps == 2 {
		binary.LittleEndian.PutUint16(p.Pix[i:], uint16(q))
		return
	}
	p.Pix[i] = uint8(q)
}

// CopyFrom copies the valid region of src into p. Dimensions and format
// must match.
func (p *Plane) CopyFrom(src *Plane) error {
	if p.Width != src.Width || p.Height != src.Height || p.Format.BytesPerSample() != src.Format.BytesPerSample() {
		return fmt.Errorf("%w: copy %dx%d into %dx%d", ErrGeometry, src.Width, src.Height, p.Width, p.Height)
	}
	for y := range p.Height {
		copy(p.Row(y), src.Row(y))
	}
	return nil
}

// Frame is one picture made of Format.NumPlanes planes.
type Frame struct {
	Format Format
	Width  int
	Height int
	Planes []*Plane
}

// NewFrame allocates a zeroed frame, sizing chroma planes per the
// format's subsampling.
func NewFrame(format Format, width, height int) *Frame {
	f := &Frame{
		Format: format,
		Width:  width,
		Height: height,
		Planes: make([]*Plane, format.NumPlanes),
	}
	for i := range f.Planes {
		w, h := format.PlaneSize(i, width, height)
		f.Planes[i] = New(format, w, h)
	}
	return f
}
