// SPDX-License-Identifier: MIT
/*
Package y4m reads and writes YUV4MPEG2 streams.

Only streams whose FRAME lines carry no parameters are supported, which
makes every frame the same size and lets Reader serve frames by index with
ReadAt. Samples wider than 8 bits are stored little-endian, the same
layout package plane uses, so rows are copied without conversion.
*/
package y4m

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dfttest/internal/plane"
)

const (
	magic       = "YUV4MPEG2"
	frameHeader = "FRAME\n"
	maxHeader   = 4096
)

var (
	ErrMagic       = errors.New("y4m: not a YUV4MPEG2 stream")
	ErrHeader      = errors.New("y4m: malformed stream header")
	ErrColorspace  = errors.New("y4m: unsupported colorspace")
	ErrFrameHeader = errors.New("y4m: malformed frame header")
	ErrFrameRange  = errors.New("y4m: frame index out of range")
	ErrFrameFormat = errors.New("y4m: frame does not match stream format")
)

// Header is the parsed stream header.
type Header struct {
	Width      int
	Height     int
	FPSNum     int
	FPSDen     int
	Interlace  byte // 'p', 't', 'b', 'm' or '?'
	AspectNum  int
	AspectDen  int
	Colorspace string
	Format     plane.Format
	// Extra holds unrecognised tags (X...), written back unchanged.
	Extra []string
}

type colorspace struct {
	ssW, ssH int
	planes   int
	bits     int
}

var colorspaces = map[string]colorspace{
	"420jpeg":  {1, 1, 3, 8},
	"420paldv": {1, 1, 3, 8},
	"420mpeg2": {1, 1, 3, 8},
	"420":      {1, 1, 3, 8},
	"422":      {1, 0, 3, 8},
	"444":      {0, 0, 3, 8},
	"mono":     {0, 0, 1, 8},
	"420p9":    {1, 1, 3, 9},
	"420p10":   {1, 1, 3, 10},
	"420p12":   {1, 1, 3, 12},
	"420p14":   {1, 1, 3, 14},
	"420p16":   {1, 1, 3, 16},
	"422p9":    {1, 0, 3, 9},
	"422p10":   {1, 0, 3, 10},
	"422p12":   {1, 0, 3, 12},
	"422p14":   {1, 0, 3, 14},
	"422p16":   {1, 0, 3, 16},
	"444p9":    {0, 0, 3, 9},
	"444p10":   {0, 0, 3, 10},
	"444p12":   {0, 0, 3, 12},
	"444p14":   {0, 0, 3, 14},
	"444p16":   {0, 0, 3, 16},
	"mono9":    {0, 0, 1, 9},
	"mono10":   {0, 0, 1, 10},
	"mono12":   {0, 0, 1, 12},
	"mono14":   {0, 0, 1, 14},
	"mono16":   {0, 0, 1, 16},
}

// FormatFor maps a C tag to a sample format.
func FormatFor(tag string) (plane.Format, error) {
	cs, ok := colorspaces[tag]
	if !ok {
		return plane.Format{}, fmt.Errorf("%w: %q", ErrColorspace, tag)
	}
	return plane.Format{
		SampleType:    plane.Integer,
		BitsPerSample: cs.bits,
		NumPlanes:     cs.planes,
		SubSamplingW:  cs.ssW,
		SubSamplingH:  cs.ssH,
	}, nil
}

// ColorspaceFor returns the canonical C tag for a format.
func ColorspaceFor(f plane.Format) (string, error) {
	if f.SampleType != plane.Integer {
		return "", fmt.Errorf("%w: %s samples", ErrColorspace, f.SampleType)
	}
	var base string
	switch {
	case f.NumPlanes == 1:
		base = "mono"
	case f.SubSamplingW == 1 && f.SubSamplingH == 1:
		base = "420"
	case f.SubSamplingW == 1 && f.SubSamplingH == 0:
		base = "422"
	case f.SubSamplingW == 0 && f.SubSamplingH == 0:
		base = "444"
	default:
		return "", fmt.Errorf("%w: subsampling %d/%d", ErrColorspace, f.SubSamplingW, f.SubSamplingH)
	}
	switch {
	case f.BitsPerSample == 8 && base == "420":
		return "420jpeg", nil
	case f.BitsPerSample == 8:
		return base, nil
	case base == "mono":
		return fmt.Sprintf("mono%d", f.BitsPerSample), nil
	default:
		return fmt.Sprintf("%sp%d", base, f.BitsPerSample), nil
	}
}

// FrameSize returns the payload size of one frame in bytes.
func (h Header) FrameSize() int {
	n := 0
	for p := range h.Format.NumPlanes {
		w, ht := h.Format.PlaneSize(p, h.Width, h.Height)
		n += w * ht
	}
	return n * h.Format.BytesPerSample()
}

func parseRatio(v string) (int, int, error) {
	num, den, ok := strings.Cut(v, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: ratio %q", ErrHeader, v)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: ratio %q", ErrHeader, v)
	}
	d, err := strconv.Atoi(den)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: ratio %q", ErrHeader, v)
	}
	return n, d, nil
}

// ParseHeader parses a stream header line without its trailing newline.
func ParseHeader(line string) (Header, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != magic {
		return Header{}, ErrMagic
	}

	h := Header{Interlace: '?', Colorspace: "420jpeg"}
	var err error
	for _, f := range fields[1:] {
		tag, v := f[0], f[1:]
		switch tag {
		case 'W':
			h.Width, err = strconv.Atoi(v)
		case 'H':
			h.Height, err = strconv.Atoi(v)
		case 'F':
			h.FPSNum, h.FPSDen, err = parseRatio(v)
		case 'A':
			h.AspectNum, h.AspectDen, err = parseRatio(v)
		case 'I':
			if len(v) != 1 {
				err = fmt.Errorf("%w: interlace %q", ErrHeader, v)
			} else {
				h.Interlace = v[0]
			}
		case 'C':
			h.Colorspace = v
		case 'X':
			h.Extra = append(h.Extra, f)
		default:
			err = fmt.Errorf("%w: unknown tag %q", ErrHeader, f)
		}
		if err != nil {
			if !errors.Is(err, ErrHeader) {
				err = fmt.Errorf("%w: %q: %v", ErrHeader, f, err)
			}
			return Header{}, err
		}
	}

	if h.Width <= 0 || h.Height <= 0 {
		return Header{}, fmt.Errorf("%w: dimensions %dx%d", ErrHeader, h.Width, h.Height)
	}
	h.Format, err = FormatFor(h.Colorspace)
	if err != nil {
		return Header{}, err
	}
	return h, nil
}

// String formats the header line, including the trailing newline.
func (h Header) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s W%d H%d", magic, h.Width, h.Height)
	if h.FPSNum > 0 && h.FPSDen > 0 {
		fmt.Fprintf(&b, " F%d:%d", h.FPSNum, h.FPSDen)
	}
	if h.Interlace != 0 {
		fmt.Fprintf(&b, " I%c", h.Interlace)
	}
	if h.AspectDen > 0 {
		fmt.Fprintf(&b, " A%d:%d", h.AspectNum, h.AspectDen)
	}
	if h.Colorspace != "" {
		fmt.Fprintf(&b, " C%s", h.Colorspace)
	}
	for _, x := range h.Extra {
		b.WriteByte(' ')
		b.WriteString(x)
	}
	b.WriteByte('\n')
	return b.String()
}
