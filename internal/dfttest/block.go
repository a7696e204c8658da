// SPDX-License-Identifier: MIT
package dfttest

import (
	"encoding/binary"
	"math"

	"dfttest/internal/plane"
)

// sampleScale maps native sample values onto the 8-bit reference range.
// assemble divides by the same factor, so the pair is exact for integers.
func sampleScale(f plane.Format) float64 {
	if f.SampleType == plane.Float {
		return 255
	}
	return 1 / float64(int(1)<<(f.BitsPerSample-8))
}

// blockGeometry locates one block inside a stack of padded planes.
type blockGeometry struct {
	depth     int // 2r+1 temporal slices
	blockSize int
	padW      int // padded row length in samples
	sliceLen  int // padded plane length in samples
	y, x      int // block origin in the padded plane
}

// loadBlock reads a (2r+1) x B x B volume at (g.y, g.x) from every padded
// slice, scales it to the reference range and applies the analysis window.
func loadBlock(block []float64, padded []byte, g blockGeometry, window []float64, f plane.Format) {
	b := g.blockSize
	scale := sampleScale(f)
	bps := f.BytesPerSample()

	for t := range g.depth {
		for i := range b {
			src := (t*g.sliceLen + (g.y+i)*g.padW + g.x) * bps
			row := block[(t*b+i)*b : (t*b+i+1)*b]
			win := window[(t*b+i)*b : (t*b+i+1)*b]

			switch {
			case f.SampleType == plane.Float:
				for j := range row {
					v := math.Float32frombits(binary.LittleEndian.Uint32(padded[src+4*j:]))
					row[j] = scale * win[j] * float64(v)
				}
			case bps == 2:
				for j := range row {
					row[j] = scale * win[j] * float64(binary.LittleEndian.Uint16(padded[src+2*j:]))
				}
			default:
				line := padded[src : src+b]
				for j := range row {
					row[j] = scale * win[j] * float64(line[j])
				}
			}
		}
	}
}

// storeBlock multiply-accumulates the filtered center slice, weighted by
// the synthesis window, into the padded accumulator at (y, x).
func storeBlock(accum []float64, padW, y, x int, center, synthesis []float64, blockSize int) {
	b := blockSize
	for i := range b {
		dst := accum[(y+i)*padW+x : (y+i)*padW+x+b]
		src := center[i*b : (i+1)*b]
		win := synthesis[i*b : (i+1)*b]
		for j := range dst {
			dst[j] += src[j] * win[j]
		}
	}
}
