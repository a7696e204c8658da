// SPDX-License-Identifier: MIT
package dfttest

import (
	"encoding/binary"
	"math"

	"dfttest/internal/plane"
)

// assemble crops the valid region at (offY, offX) out of the padded
// accumulator and writes it to dst in dst's encoding. Integer output is
// rounded half up and clamped to [0, 2^bits-1]; float output is unclamped.
func assemble(dst *plane.Plane, accum []float64, padW, offY, offX int) {
	f := dst.Format
	scale := sampleScale(f)
	bps := f.BytesPerSample()
	peak := float64(f.Peak())

	for y := range dst.Height {
		src := accum[(offY+y)*padW+offX : (offY+y)*padW+offX+dst.Width]
		row := dst.Row(y)

		if f.SampleType == plane.Float {
			for x, v := range src {
				binary.LittleEndian.PutUint32(row[4*x:], math.Float32bits(float32(v/scale)))
			}
			continue
		}

		for x, v := range src {
			q := quantize(v/scale+0.5, peak)
			if bps == 2 {
				binary.LittleEndian.PutUint16(row[2*x:], uint16(q))
			} else {
				row[x] = uint8(q)
			}
		}
	}
}

// quantize truncates v toward zero and clamps it to [0, peak]. NaN maps
// to 0.
func quantize(v, peak float64) int {
	if !(v >= 0) {
		return 0
	}
	if v >= peak {
		return int(peak)
	}
	return int(v)
}
