// SPDX-License-Identifier: MIT
package dfttest

import "dfttest/internal/plane"

// PadSize returns the padded length of a dimension of n samples: n rounded
// up to a multiple of blockSize plus a reflected margin on both sides.
func PadSize(n, blockSize, blockStep int) int {
	rem := 0
	if n%blockSize != 0 {
		rem = blockSize - n%blockSize
	}
	return n + rem + 2*max(blockSize-blockStep, blockStep)
}

// PadNum returns the number of block origins along a padded dimension.
func PadNum(n, blockSize, blockStep int) int {
	return (PadSize(n, blockSize, blockStep)-blockSize)/blockStep + 1
}

// PadOffset returns the position of the first valid sample inside the
// padded dimension.
func PadOffset(n, blockSize, blockStep int) int {
	return (PadSize(n, blockSize, blockStep) - n) / 2
}

// reflectIndex mirrors i into [0, n) about the first and last sample
// without repeating the edge: -1 -> 1, n -> n-2. Margins wider than the
// plane fold back repeatedly.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// Pad writes the reflection-padded copy of src into dst, which must hold
// PadSize(height) x PadSize(width) samples. Rows are mirrored sample by
// sample; the top and bottom margins are then whole-row copies of the
// already widened rows.
func Pad(dst []byte, src *plane.Plane, blockSize, blockStep int) {
	bps := src.Format.BytesPerSample()
	width, height := src.Width, src.Height
	padW := PadSize(width, blockSize, blockStep)
	padH := PadSize(height, blockSize, blockStep)
	offX := (padW - width) / 2
	offY := (padH - height) / 2
	lineBytes := padW * bps

	for y := range height {
		line := dst[(offY+y)*lineBytes : (offY+y+1)*lineBytes]
		copy(line[offX*bps:], src.Row(y))

		for x := range offX {
			s := offX + reflectIndex(x-offX, width)
			copy(line[x*bps:(x+1)*bps], line[s*bps:(s+1)*bps])
		}
		for x := offX + width; x < padW; x++ {
			s := offX + reflectIndex(x-offX, width)
			copy(line[x*bps:(x+1)*bps], line[s*bps:(s+1)*bps])
		}
	}

	for y := range padH {
		if y >= offY && y < offY+height {
			continue
		}
		s := offY + reflectIndex(y-offY, height)
		copy(dst[y*lineBytes:(y+1)*lineBytes], dst[s*lineBytes:(s+1)*lineBytes])
	}
}
