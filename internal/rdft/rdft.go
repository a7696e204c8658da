// SPDX-License-Identifier: MIT
/*
Package rdft computes the real-input discrete Fourier transform of 1, 2 or
3 dimensional arrays by direct O(n^2) summation along each axis.

It prepares filter coefficients (window spectra, noise profiles) before any
frame is processed, so exactness of the definition

	X[k] = sum_j x[j] * exp(-2*pi*i*j*k/n)

matters more than speed. The last axis is Hermitian-compressed to n/2+1
bins; the other axes keep all n bins.
*/
package rdft

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrShape   = errors.New(`rdft: "shape" must be an array of ints with 1, 2 or 3 values`)
	ErrReshape = errors.New("rdft: cannot reshape array")
)

// Transform returns the half spectrum of data laid out row-major with the
// given shape. The output has shape[:ndim-1] x (shape[ndim-1]/2+1) bins.
func Transform(data []float64, shape []int) ([]complex128, error) {
	ndim := len(shape)
	if ndim < 1 || ndim > 3 {
		return nil, ErrShape
	}

	size := 1
	for _, n := range shape {
		if n <= 0 {
			return nil, fmt.Errorf("%w: non-positive dimension %d", ErrShape, n)
		}
		size *= n
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: %d elements into shape %v", ErrReshape, len(data), shape)
	}

	last := shape[ndim-1]
	half := last/2 + 1
	out := make([]complex128, size/last*half)

	// Last axis, real input.
	for i := range size / last {
		dftReal(out[i*half:], data[i*last:], last)
	}

	switch ndim {
	case 2:
		tmp := make([]complex128, len(out))
		for i := range half {
			dftComplex(tmp[i:], out[i:], shape[0], half)
		}
		out = tmp
	case 3:
		plane := shape[1] * half
		tmp := make([]complex128, len(out))
		for i := range shape[0] {
			for j := range half {
				dftComplex(tmp[i*plane+j:], out[i*plane+j:], shape[1], half)
			}
		}
		for i := range plane {
			dftComplex(out[i:], tmp[i:], shape[0], plane)
		}
	}

	return out, nil
}

// Interleave flattens a complex slice into (re, im) pairs.
func Interleave(c []complex128) []float64 {
	out := make([]float64, 2*len(c))
	for i, v := range c {
		out[2*i] = real(v)
		out[2*i+1] = imag(v)
	}
	return out
}

// Deinterleave is the inverse of Interleave. A trailing odd element is
// ignored.
func Deinterleave(f []float64) []complex128 {
	out := make([]complex128, len(f)/2)
	for i := range out {
		out[i] = complex(f[2*i], f[2*i+1])
	}
	return out
}

func twiddle(k, j, n int) complex128 {
	s, c := math.Sincos(-2 * math.Pi * float64(k) * float64(j) / float64(n))
	return complex(c, s)
}

// dftReal writes n/2+1 bins of the transform of the contiguous real
// sequence src[:n] into dst[:n/2+1].
func dftReal(dst []complex128, src []float64, n int) {
	for k := range n/2 + 1 {
		var sum complex128
		for j := range n {
			sum += complex(src[j], 0) * twiddle(k, j, n)
		}
		dst[k] = sum
	}
}

// dftComplex transforms the strided complex sequence src[0], src[stride], ...
// into dst with the same stride. dst and src must not overlap.
func dftComplex(dst, src []complex128, n, stride int) {
	for k := range n {
		var sum complex128
		for j := range n {
			sum += src[j*stride] * twiddle(k, j, n)
		}
		dst[k*stride] = sum
	}
}
