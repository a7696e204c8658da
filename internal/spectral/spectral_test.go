// SPDX-License-Identifier: MIT
package spectral

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"dfttest/internal/rdft"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBlockSize = 16

func constant(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func randomBlock(r *rand.Rand, n int) []float64 {
	block := make([]float64, n)
	for i := range block {
		block[i] = r.Float64() * 255
	}
	return block
}

func identityFilter(t *testing.T, radius int) *Filter {
	t.Helper()
	f, err := New(Params{
		Radius:    radius,
		BlockSize: testBlockSize,
		Sigma:     constant(SpectrumLen(radius, testBlockSize), 1),
		Type:      Multiplier,
	})
	require.NoError(t, err)
	return f
}

func TestForwardMatchesRDFT(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for _, radius := range []int{0, 1, 2} {
		depth := 2*radius + 1
		block := randomBlock(r, BlockLen(radius, testBlockSize))

		ws := NewWorkspace(radius, testBlockSize)
		ws.Forward(block)

		shape := []int{depth, testBlockSize, testBlockSize}
		if depth == 1 {
			shape = shape[1:]
		}
		want, err := rdft.Transform(block, shape)
		require.NoError(t, err)
		require.Len(t, ws.Spectrum(), len(want))
		for i := range want {
			assert.InDelta(t, 0, cmplx.Abs(want[i]-ws.Spectrum()[i]), 1e-6*cmplx.Abs(want[0]), "radius %d bin %d", radius, i)
		}
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	for _, radius := range []int{0, 1, 3} {
		f := identityFilter(t, radius)
		ws := f.NewWorkspace()

		block := randomBlock(r, BlockLen(radius, testBlockSize))
		orig := append([]float64(nil), block...)
		f.Apply(ws, block)

		for i := range block {
			assert.InDelta(t, orig[i], block[i], 1e-4*math.Max(1, math.Abs(orig[i])), "radius %d sample %d", radius, i)
		}
	}
}

func TestMultiplierCurves(t *testing.T) {
	tests := []struct {
		name   string
		typ    FilterType
		psd    float64
		sigma  float64
		sigma2 float64
		pmin   float64
		pmax   float64
		want   float64
	}{
		{"wiener above", Wiener, 4, 1, 0, 0, 0, 0.75},
		{"wiener below", Wiener, 1, 4, 0, 0, 0, 0},
		{"hard below", HardThreshold, 1, 4, 0, 0, 0, 0},
		{"hard at", HardThreshold, 4, 4, 0, 0, 0, 1},
		{"multiplier", Multiplier, 123, 0.5, 0, 0, 0, 0.5},
		{"band inside", BandMultiplier, 5, 0.5, 2, 1, 10, 0.5},
		{"band outside", BandMultiplier, 50, 0.5, 2, 1, 10, 2},
		{"modified", ModifiedMultiplier, 4, 2, 0, 1, 4, 2 * math.Sqrt(16.0/40.0)},
		{"generalized", GeneralizedWiener, 4, 1, 0, 2, 0, 0.5625},
		{"sqrt", SqrtWiener, 4, 3, 0, 0, 0, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Filter{typ: tt.typ, sigma2: tt.sigma2, pmin: tt.pmin, pmax: tt.pmax}
			assert.InDelta(t, tt.want, f.multiplier(tt.psd, tt.sigma), 1e-9)
		})
	}
}

func TestHardThresholdRemovesWeakBlock(t *testing.T) {
	f, err := New(Params{
		BlockSize: testBlockSize,
		Sigma:     constant(SpectrumLen(0, testBlockSize), math.Inf(1)),
		Type:      HardThreshold,
	})
	require.NoError(t, err)

	block := randomBlock(rand.New(rand.NewPCG(7, 8)), BlockLen(0, testBlockSize))
	f.Apply(f.NewWorkspace(), block)
	for i, v := range block {
		assert.InDelta(t, 0, v, 1e-9, "sample %d", i)
	}
}

func TestZeroMeanPreservesWindowShape(t *testing.T) {
	// A block that is a scaled copy of the window has no energy left after
	// mean removal, so even a total-rejection curve returns it unchanged.
	const radius = 1
	window := make([]float64, BlockLen(radius, testBlockSize))
	for i := range window {
		window[i] = 0.5 + 0.5*math.Sin(float64(i)*0.37)
	}
	shape := []int{2*radius + 1, testBlockSize, testBlockSize}
	mean, err := rdft.Transform(window, shape)
	require.NoError(t, err)

	f, err := New(Params{
		Radius:    radius,
		BlockSize: testBlockSize,
		Sigma:     constant(SpectrumLen(radius, testBlockSize), math.Inf(1)),
		Type:      HardThreshold,
		ZeroMean:  true,
		Mean:      mean,
	})
	require.NoError(t, err)

	block := make([]float64, len(window))
	for i := range block {
		block[i] = 37 * window[i]
	}
	f.Apply(f.NewWorkspace(), block)
	for i := range block {
		assert.InDelta(t, 37*window[i], block[i], 1e-6, "sample %d", i)
	}
}

func TestNewValidation(t *testing.T) {
	n := SpectrumLen(0, testBlockSize)
	tests := []struct {
		name   string
		params Params
		want   error
	}{
		{"bad type", Params{BlockSize: testBlockSize, Sigma: make([]float64, n), Type: 7}, ErrFilterType},
		{"short sigma", Params{BlockSize: testBlockSize, Sigma: make([]float64, n-1)}, ErrCoefficients},
		{"missing mean", Params{BlockSize: testBlockSize, Sigma: make([]float64, n), ZeroMean: true}, ErrCoefficients},
		{"negative radius", Params{Radius: -1, BlockSize: testBlockSize}, ErrGeometry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseFilterType(t *testing.T) {
	for i := Wiener; i <= SqrtWiener; i++ {
		got, err := ParseFilterType(i.String())
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
	got, err := ParseFilterType("4")
	require.NoError(t, err)
	assert.Equal(t, ModifiedMultiplier, got)

	_, err = ParseFilterType("median")
	assert.ErrorIs(t, err, ErrFilterType)
}

func TestApplyHotPath(t *testing.T) {
	f := identityFilter(t, 1)
	ws := f.NewWorkspace()
	block := randomBlock(rand.New(rand.NewPCG(9, 10)), BlockLen(1, testBlockSize))

	f.Apply(ws, block)
	allocs := testing.AllocsPerRun(50, func() {
		f.Apply(ws, block)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Apply hot path, got %.1f", allocs)
	}
}

func BenchmarkApplyRadius1(b *testing.B) {
	f, err := New(Params{
		Radius:    1,
		BlockSize: testBlockSize,
		Sigma:     constant(SpectrumLen(1, testBlockSize), 100),
		Type:      Wiener,
	})
	if err != nil {
		b.Fatal(err)
	}
	ws := f.NewWorkspace()
	block := randomBlock(rand.New(rand.NewPCG(11, 12)), BlockLen(1, testBlockSize))

	b.ReportAllocs()
	for b.Loop() {
		f.Apply(ws, block)
	}
}
