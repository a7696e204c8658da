// SPDX-License-Identifier: MIT
package window

import (
	"testing"

	"dfttest/internal/spectral"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestParseFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    Func
		wantErr bool
	}{
		{"hann", Hann, false},
		{"Hanning", Hann, false},
		{" SINE ", Sine, false},
		{"sqrthann", Sine, false},
		{"rect", Rectangular, false},
		{"blackmannuttall", BlackmanNuttall, false},
		{"kaiser", Hann, true},
	}

	for _, tt := range tests {
		got, err := ParseFunc(tt.name)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownFunc, tt.name)
		} else {
			assert.NoError(t, err, tt.name)
		}
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestPeriodicShapes(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 1, 1}, Periodic(Rectangular, 4))

	hann := Periodic(Hann, 4)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.5}, hann, 1e-12)

	sine := Periodic(Sine, 16)
	assert.InDelta(t, 0, sine[0], 1e-12)
	assert.InDelta(t, 1, sine[8], 1e-12)
	assert.InDelta(t, sine[4], sine[12], 1e-12)
}

func TestTemporalDropsZeroEnds(t *testing.T) {
	assert.Equal(t, []float64{1}, Temporal(Hann, 0))

	w := Temporal(Hann, 1)
	require.Len(t, w, 3)
	assert.InDeltaSlice(t, []float64{0.5, 1, 0.5}, w, 1e-12)
	assert.Equal(t, []float64{1, 1, 1, 1, 1}, Temporal(Rectangular, 2))
}

// overlapGain sums the center-slice analysis x synthesis weight that every
// block origin on the grid contributes to position (y, x) of one period.
func overlapGain(w []float64, radius, b, step, y, x int) float64 {
	center := w[radius*b*b : (radius+1)*b*b]
	var sum float64
	for oy := y % step; oy < b; oy += step {
		for ox := x % step; ox < b; ox += step {
			v := center[oy*b+ox]
			sum += v * v
		}
	}
	return sum
}

func TestTensorHasUnitOverlapGain(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"rect/step16", Params{Radius: 0, BlockSize: 16, BlockStep: 16, Spatial: Rectangular, Temporal: Rectangular}},
		{"rect/step8/radius2", Params{Radius: 2, BlockSize: 16, BlockStep: 8, Spatial: Rectangular, Temporal: Hann}},
		{"sine/step8", Params{Radius: 1, BlockSize: 16, BlockStep: 8, Spatial: Sine, Temporal: Rectangular}},
		{"hann/step4", Params{Radius: 3, BlockSize: 16, BlockStep: 4, Spatial: Hann, Temporal: Hann}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Tensor(tt.p)
			require.NoError(t, err)
			require.Len(t, w, spectral.BlockLen(tt.p.Radius, tt.p.BlockSize))

			for y := range tt.p.BlockStep {
				for x := range tt.p.BlockStep {
					gain := overlapGain(w, tt.p.Radius, tt.p.BlockSize, tt.p.BlockStep, y, x)
					require.InDelta(t, 1, gain, 1e-9, "(%d, %d)", y, x)
				}
			}
		})
	}
}

func TestTensorRejectsBadGeometry(t *testing.T) {
	_, err := Tensor(Params{BlockSize: 16, BlockStep: 0})
	assert.ErrorIs(t, err, ErrGeometry)
	_, err = Tensor(Params{BlockSize: 16, BlockStep: 32})
	assert.ErrorIs(t, err, ErrGeometry)
	_, err = Tensor(Params{BlockSize: 16, BlockStep: 16, Spatial: Func(42)})
	assert.ErrorIs(t, err, ErrUnknownFunc)
}

func TestBuildScalesNoiseByWindowEnergy(t *testing.T) {
	p := Params{Radius: 1, BlockSize: 16, BlockStep: 8, Spatial: Sine, Temporal: Hann}
	w, err := Tensor(p)
	require.NoError(t, err)
	energy := floats.Dot(w, w)

	wiener, err := Build(p, Noise{Sigma: 2, PMin: 0.5, PMax: 4, Type: spectral.Wiener})
	require.NoError(t, err)
	assert.InDelta(t, 2*energy, wiener.Sigma[0], 1e-9)
	assert.InDelta(t, 2*energy, wiener.Sigma[len(wiener.Sigma)-1], 1e-9)
	assert.Equal(t, 0.5, wiener.PMin)

	mult, err := Build(p, Noise{Sigma: 0.8, Type: spectral.Multiplier})
	require.NoError(t, err)
	assert.Equal(t, 0.8, mult.Sigma[7])

	band, err := Build(p, Noise{Sigma: 1, PMin: 0.5, PMax: 4, Type: spectral.BandMultiplier})
	require.NoError(t, err)
	assert.Equal(t, 1.0, band.Sigma[0])
	assert.InDelta(t, 0.5*energy, band.PMin, 1e-9)
	assert.InDelta(t, 4*energy, band.PMax, 1e-9)

	gen, err := Build(p, Noise{Sigma: 1, PMin: 2, Type: spectral.GeneralizedWiener})
	require.NoError(t, err)
	assert.Equal(t, 2.0, gen.PMin, "the exponent is not a power")
}

func TestBuildSigmaArray(t *testing.T) {
	p := Params{Radius: 0, BlockSize: 16, BlockStep: 16}
	bins := spectral.SpectrumLen(0, 16)

	arr := make([]float64, bins)
	arr[3] = 5
	c, err := Build(p, Noise{SigmaArray: arr, Type: spectral.Multiplier})
	require.NoError(t, err)
	assert.Equal(t, 5.0, c.Sigma[3])
	assert.Zero(t, c.Sigma[0])

	arr[3] = 7
	assert.Equal(t, 5.0, c.Sigma[3], "Build must copy the array")

	_, err = Build(p, Noise{SigmaArray: arr[:bins-1]})
	assert.ErrorIs(t, err, ErrSigma)
	_, err = Build(p, Noise{Type: spectral.FilterType(9)})
	assert.ErrorIs(t, err, spectral.ErrFilterType)
}

func TestMeanSpectrumDC(t *testing.T) {
	p := Params{Radius: 1, BlockSize: 16, BlockStep: 4, Spatial: Hann, Temporal: Hann}
	c, err := Build(p, Noise{Sigma: 1})
	require.NoError(t, err)

	require.Len(t, c.WindowFreq, 2*spectral.SpectrumLen(1, 16))
	assert.InDelta(t, floats.Sum(c.Window), c.WindowFreq[0], 1e-9)
	assert.InDelta(t, 0, c.WindowFreq[1], 1e-9)
}
