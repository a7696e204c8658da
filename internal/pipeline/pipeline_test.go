// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"dfttest/internal/dfttest"
	"dfttest/internal/plane"
	"dfttest/internal/spectral"
	"dfttest/internal/transport"
	"dfttest/internal/window"
	"dfttest/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tagProcessor returns a 1x1 frame holding the center frame's first
// sample, after a delay that makes later frames finish first.
type tagProcessor struct {
	radius  int
	total   int
	workers int
	calls   atomic.Int64
	failAt  int
}

func (p *tagProcessor) Process(worker dfttest.WorkerID, frames []*plane.Frame) (*plane.Frame, error) {
	p.calls.Add(1)
	center := frames[p.radius]
	v := center.Planes[0].At(0, 0)
	if int(v) == p.failAt {
		return nil, errors.New("synthetic failure")
	}
	time.Sleep(time.Duration(p.total-int(v)) * 100 * time.Microsecond)
	out := plane.NewFrame(plane.Gray8, 1, 1)
	out.Planes[0].Set(0, 0, v)
	return out, nil
}

func (p *tagProcessor) TemporalIndices(n int) []int {
	idx := make([]int, 2*p.radius+1)
	for i := range idx {
		idx[i] = min(max(n-p.radius+i, 0), p.total-1)
	}
	return idx
}

func (p *tagProcessor) Workers() int {
	return p.workers
}

func taggedSource(n int) *utils.MemorySource {
	src := &utils.MemorySource{}
	for i := range n {
		fr := plane.NewFrame(plane.Gray8, 1, 1)
		fr.Planes[0].Set(0, 0, float64(i))
		src.Frames = append(src.Frames, fr)
	}
	return src
}

func TestRunWritesInOrder(t *testing.T) {
	const total = 40
	proc := &tagProcessor{radius: 1, total: total, workers: 4, failAt: -1}
	sink := &utils.MemorySink{}
	mock := &utils.MockTransport{}

	r := NewRunner(proc, taggedSource(total), sink, WithTransport(mock), WithMaxInFlight(6))
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, sink.Frames, total)
	for i, fr := range sink.Frames {
		assert.EqualValues(t, i, fr.Planes[0].At(0, 0), "frame %d out of order", i)
	}
	assert.EqualValues(t, total, proc.calls.Load())

	sent := mock.Sent()
	require.Len(t, sent, total)
	for i, v := range sent {
		s, ok := v.(transport.Stats)
		require.True(t, ok)
		assert.Equal(t, i, s.Frame)
		assert.Equal(t, i+1, s.Done)
		assert.Equal(t, total, s.Total)
		assert.Less(t, s.Worker, 4)
	}

	prog := r.Progress()
	assert.Equal(t, total, prog.Done)
	assert.Equal(t, total, prog.Total)
	assert.Positive(t, prog.FPS)
}

func TestRunStopsOnProcessError(t *testing.T) {
	proc := &tagProcessor{radius: 0, total: 30, workers: 3, failAt: 12}
	sink := &utils.MemorySink{}

	err := NewRunner(proc, taggedSource(30), sink).Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "frame 12")
	assert.LessOrEqual(t, len(sink.Frames), 12)
}

type failingSink struct{ after int }

func (s *failingSink) WriteFrame(*plane.Frame) error {
	if s.after == 0 {
		return errors.New("disk full")
	}
	s.after--
	return nil
}

func TestRunStopsOnSinkError(t *testing.T) {
	proc := &tagProcessor{total: 20, workers: 2, failAt: -1}
	err := NewRunner(proc, taggedSource(20), &failingSink{after: 5}).Run(context.Background())
	assert.ErrorContains(t, err, "write frame 5")
}

func TestRunHonoursCancellation(t *testing.T) {
	proc := &tagProcessor{total: 1000, workers: 2, failAt: -1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewRunner(proc, taggedSource(1000), &utils.MemorySink{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, proc.calls.Load(), int64(1000))
}

func TestRunRejectsEmptySource(t *testing.T) {
	proc := &tagProcessor{workers: 1}
	err := NewRunner(proc, &utils.MemorySource{}, &utils.MemorySink{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestNewRunnerCapsWorkers(t *testing.T) {
	proc := &tagProcessor{workers: 3}
	r := NewRunner(proc, taggedSource(1), &utils.MemorySink{}, WithWorkers(8))
	assert.Equal(t, 3, r.workers)
	assert.Equal(t, 12, r.inFlight)

	r = NewRunner(proc, taggedSource(1), &utils.MemorySink{}, WithWorkers(2), WithMaxInFlight(5))
	assert.Equal(t, 2, r.workers)
	assert.Equal(t, 5, r.inFlight)
}

func TestRunDenoisesClip(t *testing.T) {
	const (
		w, h      = 64, 48
		frames    = 6
		amplitude = 20.0
	)
	clean := utils.GradientFrame(plane.Gray8, w, h, 60, 190)
	src := &utils.MemorySource{}
	for i := range frames {
		src.Frames = append(src.Frames, utils.AddNoise(clean, amplitude, uint64(i+1)))
	}

	wp := window.Params{Radius: 1, BlockSize: 16, BlockStep: 8, Spatial: window.Sine, Temporal: window.Hann}
	coeffs, err := window.Build(wp, window.Noise{Sigma: amplitude * amplitude / 3, Type: spectral.Wiener})
	require.NoError(t, err)

	f, err := dfttest.New(dfttest.Config{
		Format:     plane.Gray8,
		Width:      w,
		Height:     h,
		NumFrames:  frames,
		Radius:     wp.Radius,
		BlockSize:  wp.BlockSize,
		BlockStep:  wp.BlockStep,
		Window:     coeffs.Window,
		Sigma:      coeffs.Sigma,
		PMin:       coeffs.PMin,
		PMax:       coeffs.PMax,
		FilterType: spectral.Wiener,
		ZeroMean:   true,
		WindowFreq: coeffs.WindowFreq,
		Workers:    3,
	})
	require.NoError(t, err)
	defer f.Close()

	sink := &utils.MemorySink{}
	require.NoError(t, NewRunner(f, src, sink).Run(context.Background()))
	require.Len(t, sink.Frames, frames)

	for i, out := range sink.Frames {
		before := utils.MSE(clean.Planes[0], src.Frames[i].Planes[0])
		after := utils.MSE(clean.Planes[0], out.Planes[0])
		assert.Less(t, after, before/2, "frame %d: mse %.1f -> %.1f", i, before, after)
	}
}
