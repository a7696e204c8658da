// SPDX-License-Identifier: MIT
package utils

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"dfttest/internal/plane"
	"dfttest/internal/transport"
)

// MockTransport implements the Transport interface for testing.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ transport.Transport = (*MockTransport)(nil)

// MemorySource serves frames from memory.
type MemorySource struct {
	Frames []*plane.Frame
}

func (s *MemorySource) NumFrames() int {
	return len(s.Frames)
}

func (s *MemorySource) ReadFrame(n int) (*plane.Frame, error) {
	if n < 0 || n >= len(s.Frames) {
		return nil, fmt.Errorf("memory source: frame %d out of range", n)
	}
	return s.Frames[n], nil
}

// MemorySink collects written frames.
type MemorySink struct {
	mu     sync.Mutex
	Frames []*plane.Frame
}

func (s *MemorySink) WriteFrame(f *plane.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Frames = append(s.Frames, f)
	return nil
}

// GradientFrame returns a frame whose planes ramp smoothly from lo to hi
// along the diagonal.
func GradientFrame(format plane.Format, w, h int, lo, hi float64) *plane.Frame {
	fr := plane.NewFrame(format, w, h)
	for _, p := range fr.Planes {
		span := float64(p.Width + p.Height - 2)
		for y := range p.Height {
			for x := range p.Width {
				v := lo
				if span > 0 {
					v += (hi - lo) * float64(x+y) / span
				}
				p.Set(x, y, v)
			}
		}
	}
	return fr
}

// AddNoise returns a copy of src with uniform noise in [-amplitude,
// amplitude] added to every sample. The noise variance is amplitude^2/3.
func AddNoise(src *plane.Frame, amplitude float64, seed uint64) *plane.Frame {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	dst := plane.NewFrame(src.Format, src.Width, src.Height)
	for i, p := range src.Planes {
		for y := range p.Height {
			for x := range p.Width {
				n := (2*r.Float64() - 1) * amplitude
				dst.Planes[i].Set(x, y, p.At(x, y)+n)
			}
		}
	}
	return dst
}

// MSE returns the mean squared error between two planes of equal size.
func MSE(a, b *plane.Plane) float64 {
	if a.Width != b.Width || a.Height != b.Height || a.Width*a.Height == 0 {
		return math.NaN()
	}
	var sum float64
	for y := range a.Height {
		for x := range a.Width {
			d := a.At(x, y) - b.At(x, y)
			sum += d * d
		}
	}
	return sum / float64(a.Width*a.Height)
}
