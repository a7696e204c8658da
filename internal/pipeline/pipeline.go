// SPDX-License-Identifier: MIT
/*
Package pipeline drives a Filter over a whole clip.

A producer hands frame indices to a fixed set of workers, each owning one
WorkerID for its lifetime. Workers gather the temporal window from a
random-access FrameSource, filter it and pass the result to a single writer,
which restores frame order before writing to the FrameSink. The number of
frames in flight is bounded so the reorder buffer cannot grow without
limit.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"dfttest/internal/dfttest"
	"dfttest/internal/log"
	"dfttest/internal/plane"
	"dfttest/internal/transport"

	"golang.org/x/sync/errgroup"
)

var ErrNoFrames = errors.New("pipeline: source has no frames")

// FrameSource serves input frames by index. ReadFrame must be safe for
// concurrent use.
type FrameSource interface {
	NumFrames() int
	ReadFrame(n int) (*plane.Frame, error)
}

// FrameSink receives output frames in order from a single goroutine.
type FrameSink interface {
	WriteFrame(f *plane.Frame) error
}

// Processor is the part of *dfttest.Filter the pipeline uses.
type Processor interface {
	Process(worker dfttest.WorkerID, frames []*plane.Frame) (*plane.Frame, error)
	TemporalIndices(n int) []int
	Workers() int
}

// Runner filters every frame of a source into a sink.
type Runner struct {
	proc      Processor
	src       FrameSource
	sink      FrameSink
	transport transport.Transport
	workers   int
	inFlight  int

	total   atomic.Int64
	done    atomic.Int64
	started atomic.Int64 // unix nanos
}

// Option configures a Runner.
type Option func(*Runner)

// WithTransport sends a transport.Stats for every written frame.
func WithTransport(t transport.Transport) Option {
	return func(r *Runner) { r.transport = t }
}

// WithWorkers limits the number of workers. It is capped at the
// processor's worker count.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithMaxInFlight bounds the frames being filtered or waiting to be
// written. The default is four per worker.
func WithMaxInFlight(n int) Option {
	return func(r *Runner) { r.inFlight = n }
}

// NewRunner builds a Runner.
func NewRunner(proc Processor, src FrameSource, sink FrameSink, opts ...Option) *Runner {
	r := &Runner{proc: proc, src: src, sink: sink}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers <= 0 || r.workers > proc.Workers() {
		r.workers = proc.Workers()
	}
	if r.inFlight < r.workers {
		r.inFlight = 4 * r.workers
	}
	return r
}

type result struct {
	n        int
	worker   dfttest.WorkerID
	frame    *plane.Frame
	duration time.Duration
}

// Run filters all frames. It returns the first error from reading,
// filtering or writing, or ctx.Err() if ctx is cancelled first. Frames
// already written stay written.
func (r *Runner) Run(ctx context.Context) error {
	total := r.src.NumFrames()
	if total <= 0 {
		return ErrNoFrames
	}
	r.total.Store(int64(total))
	r.done.Store(0)
	r.started.Store(time.Now().UnixNano())

	log.Infof("Pipeline: filtering %d frames with %d workers", total, r.workers)

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	results := make(chan result, r.workers)
	tokens := make(chan struct{}, r.inFlight)

	g.Go(func() error {
		defer close(jobs)
		for n := range total {
			select {
			case tokens <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case jobs <- n:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := range r.workers {
		id := dfttest.WorkerID(w)
		g.Go(func() error {
			return r.work(ctx, id, jobs, results)
		})
	}

	g.Go(func() error {
		return r.write(ctx, total, results, tokens)
	})

	err := g.Wait()
	elapsed := time.Since(time.Unix(0, r.started.Load()))
	if err != nil {
		log.Warnf("Pipeline: stopped after %d/%d frames: %v", r.done.Load(), total, err)
		return err
	}
	log.Infof("Pipeline: %d frames in %s (%.2f fps)", total, elapsed.Round(time.Millisecond), r.Progress().FPS)
	return nil
}

func (r *Runner) work(ctx context.Context, id dfttest.WorkerID, jobs <-chan int, results chan<- result) error {
	for n := range jobs {
		frames, err := r.gather(n)
		if err != nil {
			return err
		}

		start := time.Now()
		out, err := r.proc.Process(id, frames)
		if err != nil {
			return fmt.Errorf("frame %d: %w", n, err)
		}

		select {
		case results <- result{n: n, worker: id, frame: out, duration: time.Since(start)}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// gather reads the temporal window of frame n, reading each distinct
// index once.
func (r *Runner) gather(n int) ([]*plane.Frame, error) {
	idx := r.proc.TemporalIndices(n)
	frames := make([]*plane.Frame, len(idx))
	for i, src := range idx {
		if i > 0 && src == idx[i-1] {
			frames[i] = frames[i-1]
			continue
		}
		f, err := r.src.ReadFrame(src)
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", src, err)
		}
		frames[i] = f
	}
	return frames, nil
}

func (r *Runner) write(ctx context.Context, total int, results <-chan result, tokens <-chan struct{}) error {
	pending := make(map[int]result, r.inFlight)
	next := 0
	for next < total {
		select {
		case res := <-results:
			pending[res.n] = res
		case <-ctx.Done():
			return ctx.Err()
		}

		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := r.sink.WriteFrame(res.frame); err != nil {
				return fmt.Errorf("write frame %d: %w", next, err)
			}
			<-tokens
			next++
			done := r.done.Add(1)

			if log.Enabled(log.LevelDebug) {
				log.Debugf("Pipeline: wrote frame %d (worker %d, %s)", res.n, res.worker, res.duration)
			}
			if r.transport != nil {
				stats := transport.Stats{
					Frame:    res.n,
					Worker:   int(res.worker),
					Duration: res.duration,
					Done:     int(done),
					Total:    total,
				}
				if err := r.transport.Send(stats); err != nil {
					log.Warnf("Pipeline: transport error: %v", err)
				}
			}
		}
	}
	return nil
}

// Progress reports written frames and the average rate since Run started.
// It is safe to call from any goroutine.
func (r *Runner) Progress() transport.Progress {
	p := transport.Progress{
		Done:  int(r.done.Load()),
		Total: int(r.total.Load()),
	}
	if started := r.started.Load(); started != 0 && p.Done > 0 {
		if secs := time.Since(time.Unix(0, started)).Seconds(); secs > 0 {
			p.FPS = float64(p.Done) / secs
		}
	}
	return p
}

var _ transport.ProgressProvider = (*Runner)(nil)
