// SPDX-License-Identifier: MIT
package dfttest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"dfttest/internal/log"
	"dfttest/internal/spectral"
)

// WorkerID identifies one of the host's concurrent frame workers. IDs are
// dense: 0 <= id < number of workers.
type WorkerID int

// Scratch is the per-worker working set. It is owned by exactly one worker
// and reused for every frame that worker processes.
type Scratch struct {
	// Padded holds 2r+1 reflection-padded planes back to back.
	Padded []byte
	// Accum is the overlap-add target for one padded plane.
	Accum []float64
	// Block is the (2r+1) x B x B volume being filtered.
	Block []float64
	// Spectral holds the FFT plans and spectrum buffer.
	Spectral *spectral.Workspace
}

// ScratchPool hands out Scratch buffers keyed by worker. The first Acquire
// per worker allocates under the write lock; once every worker has been
// seen, lookups skip the lock entirely because the map is never written
// again.
type ScratchPool struct {
	workers    int
	paddedSize int
	accumSize  int
	newSpec    func() *spectral.Workspace
	blockLen   int

	uninitialized atomic.Int64
	mu            sync.RWMutex
	buffers       map[WorkerID]*Scratch
}

// NewScratchPool sizes buffers for the largest plane the filter will see.
func NewScratchPool(workers, paddedSize, accumSize, blockLen int, newSpec func() *spectral.Workspace) *ScratchPool {
	p := &ScratchPool{
		workers:    workers,
		paddedSize: paddedSize,
		accumSize:  accumSize,
		blockLen:   blockLen,
		newSpec:    newSpec,
		buffers:    make(map[WorkerID]*Scratch, workers),
	}
	p.uninitialized.Store(int64(workers))
	return p
}

// Workers returns the number of distinct workers the pool serves.
func (p *ScratchPool) Workers() int {
	return p.workers
}

// Acquire returns the buffers owned by worker id, allocating them on first
// use. Out-of-range ids are a programming error and panic.
func (p *ScratchPool) Acquire(id WorkerID) *Scratch {
	if id < 0 || int(id) >= p.workers {
		panic(fmt.Sprintf("dfttest: worker %d out of range [0, %d)", id, p.workers))
	}

	if p.uninitialized.Load() == 0 {
		return p.buffers[id]
	}

	p.mu.RLock()
	s, ok := p.buffers[id]
	p.mu.RUnlock()
	if ok {
		return s
	}

	s = &Scratch{
		Padded:   make([]byte, p.paddedSize),
		Accum:    make([]float64, p.accumSize),
		Block:    make([]float64, p.blockLen),
		Spectral: p.newSpec(),
	}

	p.mu.Lock()
	if existing, ok := p.buffers[id]; ok {
		// Same id acquired concurrently; a worker id is meant to be used
		// by one goroutine at a time, but keep the first registration.
		p.mu.Unlock()
		return existing
	}
	p.buffers[id] = s
	p.mu.Unlock()

	remaining := p.uninitialized.Add(-1)
	log.Debugf("dfttest: allocated scratch for worker %d (%d bytes padded, %d accumulator samples, %d workers pending)",
		id, p.paddedSize, p.accumSize, remaining)
	return s
}

// Close drops every worker's buffers. The pool must not be used afterwards.
func (p *ScratchPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.buffers)
	p.uninitialized.Store(int64(p.workers))
}
