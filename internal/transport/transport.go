// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync"
	"time"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Stats describes one filtered frame. It is what the pipeline sends to its
// transport after the frame has been written.
type Stats struct {
	Frame    int           `json:"frame"`
	Worker   int           `json:"worker"`
	Duration time.Duration `json:"duration_ns"`
	Done     int           `json:"done"`
	Total    int           `json:"total"`
}

// Progress is a point-in-time snapshot of a running job.
type Progress struct {
	Done  int
	Total int
	FPS   float64
}

// ProgressProvider is implemented by anything that can report progress,
// decoupling the UDP publisher from the pipeline.
type ProgressProvider interface {
	Progress() Progress
}

// Multi fans every Send out to several transports. Send returns the joined
// errors of all transports; one failing transport does not stop delivery to
// the others.
type Multi struct {
	mu         sync.Mutex
	transports []Transport
}

// NewMulti returns a Multi over ts, skipping nil entries.
func NewMulti(ts ...Transport) *Multi {
	m := &Multi{}
	for _, t := range ts {
		if t != nil {
			m.transports = append(m.transports, t)
		}
	}
	return m
}

// Len returns the number of transports.
func (m *Multi) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transports)
}

func (m *Multi) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, t := range m.transports {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport once; later calls are no-ops.
func (m *Multi) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, t := range m.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.transports = nil
	return errors.Join(errs...)
}

var _ Transport = (*Multi)(nil)
