// SPDX-License-Identifier: MIT
package transport

import (
	"dfttest/internal/log"
)

// LoggingTransport implements the Transport interface by logging data at
// DEBUG level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	if !log.Enabled(log.LevelDebug) {
		return nil
	}
	switch s := data.(type) {
	case Stats:
		log.Debugf("Transport: frame %d (worker %d) in %s, %d/%d", s.Frame, s.Worker, s.Duration, s.Done, s.Total)
	default:
		log.Debugf("Transport: received (%T): %+v", data, data)
	}
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	log.Debugf("Transport: LoggingTransport closed")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
