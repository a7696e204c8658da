// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits of the filter and its host pipeline.
const (
	// Filter defaults
	DefaultRadius         = 0
	DefaultBlockSize      = 16
	DefaultBlockStep      = 0 // same as block size
	DefaultSigma          = 8.0
	DefaultSigma2         = 8.0
	DefaultPMin           = 0.0
	DefaultPMax           = 500.0
	DefaultFilterType     = "wiener"
	DefaultZeroMean       = true
	DefaultWindow         = "rectangular"
	DefaultTemporalWindow = "rectangular"

	// Filter limits
	MaxRadius = 3

	// Pipeline defaults
	DefaultWorkers     = 0 // runtime.GOMAXPROCS(0)
	DefaultMaxInFlight = 0 // four frames per worker

	// Transport defaults
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 250 * time.Millisecond

	DefaultLogLevel = "info"
)

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() Config {
	return Config{
		Debug:    false,
		LogLevel: DefaultLogLevel,
		Filter: FilterConfig{
			Radius:         DefaultRadius,
			BlockSize:      DefaultBlockSize,
			BlockStep:      DefaultBlockStep,
			Sigma:          DefaultSigma,
			Sigma2:         DefaultSigma2,
			PMin:           DefaultPMin,
			PMax:           DefaultPMax,
			FilterType:     DefaultFilterType,
			ZeroMean:       DefaultZeroMean,
			Window:         DefaultWindow,
			TemporalWindow: DefaultTemporalWindow,
		},
		Pipeline: PipelineConfig{
			Workers:     DefaultWorkers,
			MaxInFlight: DefaultMaxInFlight,
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}
