// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"dfttest/internal/log"
	"dfttest/internal/spectral"
	"dfttest/internal/window"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Forces the log level to debug.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Filter    FilterConfig    `yaml:"filter"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Transport TransportConfig `yaml:"transport"`
}

// FilterConfig holds the denoiser parameters.
type FilterConfig struct {
	Radius     int       `yaml:"radius"`                // Temporal radius, 0-3.
	BlockSize  int       `yaml:"block_size"`            // Must be 16.
	BlockStep  int       `yaml:"block_step"`            // Must divide block_size; 0 means block_size.
	Planes     []int     `yaml:"planes,omitempty"`      // Planes to filter; empty filters all.
	Sigma      float64   `yaml:"sigma"`                 // Noise power per sample, or gain for multiplier curves.
	SigmaArray []float64 `yaml:"sigma_array,omitempty"` // Per-bin override of sigma.
	Sigma2     float64   `yaml:"sigma2"`                // Gain outside the band of the band curve.
	PMin       float64   `yaml:"pmin"`
	PMax       float64   `yaml:"pmax"`
	FilterType string    `yaml:"filter_type"` // Curve name or number, see spectral.ParseFilterType.
	ZeroMean   bool      `yaml:"zero_mean"`

	Window         string `yaml:"window"`          // Spatial window shape.
	TemporalWindow string `yaml:"temporal_window"` // Temporal window shape.
}

// PipelineConfig holds settings of the host pipeline.
type PipelineConfig struct {
	Workers     int    `yaml:"workers"`       // 0 uses every CPU.
	MaxInFlight int    `yaml:"max_in_flight"` // 0 uses four frames per worker.
	Input       string `yaml:"input"`         // y4m input path.
	Output      string `yaml:"output"`        // y4m output path.
}

// TransportConfig holds settings related to publishing progress.
type TransportConfig struct {
	Log              bool          `yaml:"log"`                // Log per-frame stats at debug level.
	WSAddress        string        `yaml:"ws_address"`         // Websocket listen address; empty disables it.
	WSMinInterval    time.Duration `yaml:"ws_min_interval"`    // Minimum time between websocket messages.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable progress packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("dfttest.yaml", "config.yaml"). If no file is found,
// it uses built-in defaults. Environment overrides are applied last, then the result
// is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, candidate := range []string{"dfttest.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debugf("configuration: loaded %s", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field that can be checked without knowing the clip.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}

	f := &c.Filter
	if f.Radius < 0 || f.Radius > MaxRadius {
		return fmt.Errorf("%w: filter.radius must be in [0, %d], got %d", ErrInvalid, MaxRadius, f.Radius)
	}
	if f.BlockSize != DefaultBlockSize {
		return fmt.Errorf("%w: filter.block_size must be %d, got %d", ErrInvalid, DefaultBlockSize, f.BlockSize)
	}
	// The filter itself takes any positive step; the windows built here only
	// overlap-add to unit gain when the step divides the block size.
	if f.BlockStep < 0 || f.BlockStep > f.BlockSize || (f.BlockStep > 0 && f.BlockSize%f.BlockStep != 0) {
		return fmt.Errorf("%w: filter.block_step must divide %d, got %d", ErrInvalid, f.BlockSize, f.BlockStep)
	}
	if _, err := f.Type(); err != nil {
		return fmt.Errorf("%w: filter.filter_type: %v", ErrInvalid, err)
	}
	if _, err := window.ParseFunc(f.Window); err != nil {
		return fmt.Errorf("%w: filter.window: %v", ErrInvalid, err)
	}
	if _, err := window.ParseFunc(f.TemporalWindow); err != nil {
		return fmt.Errorf("%w: filter.temporal_window: %v", ErrInvalid, err)
	}
	if f.SigmaArray != nil {
		if want := spectral.SpectrumLen(f.Radius, f.BlockSize); len(f.SigmaArray) != want {
			return fmt.Errorf("%w: filter.sigma_array has %d values, want %d", ErrInvalid, len(f.SigmaArray), want)
		}
	}

	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("%w: pipeline.workers must not be negative", ErrInvalid)
	}

	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address %q: %v", ErrInvalid, c.Transport.UDPTargetAddress, err)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive when UDP is enabled", ErrInvalid)
		}
	}
	return nil
}

// Level returns the effective log level.
func (c *Config) Level() log.LogLevel {
	if c.Debug {
		return log.LevelDebug
	}
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// Type parses FilterType.
func (f *FilterConfig) Type() (spectral.FilterType, error) {
	return spectral.ParseFilterType(f.FilterType)
}

// Step returns the block step with the zero default resolved.
func (f *FilterConfig) Step() int {
	if f.BlockStep == 0 {
		return f.BlockSize
	}
	return f.BlockStep
}

// WindowParams returns the window shapes and geometry.
func (f *FilterConfig) WindowParams() (window.Params, error) {
	spatial, err := window.ParseFunc(f.Window)
	if err != nil {
		return window.Params{}, err
	}
	temporal, err := window.ParseFunc(f.TemporalWindow)
	if err != nil {
		return window.Params{}, err
	}
	return window.Params{
		Radius:    f.Radius,
		BlockSize: f.BlockSize,
		BlockStep: f.Step(),
		Spatial:   spatial,
		Temporal:  temporal,
	}, nil
}

// Noise returns the noise parameters.
func (f *FilterConfig) Noise() (window.Noise, error) {
	typ, err := f.Type()
	if err != nil {
		return window.Noise{}, err
	}
	return window.Noise{
		Sigma:      f.Sigma,
		SigmaArray: f.SigmaArray,
		PMin:       f.PMin,
		PMax:       f.PMax,
		Type:       typ,
	}, nil
}

// applyEnvOverrides applies DFTTEST_* variables. Unparsable values are
// ignored with a warning.
func (cfg *Config) applyEnvOverrides() {
	envBool("DFTTEST_DEBUG", &cfg.Debug)
	envString("DFTTEST_LOG_LEVEL", &cfg.LogLevel)

	envInt("DFTTEST_RADIUS", &cfg.Filter.Radius)
	envInt("DFTTEST_BLOCK_STEP", &cfg.Filter.BlockStep)
	envFloat("DFTTEST_SIGMA", &cfg.Filter.Sigma)
	envString("DFTTEST_FILTER_TYPE", &cfg.Filter.FilterType)

	envInt("DFTTEST_WORKERS", &cfg.Pipeline.Workers)

	envString("DFTTEST_WS_ADDRESS", &cfg.Transport.WSAddress)
	envBool("DFTTEST_UDP_ENABLED", &cfg.Transport.UDPEnabled)
	envString("DFTTEST_UDP_TARGET_ADDRESS", &cfg.Transport.UDPTargetAddress)
	envDuration("DFTTEST_UDP_SEND_INTERVAL", &cfg.Transport.UDPSendInterval)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		log.Infof("configuration: Overriding %s from env: %s", key, val)
	}
}

func envBool(key string, dst *bool) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			log.Warnf("configuration: Ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = b
		log.Infof("configuration: Overriding %s from env: %v", key, b)
	}
}

func envInt(key string, dst *int) {
	if val, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Warnf("configuration: Ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = n
		log.Infof("configuration: Overriding %s from env: %d", key, n)
	}
}

func envFloat(key string, dst *float64) {
	if val, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Warnf("configuration: Ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = f
		log.Infof("configuration: Overriding %s from env: %g", key, f)
	}
}

func envDuration(key string, dst *time.Duration) {
	if val, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Warnf("configuration: Ignoring %s=%q: %v", key, val, err)
			return
		}
		*dst = d
		log.Infof("configuration: Overriding %s from env: %s", key, d)
	}
}
