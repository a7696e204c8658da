// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"time"

	"dfttest/internal/config"
	"dfttest/internal/dfttest"
	"dfttest/internal/log"
	"dfttest/internal/pipeline"
	"dfttest/internal/transport"
	"dfttest/internal/transport/udp"
	"dfttest/internal/window"
	"dfttest/internal/y4m"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runFlags mirror the config file. Only flags set on the command line
// override it.
type runFlags struct {
	input, output  string
	radius         int
	blockStep      int
	planes         []int
	sigma, sigma2  float64
	pmin, pmax     float64
	filterType     string
	zeroMean       bool
	window         string
	temporalWindow string
	workers        int
	wsAddress      string
	udpEnabled     bool
	udpTarget      string
	logStats       bool
}

func newRunCommand(global *globalOptions) *cobra.Command {
	f := &runFlags{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Denoise a YUV4MPEG2 clip",
		Example: `  dfttest run -i noisy.y4m -o clean.y4m
  dfttest run -i noisy.y4m -o clean.y4m --radius 1 --block-step 8 --window sine --sigma 16`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runFilter(cmd, cfg)
		},
	}

	fl := runCmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "Input y4m file")
	fl.StringVarP(&f.output, "output", "o", "", "Output y4m file")
	fl.IntVarP(&f.radius, "radius", "r", config.DefaultRadius, "Temporal radius, 0-3")
	fl.IntVar(&f.blockStep, "block-step", config.DefaultBlockStep, "Block step, a divisor of the block size (0 = block size)")
	fl.IntSliceVarP(&f.planes, "planes", "p", nil, "Planes to filter (default all)")
	fl.Float64VarP(&f.sigma, "sigma", "s", config.DefaultSigma, "Noise power per sample, or gain for multiplier curves")
	fl.Float64Var(&f.sigma2, "sigma2", config.DefaultSigma2, "Gain outside [pmin, pmax] for the band curve")
	fl.Float64Var(&f.pmin, "pmin", config.DefaultPMin, "Lower power bound (band, modified) or exponent (generalized)")
	fl.Float64Var(&f.pmax, "pmax", config.DefaultPMax, "Upper power bound (band, modified)")
	fl.StringVarP(&f.filterType, "filter-type", "t", config.DefaultFilterType,
		"Attenuation curve: wiener, hard, multiplier, band, modified, generalized, sqrt (or 0-6)")
	fl.BoolVar(&f.zeroMean, "zero-mean", config.DefaultZeroMean, "Remove the window's mean spectrum before filtering")
	fl.StringVar(&f.window, "window", config.DefaultWindow, "Spatial window shape")
	fl.StringVar(&f.temporalWindow, "temporal-window", config.DefaultTemporalWindow, "Temporal window shape")
	fl.IntVarP(&f.workers, "workers", "w", config.DefaultWorkers, "Worker goroutines (0 = all CPUs)")
	fl.StringVar(&f.wsAddress, "ws-address", "", "Serve per-frame stats over websocket on this address")
	fl.BoolVar(&f.udpEnabled, "udp", false, "Publish progress packets over UDP")
	fl.StringVar(&f.udpTarget, "udp-target", config.DefaultUDPTargetAddress, "UDP progress target address")
	fl.BoolVar(&f.logStats, "log-stats", false, "Log per-frame stats at debug level")
	return runCmd
}

func (f *runFlags) apply(fl *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fl.Changed(name) {
			fn()
		}
	}
	set("input", func() { cfg.Pipeline.Input = f.input })
	set("output", func() { cfg.Pipeline.Output = f.output })
	set("radius", func() { cfg.Filter.Radius = f.radius })
	set("block-step", func() { cfg.Filter.BlockStep = f.blockStep })
	set("planes", func() { cfg.Filter.Planes = f.planes })
	set("sigma", func() { cfg.Filter.Sigma = f.sigma })
	set("sigma2", func() { cfg.Filter.Sigma2 = f.sigma2 })
	set("pmin", func() { cfg.Filter.PMin = f.pmin })
	set("pmax", func() { cfg.Filter.PMax = f.pmax })
	set("filter-type", func() { cfg.Filter.FilterType = f.filterType })
	set("zero-mean", func() { cfg.Filter.ZeroMean = f.zeroMean })
	set("window", func() { cfg.Filter.Window = f.window })
	set("temporal-window", func() { cfg.Filter.TemporalWindow = f.temporalWindow })
	set("workers", func() { cfg.Pipeline.Workers = f.workers })
	set("ws-address", func() { cfg.Transport.WSAddress = f.wsAddress })
	set("udp", func() { cfg.Transport.UDPEnabled = f.udpEnabled })
	set("udp-target", func() { cfg.Transport.UDPTargetAddress = f.udpTarget })
	set("log-stats", func() { cfg.Transport.Log = f.logStats })
}

// newFilter builds the coefficient tensors and the filter for a clip.
func newFilter(fc *config.FilterConfig, hdr y4m.Header, frames, workers int) (*dfttest.Filter, error) {
	wp, err := fc.WindowParams()
	if err != nil {
		return nil, err
	}
	noise, err := fc.Noise()
	if err != nil {
		return nil, err
	}
	coeffs, err := window.Build(wp, noise)
	if err != nil {
		return nil, err
	}

	cfg := dfttest.DefaultConfig()
	cfg.Format = hdr.Format
	cfg.Width, cfg.Height, cfg.NumFrames = hdr.Width, hdr.Height, frames
	cfg.Radius = wp.Radius
	cfg.BlockSize, cfg.BlockStep = wp.BlockSize, wp.BlockStep
	cfg.Planes = fc.Planes
	cfg.Window = coeffs.Window
	cfg.Sigma = coeffs.Sigma
	cfg.Sigma2 = fc.Sigma2
	cfg.PMin, cfg.PMax = coeffs.PMin, coeffs.PMax
	cfg.FilterType = noise.Type
	cfg.ZeroMean = fc.ZeroMean
	cfg.WindowFreq = coeffs.WindowFreq
	cfg.Workers = workers
	return dfttest.New(cfg)
}

// newTransport assembles the stats transports enabled in cfg. It returns
// nil when none is.
func newTransport(tc *config.TransportConfig) (transport.Transport, error) {
	var ts []transport.Transport
	if tc.Log {
		ts = append(ts, transport.NewLoggingTransport())
	}
	if tc.WSAddress != "" {
		ws, err := transport.NewWebSocketTransport(tc.WSAddress, tc.WSMinInterval)
		if err != nil {
			return nil, err
		}
		log.Infof("run: stats at ws://%s%s", ws.Addr(), transport.StatsPath)
		ts = append(ts, ws)
	}
	if len(ts) == 0 {
		return nil, nil
	}
	return transport.NewMulti(ts...), nil
}

func runFilter(cmd *cobra.Command, cfg *config.Config) (err error) {
	if cfg.Pipeline.Input == "" || cfg.Pipeline.Output == "" {
		return errors.New("run: input and output are required")
	}

	in, err := y4m.Open(cfg.Pipeline.Input)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer in.Close()
	hdr := in.Header()
	log.Infof("run: %s, %dx%d, %d frames, C%s", cfg.Pipeline.Input, hdr.Width, hdr.Height, in.NumFrames(), hdr.Colorspace)

	filter, err := newFilter(&cfg.Filter, hdr, in.NumFrames(), cfg.Pipeline.Workers)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer filter.Close()

	out, err := y4m.Create(cfg.Pipeline.Output, hdr)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("run: close output: %w", cerr)
		}
	}()

	opts := []pipeline.Option{pipeline.WithMaxInFlight(cfg.Pipeline.MaxInFlight)}
	stats, err := newTransport(&cfg.Transport)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if stats != nil {
		defer stats.Close()
		opts = append(opts, pipeline.WithTransport(stats))
	}
	runner := pipeline.NewRunner(filter, in, out, opts...)

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer sender.Close()
		pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, runner)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		pub.Start()
		defer pub.Stop()
	}

	start := time.Now()
	if err := runner.Run(cmd.Context()); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	prog := runner.Progress()
	log.Infof("run: wrote %d frames to %s in %s (%.1f fps)",
		prog.Done, cfg.Pipeline.Output, time.Since(start).Round(time.Millisecond), prog.FPS)
	return nil
}
