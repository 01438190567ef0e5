package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/tlm/config"
	"github.com/sarchlab/tlm/platform"
)

type runOptions struct {
	seed          int64
	traceDB       string
	monitor       bool
	monitorPort   int
	openBrowser   bool
	injectErrorAt uint64
	noDMI         bool
	logLevel      string
	logEvents     bool
	quiet         bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			opts.applyTo(cmd, cfg)

			return runSimulation(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&opts.seed, "seed", 0, "seed of memory content and traffic")
	flags.StringVar(&opts.traceDB, "trace-db", "",
		"record accesses into this SQLite file (without extension)")
	flags.BoolVar(&opts.monitor, "monitor", false, "serve the HTTP monitor")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"port of the HTTP monitor, random if 0")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitor in a browser")
	flags.Uint64Var(&opts.injectErrorAt, "inject-error-at", 0,
		"send malformed bursts from this address on")
	flags.BoolVar(&opts.noDMI, "no-dmi", false,
		"make the memory refuse direct memory access")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flags.BoolVar(&opts.logEvents, "log-events", false,
		"log every engine event at debug level")
	flags.BoolVar(&opts.quiet, "quiet", false, "do not log accesses")

	return cmd
}

// applyTo overrides the configuration with the flags that were set on the
// command line.
func (o *runOptions) applyTo(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("seed") {
		cfg.Seed = o.seed
	}

	if flags.Changed("trace-db") {
		cfg.Trace.DB = o.traceDB
	}

	if o.monitor || flags.Changed("monitor-port") {
		cfg.Monitor.Enabled = true
	}

	if flags.Changed("monitor-port") {
		cfg.Monitor.Port = o.monitorPort
	}

	if o.openBrowser {
		cfg.Monitor.OpenBrowser = true
	}

	if flags.Changed("inject-error-at") {
		addr := o.injectErrorAt
		cfg.Traffic.InjectErrorAt = &addr
	}

	if o.noDMI {
		cfg.Memory.DMI = false
	}

	if flags.Changed("log-level") {
		cfg.Trace.LogLevel = o.logLevel
	}

	if o.logEvents {
		cfg.Trace.Events = true
		cfg.Trace.LogLevel = logrus.DebugLevel.String()
	}

	if o.quiet {
		cfg.Trace.Log = false
	}
}

func runSimulation(cmd *cobra.Command, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.Trace.LogLevel)
	if err != nil {
		return err
	}

	logger := logrus.New()
	logger.Out = cmd.ErrOrStderr()
	logger.SetLevel(level)

	p, err := platform.MakeBuilder().
		WithConfig(cfg).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}

	runErr := p.Run()

	if err := p.Close(); err != nil {
		logger.WithError(err).Warn("cannot close platform")
	}

	if runErr != nil {
		logger.WithError(runErr).Error("simulation stopped")
		return errors.Wrap(runErr, "simulation failed")
	}

	logger.WithFields(logrus.Fields{
		"time":      p.Engine.Now(),
		"initiator": p.Initiator.Stats(),
		"memory":    p.Memory.Stats(),
	}).Info("simulation finished")

	return nil
}
