// Package config loads the settings of a simulation run.
//
// Settings start from Default, are overlaid by a YAML file, and are finally
// overridden by TLMSIM_* environment variables. A .env file can seed the
// environment before the overrides are read.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvSeed          = "TLMSIM_SEED"
	EnvTraceDB       = "TLMSIM_TRACE_DB"
	EnvMonitorPort   = "TLMSIM_MONITOR_PORT"
	EnvInjectErrorAt = "TLMSIM_INJECT_ERROR_AT"
	EnvLogLevel      = "TLMSIM_LOG_LEVEL"
)

// Config is the configuration of one simulation run.
type Config struct {
	// Seed drives both the initial memory content and the traffic.
	Seed int64 `yaml:"seed"`

	Memory  MemoryConfig  `yaml:"memory"`
	Traffic TrafficConfig `yaml:"traffic"`
	Trace   TraceConfig   `yaml:"trace"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// MemoryConfig configures the memory target.
type MemoryConfig struct {
	// NumWords is the number of 4-byte words in the memory.
	NumWords uint64 `yaml:"num_words"`

	// FreqMHz is the clock that latencies are counted in.
	FreqMHz float64 `yaml:"freq_mhz"`

	// LatencyCycles is the service time of every access.
	LatencyCycles int `yaml:"latency_cycles"`

	// DMI tells if the memory grants direct memory access.
	DMI bool `yaml:"dmi"`

	// InvalidationCount is how many times the memory revokes its grants.
	InvalidationCount int `yaml:"invalidation_count"`

	// InvalidationInterval is the time between two revocations, in multiples
	// of the latency.
	InvalidationInterval int `yaml:"invalidation_interval"`
}

// TrafficConfig configures the accesses of the initiator.
type TrafficConfig struct {
	StartAddress uint64 `yaml:"start_address"`
	EndAddress   uint64 `yaml:"end_address"`
	Stride       uint64 `yaml:"stride"`
	DumpLength   int    `yaml:"dump_length"`

	// InjectErrorAt, when set, makes transport calls from this address on
	// carry a malformed burst.
	InjectErrorAt *uint64 `yaml:"inject_error_at,omitempty"`
}

// TraceConfig configures what the run records.
type TraceConfig struct {
	// Log enables the access log.
	Log bool `yaml:"log"`

	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level"`

	// Events logs every engine event at debug level.
	Events bool `yaml:"events"`

	// DB, when not empty, is the SQLite file (without extension) that
	// accesses are recorded into.
	DB string `yaml:"db"`
}

// MonitorConfig configures the HTTP monitor.
type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// Default returns the configuration of the reference run: 256 words, 10 ns
// accesses, four invalidations, and random traffic over the first 128 bytes.
func Default() *Config {
	return &Config{
		Seed: 0,
		Memory: MemoryConfig{
			NumWords:             256,
			FreqMHz:              1000,
			LatencyCycles:        10,
			DMI:                  true,
			InvalidationCount:    4,
			InvalidationInterval: 8,
		},
		Traffic: TrafficConfig{
			StartAddress: 0,
			EndAddress:   128,
			Stride:       4,
			DumpLength:   128,
		},
		Trace: TraceConfig{
			Log:      true,
			LogLevel: "info",
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Port:    0,
		},
	}
}

// Load reads the configuration from a YAML file on top of the defaults and
// applies the environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "cannot read config")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "cannot parse config %s", path)
	}

	return nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables that are already set are kept. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	existing := make([]string, 0, len(files))

	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	return errors.Wrap(godotenv.Load(existing...), "cannot load env file")
}

// ApplyEnv overrides settings with the TLMSIM_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvSeed); ok {
		seed, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvSeed)
		}

		c.Seed = seed
	}

	if v, ok := os.LookupEnv(EnvTraceDB); ok {
		c.Trace.DB = v
	}

	if v, ok := os.LookupEnv(EnvMonitorPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvMonitorPort)
		}

		c.Monitor.Enabled = true
		c.Monitor.Port = port
	}

	if v, ok := os.LookupEnv(EnvInjectErrorAt); ok {
		addr, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvInjectErrorAt)
		}

		c.Traffic.InjectErrorAt = &addr
	}

	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Trace.LogLevel = v
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var problems []string

	if c.Memory.NumWords == 0 {
		problems = append(problems, "memory.num_words must be positive")
	}

	if c.Memory.FreqMHz <= 0 {
		problems = append(problems, "memory.freq_mhz must be positive")
	}

	if c.Memory.LatencyCycles < 0 {
		problems = append(problems, "memory.latency_cycles must not be negative")
	}

	if c.Memory.InvalidationCount < 0 {
		problems = append(problems,
			"memory.invalidation_count must not be negative")
	}

	if c.Memory.InvalidationCount > 0 && c.Memory.InvalidationInterval <= 0 {
		problems = append(problems,
			"memory.invalidation_interval must be positive")
	}

	if c.Traffic.Stride == 0 {
		problems = append(problems, "traffic.stride must be positive")
	}

	if c.Traffic.EndAddress < c.Traffic.StartAddress {
		problems = append(problems,
			"traffic.end_address must not be below traffic.start_address")
	}

	if c.Traffic.DumpLength < 0 {
		problems = append(problems, "traffic.dump_length must not be negative")
	}

	if _, err := logrus.ParseLevel(c.Trace.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		problems = append(problems, "monitor.port must be a TCP port")
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}

	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
