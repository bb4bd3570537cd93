// Package config resolves spectra settings from .env files and the environment.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/metcalfc/spectra/internal/chart"
	"github.com/metcalfc/spectra/internal/errs"
	"github.com/metcalfc/spectra/internal/reveal"
)

// Environment variable names.
const (
	EnvServerURL       = "SPECTRA_SERVER_URL"
	EnvTimeout         = "SPECTRA_TIMEOUT"
	EnvGranularity     = "SPECTRA_GRANULARITY"
	EnvTick            = "SPECTRA_TICK"
	EnvStream          = "SPECTRA_STREAM"
	EnvChartsAfterText = "SPECTRA_CHARTS_AFTER_TEXT"
	EnvPlotField       = "SPECTRA_PLOT_FIELD"
	EnvLogFile         = "SPECTRA_LOG_FILE"
	EnvLogLevel        = "SPECTRA_LOG_LEVEL"
)

// Config is the complete client configuration.
type Config struct {
	Server ServerConfig
	Reveal RevealConfig
	Charts ChartConfig
	Log    LogConfig
}

// ServerConfig locates the analysis service.
type ServerConfig struct {
	URL     string
	Timeout time.Duration
}

// RevealConfig controls answer playback.
type RevealConfig struct {
	Granularity reveal.Granularity
	Tick        time.Duration
	Stream      bool
}

// ChartConfig controls chart extraction and display.
type ChartConfig struct {
	PlotField string
	// AfterText holds charts back until the answer has been revealed.
	AfterText bool
}

// LogConfig controls the log file.
type LogConfig struct {
	File  string
	Level string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     "http://localhost:8000",
			Timeout: 180 * time.Second,
		},
		Reveal: RevealConfig{
			Granularity: reveal.Word,
			Tick:        reveal.DefaultInterval,
			Stream:      true,
		},
		Charts: ChartConfig{
			PlotField: chart.DefaultPlotField,
		},
		Log: LogConfig{
			File:  filepath.Join(StateDir(), "spectra.log"),
			Level: "info",
		},
	}
}

// Load reads the given .env files (".env" when none are named; missing
// files are skipped), then overlays environment variables on Default.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errs.Wrapf(err, errs.CodeInvalidConfig, "failed to load %s", f)
		}
	}

	cfg := Default()
	var err error

	if v := env(EnvServerURL); v != "" {
		cfg.Server.URL = v
	}
	if cfg.Server.Timeout, err = envDuration(EnvTimeout, cfg.Server.Timeout); err != nil {
		return nil, err
	}
	if v := env(EnvGranularity); v != "" {
		g, err := reveal.ParseGranularity(v)
		if err != nil {
			return nil, errs.Wrapf(err, errs.CodeInvalidConfig, "invalid %s", EnvGranularity)
		}
		cfg.Reveal.Granularity = g
	}
	if cfg.Reveal.Tick, err = envDuration(EnvTick, cfg.Reveal.Tick); err != nil {
		return nil, err
	}
	if cfg.Reveal.Stream, err = envBool(EnvStream, cfg.Reveal.Stream); err != nil {
		return nil, err
	}
	if cfg.Charts.AfterText, err = envBool(EnvChartsAfterText, cfg.Charts.AfterText); err != nil {
		return nil, err
	}
	if v := env(EnvPlotField); v != "" {
		cfg.Charts.PlotField = v
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Log.File = v
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return errs.Wrapf(err, errs.CodeInvalidConfig, "invalid server URL %q", c.Server.URL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errs.Newf(errs.CodeInvalidConfig, "server URL %q must be http(s)://host[:port]", c.Server.URL)
	}
	if c.Server.Timeout <= 0 {
		return errs.Newf(errs.CodeInvalidConfig, "timeout must be positive, got %v", c.Server.Timeout)
	}
	if c.Reveal.Tick <= 0 {
		return errs.Newf(errs.CodeInvalidConfig, "tick must be positive, got %v", c.Reveal.Tick)
	}
	if c.Reveal.Granularity != reveal.Word && c.Reveal.Granularity != reveal.Char {
		return errs.Newf(errs.CodeInvalidConfig, "unknown granularity %v", c.Reveal.Granularity)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errs.Newf(errs.CodeInvalidConfig, "unknown log level %q", c.Log.Level)
	}
	return nil
}

// RevealOptions converts the reveal settings for the reveal package.
func (c *Config) RevealOptions() reveal.Options {
	return reveal.Options{
		Granularity: c.Reveal.Granularity,
		Interval:    c.Reveal.Tick,
		Stream:      c.Reveal.Stream,
	}
}

// ChartRule returns the shape predicate for plot objects.
func (c *Config) ChartRule() chart.Rule {
	return chart.NewRule(c.Charts.PlotField)
}

// StateDir returns XDG_STATE_HOME/spectra or ~/.local/state/spectra.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "spectra")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "spectra")
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errs.Wrapf(err, errs.CodeInvalidConfig, "invalid %s", key)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := env(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errs.Wrapf(err, errs.CodeInvalidConfig, "invalid %s", key)
	}
	return b, nil
}
