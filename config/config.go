// Package config consolidates the options of a smoke run from defaults,
// a YAML file, QUIZSMOKE_* environment variables and CLI flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/driver"
	"github.com/liuxd6825/quizsmoke/env"
	"github.com/liuxd6825/quizsmoke/lib/types"
	"github.com/liuxd6825/quizsmoke/scenario"
)

// Defaults of a run.
const (
	DefaultBackend = "cdp"
	DefaultBaseURL = "http://localhost:8000/"
)

// Config is the configuration of a smoke run. Every field is nullable so
// that a layer only overrides what it sets.
type Config struct {
	Backend  null.String `yaml:"backend" envconfig:"QUIZSMOKE_BACKEND"`
	BaseURL  null.String `yaml:"base_url" envconfig:"QUIZSMOKE_BASE_URL"`
	Shared   null.Bool   `yaml:"shared" envconfig:"QUIZSMOKE_SHARED"`
	Headless null.Bool   `yaml:"headless" envconfig:"QUIZSMOKE_HEADLESS"`

	NoSandbox          null.Bool   `yaml:"no_sandbox" envconfig:"QUIZSMOKE_NO_SANDBOX"`
	DisableDevShmUsage null.Bool   `yaml:"disable_dev_shm_usage" envconfig:"QUIZSMOKE_DISABLE_DEV_SHM_USAGE"`
	ExecutablePath     null.String `yaml:"executable_path" envconfig:"QUIZSMOKE_BROWSER_EXECUTABLE"`
	ChromeDriver       null.String `yaml:"chromedriver" envconfig:"QUIZSMOKE_CHROMEDRIVER"`
	RemoteURL          null.String `yaml:"remote_url" ignored:"true"`
	Args               []string    `yaml:"args" ignored:"true"`

	Timeout           types.NullDuration `yaml:"timeout" envconfig:"QUIZSMOKE_TIMEOUT"`
	NavigationTimeout types.NullDuration `yaml:"navigation_timeout" envconfig:"QUIZSMOKE_NAVIGATION_TIMEOUT"`
	ExpectTimeout     types.NullDuration `yaml:"expect_timeout" envconfig:"QUIZSMOKE_EXPECT_TIMEOUT"`
	SlowMo            types.NullDuration `yaml:"slow_mo" envconfig:"QUIZSMOKE_SLOW_MO"`

	SummaryExport null.String `yaml:"summary_export" envconfig:"QUIZSMOKE_SUMMARY_EXPORT"`
	MetricsFile   null.String `yaml:"metrics_file" envconfig:"QUIZSMOKE_METRICS_FILE"`
	TracesOutput  null.String `yaml:"traces_output" envconfig:"QUIZSMOKE_TRACES_OUTPUT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:            null.StringFrom(DefaultBackend),
		BaseURL:            null.StringFrom(DefaultBaseURL),
		Shared:             null.BoolFrom(false),
		Headless:           null.BoolFrom(true),
		NoSandbox:          null.BoolFrom(true),
		DisableDevShmUsage: null.BoolFrom(true),
		Timeout:            types.NullDurationFrom(common.DefaultTimeout),
		ExpectTimeout:      types.NullDurationFrom(common.DefaultExpectTimeout),
		TracesOutput:       null.StringFrom("none"),
	}
}

// Apply returns c overridden by the valid fields of cfg.
func (c Config) Apply(cfg Config) Config {
	if cfg.Backend.Valid {
		c.Backend = cfg.Backend
	}
	if cfg.BaseURL.Valid {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.Shared.Valid {
		c.Shared = cfg.Shared
	}
	if cfg.Headless.Valid {
		c.Headless = cfg.Headless
	}
	if cfg.NoSandbox.Valid {
		c.NoSandbox = cfg.NoSandbox
	}
	if cfg.DisableDevShmUsage.Valid {
		c.DisableDevShmUsage = cfg.DisableDevShmUsage
	}
	if cfg.ExecutablePath.Valid {
		c.ExecutablePath = cfg.ExecutablePath
	}
	if cfg.ChromeDriver.Valid {
		c.ChromeDriver = cfg.ChromeDriver
	}
	if cfg.RemoteURL.Valid {
		c.RemoteURL = cfg.RemoteURL
	}
	if len(cfg.Args) > 0 {
		c.Args = cfg.Args
	}
	if cfg.Timeout.Valid {
		c.Timeout = cfg.Timeout
	}
	if cfg.NavigationTimeout.Valid {
		c.NavigationTimeout = cfg.NavigationTimeout
	}
	if cfg.ExpectTimeout.Valid {
		c.ExpectTimeout = cfg.ExpectTimeout
	}
	if cfg.SlowMo.Valid {
		c.SlowMo = cfg.SlowMo
	}
	if cfg.SummaryExport.Valid {
		c.SummaryExport = cfg.SummaryExport
	}
	if cfg.MetricsFile.Valid {
		c.MetricsFile = cfg.MetricsFile
	}
	if cfg.TracesOutput.Valid {
		c.TracesOutput = cfg.TracesOutput
	}
	return c
}

// ReadFile reads a YAML configuration file from fs. A missing file yields
// an empty configuration unless required is set.
func ReadFile(fs afero.Fs, path string, required bool) (Config, error) {
	var conf Config
	if path == "" {
		return conf, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return conf, nil
		}
		return conf, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return conf, nil
}

// ReadEnv reads the QUIZSMOKE_* variables found through lookup. The
// remote URL comes from the variable of the configured backend.
func ReadEnv(lookup env.LookupFunc, backend string) (Config, error) {
	var conf Config
	if err := envconfig.Process("", &conf, lookup); err != nil {
		return conf, fmt.Errorf("reading environment: %w", err)
	}
	if conf.Backend.Valid {
		backend = conf.Backend.String
	}
	if key := driver.RemoteURLKey(backend); key != "" {
		if u, ok := env.IsRemoteBrowser(lookup, key); ok {
			conf.RemoteURL = null.StringFrom(u)
		}
	}
	return conf, nil
}

// Consolidate layers the built-in defaults, the YAML file at path, the
// environment and the flag configuration. The file is optional unless
// fileRequired is set.
func Consolidate(fs afero.Fs, flags Config, path string, fileRequired bool, lookup env.LookupFunc) (Config, error) {
	fileConf, err := ReadFile(fs, path, fileRequired)
	if err != nil {
		return Config{}, err
	}
	conf := Default().Apply(fileConf)

	backend := conf.Backend.String
	if flags.Backend.Valid {
		backend = flags.Backend.String
	}
	envConf, err := ReadEnv(lookup, backend)
	if err != nil {
		return Config{}, err
	}
	return conf.Apply(envConf).Apply(flags), nil
}

// Validate checks the consolidated configuration.
func (c Config) Validate() error {
	var errs []error
	if !contains(driver.Names(), c.Backend.String) {
		errs = append(errs, fmt.Errorf("%w %q, should be one of %s",
			driver.ErrUnknownBackend, c.Backend.String, strings.Join(driver.Names(), ", ")))
	}
	if _, err := scenario.ParseBaseURL(c.BaseURL.String); err != nil {
		errs = append(errs, err)
	}
	for name, d := range map[string]types.NullDuration{
		"timeout":            c.Timeout,
		"navigation_timeout": c.NavigationTimeout,
		"expect_timeout":     c.ExpectTimeout,
		"slow_mo":            c.SlowMo,
	} {
		if d.Valid && d.TimeDuration() < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", name, d.Duration))
		}
	}
	return errors.Join(errs...)
}

// LaunchOptions derives the browser launch options.
func (c Config) LaunchOptions() *common.LaunchOptions {
	opts := common.NewLaunchOptions()
	opts.Headless = c.Headless.ValueOrZero()
	opts.NoSandbox = c.NoSandbox.ValueOrZero()
	opts.DisableDevShmUsage = c.DisableDevShmUsage.ValueOrZero()
	opts.ExecutablePath = c.ExecutablePath.String
	opts.DriverPath = c.ChromeDriver.String
	opts.RemoteURL = c.RemoteURL.String
	opts.Args = append(opts.Args, c.Args...)
	if c.Timeout.Valid {
		opts.Timeout = c.Timeout.TimeDuration()
	}
	if c.SlowMo.Valid {
		opts.SlowMo = c.SlowMo.TimeDuration()
	}
	return opts
}

// TimeoutSettings derives the navigation, action and expect timeouts.
func (c Config) TimeoutSettings() *common.TimeoutSettings {
	ts := common.NewTimeoutSettings(nil)
	if c.Timeout.Valid {
		ts.SetDefaultTimeout(c.Timeout.TimeDuration())
	}
	if c.NavigationTimeout.Valid {
		ts.SetDefaultNavigationTimeout(c.NavigationTimeout.TimeDuration())
	}
	if c.ExpectTimeout.Valid {
		ts.SetDefaultExpectTimeout(c.ExpectTimeout.TimeDuration())
	}
	return ts
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
