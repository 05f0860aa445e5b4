// Package config loads experiment files.
//
// An experiment file names the output root, the nested parameter grid and
// how to launch the simulator. It may be written in CUE (.cue) or YAML
// (.yaml, .yml, and JSON via the YAML decoder). Environment variables are
// applied after the file:
//
//	SWEEP_ROOT       output root
//	SWEEP_SIMULATOR  simulator command
//	SWEEP_LEDGER     run ledger path
//	SWEEP_LOG_LEVEL  debug, info, warn or error
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/sweep/internal/experiment"
	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/simulator"
)

// Config is a loaded experiment file.
type Config struct {
	// Root is the output root under which run directories are laid out.
	Root string `json:"root" yaml:"root"`

	// Params is the nested parameter grid. It is decoded separately from the
	// rest of the file so numbers keep their int/float distinction.
	Params ir.Object `json:"-" yaml:"-"`

	Manifest ManifestConfig `json:"manifest" yaml:"manifest"`

	// OutPathKey is the dotted simulator option receiving the run directory.
	OutPathKey string `json:"out_path_key" yaml:"out_path_key"`

	Simulator SimulatorConfig `json:"simulator" yaml:"simulator"`

	// Ledger is the SQLite run ledger path. Empty disables the ledger.
	Ledger string `json:"ledger" yaml:"ledger"`

	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Path is the file the config was loaded from.
	Path string `json:"-" yaml:"-"`
}

// ManifestConfig overrides the default output manifest.
type ManifestConfig struct {
	Files   []string `json:"files" yaml:"files"`
	LogFile string   `json:"log_file" yaml:"log_file"`
}

// SimulatorConfig describes the external simulator program.
type SimulatorConfig struct {
	Command    string   `json:"command" yaml:"command"`
	Args       []string `json:"args" yaml:"args"`
	ParamsFlag string   `json:"params_flag" yaml:"params_flag"`
	LogFlag    string   `json:"log_flag" yaml:"log_flag"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Params:     ir.Object{},
		OutPathKey: experiment.DefaultOutPathKey,
		Simulator: SimulatorConfig{
			ParamsFlag: simulator.DefaultParamsFlag,
			LogFlag:    simulator.DefaultLogFlag,
		},
		LogLevel: "info",
	}
}

// ExperimentManifest returns the configured manifest, or the default one
// when no files are listed. A missing log file defaults to ve_run.log.
func (c *Config) ExperimentManifest() experiment.Manifest {
	if len(c.Manifest.Files) == 0 {
		m := experiment.DefaultManifest()
		if c.Manifest.LogFile != "" {
			m.LogFile = c.Manifest.LogFile
		}
		return m
	}
	logFile := c.Manifest.LogFile
	if logFile == "" {
		logFile = experiment.LogFile
	}
	return experiment.Manifest{Files: append([]string(nil), c.Manifest.Files...), LogFile: logFile}
}

// Command returns the simulator adapter, or nil when no command is set.
func (c *Config) Command() *simulator.Command {
	if c.Simulator.Command == "" {
		return nil
	}
	return &simulator.Command{
		Path:       c.Simulator.Command,
		Args:       append([]string(nil), c.Simulator.Args...),
		ParamsFlag: c.Simulator.ParamsFlag,
		LogFlag:    c.Simulator.LogFlag,
	}
}

// NewExperiment builds the experiment the config describes.
func (c *Config) NewExperiment(sim experiment.Simulator) (*experiment.Experiment, error) {
	return experiment.New(c.Root, c.Params, experiment.Options{
		Manifest:   c.ExperimentManifest(),
		OutPathKey: c.OutPathKey,
		Simulator:  sim,
	})
}

// Validate checks the settings that do not need the grid to be enumerated.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return &LoadError{Code: ErrCodeInvalid, Message: "root is required"}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return &LoadError{Code: ErrCodeInvalid, Message: err.Error()}
	}
	if err := c.ExperimentManifest().Validate(); err != nil {
		return &LoadError{Code: ErrCodeInvalid, Message: err.Error()}
	}
	return nil
}

// ParseLevel maps a log level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", s)
	}
}

// applyDefaults fills settings a file left empty.
func applyDefaults(c *Config) {
	if c.Params == nil {
		c.Params = ir.Object{}
	}
	if c.OutPathKey == "" {
		c.OutPathKey = experiment.DefaultOutPathKey
	}
	if c.Simulator.ParamsFlag == "" {
		c.Simulator.ParamsFlag = simulator.DefaultParamsFlag
	}
	if c.Simulator.LogFlag == "" {
		c.Simulator.LogFlag = simulator.DefaultLogFlag
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("SWEEP_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("SWEEP_SIMULATOR"); v != "" {
		c.Simulator.Command = v
	}
	if v := os.Getenv("SWEEP_LEDGER"); v != "" {
		c.Ledger = v
	}
	if v := os.Getenv("SWEEP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
