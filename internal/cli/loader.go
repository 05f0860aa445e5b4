package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/sweep/internal/config"
	"github.com/roach88/sweep/internal/experiment"
	"github.com/roach88/sweep/internal/grid"
	"github.com/roach88/sweep/internal/keypath"
	"github.com/roach88/sweep/internal/simulator"
	"github.com/roach88/sweep/internal/store"
)

// Error code constants - unified across all CLI commands.
// E00x codes come from config.LoadError.
const (
	ErrCodeGeneric = config.ErrCodeGeneric

	// Grid errors
	ErrCodeMalformedGrid = "E201" // Leaf is not a non-empty list of scalars
	ErrCodeAmbiguousKey  = "E202" // Key cannot round-trip through a flat key
	ErrCodeDuplicateDir  = "E203" // Two combinations share a directory
	ErrCodeIndexRange    = "E204" // Combination index out of range

	// Run errors
	ErrCodeInvalidOutputs = "E301" // Outputs span directories, unknown file or directory
	ErrCodeConfigConflict = "E302" // Grid sets the output-path option
	ErrCodeNoSimulator    = "E303" // No simulator command configured
	ErrCodeSimulator      = "E304" // Simulator process failed
	ErrCodeLedger         = "E305" // Run ledger could not be opened
)

// ErrorCode maps an error from loading or running an experiment to a CLI
// error code.
func ErrorCode(err error) string {
	var (
		loadErr      *config.LoadError
		malformed    *grid.MalformedGridError
		outOfRange   *grid.IndexOutOfRangeError
		ambiguous    *keypath.AmbiguousKeyError
		collision    *keypath.CollisionError
		duplicateDir *experiment.DuplicateDirectoryError
		execErr      *simulator.ExecError
	)
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code
	case errors.As(err, &malformed):
		return ErrCodeMalformedGrid
	case errors.As(err, &ambiguous), errors.As(err, &collision):
		return ErrCodeAmbiguousKey
	case errors.As(err, &duplicateDir):
		return ErrCodeDuplicateDir
	case errors.As(err, &outOfRange):
		return ErrCodeIndexRange
	case experiment.IsInvalidOutputs(err):
		return ErrCodeInvalidOutputs
	case experiment.IsConfigConflict(err):
		return ErrCodeConfigConflict
	case errors.Is(err, experiment.ErrNoSimulator):
		return ErrCodeNoSimulator
	case errors.As(err, &execErr):
		return ErrCodeSimulator
	default:
		return ErrCodeGeneric
	}
}

// session is a loaded experiment file plus the experiment it describes.
type session struct {
	cfg       *config.Config
	exp       *experiment.Experiment
	formatter *OutputFormatter
	ledger    *store.Store
}

func (s *session) Close() {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Close(); err != nil {
		slog.Error("error closing ledger", "error", err)
	}
}

// newFormatter creates the formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// sessionNeeds selects what openSession sets up beyond the experiment.
type sessionNeeds struct {
	simulator bool // resolve the simulator; fail if none is configured
	ledger    bool // open the ledger when the experiment file names one
}

// openSession loads the experiment file, configures logging and builds the
// experiment. Errors are reported through the formatter and returned as
// ExitErrors.
//
// When both a simulator and a ledger are set up, the simulator is wrapped in
// a store.Recorder so every run is recorded.
func openSession(opts *RootOptions, cmd *cobra.Command, needs sessionNeeds) (*session, error) {
	formatter := newFormatter(opts, cmd)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, reportError(formatter, ExitCommandError, "failed to load experiment", err)
	}
	setupLogging(opts, cfg.LogLevel, cmd.ErrOrStderr())
	slog.Debug("experiment file loaded", "path", cfg.Path, "root", cfg.Root)

	var sim experiment.Simulator
	if needs.simulator {
		sim = opts.Simulator
		if sim == nil {
			if command := cfg.Command(); command != nil {
				command.Stdout = cmd.ErrOrStderr()
				command.Stderr = cmd.ErrOrStderr()
				sim = command
			}
		}
		if sim == nil {
			return nil, reportError(formatter, ExitCommandError, "cannot run", experiment.ErrNoSimulator)
		}
	}

	s := &session{cfg: cfg, formatter: formatter}
	if needs.ledger && cfg.Ledger != "" {
		ledger, err := store.Open(cfg.Ledger)
		if err != nil {
			return nil, reportErrorCode(formatter, ExitCommandError, ErrCodeLedger, "failed to open ledger", err)
		}
		s.ledger = ledger
		if sim != nil {
			sim = &store.Recorder{Store: ledger, Next: sim}
		}
	}

	exp, err := cfg.NewExperiment(sim)
	if err != nil {
		s.Close()
		return nil, reportError(formatter, ExitCommandError, "invalid parameter grid", err)
	}
	s.exp = exp
	return s, nil
}

// setupLogging installs the default slog logger on stderr. --verbose forces
// debug level; otherwise the experiment file's log_level applies.
func setupLogging(opts *RootOptions, level string, w io.Writer) {
	logLevel, err := config.ParseLevel(level)
	if err != nil {
		logLevel = slog.LevelInfo
	}
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if opts.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// reportError writes err through the formatter and returns it as an ExitError.
func reportError(formatter *OutputFormatter, exitCode int, message string, err error) error {
	return reportErrorCode(formatter, exitCode, ErrorCode(err), message, err)
}

func reportErrorCode(formatter *OutputFormatter, exitCode int, code, message string, err error) error {
	_ = formatter.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(exitCode, fmt.Sprintf("%s: %s", code, message), err)
}
