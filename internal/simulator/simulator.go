// Package simulator launches the external simulation program for one run.
//
// Command implements experiment.Simulator. It writes the run's override
// parameters to a TOML file inside the run directory and invokes:
//
//	<Path> <Args...> <ParamsFlag> <dir>/override_params.toml <LogFlag> <log file> <config paths...>
//
// The program is expected to merge the config paths with the overrides and
// write the manifest files into the directory.
package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/sweep/internal/experiment"
	"github.com/roach88/sweep/internal/ir"
)

// OverrideFile is the name of the override parameter file written into each
// run directory.
const OverrideFile = "override_params.toml"

const (
	DefaultParamsFlag = "--params"
	DefaultLogFlag    = "--logfile"
)

// stderrTail caps how much captured stderr is quoted in an ExecError.
const stderrTail = 2048

// Command runs an external simulator binary.
type Command struct {
	// Path is the program to execute, resolved via PATH when it has no
	// separator.
	Path string
	// Args are passed before the generated flags.
	Args []string
	// ParamsFlag precedes the override file path. Defaults to "--params".
	ParamsFlag string
	// LogFlag precedes the log file path. Defaults to "--logfile".
	LogFlag string
	// Stdout and Stderr receive the program's output. When Stderr is nil the
	// tail of it is kept for the error message instead.
	Stdout io.Writer
	Stderr io.Writer
}

var _ experiment.Simulator = (*Command)(nil)

// ExecError reports a simulator process that could not start or exited
// unsuccessfully.
type ExecError struct {
	Dir      string
	ExitCode int // -1 when the process never ran to completion
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("simulator failed for %s", e.Dir)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s: exit code %d", msg, e.ExitCode)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Simulate implements experiment.Simulator.
func (c *Command) Simulate(ctx context.Context, req experiment.Request) error {
	if c.Path == "" {
		return errors.New("simulator: no command configured")
	}
	if err := os.MkdirAll(req.Directory, 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	overridePath := filepath.Join(req.Directory, OverrideFile)
	if err := WriteOverrides(overridePath, req.Params); err != nil {
		return err
	}

	args := c.Argv(req, overridePath)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	killProcessGroupOnCancel(cmd)

	var tail bytes.Buffer
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = &tail
	}

	slog.Debug("starting simulator", "path", c.Path, "args", args)
	if err := cmd.Run(); err != nil {
		execErr := &ExecError{Dir: req.Directory, ExitCode: -1, Err: err, Stderr: lastBytes(tail.String(), stderrTail)}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			execErr.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			execErr.Err = ctx.Err()
		}
		return execErr
	}
	return nil
}

// Argv returns the arguments (excluding the program) for one request.
func (c *Command) Argv(req experiment.Request, overridePath string) []string {
	paramsFlag := c.ParamsFlag
	if paramsFlag == "" {
		paramsFlag = DefaultParamsFlag
	}
	logFlag := c.LogFlag
	if logFlag == "" {
		logFlag = DefaultLogFlag
	}

	args := make([]string, 0, len(c.Args)+4+len(req.ConfigPaths))
	args = append(args, c.Args...)
	args = append(args, paramsFlag, overridePath, logFlag, req.LogFile)
	args = append(args, req.ConfigPaths...)
	return args
}

// WriteOverrides encodes params as TOML to path.
func WriteOverrides(path string, params ir.Object) error {
	data, err := MarshalOverrides(params)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write overrides: %w", err)
	}
	return nil
}

// MarshalOverrides encodes params as a TOML document. Tables come out in
// sorted key order.
func MarshalOverrides(params ir.Object) ([]byte, error) {
	if params == nil {
		params = ir.Object{}
	}
	data, err := toml.Marshal(ir.ToAny(params))
	if err != nil {
		return nil, fmt.Errorf("encode overrides: %w", err)
	}
	return data, nil
}

// ReadOverrides decodes a TOML override file back into a parameter object.
func ReadOverrides(path string) (ir.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode overrides %s: %w", path, err)
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("decode overrides %s: %w", path, err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("decode overrides %s: not a table", path)
	}
	return obj, nil
}

func lastBytes(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
