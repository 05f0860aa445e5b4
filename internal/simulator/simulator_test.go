package simulator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/experiment"
	"github.com/roach88/sweep/internal/ir"
)

// writeScript creates a shell script standing in for the simulator binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake_sim.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func testRequest(t *testing.T) experiment.Request {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "out", "a.param_1")
	return experiment.Request{
		Directory:   dir,
		ConfigPaths: []string{"base.toml", "extra.toml"},
		Params: ir.Object{
			"a": ir.Object{"param": ir.Int(1)},
			"core": ir.Object{
				"data_output_options": ir.Object{"out_path": ir.String(dir)},
			},
		},
		LogFile: filepath.Join(dir, experiment.LogFile),
	}
}

func TestArgv(t *testing.T) {
	cmd := &Command{Path: "ve_run", Args: []string{"--quiet"}}
	req := experiment.Request{ConfigPaths: []string{"c1.toml"}, LogFile: "d/ve_run.log"}

	assert.Equal(t,
		[]string{"--quiet", "--params", "d/override_params.toml", "--logfile", "d/ve_run.log", "c1.toml"},
		cmd.Argv(req, "d/override_params.toml"))

	cmd.ParamsFlag, cmd.LogFlag = "-p", "-l"
	assert.Equal(t,
		[]string{"--quiet", "-p", "o.toml", "-l", "d/ve_run.log", "c1.toml"},
		cmd.Argv(req, "o.toml"))
}

func TestSimulateInvokesProgram(t *testing.T) {
	script := writeScript(t, `printf '%s\n' "$@" > "$(dirname "$4")/args.txt"
echo done > "$4"`)
	req := testRequest(t)

	cmd := &Command{Path: "/bin/sh", Args: []string{script}}
	require.NoError(t, cmd.Simulate(context.Background(), req))

	args, err := os.ReadFile(filepath.Join(req.Directory, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--params", filepath.Join(req.Directory, OverrideFile),
		"--logfile", req.LogFile,
		"base.toml", "extra.toml",
	}, strings.Split(strings.TrimSpace(string(args)), "\n"))

	assert.FileExists(t, req.LogFile)

	overrides, err := ReadOverrides(filepath.Join(req.Directory, OverrideFile))
	require.NoError(t, err)
	assert.Equal(t, req.Params, overrides)
}

func TestSimulateReportsExitCode(t *testing.T) {
	script := writeScript(t, `echo "bad config" >&2
exit 3`)
	req := testRequest(t)

	err := (&Command{Path: "/bin/sh", Args: []string{script}}).Simulate(context.Background(), req)

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Equal(t, "bad config", execErr.Stderr)
	assert.Contains(t, err.Error(), "exit code 3")
}

func TestSimulateMissingProgram(t *testing.T) {
	req := testRequest(t)

	err := (&Command{Path: filepath.Join(t.TempDir(), "does-not-exist")}).Simulate(context.Background(), req)

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, -1, execErr.ExitCode)
}

func TestSimulateCancelled(t *testing.T) {
	script := writeScript(t, "sleep 30")
	req := testRequest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := (&Command{Path: "/bin/sh", Args: []string{script}}).Simulate(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSimulateRequiresPath(t *testing.T) {
	err := (&Command{}).Simulate(context.Background(), testRequest(t))
	assert.ErrorContains(t, err, "no command")
}

func TestMarshalOverrides(t *testing.T) {
	data, err := MarshalOverrides(ir.Object{
		"b": ir.Object{"c": ir.Object{"param": ir.Float(0.5)}},
		"a": ir.Object{"param": ir.Int(2), "name": ir.String("x"), "on": ir.Bool(true)},
	})
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "[a]")
	assert.Contains(t, text, "[b.c]")
	assert.Contains(t, text, "param = 2")
	assert.Contains(t, text, "param = 0.5")
	assert.Less(t, strings.Index(text, "[a]"), strings.Index(text, "[b.c]"))
}

func TestMarshalOverridesEmpty(t *testing.T) {
	data, err := MarshalOverrides(nil)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(data)))
}

func TestReadOverridesRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), OverrideFile)
	require.NoError(t, os.WriteFile(path, []byte("= nope"), 0o644))

	_, err := ReadOverrides(path)
	assert.Error(t, err)
}
