package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Inputs []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [--input FILE]... OUTPUT...",
		Short: "Run the simulation that produces OUTPUT",
		Long: `Run the simulation for one combination. This is the command a
scheduler rule invokes.

All OUTPUT files must be in the same combination directory and be part of the
output manifest. The combination's parameters, plus the output-path option
pointing at that directory, are passed to the simulator together with the
--input config files. When the experiment file names a ledger, the run is
recorded there.

Example:
  sweep -c experiment.yaml run --input base.toml out/a.param_1/b.c.param_2/ve_run.log`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Inputs, "input", "i", nil, "simulator config file (repeatable)")

	return cmd
}

func runSimulation(opts *RunOptions, outputs []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, sessionNeeds{simulator: true, ledger: true})
	if err != nil {
		return err
	}
	defer s.Close()

	req, err := s.exp.Prepare(opts.Inputs, outputs)
	if err != nil {
		return reportError(s.formatter, ExitCommandError, "invalid run request", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping simulator", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.exp.Launch(ctx, req); err != nil {
		return reportError(s.formatter, ExitFailure, "run failed", err)
	}

	slog.Info("simulation finished", "dir", req.Directory)
	return s.formatter.Text("done: "+req.Directory, map[string]any{
		"dir":        req.Directory,
		"log_file":   req.LogFile,
		"inputs":     req.ConfigPaths,
		"param_hash": req.ParamHash,
	})
}
