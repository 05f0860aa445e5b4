package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/simulator"
	"github.com/roach88/sweep/internal/store"
)

var errNoLedger = errors.New("no ledger configured (set ledger in the experiment file or SWEEP_LEDGER)")

// RunRecord is one ledger entry as printed by the runs command.
type RunRecord struct {
	Seq         int64    `json:"seq"`
	ID          string   `json:"id"`
	Dir         string   `json:"dir"`
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
	ParamHash   string   `json:"param_hash"`
	ConfigPaths []string `json:"config_paths"`
	StartedAt   string   `json:"started_at"`
	FinishedAt  string   `json:"finished_at,omitempty"`
	Overrides   any      `json:"overrides,omitempty"` // override file found in Dir

	overrides ir.Object
}

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Dir       string
	Hash      string
	Overrides bool
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [--dir DIR | --hash HASH]",
		Short: "List recorded runs from the ledger",
		Long: `List runs recorded in the ledger in the order they started.

--dir restricts the list to one combination directory. --hash lists every
run of one parameter set (as printed by "sweep params" or "sweep status"),
including runs of other experiments sharing the ledger. --overrides adds
the override parameters the simulator received, read back from the run
directory.

Example:
  sweep -c experiment.yaml runs --dir out/a.param_1/b.c.param_2 --overrides`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "only runs of this directory")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "only runs of this parameter set")
	cmd.Flags().BoolVar(&opts.Overrides, "overrides", false, "include the recorded override parameters")
	cmd.MarkFlagsMutuallyExclusive("dir", "hash")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, sessionNeeds{ledger: true})
	if err != nil {
		return err
	}
	defer s.Close()

	if s.ledger == nil {
		return reportErrorCode(s.formatter, ExitCommandError, ErrCodeLedger, "cannot list runs", errNoLedger)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var runs []store.Run
	if opts.Hash != "" {
		runs, err = s.ledger.RunsByParamHash(ctx, opts.Hash)
	} else {
		dir := opts.Dir
		if dir != "" {
			dir = filepath.Clean(dir)
		}
		runs, err = s.ledger.ListRuns(ctx, dir)
	}
	if err != nil {
		return reportErrorCode(s.formatter, ExitFailure, ErrCodeLedger, "failed to read ledger", err)
	}

	records := make([]RunRecord, 0, len(runs))
	for _, run := range runs {
		rec := newRunRecord(run)
		if opts.Overrides {
			overrides, err := readOverrides(run.Directory)
			if err != nil {
				return reportError(s.formatter, ExitFailure, "failed to read overrides", err)
			}
			if overrides != nil {
				rec.overrides = overrides
				rec.Overrides = ir.ToAny(overrides)
			}
		}
		records = append(records, rec)
	}

	return s.formatter.Text(formatRuns(records), map[string]any{"runs": records})
}

func newRunRecord(run store.Run) RunRecord {
	rec := RunRecord{
		Seq:         run.Seq,
		ID:          run.ID,
		Dir:         run.Directory,
		Status:      string(run.Status),
		Message:     run.Message,
		ParamHash:   run.ParamHash,
		ConfigPaths: run.ConfigPaths,
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
	}
	if rec.ConfigPaths == nil {
		rec.ConfigPaths = []string{}
	}
	if run.Finished() {
		rec.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return rec
}

// readOverrides returns the override file of a run directory, or nil when
// the simulator never wrote one there.
func readOverrides(dir string) (ir.Object, error) {
	overrides, err := simulator.ReadOverrides(filepath.Join(dir, simulator.OverrideFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return overrides, err
}

func formatRuns(records []RunRecord) []string {
	lines := make([]string, 0, len(records)+1)
	for _, rec := range records {
		line := fmt.Sprintf("%4d  %-9s  %s  %s", rec.Seq, rec.Status, rec.ID, rec.Dir)
		if rec.Message != "" {
			line += "  (" + rec.Message + ")"
		}
		lines = append(lines, line)
		if rec.overrides != nil {
			if canonical, err := ir.MarshalCanonical(rec.overrides); err == nil {
				lines = append(lines, "      overrides: "+string(canonical))
			}
		}
	}
	lines = append(lines, fmt.Sprintf("%d runs", len(records)))
	return lines
}
