package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sweep/internal/store"
)

// Directory states reported by the status command.
const (
	StateComplete = "complete"
	StatePartial  = "partial"
	StateMissing  = "missing"
)

// DirStatus is the status of one combination directory.
type DirStatus struct {
	Dir       string `json:"dir"`
	State     string `json:"state"`
	Present   int    `json:"present"`
	Expected  int    `json:"expected"`
	ParamHash string `json:"param_hash"`
	LastRun   string `json:"last_run,omitempty"` // ledger status of the latest run
	RunID     string `json:"run_id,omitempty"`
}

// StatusReport summarizes every combination of the sweep.
type StatusReport struct {
	Total    int         `json:"total"`
	Complete int         `json:"complete"`
	Partial  int         `json:"partial"`
	Missing  int         `json:"missing"`
	Dirs     []DirStatus `json:"dirs"`
}

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Check bool
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report which combinations have their outputs",
		Long: `Report, for every combination directory, whether all manifest files
exist on disk (complete), some do (partial) or none do (missing). When the
experiment file names a ledger, the status of the latest recorded run is
shown as well.

With --check, exits with code 1 unless every combination is complete.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "exit 1 unless every combination is complete")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, sessionNeeds{ledger: true})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var latest map[string]store.Run
	if s.ledger != nil {
		latest, err = s.ledger.LatestRuns(ctx)
		if err != nil {
			return reportErrorCode(s.formatter, ExitCommandError, ErrCodeLedger, "failed to read ledger", err)
		}
	}

	report, err := buildStatus(s, latest)
	if err != nil {
		return reportError(s.formatter, ExitFailure, "status failed", err)
	}

	if err := s.formatter.Text(formatStatus(report), report); err != nil {
		return err
	}
	if opts.Check && report.Complete != report.Total {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d combinations incomplete", report.Total-report.Complete, report.Total))
	}
	return nil
}

func buildStatus(s *session, latest map[string]store.Run) (*StatusReport, error) {
	files := s.exp.Manifest().Files
	report := &StatusReport{Dirs: []DirStatus{}}

	for _, dir := range s.exp.Directories() {
		hash, _, err := s.exp.ParamHash(dir)
		if err != nil {
			return nil, err
		}

		st := DirStatus{Dir: dir, Expected: len(files), ParamHash: hash}
		for _, name := range files {
			_, err := os.Stat(filepath.Join(dir, name))
			switch {
			case err == nil:
				st.Present++
			case errors.Is(err, fs.ErrNotExist):
			default:
				return nil, err
			}
		}

		switch st.Present {
		case st.Expected:
			st.State = StateComplete
			report.Complete++
		case 0:
			st.State = StateMissing
			report.Missing++
		default:
			st.State = StatePartial
			report.Partial++
		}

		if run, ok := latest[dir]; ok {
			st.LastRun = string(run.Status)
			st.RunID = run.ID
		}
		report.Dirs = append(report.Dirs, st)
	}

	report.Total = len(report.Dirs)
	return report, nil
}

func formatStatus(report *StatusReport) []string {
	lines := make([]string, 0, len(report.Dirs)+1)
	for _, st := range report.Dirs {
		line := fmt.Sprintf("%-8s %d/%d  %s", st.State, st.Present, st.Expected, st.Dir)
		if st.LastRun != "" {
			line += "  [" + st.LastRun + "]"
		}
		lines = append(lines, line)
	}
	lines = append(lines, strings.Join([]string{
		fmt.Sprintf("%d combinations", report.Total),
		fmt.Sprintf("%d complete", report.Complete),
		fmt.Sprintf("%d partial", report.Partial),
		fmt.Sprintf("%d missing", report.Missing),
	}, ", "))
	return lines
}
