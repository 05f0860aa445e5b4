package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/sweep/internal/experiment"
	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/keypath"
)

// ParamsOptions holds flags for the params command.
type ParamsOptions struct {
	*RootOptions
	Index int
	Dir   string
}

// NewParamsCommand creates the params command.
func NewParamsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParamsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "params (--index N | --dir DIR)",
		Short: "Print one combination's parameters",
		Long: `Print the nested parameters of one combination as canonical JSON,
selected either by enumeration index or by output directory.

Example:
  sweep -c experiment.yaml params --index 0
  sweep -c experiment.yaml params --dir out/a.param_1/b.c.param_2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParams(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Index, "index", -1, "combination index in enumeration order")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "combination output directory")
	cmd.MarkFlagsMutuallyExclusive("index", "dir")
	cmd.MarkFlagsOneRequired("index", "dir")

	return cmd
}

func runParams(opts *ParamsOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd, sessionNeeds{})
	if err != nil {
		return err
	}
	defer s.Close()

	dir, params, err := lookupParams(s.exp, opts)
	if err != nil {
		return reportError(s.formatter, ExitCommandError, "no such combination", err)
	}

	canonical, err := ir.MarshalCanonical(params)
	if err != nil {
		return reportError(s.formatter, ExitFailure, "encode parameters", err)
	}
	hash, err := ir.ParamSetHash(params)
	if err != nil {
		return reportError(s.formatter, ExitFailure, "hash parameters", err)
	}

	return s.formatter.Text(string(canonical), map[string]any{
		"dir":        dir,
		"params":     ir.ToAny(params),
		"param_hash": hash,
	})
}

func lookupParams(exp *experiment.Experiment, opts *ParamsOptions) (string, ir.Object, error) {
	if opts.Dir != "" {
		dir := filepath.Clean(opts.Dir)
		params, ok := exp.Params(dir)
		if !ok {
			return "", nil, &experiment.UnknownDirectoryError{Dir: dir}
		}
		return dir, params, nil
	}
	if opts.Index < 0 {
		return "", nil, fmt.Errorf("index must be non-negative, got %d", opts.Index)
	}
	return exp.At(opts.Index)
}

func placeholderFor(key string) string {
	return "{" + keypath.Placeholder(key) + "}"
}
