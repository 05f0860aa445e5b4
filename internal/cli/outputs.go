package cli

import (
	"slices"

	"github.com/spf13/cobra"
)

// NewOutPathCommand creates the outpath command.
func NewOutPathCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "outpath",
		Short: "Print the output directory template",
		Long: `Print the output directory template with one {placeholder} per swept
parameter, in sorted key order.

Example:
  sweep -c experiment.yaml outpath
  out/a.param_{a_param}/b.c.param_{b_c_param}`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd, sessionNeeds{})
			if err != nil {
				return err
			}
			defer s.Close()

			outPath := s.exp.OutPath()
			return s.formatter.Text(outPath, map[string]any{
				"outpath":      outPath,
				"placeholders": placeholders(s.exp.Template().Keys()),
			})
		},
	}
}

// OutputsOptions holds flags for the outputs command.
type OutputsOptions struct {
	*RootOptions
	All bool
}

// NewOutputsCommand creates the outputs command.
func NewOutputsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OutputsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "List output files",
		Long: `List the output files of the sweep.

Without --all, prints the manifest files under the directory template (the
scheduler's rule outputs). With --all, prints every concrete output file of
every combination, sorted (the scheduler's final targets).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts.RootOptions, cmd, sessionNeeds{})
			if err != nil {
				return err
			}
			defer s.Close()

			var outputs []string
			if opts.All {
				outputs = s.exp.AllOutputs()
				slices.Sort(outputs)
			} else {
				outputs = s.exp.Output()
			}
			return s.formatter.Text(outputs, map[string]any{"outputs": outputs})
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "list every concrete output file")

	return cmd
}

// placeholders maps each flat key to its template placeholder.
func placeholders(keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		out[key] = placeholderFor(key)
	}
	return out
}
