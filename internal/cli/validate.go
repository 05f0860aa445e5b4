package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool   `json:"valid"`
	Combinations int    `json:"combinations"`
	Outputs      int    `json:"outputs"`
	OutPath      string `json:"outpath"`
	Simulator    string `json:"simulator,omitempty"`
	Ledger       string `json:"ledger,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the experiment file and parameter grid",
		Long: `Load the experiment file and enumerate the whole parameter grid without
running anything. Reports malformed grids, ambiguous keys and combinations
that would share a directory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd, sessionNeeds{})
	if err != nil {
		return err
	}
	defer s.Close()

	s.formatter.VerboseLog("Loaded %s", s.cfg.Path)

	result := ValidationResult{
		Valid:        true,
		Combinations: s.exp.Len(),
		Outputs:      len(s.exp.AllOutputs()),
		OutPath:      s.exp.OutPath(),
		Simulator:    s.cfg.Simulator.Command,
		Ledger:       s.cfg.Ledger,
	}

	text := fmt.Sprintf("✓ %s valid: %d combinations, %d output files", s.cfg.Path, result.Combinations, result.Outputs)
	if result.Simulator == "" {
		text += " (no simulator command configured)"
	}
	return s.formatter.Text(text, result)
}
