package experiment

import (
	"fmt"
	"slices"
	"strings"
)

// Default output file names written by the simulator into every run directory.
const (
	MergedConfigFile = "vr_full_model_configuration.toml"
	LogFile          = "ve_run.log"
)

// Manifest is the fixed set of file basenames every run directory must end
// up containing. It is configuration, not mutable state: the Experiment keeps
// its own copy.
type Manifest struct {
	// Files lists the expected basenames in listing order.
	Files []string
	// LogFile is the member of Files the simulator logs to.
	LogFile string
}

// DefaultManifest returns the outputs of a standard simulator run.
func DefaultManifest() Manifest {
	return Manifest{
		Files: []string{
			MergedConfigFile,
			LogFile,
			"initial_state.nc",
			"final_state.nc",
			"all_continuous_data.nc",
		},
		LogFile: LogFile,
	}
}

// Validate checks the manifest is usable: at least one file, unique plain
// basenames, and a log file that is one of them.
func (m Manifest) Validate() error {
	if len(m.Files) == 0 {
		return fmt.Errorf("manifest: no output files")
	}
	seen := make(map[string]bool, len(m.Files))
	for _, f := range m.Files {
		if f == "" || f == "." || f == ".." || strings.ContainsAny(f, `/\`) {
			return fmt.Errorf("manifest: %q is not a plain file name", f)
		}
		if seen[f] {
			return fmt.Errorf("manifest: duplicate file %q", f)
		}
		seen[f] = true
	}
	if !seen[m.LogFile] {
		return fmt.Errorf("manifest: log file %q is not one of the output files", m.LogFile)
	}
	return nil
}

// Contains reports whether name is one of the manifest's basenames.
func (m Manifest) Contains(name string) bool {
	return slices.Contains(m.Files, name)
}

func (m Manifest) clone() Manifest {
	return Manifest{Files: slices.Clone(m.Files), LogFile: m.LogFile}
}
