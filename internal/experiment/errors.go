package experiment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSimulator is returned by Run when the Experiment was built without a
// Simulator.
var ErrNoSimulator = errors.New("experiment: no simulator configured")

// InconsistentOutputSetError reports requested outputs that do not share
// exactly one parent directory.
type InconsistentOutputSetError struct {
	// Dirs are the distinct parent directories, sorted. Empty when no
	// outputs were given at all.
	Dirs []string
}

func (e *InconsistentOutputSetError) Error() string {
	if len(e.Dirs) == 0 {
		return "no output files given"
	}
	return fmt.Sprintf("output files are not all in the same folder: %s", strings.Join(e.Dirs, ", "))
}

// UnknownOutputFileError reports an output basename missing from the manifest.
type UnknownOutputFileError struct {
	Path string
	Name string
}

func (e *UnknownOutputFileError) Error() string {
	return fmt.Sprintf("unknown file given as output: %s (%q is not in the output manifest)", e.Path, e.Name)
}

// UnknownDirectoryError reports an output directory the grid never produced.
type UnknownDirectoryError struct {
	Dir string
}

func (e *UnknownDirectoryError) Error() string {
	return fmt.Sprintf("directory %s is not part of the parameter grid", e.Dir)
}

// ConfigConflictError reports keys set both by the grid and by the run
// overrides (the output path).
type ConfigConflictError struct {
	Keys []string
}

func (e *ConfigConflictError) Error() string {
	return fmt.Sprintf("config option set twice: %s", strings.Join(e.Keys, ", "))
}

// DuplicateDirectoryError reports two combinations rendering to one directory,
// e.g. a value listed twice for the same key.
type DuplicateDirectoryError struct {
	Dir    string
	First  int
	Second int
}

func (e *DuplicateDirectoryError) Error() string {
	return fmt.Sprintf("combinations %d and %d both map to directory %s", e.First, e.Second, e.Dir)
}

// IsConfigConflict returns true if err is or wraps a ConfigConflictError.
func IsConfigConflict(err error) bool {
	var ce *ConfigConflictError
	return errors.As(err, &ce)
}

// IsInvalidOutputs returns true if err rejects the requested output set
// itself: mixed directories, unknown files or an unknown directory.
func IsInvalidOutputs(err error) bool {
	var (
		inconsistent *InconsistentOutputSetError
		unknownFile  *UnknownOutputFileError
		unknownDir   *UnknownDirectoryError
	)
	return errors.As(err, &inconsistent) || errors.As(err, &unknownFile) || errors.As(err, &unknownDir)
}
