// Package experiment maps a parameter sweep onto per-run output directories
// and launches single runs on behalf of a workflow scheduler.
//
// An Experiment is built once from an output root and a nested parameter
// grid. Construction enumerates every combination, renders its directory
// from the sorted flat keys, and indexes the nested parameters by directory.
// The index is read-only afterwards, so concurrent Run calls (typically one
// per scheduler job, each in its own process) need no locking.
//
// Run validates the output files a scheduler job is about to produce, finds
// the parameters for their directory, adds the output-path override and
// hands everything to the Simulator. The Experiment never writes to disk
// itself.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/roach88/sweep/internal/grid"
	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/keypath"
	"github.com/roach88/sweep/internal/merge"
)

// DefaultOutPathKey is the simulator option that receives the run directory.
const DefaultOutPathKey = "core.data_output_options.out_path"

// Simulator runs one simulation. It is responsible for creating Directory
// and writing the manifest files into it.
type Simulator interface {
	Simulate(ctx context.Context, req Request) error
}

// Request is everything a Simulator needs for one run.
type Request struct {
	// Directory is the run's output directory.
	Directory string
	// ConfigPaths are the scheduler's input files, passed through unchanged.
	ConfigPaths []string
	// Params is the nested override mapping: the combination's parameters
	// plus the output-path override.
	Params ir.Object
	// LogFile is the manifest's log file inside Directory.
	LogFile string
	// ParamHash identifies the combination's own parameters, without the
	// output-path override, so one parameter set hashes the same under any
	// root.
	ParamHash string
}

// Options configure an Experiment. Zero values select the defaults.
type Options struct {
	Manifest   Manifest
	OutPathKey string
	Simulator  Simulator
}

// Experiment is the immutable index of every run in a parameter sweep.
type Experiment struct {
	template   Template
	grid       *grid.Grid
	manifest   Manifest
	outPathKey string
	simulator  Simulator

	dirs  []string             // enumeration order
	index map[string]ir.Object // directory -> nested parameters
}

// New enumerates params (a nested grid whose leaves are value lists) under
// root and indexes each combination by its output directory.
func New(root string, params ir.Object, opts Options) (*Experiment, error) {
	manifest := opts.Manifest
	if len(manifest.Files) == 0 && manifest.LogFile == "" {
		manifest = DefaultManifest()
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	outPathKey := opts.OutPathKey
	if outPathKey == "" {
		outPathKey = DefaultOutPathKey
	}
	if _, err := keypath.Split(outPathKey); err != nil {
		return nil, fmt.Errorf("output path key: %w", err)
	}

	flat, err := keypath.Flatten(params)
	if err != nil {
		return nil, err
	}
	if err := checkPlaceholders(flat); err != nil {
		return nil, err
	}

	g, err := grid.New(flat)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		template:   NewTemplate(root, ir.Object(flat).SortedKeys()),
		grid:       g,
		manifest:   manifest.clone(),
		outPathKey: outPathKey,
		simulator:  opts.Simulator,
		dirs:       make([]string, 0, g.Len()),
		index:      make(map[string]ir.Object, g.Len()),
	}

	firstIndex := make(map[string]int, g.Len())
	for i, c := range g.All() {
		dir, params, err := e.resolve(c)
		if err != nil {
			return nil, err
		}
		if prev, dup := firstIndex[dir]; dup {
			return nil, &DuplicateDirectoryError{Dir: dir, First: prev, Second: i}
		}
		firstIndex[dir] = i
		e.dirs = append(e.dirs, dir)
		e.index[dir] = params
	}

	slog.Debug("experiment indexed", "root", e.template.Root(), "combinations", len(e.dirs), "parameters", len(flat))
	return e, nil
}

// checkPlaceholders rejects flat keys whose placeholders collide, such as
// "a.b_c" and "a_b.c"; the scheduler could not tell their wildcards apart.
func checkPlaceholders(flat map[string]ir.Value) error {
	owner := make(map[string]string, len(flat))
	for _, key := range ir.Object(flat).SortedKeys() {
		ph := keypath.Placeholder(key)
		if other, taken := owner[ph]; taken {
			return &keypath.AmbiguousKeyError{
				Key:    key,
				Reason: fmt.Sprintf("placeholder {%s} is also produced by %q", ph, other),
			}
		}
		owner[ph] = key
	}
	return nil
}

func (e *Experiment) resolve(c grid.Combination) (string, ir.Object, error) {
	dir, err := e.template.Render(c)
	if err != nil {
		return "", nil, err
	}
	params, err := keypath.Unflatten(c)
	if err != nil {
		return "", nil, err
	}
	return dir, params, nil
}

// OutPath returns the output directory template with {placeholder} wildcards.
func (e *Experiment) OutPath() string {
	return e.template.String()
}

// Template returns the directory template.
func (e *Experiment) Template() Template {
	return e.template
}

// Manifest returns a copy of the output manifest.
func (e *Experiment) Manifest() Manifest {
	return e.manifest.clone()
}

// Len returns the number of combinations (and directories).
func (e *Experiment) Len() int {
	return len(e.dirs)
}

// Output returns the manifest files under the wildcard template.
func (e *Experiment) Output() []string {
	out := make([]string, 0, len(e.manifest.Files))
	for _, f := range e.manifest.Files {
		out = append(out, filepath.Join(e.template.String(), f))
	}
	return out
}

// AllOutputs returns every file of every run: each directory (in enumeration
// order) crossed with each manifest file.
func (e *Experiment) AllOutputs() []string {
	out := make([]string, 0, len(e.dirs)*len(e.manifest.Files))
	for _, dir := range e.dirs {
		for _, f := range e.manifest.Files {
			out = append(out, filepath.Join(dir, f))
		}
	}
	return out
}

// Directories returns every run directory in enumeration order.
func (e *Experiment) Directories() []string {
	return slices.Clone(e.dirs)
}

// ParamHash returns the param-set hash of the combination stored for dir.
// It matches Request.ParamHash for runs of that directory.
func (e *Experiment) ParamHash(dir string) (string, bool, error) {
	params, ok := e.index[filepath.Clean(dir)]
	if !ok {
		return "", false, nil
	}
	hash, err := ir.ParamSetHash(params)
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// Params returns a copy of the nested parameters stored for dir.
func (e *Experiment) Params(dir string) (ir.Object, bool) {
	params, ok := e.index[filepath.Clean(dir)]
	if !ok {
		return nil, false
	}
	return params.Clone(), true
}

// At resolves the index-th combination's directory and nested parameters
// straight from the grid.
func (e *Experiment) At(index int) (string, ir.Object, error) {
	c, err := e.grid.At(index)
	if err != nil {
		return "", nil, err
	}
	return e.resolve(c)
}

// Run launches the simulation that produces outputs.
//
// outputs must all live in one directory of the grid and be manifest files.
// The stored parameters are merged with the output-path override; a grid that
// already sets that option is a ConfigConflictError. inputs are passed to the
// Simulator as config paths.
func (e *Experiment) Run(ctx context.Context, inputs, outputs []string) error {
	req, err := e.Prepare(inputs, outputs)
	if err != nil {
		return err
	}
	return e.Launch(ctx, req)
}

// Launch hands a Request built by Prepare to the Simulator.
func (e *Experiment) Launch(ctx context.Context, req Request) error {
	if e.simulator == nil {
		return ErrNoSimulator
	}

	slog.Info("running simulation", "dir", req.Directory, "inputs", len(req.ConfigPaths))
	if err := e.simulator.Simulate(ctx, req); err != nil {
		return fmt.Errorf("simulate %s: %w", req.Directory, err)
	}
	return nil
}

// Prepare performs every check Run does and returns the Request it would
// send, without calling the Simulator. Pass it to Launch to run it.
func (e *Experiment) Prepare(inputs, outputs []string) (Request, error) {
	dir, err := e.outputDir(outputs)
	if err != nil {
		return Request{}, err
	}

	params, ok := e.index[dir]
	if !ok {
		return Request{}, &UnknownDirectoryError{Dir: dir}
	}

	override, err := keypath.Nest(e.outPathKey, ir.String(dir))
	if err != nil {
		return Request{}, err
	}
	merged, conflicts := merge.Merge(params, override)
	if len(conflicts) > 0 {
		return Request{}, &ConfigConflictError{Keys: conflicts}
	}
	hash, err := ir.ParamSetHash(params)
	if err != nil {
		return Request{}, err
	}

	return Request{
		Directory:   dir,
		ConfigPaths: slices.Clone(inputs),
		Params:      merged,
		LogFile:     filepath.Join(dir, e.manifest.LogFile),
		ParamHash:   hash,
	}, nil
}

// outputDir returns the single parent directory of outputs after checking
// every basename against the manifest.
func (e *Experiment) outputDir(outputs []string) (string, error) {
	if len(outputs) == 0 {
		return "", &InconsistentOutputSetError{}
	}

	dir := filepath.Dir(filepath.Clean(outputs[0]))
	var mixed []string
	for _, p := range outputs[1:] {
		if d := filepath.Dir(filepath.Clean(p)); d != dir && !slices.Contains(mixed, d) {
			mixed = append(mixed, d)
		}
	}
	if len(mixed) > 0 {
		dirs := append([]string{dir}, mixed...)
		slices.Sort(dirs)
		return "", &InconsistentOutputSetError{Dirs: dirs}
	}

	for _, p := range outputs {
		if name := filepath.Base(p); !e.manifest.Contains(name) {
			return "", &UnknownOutputFileError{Path: p, Name: name}
		}
	}
	return dir, nil
}
