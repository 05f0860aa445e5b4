package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sweep/internal/ir"
)

// Error codes reported by Load.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // File could not be read
	ErrCodeParseFailed = "E003" // CUE/YAML syntax or evaluation error
	ErrCodeInvalid     = "E004" // Settings are well-formed but unusable
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeUnsupported = "E006" // Unknown file extension
)

// LoadError represents an error that occurred while loading an experiment file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads an experiment file, applies environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("experiment file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading experiment file: %v", err)}
	}

	var cfg *Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		cfg, err = parseCUE(path, data)
	case ".yaml", ".yml", ".json":
		cfg, err = parseYAML(data)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported experiment file extension %q (want .cue, .yaml, .yml or .json)", ext)}
	}
	if err != nil {
		return nil, err
	}

	cfg.Path = path
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// yamlFile is the on-disk shape: the typed settings plus the raw grid.
type yamlFile struct {
	Config `yaml:",inline"`
	Params map[string]any `yaml:"params"`
}

func parseYAML(data []byte) (*Config, error) {
	file := yamlFile{Config: *Default()}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("parsing experiment file: %v", err)}
	}

	cfg := file.Config
	params, err := paramsFromAny(file.Params)
	if err != nil {
		return nil, err
	}
	cfg.Params = params
	return &cfg, nil
}

func paramsFromAny(raw map[string]any) (ir.Object, error) {
	if raw == nil {
		return ir.Object{}, nil
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("params: %v", err)}
	}
	return v.(ir.Object), nil
}

func parseCUE(path string, data []byte) (*Config, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, cueLoadError(ErrCodeParseFailed, err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeParseFailed, err)
	}

	cfg := Default()
	if err := value.Decode(cfg); err != nil {
		return nil, cueLoadError(ErrCodeInvalid, err)
	}
	cfg.Params = ir.Object{}

	paramsVal := value.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		v, err := fromCUE(paramsVal)
		if err != nil {
			return nil, err
		}
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, &LoadError{Code: ErrCodeInvalid, Message: "params must be a struct", Pos: paramsVal.Pos()}
		}
		cfg.Params = obj
	}
	return cfg, nil
}

// fromCUE converts a concrete CUE value into an ir.Value.
func fromCUE(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, cueLoadError(ErrCodeInvalid, err)
		}
		obj := ir.Object{}
		for iter.Next() {
			elem, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, cueLoadError(ErrCodeInvalid, err)
		}
		arr := ir.Array{}
		for iter.Next() {
			elem, err := fromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, cueLoadError(ErrCodeInvalid, err)
		}
		return ir.Int(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, cueLoadError(ErrCodeInvalid, err)
		}
		return ir.Float(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, cueLoadError(ErrCodeInvalid, err)
		}
		return ir.String(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, cueLoadError(ErrCodeInvalid, err)
		}
		return ir.Bool(b), nil
	case cue.NullKind:
		return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("%s: null parameter values are not supported", v.Path()), Pos: v.Pos()}
	default:
		return nil, &LoadError{Code: ErrCodeInvalid, Message: fmt.Sprintf("%s: unsupported value kind %s", v.Path(), v.Kind()), Pos: v.Pos()}
	}
}

// cueLoadError extracts position info from CUE errors.
func cueLoadError(code string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}

	first := errs[0]
	loadErr := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}
