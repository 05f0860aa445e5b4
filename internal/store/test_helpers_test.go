package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/sweep/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestRun creates a run with minimal required fields.
func createTestRun(id, dir string, param int64) Run {
	params := ir.Object{"a": ir.Object{"param": ir.Int(param)}}
	return Run{
		ID:          id,
		Directory:   dir,
		ParamHash:   ir.MustParamSetHash(params),
		Params:      params,
		ConfigPaths: []string{"base.toml"},
		StartedAt:   testEpoch,
	}
}
