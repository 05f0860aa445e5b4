package testutil

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/roach88/sweep/internal/experiment"
)

// RecordingSimulator records every request instead of running a simulation.
//
// When WriteOutputs is set it also creates the run directory and touches
// every file in Files, so tests can exercise code that inspects outputs on
// disk.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingSimulator struct {
	// Err, when non-nil, is returned from every Simulate call.
	Err error
	// WriteOutputs creates Files inside the request directory.
	WriteOutputs bool
	// Files are the basenames written when WriteOutputs is set.
	Files []string

	mu       sync.Mutex
	requests []experiment.Request
}

// Simulate implements experiment.Simulator.
func (s *RecordingSimulator) Simulate(ctx context.Context, req experiment.Request) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Err != nil {
		return s.Err
	}
	if !s.WriteOutputs {
		return nil
	}
	if err := os.MkdirAll(req.Directory, 0o755); err != nil {
		return err
	}
	for _, name := range s.Files {
		if err := os.WriteFile(filepath.Join(req.Directory, name), nil, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Requests returns a copy of the recorded requests in call order.
func (s *RecordingSimulator) Requests() []experiment.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}
