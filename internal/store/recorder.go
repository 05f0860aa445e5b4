package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/sweep/internal/experiment"
	"github.com/roach88/sweep/internal/ir"
)

// IDGenerator produces run IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Clock supplies ledger timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Recorder is an experiment.Simulator that records every run in the ledger
// around the wrapped Simulator.
type Recorder struct {
	Store *Store
	Next  experiment.Simulator
	// IDs defaults to UUIDv7Generator.
	IDs IDGenerator
	// Clock defaults to SystemClock.
	Clock Clock
}

var _ experiment.Simulator = (*Recorder)(nil)

// Simulate implements experiment.Simulator.
//
// The run is stored under req.ParamHash, falling back to a hash of the full
// override mapping for requests that did not come from Prepare.
//
// The run is recorded as running before Next is called and finished
// afterwards, even when ctx was cancelled in between. A failure to write the
// ledger is joined with the simulator's own error.
func (r *Recorder) Simulate(ctx context.Context, req experiment.Request) error {
	ids := r.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	clock := r.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	hash := req.ParamHash
	if hash == "" {
		var err error
		if hash, err = ir.ParamSetHash(req.Params); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}

	run := Run{
		ID:          ids.Generate(),
		Directory:   req.Directory,
		ParamHash:   hash,
		Params:      req.Params,
		ConfigPaths: req.ConfigPaths,
		StartedAt:   clock.Now(),
	}
	seq, err := r.Store.StartRun(ctx, run)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	slog.Debug("run recorded", "id", run.ID, "seq", seq, "dir", run.Directory, "param_hash", hash)

	simErr := r.Next.Simulate(ctx, req)

	status, message := StatusSucceeded, ""
	if simErr != nil {
		status, message = StatusFailed, simErr.Error()
	}
	if err := r.Store.FinishRun(context.WithoutCancel(ctx), run.ID, status, message, clock.Now()); err != nil {
		return errors.Join(simErr, fmt.Errorf("record run: %w", err))
	}
	return simErr
}
