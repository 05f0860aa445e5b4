package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/experiment"
	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/testutil"
)

func testRequest() experiment.Request {
	return experiment.Request{
		Directory:   "out/a.param_1",
		ConfigPaths: []string{"base.toml"},
		Params: ir.Object{
			"a":    ir.Object{"param": ir.Int(1)},
			"core": ir.Object{"data_output_options": ir.Object{"out_path": ir.String("out/a.param_1")}},
		},
		LogFile:   "out/a.param_1/ve_run.log",
		ParamHash: ir.MustParamSetHash(ir.Object{"a": ir.Object{"param": ir.Int(1)}}),
	}
}

func newTestRecorder(t *testing.T, next experiment.Simulator) (*Recorder, *Store) {
	t.Helper()
	s := createTestStore(t)
	return &Recorder{
		Store: s,
		Next:  next,
		IDs:   testutil.NewSequentialIDGenerator("run"),
		Clock: testutil.NewStepClock(0),
	}, s
}

func TestRecorder_Success(t *testing.T) {
	sim := &testutil.RecordingSimulator{}
	rec, s := newTestRecorder(t, sim)
	req := testRequest()

	require.NoError(t, rec.Simulate(context.Background(), req))
	require.Len(t, sim.Requests(), 1)
	assert.Equal(t, req, sim.Requests()[0])

	run, err := s.GetRun(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, req.Directory, run.Directory)
	assert.Equal(t, req.Params, run.Params)
	assert.Equal(t, req.ParamHash, run.ParamHash)
	assert.True(t, testutil.Epoch.Equal(run.StartedAt))
	assert.True(t, run.FinishedAt.After(run.StartedAt))
}

func TestRecorder_HashFallsBackToParams(t *testing.T) {
	rec, s := newTestRecorder(t, &testutil.RecordingSimulator{})
	req := testRequest()
	req.ParamHash = ""

	require.NoError(t, rec.Simulate(context.Background(), req))

	run, err := s.GetRun(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Equal(t, ir.MustParamSetHash(req.Params), run.ParamHash)
}

func TestRecorder_Failure(t *testing.T) {
	boom := errors.New("boom")
	rec, s := newTestRecorder(t, &testutil.RecordingSimulator{Err: boom})

	err := rec.Simulate(context.Background(), testRequest())
	require.ErrorIs(t, err, boom)

	run, err := s.GetRun(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "boom", run.Message)
}

func TestRecorder_CancelledContextStillFinishes(t *testing.T) {
	rec, s := newTestRecorder(t, &testutil.RecordingSimulator{})

	ctx, cancel := context.WithCancel(context.Background())
	sim := simulatorFunc(func(context.Context, experiment.Request) error {
		cancel()
		return context.Canceled
	})
	rec.Next = sim

	err := rec.Simulate(ctx, testRequest())
	require.ErrorIs(t, err, context.Canceled)

	run, err := s.GetRun(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
}

func TestRecorder_DefaultsToUUIDv7(t *testing.T) {
	s := createTestStore(t)
	rec := &Recorder{Store: s, Next: &testutil.RecordingSimulator{}}

	require.NoError(t, rec.Simulate(context.Background(), testRequest()))

	runs, err := s.ListRuns(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].ID, 36)
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

type simulatorFunc func(context.Context, experiment.Request) error

func (f simulatorFunc) Simulate(ctx context.Context, req experiment.Request) error {
	return f(ctx, req)
}
