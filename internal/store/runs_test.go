package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/ir"
)

func TestStartRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-1", "out/a.param_1", 1)
	seq, err := s.StartRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, seq, got.Seq)
	assert.Equal(t, run.Directory, got.Directory)
	assert.Equal(t, run.ParamHash, got.ParamHash)
	assert.Equal(t, run.Params, got.Params)
	assert.Equal(t, []string{"base.toml"}, got.ConfigPaths)
	assert.Equal(t, StatusRunning, got.Status)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.True(t, got.FinishedAt.IsZero())
	assert.False(t, got.Finished())
}

func TestStartRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq1, err := s.StartRun(ctx, createTestRun("run-1", "out/a", 1))
	require.NoError(t, err)
	_, err = s.StartRun(ctx, createTestRun("run-2", "out/b", 2))
	require.NoError(t, err)

	seqAgain, err := s.StartRun(ctx, createTestRun("run-1", "out/a", 1))
	require.NoError(t, err)
	assert.Equal(t, seq1, seqAgain)

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestStartRun_RejectsEmptyID(t *testing.T) {
	s := createTestStore(t)

	_, err := s.StartRun(context.Background(), createTestRun("", "out/a", 1))
	assert.Error(t, err)
}

func TestStartRun_FloatParams(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-1", "out/dt_0.5", 1)
	run.Params = ir.Object{"dt": ir.Float(0.5), "name": ir.String("x")}
	_, err := s.StartRun(ctx, run)
	require.NoError(t, err)

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Params, got.Params)
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.StartRun(ctx, createTestRun("run-1", "out/a", 1))
	require.NoError(t, err)

	finished := testEpoch.Add(time.Minute)
	require.NoError(t, s.FinishRun(ctx, "run-1", StatusFailed, "exit code 3", finished))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "exit code 3", got.Message)
	assert.True(t, finished.Equal(got.FinishedAt))
	assert.True(t, got.Finished())
}

func TestFinishRun_Twice(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.StartRun(ctx, createTestRun("run-1", "out/a", 1))
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, "run-1", StatusSucceeded, "", testEpoch))

	err = s.FinishRun(ctx, "run-1", StatusFailed, "late", testEpoch)
	assert.True(t, errors.Is(err, ErrRunFinished))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
}

func TestFinishRun_Unknown(t *testing.T) {
	s := createTestStore(t)

	err := s.FinishRun(context.Background(), "nope", StatusSucceeded, "", testEpoch)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestFinishRun_InvalidStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.StartRun(ctx, createTestRun("run-1", "out/a", 1))
	require.NoError(t, err)

	assert.Error(t, s.FinishRun(ctx, "run-1", StatusRunning, "", testEpoch))
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestLatestRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestRun(ctx, "out/a")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		_, err := s.StartRun(ctx, createTestRun(id, "out/a", 1))
		require.NoError(t, err)
	}
	_, err = s.StartRun(ctx, createTestRun("run-4", "out/b", 2))
	require.NoError(t, err)

	latest, ok, err := s.LatestRun(ctx, "out/a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-3", latest.ID)
}

func TestLatestRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.StartRun(ctx, createTestRun("run-1", "out/a", 1))
	require.NoError(t, err)
	_, err = s.StartRun(ctx, createTestRun("run-2", "out/b", 2))
	require.NoError(t, err)
	_, err = s.StartRun(ctx, createTestRun("run-3", "out/a", 1))
	require.NoError(t, err)

	latest, err := s.LatestRuns(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "run-3", latest["out/a"].ID)
	assert.Equal(t, "run-2", latest["out/b"].ID)
}

func TestListRuns_OrderAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = s.StartRun(ctx, createTestRun("z-run", "out/a", 1))
	require.NoError(t, err)
	_, err = s.StartRun(ctx, createTestRun("a-run", "out/b", 2))
	require.NoError(t, err)
	_, err = s.StartRun(ctx, createTestRun("m-run", "out/a", 1))
	require.NoError(t, err)

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"z-run", "a-run", "m-run"}, runIDs(all))

	onlyA, err := s.ListRuns(ctx, "out/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"z-run", "m-run"}, runIDs(onlyA))
}

func TestRunsByParamHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestRun("run-1", "exp1/a_1", 1)
	_, err := s.StartRun(ctx, first)
	require.NoError(t, err)
	_, err = s.StartRun(ctx, createTestRun("run-2", "exp2/a_1", 1))
	require.NoError(t, err)
	_, err = s.StartRun(ctx, createTestRun("run-3", "exp1/a_2", 2))
	require.NoError(t, err)

	runs, err := s.RunsByParamHash(ctx, first.ParamHash)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1", "run-2"}, runIDs(runs))
}

func runIDs(runs []Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
