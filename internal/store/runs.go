package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/sweep/internal/ir"
)

// Status is the lifecycle state of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// ErrRunFinished is returned when finishing a run that already finished.
var ErrRunFinished = errors.New("run already finished")

// Run is one ledger row.
type Run struct {
	Seq         int64
	ID          string
	Directory   string
	ParamHash   string
	Params      ir.Object
	ConfigPaths []string
	Status      Status
	Message     string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
}

// Finished reports whether the run reached a terminal status.
func (r Run) Finished() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

const timeLayout = time.RFC3339Nano

// StartRun records a run in the running state and returns its seq.
//
// Starting the same ID twice is a no-op that returns the first seq.
func (s *Store) StartRun(ctx context.Context, run Run) (int64, error) {
	if run.ID == "" {
		return 0, fmt.Errorf("start run: empty id")
	}
	paramsJSON, err := marshalParams(run.Params)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	configJSON, err := marshalConfigPaths(run.ConfigPaths)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("start run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, directory, param_hash, params, config_paths, status, message, started_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Directory,
		run.ParamHash,
		paramsJSON,
		configJSON,
		string(StatusRunning),
		run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("start run: read seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("start run: commit: %w", err)
	}
	return seq, nil
}

// FinishRun moves a running run to a terminal status.
func (s *Store) FinishRun(ctx context.Context, id string, status Status, message string, finishedAt time.Time) error {
	if status != StatusSucceeded && status != StatusFailed {
		return fmt.Errorf("finish run %s: invalid status %q", id, status)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, message = ?, finished_at = ?
		WHERE id = ? AND status = ?
	`,
		string(status),
		message,
		finishedAt.UTC().Format(timeLayout),
		id,
		string(StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.GetRun(ctx, id); err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return fmt.Errorf("finish run %s: %w", id, ErrRunFinished)
}

const runColumns = `seq, id, directory, param_hash, params, config_paths, status, message, started_at, finished_at`

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// LatestRun returns the most recent run for a directory.
// The boolean is false when the directory was never run.
func (s *Store) LatestRun(ctx context.Context, directory string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE directory = ?
		ORDER BY seq DESC
		LIMIT 1
	`, directory)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

// LatestRuns returns the most recent run of every directory in the ledger.
func (s *Store) LatestRuns(ctx context.Context) (map[string]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE seq IN (SELECT MAX(seq) FROM runs GROUP BY directory)
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query latest runs: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]Run)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		latest[run.Directory] = run
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest runs: %w", err)
	}
	return latest, nil
}

// ListRuns returns runs in seq order, restricted to directory unless it is
// empty.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRuns(ctx context.Context, directory string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if directory != "" {
		query += ` WHERE directory = ?`
		args = append(args, directory)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RunsByParamHash returns every run that received the given parameter set,
// across all directories, in seq order.
func (s *Store) RunsByParamHash(ctx context.Context, hash string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE param_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("query runs by hash: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs by hash: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run                    Run
		paramsJSON, configJSON string
		status, startedAt      string
		finishedAt             sql.NullString
	)
	if err := row.Scan(
		&run.Seq,
		&run.ID,
		&run.Directory,
		&run.ParamHash,
		&paramsJSON,
		&configJSON,
		&status,
		&run.Message,
		&startedAt,
		&finishedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if run.Params, err = ir.ParseJSONObject([]byte(paramsJSON)); err != nil {
		return Run{}, fmt.Errorf("scan run %s: params: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(configJSON), &run.ConfigPaths); err != nil {
		return Run{}, fmt.Errorf("scan run %s: config paths: %w", run.ID, err)
	}
	run.Status = Status(status)
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return Run{}, fmt.Errorf("scan run %s: started_at: %w", run.ID, err)
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = time.Parse(timeLayout, finishedAt.String); err != nil {
			return Run{}, fmt.Errorf("scan run %s: finished_at: %w", run.ID, err)
		}
	}
	return run, nil
}

// marshalParams converts parameters to canonical JSON TEXT for storage.
func marshalParams(params ir.Object) (string, error) {
	if params == nil {
		params = ir.Object{}
	}
	data, err := ir.MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

func marshalConfigPaths(paths []string) (string, error) {
	if paths == nil {
		paths = []string{}
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return "", fmt.Errorf("marshal config paths: %w", err)
	}
	return string(data), nil
}
