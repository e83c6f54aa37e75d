package state

import (
	"context"
	"database/sql"
	"embed"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sparkify/sparkify-etl/pkg/scheduler"
	_ "modernc.org/sqlite"
)

const DefaultStateFile = ".sparkify/state.db"

//go:embed migrations/*.sql
var migrations embed.FS

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

type Run struct {
	ID          string     `db:"id"`
	Pipeline    string     `db:"pipeline"`
	Environment string     `db:"environment"`
	Status      RunStatus  `db:"status"`
	StartedAt   time.Time  `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	Error       *string    `db:"error"`
}

// Duration is zero while the run is still going.
func (r Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}

	return r.CompletedAt.Sub(r.StartedAt)
}

type StepResult struct {
	RunID      string     `db:"run_id"`
	Step       string     `db:"step"`
	Status     string     `db:"status"`
	Attempts   int        `db:"attempts"`
	StartedAt  *time.Time `db:"started_at"`
	DurationMs int64      `db:"duration_ms"`
	Error      *string    `db:"error"`
}

// StepResultFromTask converts the final state of a task instance into a row. res is nil for steps
// that never reached a worker, e.g. the downstream of a failed step.
func StepResultFromTask(runID string, instance scheduler.TaskInstance, res *scheduler.TaskExecutionResult) StepResult {
	result := StepResult{
		RunID:  runID,
		Step:   instance.GetStep().Name,
		Status: instance.GetStatus().String(),
	}

	if res == nil {
		return result
	}

	result.Attempts = res.Attempts
	result.DurationMs = res.Duration.Milliseconds()
	if !res.StartedAt.IsZero() {
		startedAt := res.StartedAt.UTC()
		result.StartedAt = &startedAt
	}
	if res.Error != nil {
		msg := res.Error.Error()
		result.Error = &msg
	}

	return result
}

// SQLiteStore keeps the history of pipeline runs in a local SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Open opens the database at the given path and brings its schema up to date.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create the state directory")
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the state database")
	}

	// a single writer avoids SQLITE_BUSY between the workers reporting results
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to open the state database at '%s'", path)
	}

	store := NewSQLiteStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return errors.Wrap(err, "failed to set the migration dialect")
	}

	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return errors.Wrap(err, "failed to migrate the state database")
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, pipelineName, environment string) (*Run, error) {
	run := &Run{
		ID:          uuid.New().String(),
		Pipeline:    pipelineName,
		Environment: environment,
		Status:      RunStatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO runs (id, pipeline, environment, status, started_at) VALUES (:id, :pipeline, :environment, :status, :started_at)`,
		run,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create run")
	}

	return run, nil
}

func (s *SQLiteStore) RecordStep(ctx context.Context, result StepResult) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO step_results (run_id, step, status, attempts, started_at, duration_ms, error)
		VALUES (:run_id, :step, :status, :attempts, :started_at, :duration_ms, :error)
		ON CONFLICT (run_id, step) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			started_at = excluded.started_at,
			duration_ms = excluded.duration_ms,
			error = excluded.error`,
		result,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record the result of step '%s'", result.Step)
	}

	return nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, time.Now().UTC(), errorPtr, id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to complete run")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to complete run")
	}
	if affected == 0 {
		return errors.Errorf("run not found: %s", id)
	}

	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, `SELECT id, pipeline, environment, status, started_at, completed_at, error FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get run")
	}

	return &run, nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	runs := make([]Run, 0)
	err := s.db.SelectContext(ctx, &runs,
		`SELECT id, pipeline, environment, status, started_at, completed_at, error FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}

	return runs, nil
}

func (s *SQLiteStore) GetStepResults(ctx context.Context, runID string) ([]StepResult, error) {
	results := make([]StepResult, 0)
	err := s.db.SelectContext(ctx, &results,
		`SELECT run_id, step, status, attempts, started_at, duration_ms, error FROM step_results WHERE run_id = ? ORDER BY started_at, step`,
		runID,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get the step results of run %s", runID)
	}

	return results, nil
}
