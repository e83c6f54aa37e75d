package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return NewSQLiteStore(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestSQLiteStore_CreateRun(t *testing.T) {
	t.Parallel()

	t.Run("run is inserted as running", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO runs").
			WithArgs(sqlmock.AnyArg(), "aws_redshift_dag", "default", RunStatusRunning, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		run, err := store.CreateRun(context.Background(), "aws_redshift_dag", "default")
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, RunStatusRunning, run.Status)
		assert.Nil(t, run.CompletedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert errors are wrapped", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO runs").WillReturnError(errors.New("disk I/O error"))

		_, err := store.CreateRun(context.Background(), "aws_redshift_dag", "default")
		require.EqualError(t, err, "failed to create run: disk I/O error")
	})
}

func TestSQLiteStore_CompleteRun(t *testing.T) {
	t.Parallel()

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE runs SET status").
			WithArgs(RunStatusFailed, sqlmock.AnyArg(), "boom", "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.CompleteRun(context.Background(), "missing", RunStatusFailed, "boom")
		require.EqualError(t, err, "run not found: missing")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty error message is stored as null", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE runs SET status").
			WithArgs(RunStatusSucceeded, sqlmock.AnyArg(), nil, "run-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.CompleteRun(context.Background(), "run-1", RunStatusSucceeded, ""))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	started := time.Date(2022, 4, 7, 10, 0, 0, 0, time.UTC)
	completed := started.Add(5 * time.Minute)

	mock.ExpectQuery("SELECT id, pipeline, environment, status, started_at, completed_at, error FROM runs ORDER BY started_at DESC").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pipeline", "environment", "status", "started_at", "completed_at", "error"}).
			AddRow("run-2", "aws_redshift_dag", "default", "running", started.Add(time.Hour), nil, nil).
			AddRow("run-1", "aws_redshift_dag", "default", "failed", started, completed, "check songplays_not_empty failed: 0 gt 0"))

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].ID)
	assert.Nil(t, runs[0].CompletedAt)
	assert.Equal(t, time.Duration(0), runs[0].Duration())

	assert.Equal(t, RunStatusFailed, runs[1].Status)
	require.NotNil(t, runs[1].Error)
	assert.Equal(t, "check songplays_not_empty failed: 0 gt 0", *runs[1].Error)
	assert.Equal(t, 5*time.Minute, runs[1].Duration())
}

func TestStepResultFromTask(t *testing.T) {
	t.Parallel()

	step := &pipeline.Step{Name: "Stage_events", Kind: pipeline.StepKindStage}

	skipped := &scheduler.StepInstance{Step: step}
	skipped.MarkAs(scheduler.UpstreamFailed)
	assert.Equal(t, StepResult{RunID: "run-1", Step: "Stage_events", Status: "upstream_failed"}, StepResultFromTask("run-1", skipped, nil))

	failed := &scheduler.StepInstance{Step: step}
	failed.MarkAs(scheduler.Failed)
	started := time.Date(2022, 4, 7, 10, 0, 0, 0, time.UTC)

	got := StepResultFromTask("run-1", failed, &scheduler.TaskExecutionResult{
		Instance:  failed,
		Error:     errors.New("failed to copy"),
		Attempts:  4,
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	})

	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, 4, got.Attempts)
	assert.Equal(t, int64(1500), got.DurationMs)
	require.NotNil(t, got.StartedAt)
	assert.Equal(t, started, *got.StartedAt)
	require.NotNil(t, got.Error)
	assert.Equal(t, "failed to copy", *got.Error)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	run, err := store.CreateRun(ctx, "aws_redshift_dag", "default")
	require.NoError(t, err)

	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.RecordStep(ctx, StepResult{RunID: run.ID, Step: "Begin_execution", Status: "succeeded", Attempts: 1, StartedAt: &started}))
	require.NoError(t, store.RecordStep(ctx, StepResult{RunID: run.ID, Step: "Stage_events", Status: "running", Attempts: 1, StartedAt: &started}))

	msg := "failed to copy s3://udacity-dend/log_data into staging_events"
	require.NoError(t, store.RecordStep(ctx, StepResult{RunID: run.ID, Step: "Stage_events", Status: "failed", Attempts: 4, StartedAt: &started, DurationMs: 120, Error: &msg}))
	require.NoError(t, store.CompleteRun(ctx, run.ID, RunStatusFailed, msg))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	require.NotNil(t, got.CompletedAt)

	steps, err := store.GetStepResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "Begin_execution", steps[0].Step)
	assert.Equal(t, "Stage_events", steps[1].Step)
	assert.Equal(t, 4, steps[1].Attempts)
	assert.Equal(t, "failed", steps[1].Status)

	runs, err := store.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	_, err = store.GetRun(ctx, "missing")
	require.EqualError(t, err, "run not found: missing")
}
