package scheduler

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func step(name string, upstreams ...string) *pipeline.Step {
	return &pipeline.Step{Name: name, Kind: pipeline.StepKindMarker, Upstreams: upstreams}
}

// the graph used across the tests:
// task11 -> task12 -> task3
// task21 -> task22 -> task3
func diamond() *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name: "test",
		Steps: []*pipeline.Step{
			step("task11"),
			step("task21"),
			step("task12", "task11"),
			step("task22", "task21"),
			step("task3", "task12", "task22"),
		},
	}
}

func TestScheduler_getScheduleableTasks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses map[string]TaskInstanceStatus
		want     []string
	}{
		{
			name: "beginning the pipeline execution",
			statuses: map[string]TaskInstanceStatus{
				"task11": Pending, "task12": Pending, "task21": Pending, "task22": Pending, "task3": Pending,
			},
			want: []string{"task11", "task21"},
		},
		{
			name: "both roots are running, should get nothing",
			statuses: map[string]TaskInstanceStatus{
				"task11": Running, "task12": Pending, "task21": Running, "task22": Pending, "task3": Pending,
			},
			want: []string{},
		},
		{
			name: "t11 succeeded, should get t12",
			statuses: map[string]TaskInstanceStatus{
				"task11": Succeeded, "task12": Pending, "task21": Running, "task22": Pending, "task3": Pending,
			},
			want: []string{"task12"},
		},
		{
			name: "one branch done, the join still waits",
			statuses: map[string]TaskInstanceStatus{
				"task11": Succeeded, "task12": Succeeded, "task21": Succeeded, "task22": Queued, "task3": Pending,
			},
			want: []string{},
		},
		{
			name: "both branches done, should get the join",
			statuses: map[string]TaskInstanceStatus{
				"task11": Succeeded, "task12": Succeeded, "task21": Succeeded, "task22": Succeeded, "task3": Pending,
			},
			want: []string{"task3"},
		},
		{
			name: "skipped upstreams do not block",
			statuses: map[string]TaskInstanceStatus{
				"task11": Skipped, "task12": Skipped, "task21": Skipped, "task22": Skipped, "task3": Pending,
			},
			want: []string{"task3"},
		},
		{
			name: "everything succeeded, should get nothing",
			statuses: map[string]TaskInstanceStatus{
				"task11": Succeeded, "task12": Succeeded, "task21": Succeeded, "task22": Succeeded, "task3": Succeeded,
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewScheduler(zap.NewNop().Sugar(), diamond())
			for _, instance := range s.Instances() {
				status, ok := tt.statuses[instance.GetHumanID()]
				require.True(t, ok, "missing status for %s", instance.GetHumanID())
				instance.MarkAs(status)
			}

			got := s.getScheduleableTasks()
			gotNames := make([]string, 0, len(got))
			for _, ti := range got {
				gotNames = append(gotNames, ti.GetStep().Name)
			}

			assert.Equal(t, tt.want, gotNames)
		})
	}
}

func TestScheduler_Tick(t *testing.T) {
	t.Parallel()

	s := NewScheduler(zap.NewNop().Sugar(), diamond())
	s.Kickstart()

	t11 := <-s.WorkQueue
	assert.Equal(t, "task11", t11.GetHumanID())
	t21 := <-s.WorkQueue
	assert.Equal(t, "task21", t21.GetHumanID())
	assert.Equal(t, Queued, t11.GetStatus())

	s.Tick(&TaskExecutionResult{Instance: t11})
	t12 := <-s.WorkQueue
	assert.Equal(t, "task12", t12.GetHumanID())

	s.Tick(&TaskExecutionResult{Instance: t21})
	t22 := <-s.WorkQueue
	assert.Equal(t, "task22", t22.GetHumanID())

	assert.False(t, s.Tick(&TaskExecutionResult{Instance: t12}))
	assert.Empty(t, s.WorkQueue)

	assert.False(t, s.Tick(&TaskExecutionResult{Instance: t22}))
	t3 := <-s.WorkQueue
	assert.Equal(t, "task3", t3.GetHumanID())

	assert.True(t, s.Tick(&TaskExecutionResult{Instance: t3}))
	assert.Equal(t, 5, s.InstanceCountByStatus(Succeeded))
}

func TestScheduler_FailureMarksDownstream(t *testing.T) {
	t.Parallel()

	s := NewScheduler(zap.NewNop().Sugar(), diamond())
	s.Kickstart()

	t11 := <-s.WorkQueue
	t21 := <-s.WorkQueue

	assert.False(t, s.Tick(&TaskExecutionResult{Instance: t11, Error: errors.New("copy failed")}))
	assert.Equal(t, Failed, t11.GetStatus())
	assert.Equal(t, UpstreamFailed, s.taskNameMap["task12"].GetStatus())
	assert.Equal(t, UpstreamFailed, s.taskNameMap["task3"].GetStatus())
	assert.Empty(t, s.WorkQueue)

	s.Tick(&TaskExecutionResult{Instance: t21})
	t22 := <-s.WorkQueue
	assert.Equal(t, "task22", t22.GetHumanID())

	assert.True(t, s.Tick(&TaskExecutionResult{Instance: t22}))
	assert.Equal(t, 1, s.InstanceCountByStatus(Failed))
	assert.Equal(t, 2, s.InstanceCountByStatus(UpstreamFailed))
	assert.Equal(t, 2, s.InstanceCountByStatus(Succeeded))
}

func TestScheduler_MarkStepAndDownstream(t *testing.T) {
	t.Parallel()

	s := NewScheduler(zap.NewNop().Sugar(), diamond())
	s.MarkAll(Skipped)
	require.True(t, s.MarkStep("task21", Pending, true))
	require.False(t, s.MarkStep("missing", Pending, true))

	assert.Equal(t, 3, s.InstanceCountByStatus(Pending))

	s.Kickstart()
	t21 := <-s.WorkQueue
	assert.Equal(t, "task21", t21.GetHumanID())

	s.Tick(&TaskExecutionResult{Instance: t21})
	t22 := <-s.WorkQueue
	assert.Equal(t, "task22", t22.GetHumanID())

	s.Tick(&TaskExecutionResult{Instance: t22})
	t3 := <-s.WorkQueue
	assert.Equal(t, "task3", t3.GetHumanID())

	assert.True(t, s.Tick(&TaskExecutionResult{Instance: t3}))
	assert.Equal(t, Skipped, s.taskNameMap["task11"].GetStatus())
}

func TestScheduler_Run(t *testing.T) {
	t.Parallel()

	s := NewScheduler(zap.NewNop().Sugar(), diamond())

	go func() {
		for ti := range s.WorkQueue {
			ti.MarkAs(Running)
			s.Results <- &TaskExecutionResult{Instance: ti, Attempts: 1}
		}
	}()

	results := s.Run(context.Background())
	assert.Len(t, results, 5)
	assert.Equal(t, "task3", results[4].Instance.GetHumanID())
	assert.Equal(t, 5, s.InstanceCountByStatus(Succeeded))
}

func TestScheduler_RunWithNothingPending(t *testing.T) {
	t.Parallel()

	s := NewScheduler(zap.NewNop().Sugar(), diamond())
	s.MarkAll(Skipped)

	assert.Nil(t, s.Run(context.Background()))
}

func TestScheduler_RunWithCancelledContext(t *testing.T) {
	t.Parallel()

	for i := 0; i < 500; i++ {
		s := NewScheduler(zap.NewNop().Sugar(), diamond())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.NotPanics(t, func() {
			assert.Empty(t, s.Run(ctx))
		})

		_, open := <-s.WorkQueue
		assert.False(t, open)
		assert.Equal(t, 5, s.InstanceCountByStatus(Pending))
	}
}

func TestScheduler_RunCancelledWhileStepsAreRunning(t *testing.T) {
	t.Parallel()

	s := NewScheduler(zap.NewNop().Sugar(), diamond())
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		first := true
		for ti := range s.WorkQueue {
			ti.MarkAs(Running)
			if first {
				first = false
				cancel()
				continue
			}
		}
	}()

	results := s.Run(ctx)
	assert.Empty(t, results)

	// a result arriving after the cancellation must not be queued anywhere
	assert.NotPanics(t, func() {
		assert.False(t, s.Tick(&TaskExecutionResult{Instance: s.taskNameMap["task11"]}))
	})
	assert.Equal(t, Pending, s.taskNameMap["task12"].GetStatus())
}
