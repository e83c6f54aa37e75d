package executor

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOperator struct {
	mock.Mock
}

func (d *mockOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	args := d.Called(ctx, ti)
	return args.Error(0)
}

func TestSequential_RunSingleTask(t *testing.T) {
	t.Parallel()

	instance := &scheduler.StepInstance{
		Step: &pipeline.Step{Name: "Load_users_dim_table", Kind: pipeline.StepKindLoadDimension},
	}

	t.Run("instance is executed by the operator of its kind", func(t *testing.T) {
		t.Parallel()

		op := new(mockOperator)
		op.On("Run", mock.Anything, instance).Return(nil)

		s := Sequential{OperatorMap: OperatorMap{pipeline.StepKindLoadDimension: op}}

		require.NoError(t, s.RunSingleTask(context.Background(), instance))
		op.AssertExpectations(t)
	})

	t.Run("missing operator is rejected", func(t *testing.T) {
		t.Parallel()

		op := new(mockOperator)
		s := Sequential{OperatorMap: OperatorMap{pipeline.StepKindStage: op}}

		err := s.RunSingleTask(context.Background(), instance)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load_dimension")
		op.AssertExpectations(t)
	})

	t.Run("operator errors are returned", func(t *testing.T) {
		t.Parallel()

		op := new(mockOperator)
		op.On("Run", mock.Anything, instance).Return(errors.New("some error occurred"))

		s := Sequential{OperatorMap: OperatorMap{pipeline.StepKindLoadDimension: op}}

		require.EqualError(t, s.RunSingleTask(context.Background(), instance), "some error occurred")
		op.AssertExpectations(t)
	})
}

func TestMarkerOperator_Run(t *testing.T) {
	t.Parallel()

	instance := &scheduler.StepInstance{Step: &pipeline.Step{Name: "Begin_execution", Kind: pipeline.StepKindMarker}}
	require.NoError(t, MarkerOperator{}.Run(context.Background(), instance))
}
