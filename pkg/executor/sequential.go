package executor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/scheduler"
)

type Operator interface {
	Run(ctx context.Context, ti scheduler.TaskInstance) error
}

type OperatorMap map[pipeline.StepKind]Operator

type Sequential struct {
	OperatorMap OperatorMap
}

func (s Sequential) RunSingleTask(ctx context.Context, instance scheduler.TaskInstance) error {
	step := instance.GetStep()

	operator, ok := s.OperatorMap[step.Kind]
	if !ok {
		return errors.New("there is no operator configured for the step kind, step cannot be run: " + string(step.Kind))
	}

	return operator.Run(ctx, instance)
}
