package ansisql

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/executor"
	"github.com/sparkify/sparkify-etl/pkg/helpers"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/query"
	"github.com/sparkify/sparkify-etl/pkg/scheduler"
)

type selector interface {
	Select(ctx context.Context, query *query.Query) ([][]interface{}, error)
}

// CheckFailedError is returned when the value produced by a check query does not satisfy its comparison.
type CheckFailedError struct {
	Check      string
	Result     int64
	Comparison pipeline.Comparison
	Expected   int64
}

func (e *CheckFailedError) Error() string {
	return fmt.Sprintf("check %s failed: %d %s %d", e.Check, e.Result, e.Comparison, e.Expected)
}

type QualityCheckOperator struct {
	connection connectionFetcher
}

func NewQualityCheckOperator(conn connectionFetcher) *QualityCheckOperator {
	return &QualityCheckOperator{connection: conn}
}

func (o *QualityCheckOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	step := ti.GetStep()
	logger := executor.LoggerFromContext(ctx)

	if len(step.Checks) == 0 {
		logger.Warnf("step '%s' has no data quality checks, nothing to verify", step.Name)
		return nil
	}

	c, err := o.connection.GetConnection(step.Connection)
	if err != nil {
		return err
	}

	s, ok := c.(selector)
	if !ok {
		return errors.Errorf("connection '%s' cannot be used to run data quality checks", step.Connection)
	}

	printer := executor.PrinterFromContext(ctx)
	for _, check := range step.Checks {
		if err := RunCheck(ctx, s, check); err != nil {
			return err
		}

		fmt.Fprintf(printer, "Check %s passed\n", check.DisplayName())
		logger.Infof("data quality check '%s' passed", check.DisplayName())
	}

	return nil
}

// RunCheck evaluates a single check. Checks are evaluated in isolation, so the first failure stops the caller.
func RunCheck(ctx context.Context, s selector, check pipeline.QualityCheck) error {
	res, err := s.Select(ctx, &query.Query{Query: check.Query})
	if err != nil {
		return errors.Wrapf(err, "failed to run check %s", check.DisplayName())
	}

	result, err := helpers.CastResultToInteger(res)
	if err != nil {
		return errors.Wrapf(err, "failed to read the result of check %s", check.DisplayName())
	}

	passed, err := pipeline.Compare(check.Comparison, result, check.Expected)
	if err != nil {
		return errors.Wrapf(err, "failed to evaluate check %s", check.DisplayName())
	}

	if !passed {
		return &CheckFailedError{
			Check:      check.DisplayName(),
			Result:     result,
			Comparison: check.Comparison,
			Expected:   check.Expected,
		}
	}

	return nil
}
