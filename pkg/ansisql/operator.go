package ansisql

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/executor"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/query"
	"github.com/sparkify/sparkify-etl/pkg/scheduler"
)

type connectionFetcher interface {
	GetConnection(name string) (any, error)
}

type queryRunner interface {
	RunQueryWithoutResult(ctx context.Context, query *query.Query) error
}

type transactionRunner interface {
	RunInTransaction(ctx context.Context, queries ...*query.Query) error
}

func getQueryRunner(conn connectionFetcher, step *pipeline.Step) (queryRunner, error) {
	c, err := conn.GetConnection(step.Connection)
	if err != nil {
		return nil, err
	}

	runner, ok := c.(queryRunner)
	if !ok {
		return nil, errors.Errorf("connection '%s' cannot be used to run queries for step '%s'", step.Connection, step.Name)
	}

	return runner, nil
}

// CreateTableOperator runs the idempotent DDL of a single table.
type CreateTableOperator struct {
	connection connectionFetcher
}

func NewCreateTableOperator(conn connectionFetcher) *CreateTableOperator {
	return &CreateTableOperator{connection: conn}
}

func (o *CreateTableOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	step := ti.GetStep()
	if step.Create == nil {
		return errors.Errorf("step '%s' has no create statement", step.Name)
	}

	runner, err := getQueryRunner(o.connection, step)
	if err != nil {
		return err
	}

	executor.LoggerFromContext(ctx).Debugw("creating table", "table", step.Create.Table)
	if err := runner.RunQueryWithoutResult(ctx, &query.Query{Query: step.Create.Statement}); err != nil {
		return errors.Wrapf(err, "failed to create table %s", step.Create.Table)
	}

	fmt.Fprintf(executor.PrinterFromContext(ctx), "Table %s is ready\n", step.Create.Table)
	return nil
}

// LoadFactOperator appends the rows of the fact select to the fact table. Fact tables are never truncated.
type LoadFactOperator struct {
	connection connectionFetcher
}

func NewLoadFactOperator(conn connectionFetcher) *LoadFactOperator {
	return &LoadFactOperator{connection: conn}
}

func (o *LoadFactOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	step := ti.GetStep()
	if step.Load == nil {
		return errors.Errorf("step '%s' has no load parameters", step.Name)
	}

	if step.Load.Mode == pipeline.LoadModeTruncate {
		return errors.Errorf("step '%s' cannot truncate the fact table %s", step.Name, step.Load.Table)
	}

	runner, err := getQueryRunner(o.connection, step)
	if err != nil {
		return err
	}

	fmt.Fprintf(executor.PrinterFromContext(ctx), "Loading fact table %s\n", step.Load.Table)
	q := &query.Query{Query: InsertStatement(step.Load.Table, step.Load.Select)}
	executor.LoggerFromContext(ctx).Debugw("loading fact table", "table", step.Load.Table, "query", q.String())

	if err := runner.RunQueryWithoutResult(ctx, q); err != nil {
		return errors.Wrapf(err, "failed to load fact table %s", step.Load.Table)
	}

	return nil
}

// LoadDimensionOperator loads a dimension table either by appending, or by replacing its contents.
// The replacement deletes and inserts inside one transaction, so a failed insert keeps the old rows.
type LoadDimensionOperator struct {
	connection connectionFetcher
}

func NewLoadDimensionOperator(conn connectionFetcher) *LoadDimensionOperator {
	return &LoadDimensionOperator{connection: conn}
}

func (o *LoadDimensionOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	step := ti.GetStep()
	if step.Load == nil {
		return errors.Errorf("step '%s' has no load parameters", step.Name)
	}

	c, err := o.connection.GetConnection(step.Connection)
	if err != nil {
		return err
	}

	printer := executor.PrinterFromContext(ctx)
	queries := LoadQueries(step.Load)

	if step.Load.Mode != pipeline.LoadModeTruncate {
		runner, ok := c.(queryRunner)
		if !ok {
			return errors.Errorf("connection '%s' cannot be used to run queries for step '%s'", step.Connection, step.Name)
		}

		fmt.Fprintf(printer, "Appending to dimension table %s\n", step.Load.Table)
		if err := runner.RunQueryWithoutResult(ctx, queries[0]); err != nil {
			return errors.Wrapf(err, "failed to load dimension table %s", step.Load.Table)
		}

		return nil
	}

	tx, ok := c.(transactionRunner)
	if !ok {
		return errors.Errorf("connection '%s' does not support transactions, dimension table %s cannot be truncated safely", step.Connection, step.Load.Table)
	}

	fmt.Fprintf(printer, "Replacing the contents of dimension table %s\n", step.Load.Table)
	if err := tx.RunInTransaction(ctx, queries...); err != nil {
		return errors.Wrapf(err, "failed to load dimension table %s", step.Load.Table)
	}

	return nil
}
