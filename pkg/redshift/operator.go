package redshift

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/executor"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
	"github.com/sparkify/sparkify-etl/pkg/query"
	"github.com/sparkify/sparkify-etl/pkg/scheduler"
)

type queryRunner interface {
	RunQueryWithoutResult(ctx context.Context, query *query.Query) error
}

type connectionFetcher interface {
	GetConnection(name string) (any, error)
	GetAwsCredentials(ctx context.Context, name string) (aws.Credentials, error)
}

type sourceVerifier interface {
	EnsureSourceHasObjects(ctx context.Context, stage *pipeline.Stage) error
}

// StageOperator copies the JSON objects under an S3 prefix into a staging table with a single COPY.
// Running it twice loads the data twice.
type StageOperator struct {
	connection connectionFetcher
	sensor     sourceVerifier
}

func NewStageOperator(conn connectionFetcher, sensor sourceVerifier) *StageOperator {
	return &StageOperator{
		connection: conn,
		sensor:     sensor,
	}
}

func (o *StageOperator) Run(ctx context.Context, ti scheduler.TaskInstance) error {
	return o.RunStep(ctx, ti.GetStep())
}

func (o *StageOperator) RunStep(ctx context.Context, step *pipeline.Step) error {
	stage := step.Stage
	if stage == nil {
		return errors.Errorf("step '%s' has no stage parameters", step.Name)
	}

	creds, err := o.connection.GetAwsCredentials(ctx, stage.AwsConnection)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve credentials from the AWS connection '%s'", stage.AwsConnection)
	}

	statement, err := BuildCopyStatement(stage, creds)
	if err != nil {
		return err
	}

	conn, err := o.connection.GetConnection(step.Connection)
	if err != nil {
		return err
	}

	runner, ok := conn.(queryRunner)
	if !ok {
		return errors.Errorf("connection '%s' cannot be used to run COPY statements", step.Connection)
	}

	if stage.VerifySource && o.sensor != nil {
		if err := o.sensor.EnsureSourceHasObjects(ctx, stage); err != nil {
			return err
		}
	}

	q := &query.Query{Query: statement}
	printer := executor.PrinterFromContext(ctx)
	fmt.Fprintf(printer, "Copying data from %s to %s\n", stage.SourceURI(), stage.Table)
	executor.LoggerFromContext(ctx).Debugw("running copy statement", "query", q.Redacted(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken))

	if err := runner.RunQueryWithoutResult(ctx, q); err != nil {
		return errors.Wrapf(err, "failed to copy %s into %s", stage.SourceURI(), stage.Table)
	}

	fmt.Fprintf(printer, "Copied %s into %s\n", stage.SourceURI(), stage.Table)
	return nil
}
