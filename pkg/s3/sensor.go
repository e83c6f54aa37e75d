package s3

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/executor"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
)

type ObjectLister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type ClientProvider interface {
	GetS3Client(ctx context.Context, awsConnection, region, bucket string) (ObjectLister, error)
}

// PrefixSensor checks that a stage source has at least one object before the COPY is issued,
// which turns an empty or mistyped prefix into a clear error instead of an empty staging table.
type PrefixSensor struct {
	clients ClientProvider
}

func NewPrefixSensor(clients ClientProvider) *PrefixSensor {
	return &PrefixSensor{clients: clients}
}

func (ps *PrefixSensor) EnsureSourceHasObjects(ctx context.Context, stage *pipeline.Stage) error {
	client, err := ps.clients.GetS3Client(ctx, stage.AwsConnection, stage.Region, stage.Bucket)
	if err != nil {
		return err
	}

	fmt.Fprintln(executor.PrinterFromContext(ctx), "Checking source:", stage.SourceURI())

	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(stage.Bucket),
		Prefix:  aws.String(stage.Prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		var httpErr *smithyhttp.ResponseError
		if errors.As(err, &httpErr) {
			switch httpErr.HTTPStatusCode() {
			case http.StatusNotFound:
				return errors.Errorf("bucket '%s' does not exist", stage.Bucket)
			case http.StatusForbidden:
				return errors.Errorf("access denied while listing %s, check the '%s' AWS connection", stage.SourceURI(), stage.AwsConnection)
			}
		}

		return errors.Wrapf(err, "failed to list objects under %s", stage.SourceURI())
	}

	if len(out.Contents) == 0 {
		return errors.Errorf("no objects found under %s", stage.SourceURI())
	}

	return nil
}
