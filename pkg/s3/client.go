package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

const discoveryRegion = "us-east-1"

// NewClient creates an S3 client for the given bucket. When no region is given, the bucket's own
// region is discovered first so that listing doesn't fail with a redirect.
func NewClient(ctx context.Context, cfg aws.Config, region, bucket string) (*s3.Client, error) {
	if region == "" {
		region = cfg.Region
	}

	if region == "" {
		tmpCfg := cfg.Copy()
		tmpCfg.Region = discoveryRegion

		discovered, err := manager.GetBucketRegion(ctx, s3.NewFromConfig(tmpCfg), bucket)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to determine the region of bucket '%s'", bucket)
		}
		region = discovered
	}

	cfg = cfg.Copy()
	cfg.Region = region
	return s3.NewFromConfig(cfg), nil
}
