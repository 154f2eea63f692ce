// Package awsclient builds the AWS service clients shared by the commands.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Clients are constructed once in main and passed to the components that
// need them.
type Clients struct {
	Config         aws.Config
	Bedrock        *bedrockruntime.Client
	S3             *s3.Client
	CloudFormation *cloudformation.Client
}

// New loads the default credential chain. An empty region defers to the
// environment and shared config files.
func New(ctx context.Context, region string) (*Clients, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("AWS region is not set (aws.region or AWS_REGION)")
	}

	return &Clients{
		Config:         cfg,
		Bedrock:        bedrockruntime.NewFromConfig(cfg),
		S3:             s3.NewFromConfig(cfg),
		CloudFormation: cloudformation.NewFromConfig(cfg),
	}, nil
}
