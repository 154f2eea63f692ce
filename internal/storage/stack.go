package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
)

// BucketOutputKey is the stack output holding the demo bucket name.
const BucketOutputKey = "BucketName"

// CloudFormationAPI is the subset of *cloudformation.Client used here.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

var _ CloudFormationAPI = (*cloudformation.Client)(nil)

// StackOutputs returns the outputs of stackName keyed by output key.
func StackOutputs(ctx context.Context, client CloudFormationAPI, stackName string) (map[string]string, error) {
	out, err := client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("describe stack %s: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s not found", stackName)
	}

	outputs := make(map[string]string, len(out.Stacks[0].Outputs))
	for _, o := range out.Stacks[0].Outputs {
		outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return outputs, nil
}

// ResolveBucket reads the bucket name from the stack outputs.
func ResolveBucket(ctx context.Context, client CloudFormationAPI, stackName string) (string, error) {
	outputs, err := StackOutputs(ctx, client, stackName)
	if err != nil {
		return "", err
	}
	bucket, ok := outputs[BucketOutputKey]
	if !ok || bucket == "" {
		return "", fmt.Errorf("stack %s has no %s output", stackName, BucketOutputKey)
	}
	return bucket, nil
}
