package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const contentTypeJSON = "application/json"

var (
	// ErrTransport wraps any failure to reach the model endpoint, including
	// non-success statuses surfaced by the SDK.
	ErrTransport = errors.New("model endpoint transport error")
	// ErrMalformedResponse is returned when the response body lacks an
	// expected field or cannot be decoded.
	ErrMalformedResponse = errors.New("malformed model response")
)

// ModelInvoker is the subset of the Bedrock runtime client used here.
// *bedrockruntime.Client satisfies it.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

var _ ModelInvoker = (*bedrockruntime.Client)(nil)

func invoke(ctx context.Context, invoker ModelInvoker, modelID string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out, err := invoker.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        payload,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invoke %s: %w", ErrTransport, modelID, err)
	}
	if out == nil || len(out.Body) == 0 {
		return nil, fmt.Errorf("%w: empty body from %s", ErrMalformedResponse, modelID)
	}
	return out.Body, nil
}
