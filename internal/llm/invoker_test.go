package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/mock"
)

type invokerMock struct {
	mock.Mock
}

func (m *invokerMock) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*bedrockruntime.InvokeModelOutput)
	return out, args.Error(1)
}

func respond(body string) *bedrockruntime.InvokeModelOutput {
	return &bedrockruntime.InvokeModelOutput{Body: []byte(body)}
}

func requestBody(in *bedrockruntime.InvokeModelInput) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(in.Body, &out)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
