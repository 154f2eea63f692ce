package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Embedder turns text or images into vectors through a Titan embedding
// model. Failures are logged and reported as a nil vector.
type Embedder struct {
	invoker      ModelInvoker
	defaultModel string
	logger       *slog.Logger
}

func NewEmbedder(invoker ModelInvoker, defaultModel string, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		invoker:      invoker,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

type embeddingRequest struct {
	InputText  string `json:"inputText,omitempty"`
	InputImage string `json:"inputImage,omitempty"`
}

type embeddingResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed returns the embedding of text, or nil if the call failed.
func (e *Embedder) Embed(ctx context.Context, text, modelID string) []float32 {
	if strings.TrimSpace(text) == "" {
		e.logger.Error("embedding skipped", slog.String("error", "empty text"))
		return nil
	}
	return e.run(ctx, modelID, embeddingRequest{InputText: text})
}

// EmbedImage returns the embedding of a base64 encoded image, or nil if the
// call failed. It requires a multimodal model.
func (e *Embedder) EmbedImage(ctx context.Context, imageB64, modelID string) []float32 {
	if imageB64 == "" {
		e.logger.Error("image embedding skipped", slog.String("error", "empty image"))
		return nil
	}
	return e.run(ctx, modelID, embeddingRequest{InputImage: imageB64})
}

func (e *Embedder) run(ctx context.Context, modelID string, req embeddingRequest) []float32 {
	if modelID == "" {
		modelID = e.defaultModel
	}
	vec, err := e.embed(ctx, modelID, req)
	if err != nil {
		e.logger.Error("embedding failed",
			slog.String("model_id", modelID),
			slog.String("error", err.Error()))
		return nil
	}
	return vec
}

func (e *Embedder) embed(ctx context.Context, modelID string, req embeddingRequest) ([]float32, error) {
	body, err := invoke(ctx, e.invoker, modelID, req)
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode embedding: %v", ErrMalformedResponse, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding field", ErrMalformedResponse)
	}
	return resp.Embedding, nil
}
