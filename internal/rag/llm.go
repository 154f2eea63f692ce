package rag

import (
	"context"

	"github.com/josinaldojr/multimodal-rag/internal/llm"
	"github.com/josinaldojr/multimodal-rag/internal/prompt"
)

type Embedder interface {
	Embed(ctx context.Context, text, modelID string) []float32
}

type Completer interface {
	Complete(ctx context.Context, tmpl prompt.Template, vars map[string]string, modelID string, opts ...llm.Option) llm.Result
}

var _ Embedder = (*llm.Embedder)(nil)
var _ Completer = (*llm.Completer)(nil)
