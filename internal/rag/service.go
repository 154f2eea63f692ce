package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/josinaldojr/multimodal-rag/internal/llm"
	"github.com/josinaldojr/multimodal-rag/internal/prompt"
)

// NoAnswer is returned when the index has nothing close to the question.
const NoAnswer = "I do not know. No indexed slide matches this question."

var (
	ErrEmptyQuestion   = errors.New("question is required")
	ErrEmbeddingFailed = errors.New("could not embed the question")
	ErrEmptyContext    = errors.New("context is required")
	ErrNoQuestions     = errors.New("model returned no question/answer pairs")
)

type Options struct {
	TopK            int
	UseEntities     bool
	EmbeddingModel  string
	CompletionModel string
}

type Service struct {
	repo      Repository
	embedder  Embedder
	completer Completer
	prompts   prompt.Set
	opts      Options
	logger    *slog.Logger
}

func NewService(repo Repository, embedder Embedder, completer Completer, prompts prompt.Set, opts Options, logger *slog.Logger) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		embedder:  embedder,
		completer: completer,
		prompts:   prompts,
		opts:      opts,
		logger:    logger,
	}
}

func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	q := strings.TrimSpace(req.Question)
	if q == "" {
		return nil, ErrEmptyQuestion
	}

	resp := &AskResponse{Lang: resolveLang(req.Lang, q), Sources: []SourceRef{}}

	// Search on the entities of the question when enabled; fall back to the
	// question itself if extraction fails.
	query := q
	if s.opts.UseEntities {
		res := s.completer.Complete(ctx, s.prompts.Entities, map[string]string{"question": q}, s.opts.CompletionModel)
		if res.OK() && res.Completion != "" {
			query = res.Completion
			resp.Entities = res.Completion
		} else {
			s.logger.Warn("entity extraction skipped", slog.String("question", q))
		}
	}

	vec := s.embedder.Embed(ctx, query, s.opts.EmbeddingModel)
	if vec == nil {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
		return nil, ErrEmbeddingFailed
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.opts.TopK
	}

	filter := SearchFilter{Deck: req.Deck, EmbeddingModel: s.opts.EmbeddingModel}
	matches, err := s.repo.SearchSimilar(ctx, filter, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	if len(matches) == 0 {
		resp.Answer = NoAnswer
		return resp, nil
	}

	res := s.completer.Complete(ctx, s.prompts.Answer, map[string]string{
		"question": q,
		"summary":  buildSummary(matches),
		"language": languageName(resp.Lang),
	}, s.opts.CompletionModel)
	if !res.OK() {
		return nil, fmt.Errorf("generate answer: %w", res.Failure)
	}

	resp.Answer = res.Completion
	resp.ModelID = res.ModelID
	resp.Usage = Usage{
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		LatencyMS:        res.Latency.Milliseconds(),
	}
	for _, m := range matches {
		resp.Sources = append(resp.Sources, SourceRef{
			ItemID:    m.ID,
			Deck:      m.Deck,
			Kind:      m.Kind,
			SourceKey: m.SourceKey,
			Page:      m.Page,
			Distance:  m.Distance,
		})
	}

	s.logger.Info("question answered",
		slog.Int("matches", len(matches)),
		slog.String("model_id", res.ModelID),
		slog.Int("prompt_tokens", res.PromptTokens),
		slog.Int("completion_tokens", res.CompletionTokens))
	return resp, nil
}

// GenerateQuestions asks the model for question/answer pairs grounded in
// text, for building evaluation sets.
func (s *Service) GenerateQuestions(ctx context.Context, text string) ([]QAPair, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyContext
	}

	res := s.completer.Complete(ctx, s.prompts.Questions, map[string]string{"context": text},
		s.opts.CompletionModel, llm.PreserveQuotes())
	if !res.OK() {
		return nil, fmt.Errorf("generate questions: %w", res.Failure)
	}

	return parseQAPairs(res.Completion)
}

func buildSummary(matches []Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		d := strings.TrimSpace(m.Description)
		if d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, "\n\n")
}

// parseQAPairs decodes the first JSON array found in text. Models often wrap
// the array in prose.
func parseQAPairs(text string) ([]QAPair, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return nil, ErrNoQuestions
	}

	var pairs []QAPair
	if err := json.Unmarshal([]byte(text[start:end+1]), &pairs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoQuestions, err)
	}

	out := pairs[:0]
	for _, p := range pairs {
		if strings.TrimSpace(p.Question) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoQuestions
	}
	return out, nil
}
