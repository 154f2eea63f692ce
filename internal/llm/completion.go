package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/josinaldojr/multimodal-rag/internal/prompt"
)

const (
	DefaultAnthropicVersion = "bedrock-2023-05-31"
	DefaultTemperature      = 0.1
	DefaultMaxTokens        = 1000
)

// Result is the outcome of one completion call. Completion is only
// meaningful when Failure is nil.
type Result struct {
	Completion       string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
	ModelID          string
	Failure          error
}

func (r Result) OK() bool { return r.Failure == nil }

// CompleterConfig holds the defaults applied when a call does not override
// them.
type CompleterConfig struct {
	ModelID          string
	AnthropicVersion string
	Temperature      float64
	MaxTokens        int
}

// DefaultCompleterConfig returns the documented call defaults for modelID.
func DefaultCompleterConfig(modelID string) CompleterConfig {
	return CompleterConfig{
		ModelID:          modelID,
		AnthropicVersion: DefaultAnthropicVersion,
		Temperature:      DefaultTemperature,
		MaxTokens:        DefaultMaxTokens,
	}
}

// Completer renders prompt templates and sends them to an Anthropic model on
// Bedrock. Calls are independent and never retried.
type Completer struct {
	invoker ModelInvoker
	cfg     CompleterConfig
	logger  *slog.Logger
}

func NewCompleter(invoker ModelInvoker, cfg CompleterConfig, logger *slog.Logger) *Completer {
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = DefaultAnthropicVersion
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{invoker: invoker, cfg: cfg, logger: logger}
}

type callOptions struct {
	temperature    float64
	maxTokens      int
	preserveQuotes bool
}

// Option tunes a single call.
type Option func(*callOptions)

func WithTemperature(t float64) Option {
	return func(o *callOptions) { o.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(o *callOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// PreserveQuotes keeps double quotes in the answer, for prompts that ask the
// model for JSON.
func PreserveQuotes() Option {
	return func(o *callOptions) { o.preserveQuotes = true }
}

type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
	Usage struct {
		PromptTokens     *int `json:"prompt_tokens"`
		CompletionTokens *int `json:"completion_tokens"`
		InputTokens      int  `json:"input_tokens"`
		OutputTokens     int  `json:"output_tokens"`
	} `json:"usage"`
}

// Complete renders tmpl with vars and asks modelID (or the configured
// default) for a completion.
func (c *Completer) Complete(ctx context.Context, tmpl prompt.Template, vars map[string]string, modelID string, opts ...Option) Result {
	return c.send(ctx, tmpl, vars, modelID, nil, c.options(c.cfg.Temperature, opts))
}

// DescribeImage sends a base64 image followed by the rendered prompt to a
// vision capable model. Temperature defaults to 0.
func (c *Completer) DescribeImage(ctx context.Context, imageB64, mediaType string, tmpl prompt.Template, vars map[string]string, modelID string, opts ...Option) Result {
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	img := &contentBlock{
		Type:   "image",
		Source: &imageSource{Type: "base64", MediaType: mediaType, Data: imageB64},
	}
	return c.send(ctx, tmpl, vars, modelID, img, c.options(0, opts))
}

func (c *Completer) options(temperature float64, opts []Option) callOptions {
	o := callOptions{temperature: temperature, maxTokens: c.cfg.MaxTokens}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (c *Completer) send(ctx context.Context, tmpl prompt.Template, vars map[string]string, modelID string, image *contentBlock, o callOptions) Result {
	if modelID == "" {
		modelID = c.cfg.ModelID
	}
	res := Result{ModelID: modelID}

	text, err := tmpl.Render(vars)
	if err != nil {
		res.Failure = err
		c.logFailure(tmpl, res)
		return res
	}

	blocks := make([]contentBlock, 0, 2)
	if image != nil {
		blocks = append(blocks, *image)
	}
	blocks = append(blocks, contentBlock{Type: "text", Text: text})

	req := messagesRequest{
		AnthropicVersion: c.cfg.AnthropicVersion,
		MaxTokens:        o.maxTokens,
		Temperature:      o.temperature,
		Messages:         []message{{Role: "user", Content: blocks}},
	}

	start := time.Now()
	body, err := invoke(ctx, c.invoker, modelID, req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Failure = err
		c.logFailure(tmpl, res)
		return res
	}

	if err := extract(body, &res, o.preserveQuotes); err != nil {
		res.Failure = err
		c.logFailure(tmpl, res)
		return res
	}

	c.logger.Debug("completion done",
		slog.String("template", tmpl.Name()),
		slog.String("model_id", res.ModelID),
		slog.Int("prompt_tokens", res.PromptTokens),
		slog.Int("completion_tokens", res.CompletionTokens),
		slog.Duration("latency", res.Latency))
	return res
}

func extract(body []byte, res *Result, preserveQuotes bool) error {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: decode completion: %v", ErrMalformedResponse, err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return fmt.Errorf("%w: no content[0].text", ErrMalformedResponse)
	}

	answer := strings.TrimSpace(*resp.Content[0].Text)
	if !preserveQuotes {
		answer = strings.ReplaceAll(answer, `"`, "'")
	}
	res.Completion = answer

	if resp.Model != "" {
		res.ModelID = resp.Model
	}
	res.PromptTokens = firstNonNil(resp.Usage.PromptTokens, resp.Usage.InputTokens)
	res.CompletionTokens = firstNonNil(resp.Usage.CompletionTokens, resp.Usage.OutputTokens)
	return nil
}

func firstNonNil(p *int, fallback int) int {
	n := fallback
	if p != nil {
		n = *p
	}
	return max(n, 0)
}

func (c *Completer) logFailure(tmpl prompt.Template, res Result) {
	c.logger.Error("completion failed",
		slog.String("template", tmpl.Name()),
		slog.String("model_id", res.ModelID),
		slog.Duration("latency", res.Latency),
		slog.String("error", res.Failure.Error()))
}
