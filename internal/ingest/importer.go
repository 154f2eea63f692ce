package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/josinaldojr/multimodal-rag/internal/llm"
	"github.com/josinaldojr/multimodal-rag/internal/prompt"
	"github.com/josinaldojr/multimodal-rag/internal/rag"
)

var ErrEmbeddingFailed = errors.New("embedding failed")

type Describer interface {
	DescribeImage(ctx context.Context, imageB64, mediaType string, tmpl prompt.Template, vars map[string]string, modelID string, opts ...llm.Option) llm.Result
}

// Uploader copies a processed source file to object storage and returns its
// key.
type Uploader interface {
	Upload(ctx context.Context, localPath, prefix string) (string, error)
}

// Embedder embeds item text and, in image mode, the slide image itself.
type Embedder interface {
	Embed(ctx context.Context, text, modelID string) []float32
	EmbedImage(ctx context.Context, imageB64, modelID string) []float32
}

var (
	_ Describer = (*llm.Completer)(nil)
	_ Embedder  = (*llm.Embedder)(nil)
)

type Options struct {
	EmbeddingModel string
	VisionModel    string
	// EmbedImages stores the multimodal embedding of slide images instead of
	// the embedding of their description. Every item of the run, text
	// included, is then embedded with ImageEmbeddingModel so they share one
	// vector space.
	EmbedImages         bool
	ImageEmbeddingModel string
	// Prefixes used when an Uploader is set.
	ImagePrefix string
	TextPrefix  string
}

type Importer struct {
	repo      rag.Repository
	embedder  Embedder
	describer Describer
	prompt    prompt.Template
	uploader  Uploader
	opts      Options
	logger    *slog.Logger
}

func NewImporter(repo rag.Repository, embedder Embedder, describer Describer, describePrompt prompt.Template, opts Options, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		repo:      repo,
		embedder:  embedder,
		describer: describer,
		prompt:    describePrompt,
		opts:      opts,
		logger:    logger,
	}
}

// WithUploader makes the importer upload every file it indexes and record the
// object key as the item source.
func (im *Importer) WithUploader(u Uploader) *Importer {
	im.uploader = u
	return im
}

// Stats counts what an import run did.
type Stats struct {
	Items   int
	Files   int
	Skipped int
}

// ImportImage describes a slide image with the vision model and indexes it.
// The stored vector embeds the description, or the image itself when
// EmbedImages is set.
func (im *Importer) ImportImage(ctx context.Context, deck, path string) (int, error) {
	b64, mediaType, err := EncodeImage(path)
	if err != nil {
		return 0, err
	}

	res := im.describer.DescribeImage(ctx, b64, mediaType, im.prompt, nil, im.opts.VisionModel)
	if !res.OK() {
		return 0, fmt.Errorf("describe %s: %w", path, res.Failure)
	}
	description := SanitizeUTF8(strings.TrimSpace(res.Completion))
	if description == "" {
		return 0, fmt.Errorf("describe %s: empty description", path)
	}

	key, err := im.sourceKey(ctx, path, im.opts.ImagePrefix)
	if err != nil {
		return 0, err
	}

	item := &rag.Item{
		Deck:        deck,
		Kind:        rag.KindImage,
		SourceKey:   key,
		Page:        slideNumber(path),
		Description: description,
		ModelID:     res.ModelID,
	}

	if im.opts.EmbedImages {
		item.EmbeddingModel = im.opts.ImageEmbeddingModel
		vec := im.embedder.EmbedImage(ctx, b64, item.EmbeddingModel)
		if vec == nil {
			return 0, fmt.Errorf("%s: %w", item.SourceKey, ErrEmbeddingFailed)
		}
		if err := im.insert(ctx, item, vec); err != nil {
			return 0, err
		}
		return 1, nil
	}

	if err := im.store(ctx, item); err != nil {
		return 0, err
	}
	return 1, nil
}

// ImportPDF indexes the text of every non-empty page of a PDF.
func (im *Importer) ImportPDF(ctx context.Context, deck, path string) (int, error) {
	pages, err := PDFPages(path)
	if err != nil {
		return 0, err
	}

	key, err := im.sourceKey(ctx, path, im.opts.TextPrefix)
	if err != nil {
		return 0, err
	}

	n := 0
	for i, text := range pages {
		for _, chunk := range SplitIntoChunks(text, MaxChunkLen) {
			item := &rag.Item{
				Deck:        deck,
				Kind:        rag.KindPDFPage,
				SourceKey:   key,
				Page:        i + 1,
				Description: chunk,
			}
			if err := im.store(ctx, item); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// ImportText indexes a .txt, .md or .html document as chunks.
func (im *Importer) ImportText(ctx context.Context, deck, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	content := string(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		content = ExtractMainText(content)
	}

	chunks := SplitIntoChunks(content, MaxChunkLen)
	if len(chunks) == 0 {
		return 0, nil
	}

	key, err := im.sourceKey(ctx, path, im.opts.TextPrefix)
	if err != nil {
		return 0, err
	}

	for i, chunk := range chunks {
		item := &rag.Item{
			Deck:        deck,
			Kind:        rag.KindText,
			SourceKey:   key,
			Page:        i + 1,
			Description: chunk,
		}
		if err := im.store(ctx, item); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

// ImportFile dispatches on the file extension. Unsupported files return
// (0, nil).
func (im *Importer) ImportFile(ctx context.Context, deck, path string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case MediaType(path) != "":
		return im.ImportImage(ctx, deck, path)
	case ext == ".pdf":
		return im.ImportPDF(ctx, deck, path)
	case ext == ".txt", ext == ".md", ext == ".html", ext == ".htm":
		return im.ImportText(ctx, deck, path)
	default:
		return 0, nil
	}
}

// ImportDir walks root and imports every supported file. A file that fails
// is logged and skipped; only walk errors and cancellation stop the run.
func (im *Importer) ImportDir(ctx context.Context, deck, root string) (Stats, error) {
	var stats Stats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := im.ImportFile(ctx, deck, path)
		if err != nil {
			stats.Skipped++
			im.logger.Error("import failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		if n > 0 {
			stats.Files++
			stats.Items += n
			im.logger.Info("file imported",
				slog.String("deck", deck),
				slog.String("path", path),
				slog.Int("items", n))
		}
		return nil
	})

	return stats, err
}

// textEmbeddingModel is the model every text of the run is embedded with.
func (o Options) textEmbeddingModel() string {
	if o.EmbedImages {
		return o.ImageEmbeddingModel
	}
	return o.EmbeddingModel
}

func (im *Importer) store(ctx context.Context, item *rag.Item) error {
	item.EmbeddingModel = im.opts.textEmbeddingModel()
	vec := im.embedder.Embed(ctx, item.Description, item.EmbeddingModel)
	if vec == nil {
		return fmt.Errorf("%s page %d: %w", item.SourceKey, item.Page, ErrEmbeddingFailed)
	}
	return im.insert(ctx, item, vec)
}

func (im *Importer) insert(ctx context.Context, item *rag.Item, vec []float32) error {
	if _, err := im.repo.Insert(ctx, item, vec); err != nil {
		return fmt.Errorf("insert %s page %d: %w", item.SourceKey, item.Page, err)
	}
	return nil
}

func (im *Importer) sourceKey(ctx context.Context, path, prefix string) (string, error) {
	if im.uploader == nil {
		return filepath.ToSlash(path), nil
	}
	key, err := im.uploader.Upload(ctx, path, prefix)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return key, nil
}

// slideNumber reads the trailing number of names like slide_12.jpg or
// page-3.png. It returns 0 when there is none.
func slideNumber(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	end := len(name)
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	n := 0
	for _, c := range name[start:end] {
		n = n*10 + int(c-'0')
	}
	return n
}
