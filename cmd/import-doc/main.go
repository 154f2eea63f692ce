package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/josinaldojr/multimodal-rag/internal/awsclient"
	"github.com/josinaldojr/multimodal-rag/internal/config"
	"github.com/josinaldojr/multimodal-rag/internal/db"
	"github.com/josinaldojr/multimodal-rag/internal/ingest"
	"github.com/josinaldojr/multimodal-rag/internal/llm"
	"github.com/josinaldojr/multimodal-rag/internal/logging"
	"github.com/josinaldojr/multimodal-rag/internal/rag"
	"github.com/josinaldojr/multimodal-rag/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config_full.yaml", "base configuration file")
	overridePath := flag.String("override", "configs/config.yaml", "configuration merged on top of -config")
	deckFlag := flag.String("deck", "", "deck name stored with every item (ex: cmp301)")
	pathFlag := flag.String("path", "", "local file or directory to import (.jpg/.png/.pdf/.txt/.md/.html)")
	fromS3 := flag.Bool("from-s3", false, "download storage.image_prefix from the bucket into -path first")
	upload := flag.Bool("upload", false, "upload imported files to the bucket and use the object key as source")
	migrate := flag.Bool("migrate", false, "create the vector extension and tables before importing")
	embedImages := flag.Bool("embed-images", false, "store models.image_embedding vectors of the slide images (defaults to search.image_embeddings)")
	flag.Parse()

	if *deckFlag == "" {
		log.Fatal("required: -deck")
	}

	cfg, err := config.Load(*configPath, *overridePath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.Log.Level)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "embed-images" {
			cfg.Search.ImageEmbeddings = *embedImages
		}
	})

	path := *pathFlag
	if path == "" {
		path = cfg.Storage.LocalDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *deckFlag, path, *fromS3, *upload, *migrate); err != nil {
		logger.Error("import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, deck, path string, fromS3, upload, migrate bool) error {
	clients, err := awsclient.New(ctx, cfg.AWS.Region)
	if err != nil {
		return err
	}

	if migrate {
		if err := db.Migrate(ctx, cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("schema applied")
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	prompts, err := cfg.Prompts.Load()
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	vision := llm.NewCompleter(clients.Bedrock, cfg.Models.CompleterConfig(), logger)
	embedder := llm.NewEmbedder(clients.Bedrock, cfg.Models.TextEmbedding, logger)
	repo := rag.NewPgRepository(pool)

	importer := ingest.NewImporter(repo, embedder, vision, prompts.ImageDescription, ingest.Options{
		EmbeddingModel:      cfg.Models.TextEmbedding,
		VisionModel:         cfg.Models.Vision,
		EmbedImages:         cfg.Search.ImageEmbeddings,
		ImageEmbeddingModel: cfg.Models.ImageEmbedding,
		ImagePrefix:         cfg.Storage.ImagePrefix,
		TextPrefix:          cfg.Storage.PDFTextPrefix,
	}, logger)

	if fromS3 || upload {
		store, err := openStore(ctx, cfg, clients, logger)
		if err != nil {
			return err
		}
		if fromS3 {
			files, err := store.DownloadPrefix(ctx, cfg.Storage.ImagePrefix, path, cfg.Storage.ImageExt)
			if err != nil {
				return err
			}
			logger.Info("images downloaded",
				slog.String("bucket", store.Bucket()),
				slog.Int("files", len(files)))
		}
		if upload {
			importer.WithUploader(store)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		n, err := importer.ImportFile(ctx, deck, path)
		if err != nil {
			return err
		}
		logger.Info("import finished", slog.String("deck", deck), slog.Int("items", n))
		return nil
	}

	stats, err := importer.ImportDir(ctx, deck, path)
	if err != nil {
		return err
	}

	total, err := repo.Count(ctx, deck)
	if err != nil {
		return err
	}
	logger.Info("import finished",
		slog.String("deck", deck),
		slog.Int("files", stats.Files),
		slog.Int("items", stats.Items),
		slog.Int("skipped", stats.Skipped),
		slog.Int("deck_total", total))

	if stats.Skipped > 0 {
		return fmt.Errorf("%d files could not be imported", stats.Skipped)
	}
	return nil
}

// openStore uses aws.bucket, or the bucket output of aws.stack_name.
func openStore(ctx context.Context, cfg *config.Config, clients *awsclient.Clients, logger *slog.Logger) (*storage.Store, error) {
	bucket := cfg.AWS.Bucket
	if bucket == "" {
		if cfg.AWS.StackName == "" {
			return nil, fmt.Errorf("aws.bucket or aws.stack_name is required with -from-s3 or -upload")
		}
		b, err := storage.ResolveBucket(ctx, clients.CloudFormation, cfg.AWS.StackName)
		if err != nil {
			return nil, err
		}
		bucket = b
	}
	return storage.New(clients.S3, bucket, logger)
}
