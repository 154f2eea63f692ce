package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/josinaldojr/multimodal-rag/internal/awsclient"
	"github.com/josinaldojr/multimodal-rag/internal/config"
	"github.com/josinaldojr/multimodal-rag/internal/db"
	apphttp "github.com/josinaldojr/multimodal-rag/internal/http"
	"github.com/josinaldojr/multimodal-rag/internal/llm"
	"github.com/josinaldojr/multimodal-rag/internal/logging"
	"github.com/josinaldojr/multimodal-rag/internal/rag"
)

func main() {
	configPath := flag.String("config", "configs/config_full.yaml", "base configuration file")
	overridePath := flag.String("override", "configs/config.yaml", "configuration merged on top of -config")
	flag.Parse()

	cfg, err := config.Load(*configPath, *overridePath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := awsclient.New(ctx, cfg.AWS.Region)
	if err != nil {
		log.Fatalf("failed to init AWS clients: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer pool.Close()

	prompts, err := cfg.Prompts.Load()
	if err != nil {
		log.Fatalf("failed to load prompts: %v", err)
	}

	embedder := llm.NewEmbedder(clients.Bedrock, cfg.Models.TextEmbedding, logger)
	completer := llm.NewCompleter(clients.Bedrock, cfg.Models.CompleterConfig(), logger)

	ragService := rag.NewService(rag.NewPgRepository(pool), embedder, completer, prompts, rag.Options{
		TopK:            cfg.Search.TopK,
		UseEntities:     cfg.Search.UseEntities,
		EmbeddingModel:  cfg.QueryEmbeddingModel(),
		CompletionModel: cfg.Models.Completion,
	}, logger)

	router := apphttp.NewRouter(apphttp.RouterDeps{
		Handler:     apphttp.NewHandler(ragService, cfg.Server.RequestTimeout, logger),
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	addr := ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("region", clients.Config.Region),
			slog.String("completion_model", cfg.Models.Completion))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
