// Command diagnobot is a retrieval-augmented medical assistant.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/diagnobot/internal/adapters/driven/ai"
	"github.com/custodia-labs/diagnobot/internal/adapters/driven/config/env"
	"github.com/custodia-labs/diagnobot/internal/adapters/driven/config/file"
	"github.com/custodia-labs/diagnobot/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/cli"
	"github.com/custodia-labs/diagnobot/internal/connectors/filesystem"
	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/services"
	"github.com/custodia-labs/diagnobot/internal/logger"
	"github.com/custodia-labs/diagnobot/internal/normalisers"
	"github.com/custodia-labs/diagnobot/internal/normalisers/markdown"
	"github.com/custodia-labs/diagnobot/internal/normalisers/pdf"
	"github.com/custodia-labs/diagnobot/internal/normalisers/plaintext"
	"github.com/custodia-labs/diagnobot/internal/postprocessors/chunker"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup, err := wire(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	err = cli.Execute(ctx)
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}

// wire builds the services from the settings and installs them in the CLI.
// Services whose provider is not usable yet are left unset, so the settings
// commands keep working on a fresh install.
func wire(ctx context.Context) (func(), error) {
	cli.SetVersion(version)

	if err := env.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	base, err := file.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	store := env.NewStore(base, services.SettingKeys())
	settingsService := services.NewSettingsService(store, ai.NewConfigValidator())

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var connectorOpts []filesystem.Option
	if settings.Source.DocumentID != "" {
		connectorOpts = append(connectorOpts, filesystem.WithDocumentID(settings.Source.DocumentID))
	}
	source := filesystem.New(connectorOpts...)

	svcs := cli.Services{
		Settings:   settingsService,
		Watcher:    source,
		SourcePath: settings.Source.Path,
	}
	cleanup := func() {
		if err := source.Close(); err != nil {
			logger.Debug("closing source watcher: %v", err)
		}
	}

	answerCfg := services.AnswerConfig{
		TopK:           settings.Retrieval.TopK,
		RAGOptions:     settings.LLM.Options,
		SymptomOptions: domain.DefaultSymptomOptions(),
	}

	prompts, err := file.NewPromptStore("")
	if err != nil {
		return nil, fmt.Errorf("opening prompts: %w", err)
	}
	assembler := services.NewPromptAssembler(prompts, settings.Prompt)

	llm, err := ai.CreateGenerationService(&settings.LLM)
	if err != nil {
		logger.Debug("generation unavailable: %v", err)
		cli.SetServices(svcs)
		return cleanup, nil
	}
	generator := services.NewGenerationClient(llm)

	indexService, retriever, closeIndex, err := wireIndex(ctx, settings, source)
	if err != nil {
		// Symptom answers need no index.
		logger.Debug("index unavailable: %v", err)
		svcs.Answer = services.NewAnswerService(nil, nil, assembler, generator, answerCfg)
		cli.SetServices(svcs)
		return cleanup, nil
	}

	svcs.Index = indexService
	svcs.Answer = services.NewAnswerService(indexService, retriever, assembler, generator, answerCfg)
	svcs.Retrieval = services.NewRetrievalService(indexService, retriever, settings.Retrieval.TopK)
	cli.SetServices(svcs)

	return func() {
		closeIndex()
		cleanup()
	}, nil
}

// wireIndex builds the index service and the retriever.
func wireIndex(
	ctx context.Context,
	settings *domain.AppSettings,
	source *filesystem.Connector,
) (*services.IndexService, *services.Retriever, func(), error) {
	embedder, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("embedding: %w", err)
	}

	chunks, err := chunker.NewFromSettings(settings.Chunking)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("chunker: %w", err)
	}

	store, err := ai.CreateIndexStore(ctx, settings)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("index store: %w", err)
	}

	lock, err := ai.CreateBuildLock(&settings.Index)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("build lock: %w", err)
	}

	registry := normalisers.NewRegistry(pdf.New(), markdown.New(), plaintext.New())

	indexService := services.NewIndexService(
		source,
		registry,
		chunks,
		embedder,
		memory.NewBuilder(),
		store,
		lock,
		services.IndexConfig{
			SourcePath:        settings.Source.Path,
			BatchSize:         settings.Embedding.BatchSize,
			RequestsPerSecond: settings.Embedding.RequestsPerSecond,
		},
	)

	closeIndex := func() {
		if err := store.Close(); err != nil {
			logger.Debug("closing index store: %v", err)
		}
	}
	return indexService, services.NewRetriever(embedder), closeIndex, nil
}
