// Package ai provides factory functions for creating AI service adapters
// and the index persistence they feed.
package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	hashingembed "github.com/custodia-labs/diagnobot/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/diagnobot/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/diagnobot/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/diagnobot/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/diagnobot/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/diagnobot/internal/adapters/driven/llm/openai"
	filelock "github.com/custodia-labs/diagnobot/internal/adapters/driven/lock/file"
	"github.com/custodia-labs/diagnobot/internal/adapters/driven/storage/qdrant"
	"github.com/custodia-labs/diagnobot/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// fixHint is appended to configuration errors.
const fixHint = "Run 'diagnobot settings' to fix"

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider is not configured. %s",
			domain.ErrEmbeddingService, fixHint)
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrEmbeddingService, err, fixHint)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s", domain.ErrEmbeddingService, err, fixHint)
	}

	return svc, nil
}

// CreateAndValidateGenerationService creates a generation service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateGenerationService(settings *domain.LLMSettings) (driven.GenerationService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: generation provider is not configured. %s",
			domain.ErrGenerationUnavailable, fixHint)
	}

	svc, err := CreateGenerationService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. %s", domain.ErrGenerationUnavailable, err, fixHint)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). %s", domain.ErrGenerationUnavailable, err, fixHint)
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
// Unconfigured settings are not an error here; Validate on the settings service reports those.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateGenerationConfig validates a generation configuration by creating a service and pinging it.
func ValidateGenerationConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateGenerationService(settings)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: embedding settings are required", domain.ErrInvalidInput)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: domain.EmbeddingDimensions()[settings.Model],
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderHashing:
		return hashingembed.NewEmbeddingService(hashingembed.Config{
			Model: settings.Model,
		}), nil

	case domain.AIProviderGroq, domain.AIProviderAnthropic:
		return nil, fmt.Errorf("%s does not support embeddings, use ollama, openai or hashing", settings.Provider)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", settings.Provider)
	}
}

// CreateGenerationService creates the appropriate generation service based on settings.
func CreateGenerationService(settings *domain.LLMSettings) (driven.GenerationService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: generation settings are required", domain.ErrInvalidInput)
	}

	switch settings.Provider {
	case domain.AIProviderGroq:
		cfg := openaillm.GroqConfig(settings.APIKey, settings.Model)
		if settings.BaseURL != "" {
			cfg.BaseURL = settings.BaseURL
		}
		return newOpenAI(cfg)

	case domain.AIProviderOpenAI:
		return newOpenAI(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewGenerationService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderOllama:
		return ollamallm.NewGenerationService(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderHashing:
		return nil, fmt.Errorf("hashing is an embedding-only provider")

	default:
		return nil, fmt.Errorf("unsupported generation provider: %q", settings.Provider)
	}
}

// newOpenAI returns a nil interface, not a typed nil, on error.
func newOpenAI(cfg openaillm.Config) (driven.GenerationService, error) {
	svc, err := openaillm.NewGenerationService(cfg)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// ResolveIndexDir returns the configured index directory, defaulting to
// ~/.diagnobot/index.
func ResolveIndexDir(settings *domain.IndexSettings) (string, error) {
	if settings != nil && settings.Dir != "" {
		return settings.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".diagnobot", "index"), nil
}

// CreateIndexStore creates the persistence adapter selected by the index backend.
func CreateIndexStore(ctx context.Context, settings *domain.AppSettings) (driven.IndexStore, error) {
	switch settings.Index.Backend {
	case domain.IndexBackendSQLite, "":
		dir, err := ResolveIndexDir(&settings.Index)
		if err != nil {
			return nil, err
		}
		store, err := sqlite.NewIndexStore(dir)
		if err != nil {
			return nil, err
		}
		return store, nil

	case domain.IndexBackendQdrant:
		store, err := qdrant.NewIndexStore(ctx, qdrant.Config{
			Host:   settings.Qdrant.Host,
			Port:   settings.Qdrant.Port,
			APIKey: settings.Qdrant.APIKey,
			UseTLS: settings.Qdrant.UseTLS,
			Alias:  settings.Qdrant.Collection,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unsupported index backend %q", domain.ErrInvalidInput, settings.Index.Backend)
	}
}

// CreateBuildLock creates the build lock in the index directory. The lock
// is file based for every backend so concurrent processes on one host
// never build twice.
func CreateBuildLock(settings *domain.IndexSettings) (driven.BuildLock, error) {
	dir, err := ResolveIndexDir(settings)
	if err != nil {
		return nil, err
	}
	var opts []filelock.Option
	if settings != nil && settings.LockStaleAfter != 0 {
		opts = append(opts, filelock.WithStaleAfter(settings.LockStaleAfter))
	}
	lock, err := filelock.New(dir, opts...)
	if err != nil {
		return nil, err
	}
	return lock, nil
}
