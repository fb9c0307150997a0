package driving

import "github.com/custodia-labs/diagnobot/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Set updates a single setting by dot-path key and persists it.
	Set(key, value string) error

	// Validate checks the current settings are usable.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// SetEmbeddingProvider configures the embedding provider.
	// An empty model selects the provider's default.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider configures the generation provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// ValidateEmbeddingConfig checks the embedding provider is reachable.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig checks the generation provider is reachable.
	ValidateLLMConfig() error
}
