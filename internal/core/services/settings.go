package services

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keySourcePath       = "source.path"
	keySourceDocumentID = "source.document_id"
	keyChunkSize        = "chunking.size"
	keyChunkOverlap     = "chunking.overlap"
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedBatchSize   = "embedding.batch_size"
	keyEmbedRPS         = "embedding.requests_per_second"
	keyEmbedTimeout     = "embedding.timeout"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMTimeout       = "llm.timeout"
	keyLLMTemperature   = "llm.temperature"
	keyLLMMaxTokens     = "llm.max_tokens"
	keyLLMTopP          = "llm.top_p"
	keyIndexBackend     = "index.backend"
	keyIndexDir         = "index.dir"
	keyIndexMetric      = "index.metric"
	keyIndexLockStale   = "index.lock_stale_after"
	keyQdrantHost       = "qdrant.host"
	keyQdrantPort       = "qdrant.port"
	keyQdrantAPIKey     = "qdrant.api_key"
	keyQdrantTLS        = "qdrant.use_tls"
	keyQdrantCollection = "qdrant.collection"
	keyRetrievalTopK    = "retrieval.top_k"
	keyPromptHistory    = "prompt.include_history"
	keyPromptMaxHistory = "prompt.max_history_turns"
	keyPromptMaxChars   = "prompt.max_chars"
	keyPromptTruncation = "prompt.truncation"
)

// defaultLocalBaseURL is where a local Ollama listens.
const defaultLocalBaseURL = "http://localhost:11434"

// valueKind is how a setting's string form is parsed.
type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
)

// settingKinds lists every recognised key.
var settingKinds = map[string]valueKind{
	keySourcePath:       kindString,
	keySourceDocumentID: kindString,
	keyChunkSize:        kindInt,
	keyChunkOverlap:     kindInt,
	keyEmbedProvider:    kindString,
	keyEmbedModel:       kindString,
	keyEmbedBaseURL:     kindString,
	keyEmbedAPIKey:      kindString,
	keyEmbedBatchSize:   kindInt,
	keyEmbedRPS:         kindFloat,
	keyEmbedTimeout:     kindDuration,
	keyLLMProvider:      kindString,
	keyLLMModel:         kindString,
	keyLLMBaseURL:       kindString,
	keyLLMAPIKey:        kindString,
	keyLLMTimeout:       kindDuration,
	keyLLMTemperature:   kindFloat,
	keyLLMMaxTokens:     kindInt,
	keyLLMTopP:          kindFloat,
	keyIndexBackend:     kindString,
	keyIndexDir:         kindString,
	keyIndexMetric:      kindString,
	keyIndexLockStale:   kindDuration,
	keyQdrantHost:       kindString,
	keyQdrantPort:       kindInt,
	keyQdrantAPIKey:     kindString,
	keyQdrantTLS:        kindBool,
	keyQdrantCollection: kindString,
	keyRetrievalTopK:    kindInt,
	keyPromptHistory:    kindBool,
	keyPromptMaxHistory: kindInt,
	keyPromptMaxChars:   kindInt,
	keyPromptTruncation: kindString,
}

// setting is one key and its typed value.
type setting struct {
	key   string
	value any
}

// SettingKeys returns every recognised configuration key, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
// aiValidator is optional; without it provider connectivity is not checked.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	embedProvider := s.getProvider(keyEmbedProvider, d.Embedding.Provider)
	llmProvider := s.getProvider(keyLLMProvider, d.LLM.Provider)

	settings := &domain.AppSettings{
		Source: domain.SourceSettings{
			Path:       s.getString(keySourcePath, d.Source.Path),
			DocumentID: s.configStore.GetString(keySourceDocumentID),
		},
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap: s.getInt(keyChunkOverlap, d.Chunking.Overlap),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          embedProvider,
			Model:             s.getString(keyEmbedModel, defaultModel(domain.DefaultEmbeddingModels(), embedProvider, d.Embedding.Model)),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // Empty selects the provider default.
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
			Timeout:           s.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
		},
		LLM: domain.LLMSettings{
			Provider: llmProvider,
			Model:    s.getString(keyLLMModel, defaultModel(domain.DefaultLLMModels(), llmProvider, d.LLM.Model)),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
			Options: domain.GenerationOptions{
				Temperature:     s.getFloat(keyLLMTemperature, d.LLM.Options.Temperature),
				MaxOutputTokens: s.getInt(keyLLMMaxTokens, d.LLM.Options.MaxOutputTokens),
				TopP:            s.getFloat(keyLLMTopP, d.LLM.Options.TopP),
				Timeout:         s.getDuration(keyLLMTimeout, d.LLM.Options.Timeout),
			},
		},
		Index: domain.IndexSettings{
			Backend:        domain.IndexBackend(s.getString(keyIndexBackend, string(d.Index.Backend))),
			Dir:            s.configStore.GetString(keyIndexDir),
			LockStaleAfter: s.getDuration(keyIndexLockStale, d.Index.LockStaleAfter),
		},
		Qdrant: domain.QdrantSettings{
			Host:       s.getString(keyQdrantHost, d.Qdrant.Host),
			Port:       s.getInt(keyQdrantPort, d.Qdrant.Port),
			APIKey:     s.configStore.GetString(keyQdrantAPIKey),
			UseTLS:     s.getBool(keyQdrantTLS, d.Qdrant.UseTLS),
			Collection: s.getString(keyQdrantCollection, d.Qdrant.Collection),
		},
		Retrieval: domain.RetrievalSettings{
			TopK: s.getInt(keyRetrievalTopK, d.Retrieval.TopK),
		},
		Prompt: domain.PromptSettings{
			IncludeHistory:  s.getBool(keyPromptHistory, d.Prompt.IncludeHistory),
			MaxHistoryTurns: s.getInt(keyPromptMaxHistory, d.Prompt.MaxHistoryTurns),
			MaxChars:        s.getInt(keyPromptMaxChars, d.Prompt.MaxChars),
			Truncation:      domain.TruncationStrategy(s.getString(keyPromptTruncation, string(d.Prompt.Truncation))),
		},
	}

	return settings, nil
}

// Save persists application settings.
// API keys are only written when set, so an empty value never erases a stored key.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings are required", domain.ErrInvalidInput)
	}

	entries := []setting{
		{keySourcePath, settings.Source.Path},
		{keySourceDocumentID, settings.Source.DocumentID},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyEmbedTimeout, settings.Embedding.Timeout.String()},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTemperature, settings.LLM.Options.Temperature},
		{keyLLMMaxTokens, settings.LLM.Options.MaxOutputTokens},
		{keyLLMTopP, settings.LLM.Options.TopP},
		{keyLLMTimeout, settings.LLM.Options.Timeout.String()},
		{keyIndexBackend, string(settings.Index.Backend)},
		{keyIndexDir, settings.Index.Dir},
		{keyIndexMetric, domain.MetricCosine.String()},
		{keyIndexLockStale, settings.Index.LockStaleAfter.String()},
		{keyQdrantHost, settings.Qdrant.Host},
		{keyQdrantPort, settings.Qdrant.Port},
		{keyQdrantTLS, settings.Qdrant.UseTLS},
		{keyQdrantCollection, settings.Qdrant.Collection},
		{keyRetrievalTopK, settings.Retrieval.TopK},
		{keyPromptHistory, settings.Prompt.IncludeHistory},
		{keyPromptMaxHistory, settings.Prompt.MaxHistoryTurns},
		{keyPromptMaxChars, settings.Prompt.MaxChars},
		{keyPromptTruncation, string(settings.Prompt.Truncation)},
	}
	for _, secret := range []struct{ key, value string }{
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyLLMAPIKey, settings.LLM.APIKey},
		{keyQdrantAPIKey, settings.Qdrant.APIKey},
	} {
		if secret.value != "" {
			entries = append(entries, setting{secret.key, secret.value})
		}
	}

	for _, e := range entries {
		if err := s.configStore.Set(e.key, e.value); err != nil {
			return fmt.Errorf("save %s: %w", e.key, err)
		}
	}

	if err := s.configStore.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Set updates a single setting by dot-path key and persists it.
// The value is parsed according to the key's type and checked against the
// key's allowed values.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseSetting(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if err := checkEnum(key, value); err != nil {
		return err
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := s.configStore.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultLocalBaseURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the generation provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support generation", domain.ErrInvalidInput, provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultLocalBaseURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks the current settings are usable.
// Every problem is reported, joined into one error wrapping ErrInvalidInput.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...)))
	}

	if strings.TrimSpace(settings.Source.Path) == "" {
		add("source.path is empty")
	}
	c := settings.Chunking
	if c.Size <= 0 || c.Overlap < 0 || c.Overlap >= c.Size {
		problems = append(problems, fmt.Errorf("%w: size=%d overlap=%d",
			domain.ErrInvalidChunkingParameters, c.Size, c.Overlap))
	}
	if !settings.Embedding.IsConfigured() {
		add("embedding provider %q is not configured", settings.Embedding.Provider)
	}
	if settings.Embedding.BatchSize <= 0 {
		add("embedding.batch_size must be positive")
	}
	if settings.Embedding.RequestsPerSecond < 0 {
		add("embedding.requests_per_second must not be negative")
	}
	if !settings.LLM.IsConfigured() {
		add("llm provider %q is not configured", settings.LLM.Provider)
	}
	if err := settings.LLM.Options.Validate(); err != nil {
		problems = append(problems, err)
	}
	if !settings.Index.Backend.IsValid() {
		add("index.backend %q is not one of sqlite, qdrant", settings.Index.Backend)
	}
	if metric := s.configStore.GetString(keyIndexMetric); metric != "" && metric != domain.MetricCosine.String() {
		add("index.metric %q is not supported, only cosine", metric)
	}
	if settings.Retrieval.TopK < 1 {
		problems = append(problems, fmt.Errorf("%w: retrieval.top_k=%d", domain.ErrInvalidTopK, settings.Retrieval.TopK))
	}
	if settings.Prompt.MaxChars <= 0 {
		add("prompt.max_chars must be positive")
	}
	if settings.Prompt.MaxHistoryTurns < 0 {
		add("prompt.max_history_turns must not be negative")
	}
	if !settings.Prompt.Truncation.IsValid() {
		add("prompt.truncation %q is not one of none, drop_history_then_context", settings.Prompt.Truncation)
	}

	return errors.Join(problems...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current generation configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateGeneration(&settings.LLM)
}

// Helper methods for reading config with defaults. A key that is present
// wins even when its value is zero, since zero is meaningful for overlap,
// temperature and history limits.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := parseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

// defaultModel picks the provider's default model when the provider differs
// from the application default.
func defaultModel(models map[domain.AIProvider]string, provider domain.AIProvider, fallback string) string {
	if m, ok := models[provider]; ok {
		return m
	}
	return fallback
}

// parseDuration accepts Go durations and plain integers as seconds.
func parseDuration(str string) (time.Duration, error) {
	str = strings.TrimSpace(str)
	if n, err := strconv.Atoi(str); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(str)
}

func parseSetting(kind valueKind, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindBool:
		return strconv.ParseBool(value)
	case kindDuration:
		d, err := parseDuration(value)
		if err != nil {
			return nil, err
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

func checkEnum(key, value string) error {
	value = strings.TrimSpace(value)
	var ok bool
	switch key {
	case keyEmbedProvider:
		ok = slices.Contains(domain.AllEmbeddingProviders(), domain.AIProvider(value))
	case keyLLMProvider:
		ok = slices.Contains(domain.AllLLMProviders(), domain.AIProvider(value))
	case keyIndexBackend:
		ok = domain.IndexBackend(value).IsValid()
	case keyIndexMetric:
		ok = value == domain.MetricCosine.String()
	case keyPromptTruncation:
		ok = domain.TruncationStrategy(value).IsValid()
	default:
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %q is not a valid value for %s", domain.ErrInvalidInput, value, key)
	}
	return nil
}
