package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGroq is the Groq cloud API (OpenAI-compatible).
	AIProviderGroq AIProvider = "groq"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderHashing is the offline feature-hashing embedder.
	AIProviderHashing AIProvider = "hashing"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGroq, AIProviderAnthropic, AIProviderHashing:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderGroq || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs on the local machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGroq:
		return "Groq (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderHashing:
		return "Feature hashing (offline)"
	default:
		return unknownDescription
	}
}

// IndexBackend identifies where the vector index is persisted.
type IndexBackend string

// Available index backends.
const (
	// IndexBackendSQLite persists the index to a local SQLite file.
	IndexBackendSQLite IndexBackend = "sqlite"

	// IndexBackendQdrant persists the index to a Qdrant collection alias.
	IndexBackendQdrant IndexBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	return b == IndexBackendSQLite || b == IndexBackendQdrant
}

// TruncationStrategy decides what the prompt assembler drops when a prompt
// exceeds its size limit.
type TruncationStrategy string

// Available truncation strategies.
const (
	// TruncateNone fails with ErrPromptTooLarge.
	TruncateNone TruncationStrategy = "none"

	// TruncateHistoryThenContext drops the oldest history turns first, then
	// the lowest-ranked chunks, until the prompt fits.
	TruncateHistoryThenContext TruncationStrategy = "drop_history_then_context"
)

// IsValid returns true if the strategy is recognised.
func (t TruncationStrategy) IsValid() bool {
	return t == TruncateNone || t == TruncateHistoryThenContext
}

// SourceSettings locates the reference document.
type SourceSettings struct {
	// Path is the reference document location.
	Path string

	// DocumentID overrides the document identity derived from the file name.
	DocumentID string
}

// ChunkingSettings holds chunker parameters.
type ChunkingSettings struct {
	// Size is the maximum number of characters per chunk.
	Size int

	// Overlap is the number of characters shared by consecutive chunks.
	Overlap int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// BatchSize is the number of texts per embedding request during builds.
	BatchSize int

	// RequestsPerSecond paces embedding requests during builds. Zero disables pacing.
	RequestsPerSecond float64

	// Timeout bounds each embedding request.
	Timeout time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic || e.Provider == AIProviderGroq {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// Identity returns the model identity the configured provider produces.
func (e EmbeddingSettings) Identity() ModelIdentity {
	return NewModelIdentity(e.Provider, e.Model)
}

// LLMSettings holds generation provider configuration.
type LLMSettings struct {
	// Provider is the generation service provider.
	Provider AIProvider

	// Model is the language model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI/Groq/Anthropic).
	APIKey string

	// Options are the generation options for retrieval-augmented answers.
	Options GenerationOptions
}

// IsConfigured returns true if the generation provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderHashing {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// IndexSettings holds vector index persistence configuration.
type IndexSettings struct {
	// Backend selects the persistence adapter.
	Backend IndexBackend

	// Dir is the directory holding the SQLite index and the build lock.
	Dir string

	// LockStaleAfter is how old a build lock must be before it is reclaimed.
	LockStaleAfter time.Duration
}

// QdrantSettings holds Qdrant connection configuration.
type QdrantSettings struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// RetrievalSettings holds retriever configuration.
type RetrievalSettings struct {
	// TopK is the number of chunks retrieved per question.
	TopK int
}

// PromptSettings holds prompt assembly configuration.
type PromptSettings struct {
	// IncludeHistory adds prior turns before the current question.
	IncludeHistory bool

	// MaxHistoryTurns caps the number of prior turns included. Zero means all.
	MaxHistoryTurns int

	// MaxChars is the prompt size limit in characters.
	MaxChars int

	// Truncation selects what to drop when the limit is exceeded.
	Truncation TruncationStrategy
}

// AppSettings holds all application settings.
type AppSettings struct {
	Source    SourceSettings
	Chunking  ChunkingSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Index     IndexSettings
	Qdrant    QdrantSettings
	Retrieval RetrievalSettings
	Prompt    PromptSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Embeddings default to a local Ollama all-minilm model and generation to
// Groq, which still needs an API key before it is usable.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Source: SourceSettings{
			Path: "The_GALE_ENCYCLOPEDIA_of_MEDICINE_SECOND.pdf",
		},
		Chunking: ChunkingSettings{
			Size:    500,
			Overlap: 50,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModels()[AIProviderOllama],
			BatchSize: 64,
			Timeout:   60 * time.Second,
		},
		LLM: LLMSettings{
			Provider: AIProviderGroq,
			Model:    DefaultLLMModels()[AIProviderGroq],
			Options:  DefaultRAGOptions(),
		},
		Index: IndexSettings{
			Backend:        IndexBackendSQLite,
			LockStaleAfter: 30 * time.Minute,
		},
		Qdrant: QdrantSettings{
			Host:       "localhost",
			Port:       6334,
			Collection: "diagnobot",
		},
		Retrieval: RetrievalSettings{
			TopK: 4,
		},
		Prompt: PromptSettings{
			IncludeHistory:  true,
			MaxHistoryTurns: 10,
			MaxChars:        24000,
			Truncation:      TruncateNone,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderHashing,
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderGroq,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderOllama,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:  "all-minilm",
		AIProviderOpenAI:  "text-embedding-3-small",
		AIProviderHashing: "hashing-384",
	}
}

// DefaultLLMModels returns default models for each generation provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderGroq:      "llama-3.3-70b-versatile",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderOllama:    "llama3.2",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"all-minilm":        384,
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Offline
		"hashing-384": 384,
	}
}
