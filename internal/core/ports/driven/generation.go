package driven

import (
	"context"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

// GenerationService sends an assembled prompt to a language-model completion
// service.
//
// Implementations may include:
//   - OpenAI-compatible APIs (OpenAI, Groq)
//   - Anthropic (Claude)
//   - Ollama (local models)
//
// Implementations return either a complete answer or an error, never a
// partial answer, and do not retry.
type GenerationService interface {
	// Complete returns the generated answer for prompt.
	Complete(ctx context.Context, prompt domain.Prompt, opts domain.GenerationOptions) (string, error)

	// ModelName returns the name of the language model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a completion request.
type ChatMessage struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// PromptMessages splits a prompt into system and user messages.
// The system message is omitted when the prompt has none.
func PromptMessages(p domain.Prompt) []ChatMessage {
	messages := make([]ChatMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: p.System})
	}
	return append(messages, ChatMessage{Role: "user", Content: p.Body})
}

// AIConfigValidator checks provider settings against the live services.
type AIConfigValidator interface {
	// ValidateEmbedding pings the configured embedding provider.
	ValidateEmbedding(settings *domain.EmbeddingSettings) error

	// ValidateGeneration pings the configured generation provider.
	ValidateGeneration(settings *domain.LLMSettings) error
}
