package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/diagnobot/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService wraps the hashing embedder and records calls.
type mockEmbeddingService struct {
	mu       sync.Mutex
	inner    *hashing.EmbeddingService
	identity domain.ModelIdentity
	batches  [][]string
	queries  []string
	err      error
	short    bool // return one embedding fewer than requested
}

func newMockEmbeddingService() *mockEmbeddingService {
	inner := hashing.NewEmbeddingService(hashing.Config{})
	return &mockEmbeddingService{inner: inner, identity: inner.Identity()}
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.Embed(ctx, text)
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	err, short := m.err, m.short
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out, err := m.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int                { return m.inner.Dimensions() }
func (m *mockEmbeddingService) Identity() domain.ModelIdentity { return m.identity }
func (m *mockEmbeddingService) Ping(_ context.Context) error   { return nil }
func (m *mockEmbeddingService) Close() error                   { return nil }

func (m *mockEmbeddingService) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

func (m *mockEmbeddingService) batchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// mockGenerationService records prompts and returns a canned answer.
type mockGenerationService struct {
	mu      sync.Mutex
	answer  string
	err     error
	block   bool // wait for ctx to end
	prompts []domain.Prompt
	opts    []domain.GenerationOptions
}

func (m *mockGenerationService) Complete(
	ctx context.Context, prompt domain.Prompt, opts domain.GenerationOptions,
) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	answer, err, block := m.answer, m.err, m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (m *mockGenerationService) ModelName() string            { return "mock" }
func (m *mockGenerationService) Ping(_ context.Context) error { return nil }
func (m *mockGenerationService) Close() error                 { return nil }

func (m *mockGenerationService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockGenerationService) lastPrompt() domain.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return domain.Prompt{}
	}
	return m.prompts[len(m.prompts)-1]
}

// mockDocumentSource serves fixed plain text.
type mockDocumentSource struct {
	mu      sync.Mutex
	content string
	err     error
	opens   int
}

func (m *mockDocumentSource) Open(_ context.Context, location string) (*domain.RawDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.err != nil {
		return nil, m.err
	}
	return &domain.RawDocument{
		URI:        location,
		MIMEType:   "text/plain",
		Content:    []byte(m.content),
		DocumentID: "doc",
	}, nil
}

func (m *mockDocumentSource) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

func (m *mockDocumentSource) setContent(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
}

// mockBuildLock is an in-process lock that can be held externally.
type mockBuildLock struct {
	mu        sync.Mutex
	held      bool
	acquires  int
	onAcquire func()
}

func (m *mockBuildLock) Acquire(ctx context.Context) (func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return nil, domain.ErrBuildInProgress
	}
	m.held = true
	m.acquires++
	if m.onAcquire != nil {
		m.onAcquire()
	}
	return func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.held = false
		return nil
	}, nil
}

// mockPromptStore serves templates from a map.
type mockPromptStore struct {
	templates map[string]string
}

func newMockPromptStore() *mockPromptStore {
	return &mockPromptStore{templates: map[string]string{
		driven.PromptSystem:   "You are DiagnoBot.",
		driven.PromptRAG:      "Context:\n{context}\n\n{history}User: {question}\nDiagnoBot:",
		driven.PromptSymptoms: "Symptoms: {symptoms}",
	}}
}

func (m *mockPromptStore) Load(name string) (string, error) {
	t, ok := m.templates[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return t, nil
}

func (m *mockPromptStore) Reload() {}

// mockAIConfigValidator records what was validated.
type mockAIConfigValidator struct {
	embeddingErr  error
	generationErr error
	embedding     *domain.EmbeddingSettings
	generation    *domain.LLMSettings
}

func (m *mockAIConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	m.embedding = settings
	return m.embeddingErr
}

func (m *mockAIConfigValidator) ValidateGeneration(settings *domain.LLMSettings) error {
	m.generation = settings
	return m.generationErr
}

// Ensure mocks implement interfaces
var (
	_ driven.EmbeddingService  = (*mockEmbeddingService)(nil)
	_ driven.GenerationService = (*mockGenerationService)(nil)
	_ driven.DocumentSource    = (*mockDocumentSource)(nil)
	_ driven.BuildLock         = (*mockBuildLock)(nil)
	_ driven.PromptStore       = (*mockPromptStore)(nil)
	_ driven.AIConfigValidator = (*mockAIConfigValidator)(nil)
)
