package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// mockAnswerService implements driving.AnswerService for CLI tests.
type mockAnswerService struct {
	mu sync.Mutex

	onceText  string
	onceErrs  []error
	onceCalls int
	symptoms  string

	sessionErrs []error
	sources     []domain.ScoredChunk
	questions   []string
}

func (m *mockAnswerService) AnswerOnce(_ context.Context, symptoms string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onceCalls++
	m.symptoms = symptoms
	return m.onceText, popErr(&m.onceErrs)
}

func (m *mockAnswerService) AnswerInSession(
	_ context.Context,
	session *domain.ConversationSession,
	query string,
) (*domain.SessionReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, query)

	if domain.IsExitCommand(query) {
		return &domain.SessionReply{Answer: domain.FarewellMessage, Farewell: true}, nil
	}
	if err := popErr(&m.sessionErrs); err != nil {
		return nil, err
	}
	turn := session.Append(query, "answer to "+query)
	return &domain.SessionReply{Answer: turn.Answer, Sources: m.sources, Turn: &turn}, nil
}

func (m *mockAnswerService) NewSession() *domain.ConversationSession {
	return domain.NewConversationSession("cli-session")
}

// popErr returns and removes the first queued error.
func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// mockRetrievalService implements driving.RetrievalService for CLI tests.
type mockRetrievalService struct {
	result domain.RetrievalResult
	err    error
	query  string
	k      int
}

func (m *mockRetrievalService) Retrieve(_ context.Context, query string, k int) (domain.RetrievalResult, error) {
	m.query = query
	m.k = k
	return m.result, m.err
}

// mockIndexService implements driving.IndexService for CLI tests.
type mockIndexService struct {
	mu           sync.Mutex
	index        driven.VectorIndex
	ensureErrs   []error
	rebuildErr   error
	status       *domain.IndexStatus
	ensureCalls  int
	rebuildCalls int
}

func (m *mockIndexService) EnsureIndex(_ context.Context) (driven.VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
	if err := popErr(&m.ensureErrs); err != nil {
		return nil, err
	}
	return m.index, nil
}

func (m *mockIndexService) Rebuild(_ context.Context) (driven.VectorIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuildCalls++
	if m.rebuildErr != nil {
		return nil, m.rebuildErr
	}
	return m.index, nil
}

func (m *mockIndexService) Status(_ context.Context) (*domain.IndexStatus, error) {
	return m.status, nil
}

func (m *mockIndexService) rebuilds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuildCalls
}

// mockVectorIndex implements driven.VectorIndex for CLI tests.
type mockVectorIndex struct {
	meta domain.IndexMetadata
}

func (m *mockVectorIndex) Metadata() domain.IndexMetadata { return m.meta }

func (m *mockVectorIndex) Query(_ context.Context, _ domain.EmbeddingVector, _ int) (domain.RetrievalResult, error) {
	return domain.RetrievalResult{}, nil
}

func (m *mockVectorIndex) Snapshot() *domain.IndexSnapshot { return nil }

func (m *mockVectorIndex) Len() int { return m.meta.ChunkCount }

// mockSettingsService implements driving.SettingsService for CLI tests.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	set         map[string]string
	embedding   []string
	llm         []string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), set: map[string]string{}}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if key == "unknown.key" {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	m.set[key] = value
	if key == "source.path" {
		m.settings.Source.Path = value
	}
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.embedding = []string{string(provider), model, apiKey}
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.llm = []string{string(provider), model, apiKey}
	return nil
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return nil }

func (m *mockSettingsService) ValidateLLMConfig() error { return nil }

var (
	_ driving.AnswerService    = (*mockAnswerService)(nil)
	_ driving.RetrievalService = (*mockRetrievalService)(nil)
	_ driving.IndexService     = (*mockIndexService)(nil)
	_ driving.SettingsService  = (*mockSettingsService)(nil)
	_ driven.VectorIndex       = (*mockVectorIndex)(nil)
)

// setupTestServices installs s, removes retry delays and resets flags.
// The returned function restores the previous state.
func setupTestServices(s Services) func() {
	SetServices(s)

	origPolicy := retryPolicy
	retryPolicy = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}
	origInterval := watchInterval
	watchInterval = 10 * time.Millisecond

	retrieveLimit = 0
	retrieveJSON = false
	indexForce = false
	indexStatusJSON = false
	chatShowSources = true

	return func() {
		SetServices(Services{})
		retryPolicy = origPolicy
		watchInterval = origInterval
	}
}

// execute runs the root command with args and input, returning its output.
func execute(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func testIndex() *mockVectorIndex {
	return &mockVectorIndex{meta: domain.IndexMetadata{
		DocumentID: "gale-medicine",
		Model:      domain.NewModelIdentity(domain.AIProviderOllama, "all-minilm"),
		Dimensions: 384,
		Metric:     domain.MetricCosine,
		ChunkCount: 42,
		ChunkSize:  500,
		BuiltAt:    time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}}
}

func TestRootCmd_Help(t *testing.T) {
	defer setupTestServices(Services{})()

	out, err := execute(t, "", "--help")
	defer func() { _ = rootCmd.Flags().Set("help", "false") }()

	require.NoError(t, err)
	assert.Contains(t, out, "DiagnoBot answers medical questions")
	for _, name := range []string{"ask", "chat", "retrieve", "index", "settings", "tui", "mcp", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestSetVersion(t *testing.T) {
	orig := version
	defer func() { version = orig }()

	SetVersion("")
	assert.Equal(t, orig, version)

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

func TestEnvVerbose(t *testing.T) {
	t.Setenv("DIAGNOBOT_VERBOSE", "true")
	assert.True(t, envVerbose())

	t.Setenv("DIAGNOBOT_VERBOSE", "nope")
	assert.False(t, envVerbose())
}

func TestRetryTransient_RetriesTransientErrors(t *testing.T) {
	defer setupTestServices(Services{})()

	calls := 0
	err := retryTransient(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return domain.ErrGenerationTimeout
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryTransient_StopsOnPermanentError(t *testing.T) {
	defer setupTestServices(Services{})()

	calls := 0
	err := retryTransient(context.Background(), "test", func() error {
		calls++
		return domain.ErrPromptTooLarge
	})

	assert.ErrorIs(t, err, domain.ErrPromptTooLarge)
	assert.Equal(t, 1, calls)
}

func TestRetryTransient_GivesUp(t *testing.T) {
	defer setupTestServices(Services{})()

	calls := 0
	err := retryTransient(context.Background(), "test", func() error {
		calls++
		return domain.ErrEmbeddingService
	})

	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.Equal(t, 3, calls)
}

func TestCommands_ServiceNotConfigured(t *testing.T) {
	defer setupTestServices(Services{})()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"ask", "fever"}, "answer service not configured"},
		{[]string{"chat"}, "answer service not configured"},
		{[]string{"retrieve", "fever"}, "retrieval service not configured"},
		{[]string{"index", "build"}, "index service not configured"},
		{[]string{"index", "status"}, "index service not configured"},
		{[]string{"settings", "show"}, "settings service not configured"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
