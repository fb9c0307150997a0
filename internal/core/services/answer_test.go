package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

type answerFixture struct {
	svc     *AnswerService
	index   *indexFixture
	llm     *mockGenerationService
	prompts *mockPromptStore
}

func newAnswerFixture(t *testing.T) *answerFixture {
	t.Helper()
	f := &answerFixture{
		index:   newIndexFixture(t, nil, IndexConfig{}),
		llm:     &mockGenerationService{answer: "Antibiotics help with bacterial infection."},
		prompts: newMockPromptStore(),
	}
	cfg := DefaultAnswerConfig()
	cfg.TopK = 1
	f.svc = NewAnswerService(
		f.index.svc,
		NewRetriever(f.index.embedder),
		NewPromptAssembler(f.prompts, promptSettings()),
		NewGenerationClient(f.llm),
		cfg,
	)
	f.svc.newID = func() string { return "session-1" }
	return f
}

func TestAnswerService_NewSession(t *testing.T) {
	f := newAnswerFixture(t)

	session := f.svc.NewSession()
	assert.Equal(t, "session-1", session.ID)
	assert.Zero(t, session.Len())
}

func TestAnswerService_AnswerOnce(t *testing.T) {
	f := newAnswerFixture(t)
	f.llm.answer = "Stay hydrated."

	text, err := f.svc.AnswerOnce(context.Background(), "headache and fever")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "## Preliminary Assessment\n\nStay hydrated.\n\n---\n\n"))
	assert.Contains(t, text, "consult with a healthcare professional")
	assert.Equal(t, "Symptoms: headache and fever", f.llm.lastPrompt().Body)
	assert.Equal(t, domain.DefaultSymptomOptions(), f.llm.opts[0])

	// The stateless path never touches the index.
	assert.Zero(t, f.index.source.openCount())
	assert.Zero(t, f.index.embedder.queryCount())
}

func TestAnswerService_AnswerOnce_EmptyInput(t *testing.T) {
	f := newAnswerFixture(t)

	for _, input := range []string{"", "   ", "\n\t"} {
		text, err := f.svc.AnswerOnce(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, EmptySymptomsMessage, text)
	}
	assert.Zero(t, f.llm.calls())
}

func TestAnswerService_AnswerOnce_Fallback(t *testing.T) {
	f := newAnswerFixture(t)
	f.llm.err = errors.New("rate limited")

	text, err := f.svc.AnswerOnce(context.Background(), "chest pain")
	require.Error(t, err)

	assert.Equal(t, FallbackMessage, text)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.Contains(t, text, "⚠️")
}

func TestAnswerService_AnswerInSession(t *testing.T) {
	f := newAnswerFixture(t)
	session := f.svc.NewSession()

	reply, err := f.svc.AnswerInSession(context.Background(), session, "What helps with infection?")
	require.NoError(t, err)

	assert.Equal(t, "Antibiotics help with bacterial infection.", reply.Answer)
	assert.False(t, reply.Farewell)
	require.Len(t, reply.Sources, 1)
	assert.Equal(t, "doc:0:0", reply.Sources[0].Chunk.ID)
	require.NotNil(t, reply.Turn)
	assert.Equal(t, 1, reply.Turn.SequenceNumber)

	require.Equal(t, 1, session.Len())
	turn := session.History()[0]
	assert.Equal(t, "What helps with infection?", turn.Question)
	assert.Equal(t, reply.Answer, turn.Answer)

	body := f.llm.lastPrompt().Body
	assert.Contains(t, body, "[1] (page 1)")
	assert.Contains(t, body, "User: What helps with infection?")
	assert.Equal(t, domain.DefaultRAGOptions(), f.llm.opts[0])
}

func TestAnswerService_AnswerInSession_CarriesHistory(t *testing.T) {
	f := newAnswerFixture(t)
	session := f.svc.NewSession()

	_, err := f.svc.AnswerInSession(context.Background(), session, "What helps with infection?")
	require.NoError(t, err)

	f.llm.answer = "Usually a week."
	reply, err := f.svc.AnswerInSession(context.Background(), session, "How long does recovery take?")
	require.NoError(t, err)

	assert.Equal(t, 2, reply.Turn.SequenceNumber)
	assert.Contains(t, f.llm.lastPrompt().Body,
		"User: What helps with infection?\nDiagnoBot: Antibiotics help with bacterial infection.")
	assert.Equal(t, 2, session.Len())
}

func TestAnswerService_AnswerInSession_Exit(t *testing.T) {
	f := newAnswerFixture(t)
	session := f.svc.NewSession()

	for _, input := range []string{"exit", "EXIT", "  Exit  "} {
		reply, err := f.svc.AnswerInSession(context.Background(), session, input)
		require.NoError(t, err)
		assert.True(t, reply.Farewell)
		assert.Equal(t, domain.FarewellMessage, reply.Answer)
		assert.Nil(t, reply.Turn)
	}

	assert.Zero(t, session.Len())
	assert.Zero(t, f.llm.calls())
	assert.Zero(t, f.index.source.openCount())
}

func TestAnswerService_AnswerInSession_FailureLeavesSessionUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *answerFixture)
		wantErr error
	}{
		{
			name:    "generation unavailable",
			setup:   func(f *answerFixture) { f.llm.err = errors.New("connection reset") },
			wantErr: domain.ErrGenerationUnavailable,
		},
		{
			name:    "embedding failure",
			setup:   func(f *answerFixture) { f.index.embedder.err = errors.New("timeout") },
			wantErr: domain.ErrEmbeddingService,
		},
		{
			name:    "build in progress",
			setup:   func(f *answerFixture) { f.index.lock.held = true },
			wantErr: domain.ErrBuildInProgress,
		},
		{
			name: "prompt too large",
			setup: func(f *answerFixture) {
				f.prompts.templates["rag"] = strings.Repeat("x", 20000) + "{context}{question}"
			},
			wantErr: domain.ErrPromptTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnswerFixture(t)
			session := f.svc.NewSession()
			session.Append("earlier", "answer")
			tt.setup(f)

			reply, err := f.svc.AnswerInSession(context.Background(), session, "What helps with infection?")
			require.Error(t, err)
			assert.Nil(t, reply)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, session.Len())
		})
	}
}

func TestAnswerService_AnswerInSession_Cancelled(t *testing.T) {
	f := newAnswerFixture(t)
	session := f.svc.NewSession()
	_, err := f.svc.AnswerInSession(context.Background(), session, "What helps with infection?")
	require.NoError(t, err)

	f.llm.block = true
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err = f.svc.AnswerInSession(ctx, session, "And for fever?")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, session.Len())
}

func TestAnswerService_AnswerInSession_InvalidInput(t *testing.T) {
	f := newAnswerFixture(t)

	_, err := f.svc.AnswerInSession(context.Background(), nil, "fever")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	session := f.svc.NewSession()
	_, err = f.svc.AnswerInSession(context.Background(), session, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, session.Len())
}

func TestAnswerService_AnswerInSession_WithoutRetrieval(t *testing.T) {
	svc := NewAnswerService(nil, nil,
		NewPromptAssembler(newMockPromptStore(), promptSettings()),
		NewGenerationClient(&mockGenerationService{answer: "ok"}),
		DefaultAnswerConfig())

	_, err := svc.AnswerInSession(context.Background(), svc.NewSession(), "fever")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFormatAssessment(t *testing.T) {
	text := FormatAssessment("\nSee a doctor.\n")
	assert.Equal(t, "## Preliminary Assessment\n\nSee a doctor.\n\n---\n\n"+assessmentFooter, text)
}
