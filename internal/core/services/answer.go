package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// User-facing texts of the stateless path.
const (
	// EmptySymptomsMessage answers a blank symptom description.
	EmptySymptomsMessage = "Please describe your symptoms to receive a preliminary assessment."

	// FallbackMessage is shown when no assessment could be generated.
	FallbackMessage = "DiagnoBot could not prepare an assessment right now. Please try again in a moment. " +
		"⚠️ If your symptoms are severe or getting worse, contact a healthcare professional or emergency services."

	assessmentHeading = "## Preliminary Assessment"
	assessmentFooter  = "*Remember: This is preliminary information only. " +
		"Always consult with a healthcare professional for proper diagnosis and treatment.*"
)

// AnswerConfig holds per-path generation settings.
type AnswerConfig struct {
	// TopK is the number of chunks retrieved per question.
	TopK int

	// RAGOptions control retrieval-augmented answers.
	RAGOptions domain.GenerationOptions

	// SymptomOptions control stateless symptom answers.
	SymptomOptions domain.GenerationOptions
}

// DefaultAnswerConfig returns the default answer configuration.
func DefaultAnswerConfig() AnswerConfig {
	return AnswerConfig{
		TopK:           DefaultTopK,
		RAGOptions:     domain.DefaultRAGOptions(),
		SymptomOptions: domain.DefaultSymptomOptions(),
	}
}

// AnswerService answers medical questions on the stateless and the
// retrieval-augmented path.
type AnswerService struct {
	indexes   driving.IndexService
	retriever *Retriever
	assembler *PromptAssembler
	generator *GenerationClient
	cfg       AnswerConfig
	newID     func() string
}

// NewAnswerService creates a new answer service.
// indexes and retriever may be nil when only AnswerOnce is used.
func NewAnswerService(
	indexes driving.IndexService,
	retriever *Retriever,
	assembler *PromptAssembler,
	generator *GenerationClient,
	cfg AnswerConfig,
) *AnswerService {
	if cfg.TopK < 1 {
		cfg.TopK = DefaultTopK
	}
	return &AnswerService{
		indexes:   indexes,
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

// NewSession starts an empty conversation.
func (s *AnswerService) NewSession() *domain.ConversationSession {
	return domain.NewConversationSession(s.newID())
}

// AnswerOnce answers a symptom description without retrieval or history.
// The returned text is always presentable. When generation fails it is
// FallbackMessage and err carries the cause.
func (s *AnswerService) AnswerOnce(ctx context.Context, symptoms string) (string, error) {
	if strings.TrimSpace(symptoms) == "" {
		return EmptySymptomsMessage, nil
	}

	logger.Section("Symptom Assessment")

	prompt, err := s.assembler.SymptomPrompt(symptoms)
	if err != nil {
		return FallbackMessage, fmt.Errorf("assemble prompt: %w", err)
	}

	answer, err := s.generator.Generate(ctx, prompt, s.cfg.SymptomOptions)
	if err != nil {
		logger.Warn("Symptom assessment failed: %v", err)
		return FallbackMessage, fmt.Errorf("generate assessment: %w", err)
	}

	return FormatAssessment(answer), nil
}

// AnswerInSession answers query from retrieved evidence and the session's
// history. On success exactly one turn is appended; on any failure the
// session is left unchanged. The exit command returns the farewell without
// retrieval, generation or a new turn.
func (s *AnswerService) AnswerInSession(
	ctx context.Context, session *domain.ConversationSession, query string,
) (*domain.SessionReply, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: session is required", domain.ErrInvalidInput)
	}
	if domain.IsExitCommand(query) {
		logger.Debug("Session %s: exit", session.ID)
		return &domain.SessionReply{Answer: domain.FarewellMessage, Farewell: true}, nil
	}
	question := strings.TrimSpace(query)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	if s.indexes == nil || s.retriever == nil {
		return nil, fmt.Errorf("%w: retrieval is not configured", domain.ErrInvalidInput)
	}

	logger.Section("Answer")
	logger.Debug("Session %s turn %d: %q", session.ID, session.Len()+1, question)

	index, err := s.indexes.EnsureIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	result, err := s.retriever.Retrieve(ctx, index, question, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	prompt, err := s.assembler.Assemble(result, question, session)
	if err != nil {
		return nil, fmt.Errorf("assemble prompt: %w", err)
	}

	answer, err := s.generator.Generate(ctx, prompt, s.cfg.RAGOptions)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	// A cancellation that raced the completion still leaves the session untouched.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	turn := session.Append(question, answer)
	logger.Info("Answered turn %d with %d sources", turn.SequenceNumber, result.Len())

	return &domain.SessionReply{
		Answer:  answer,
		Sources: result.Chunks,
		Turn:    &turn,
	}, nil
}

// FormatAssessment frames a stateless answer with its heading and the
// consult-a-professional footer.
func FormatAssessment(answer string) string {
	return assessmentHeading + "\n\n" + strings.TrimSpace(answer) + "\n\n---\n\n" + assessmentFooter
}
