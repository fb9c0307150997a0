package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// noContext stands in for the context block when retrieval found nothing.
const noContext = "(no relevant passages were found in the reference)"

// PromptAssembler builds generation prompts from templates, retrieved
// evidence and conversation history.
type PromptAssembler struct {
	prompts driven.PromptStore
	cfg     domain.PromptSettings
}

// NewPromptAssembler creates a prompt assembler.
// A non-positive MaxChars disables the size limit.
func NewPromptAssembler(prompts driven.PromptStore, cfg domain.PromptSettings) *PromptAssembler {
	return &PromptAssembler{prompts: prompts, cfg: cfg}
}

// Assemble builds the retrieval-augmented prompt for question.
// History comes from session, which may be nil. When the prompt exceeds the
// size limit the configured truncation strategy applies; if the prompt
// still does not fit, domain.ErrPromptTooLarge is returned.
func (a *PromptAssembler) Assemble(
	result domain.RetrievalResult, question string, session *domain.ConversationSession,
) (domain.Prompt, error) {
	system, err := a.prompts.Load(driven.PromptSystem)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("load system prompt: %w", err)
	}
	template, err := a.prompts.Load(driven.PromptRAG)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("load rag prompt: %w", err)
	}
	if err := requirePlaceholders(driven.PromptRAG, template, "{context}", "{question}"); err != nil {
		return domain.Prompt{}, err
	}

	var history []domain.ConversationTurn
	if a.cfg.IncludeHistory && session != nil {
		history = session.History()
		if n := a.cfg.MaxHistoryTurns; n > 0 && len(history) > n {
			history = history[len(history)-n:]
		}
	}
	chunks := result.Chunks

	render := func() domain.Prompt {
		body := strings.NewReplacer(
			"{context}", formatContext(chunks),
			"{history}", formatHistory(history),
			"{question}", strings.TrimSpace(question),
		).Replace(template)
		return domain.Prompt{System: system, Body: body}
	}

	prompt := render()
	if a.fits(prompt) {
		return prompt, nil
	}
	original := prompt.Size()

	if a.cfg.Truncation == domain.TruncateHistoryThenContext {
		for len(history) > 0 && !a.fits(prompt) {
			history = history[1:]
			prompt = render()
		}
		// The top-ranked passage is always kept.
		for len(chunks) > 1 && !a.fits(prompt) {
			chunks = chunks[:len(chunks)-1]
			prompt = render()
		}
		if a.fits(prompt) {
			logger.Debug("Truncated prompt from %d to %d characters (%d history turns, %d passages kept)",
				original, prompt.Size(), len(history), len(chunks))
			return prompt, nil
		}
	}

	return domain.Prompt{}, fmt.Errorf("%w: %d characters exceeds limit of %d",
		domain.ErrPromptTooLarge, prompt.Size(), a.cfg.MaxChars)
}

// SymptomPrompt builds the stateless prompt for a symptom description.
func (a *PromptAssembler) SymptomPrompt(symptoms string) (domain.Prompt, error) {
	system, err := a.prompts.Load(driven.PromptSystem)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("load system prompt: %w", err)
	}
	template, err := a.prompts.Load(driven.PromptSymptoms)
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("load symptoms prompt: %w", err)
	}
	if err := requirePlaceholders(driven.PromptSymptoms, template, "{symptoms}"); err != nil {
		return domain.Prompt{}, err
	}

	prompt := domain.Prompt{
		System: system,
		Body:   strings.ReplaceAll(template, "{symptoms}", strings.TrimSpace(symptoms)),
	}
	if !a.fits(prompt) {
		return domain.Prompt{}, fmt.Errorf("%w: %d characters exceeds limit of %d",
			domain.ErrPromptTooLarge, prompt.Size(), a.cfg.MaxChars)
	}
	return prompt, nil
}

// requirePlaceholders rejects an edited template that would drop the
// question or its evidence from the prompt.
func requirePlaceholders(name, template string, placeholders ...string) error {
	for _, p := range placeholders {
		if !strings.Contains(template, p) {
			return fmt.Errorf("%w: %s prompt template is missing %s", domain.ErrInvalidInput, name, p)
		}
	}
	return nil
}

func (a *PromptAssembler) fits(p domain.Prompt) bool {
	return a.cfg.MaxChars <= 0 || p.Size() <= a.cfg.MaxChars
}

// formatContext labels passages "[n] (page p)" in rank order.
// Pages are shown 1-based.
func formatContext(chunks []domain.ScoredChunk) string {
	if len(chunks) == 0 {
		return noContext
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (page %d)\n%s", i+1, c.Chunk.SourcePage+1, strings.TrimSpace(c.Chunk.Text))
	}
	return b.String()
}

// formatHistory renders prior turns oldest first, ending with a blank line
// so the current question follows directly.
func formatHistory(turns []domain.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "User: %s\nDiagnoBot: %s\n", t.Question, t.Answer)
	}
	b.WriteString("\n")
	return b.String()
}
