package driving

import (
	"context"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

// AnswerService answers medical questions.
type AnswerService interface {
	// AnswerOnce answers a symptom description without retrieval or history.
	// The returned text is always presentable: when generation fails it is a
	// plain-language fallback and err describes the failure.
	AnswerOnce(ctx context.Context, symptoms string) (string, error)

	// AnswerInSession answers query using retrieved evidence and the
	// session's history. On success exactly one turn is appended to session;
	// on failure or cancellation the session is unchanged. The exit command
	// returns a farewell and appends nothing.
	AnswerInSession(ctx context.Context, session *domain.ConversationSession, query string) (*domain.SessionReply, error)

	// NewSession starts an empty conversation.
	NewSession() *domain.ConversationSession
}

// RetrievalService exposes retrieval on its own, without generation.
type RetrievalService interface {
	// Retrieve returns the k chunks most similar to query.
	Retrieve(ctx context.Context, query string, k int) (domain.RetrievalResult, error)
}
