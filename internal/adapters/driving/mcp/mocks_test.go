package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// mockAnswerService is a mock implementation of driving.AnswerService.
// AnswerInSession appends a turn echoing the question unless err is set.
type mockAnswerService struct {
	mu        sync.Mutex
	onceText  string
	onceErr   error
	err       error
	sources   []domain.ScoredChunk
	nextID    int
	questions []string
}

func (m *mockAnswerService) AnswerOnce(_ context.Context, _ string) (string, error) {
	return m.onceText, m.onceErr
}

func (m *mockAnswerService) AnswerInSession(
	_ context.Context,
	session *domain.ConversationSession,
	query string,
) (*domain.SessionReply, error) {
	m.mu.Lock()
	m.questions = append(m.questions, query)
	m.mu.Unlock()

	if domain.IsExitCommand(query) {
		return &domain.SessionReply{Answer: domain.FarewellMessage, Farewell: true}, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	turn := session.Append(query, "answer to "+query)
	return &domain.SessionReply{Answer: turn.Answer, Sources: m.sources, Turn: &turn}, nil
}

func (m *mockAnswerService) NewSession() *domain.ConversationSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return domain.NewConversationSession(fmt.Sprintf("session-%d", m.nextID))
}

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	result domain.RetrievalResult
	err    error
	k      int
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ string, k int) (domain.RetrievalResult, error) {
	m.k = k
	return m.result, m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	status *domain.IndexStatus
	err    error
}

func (m *mockIndexService) EnsureIndex(_ context.Context) (driven.VectorIndex, error) {
	return nil, m.err
}

func (m *mockIndexService) Rebuild(_ context.Context) (driven.VectorIndex, error) {
	return nil, m.err
}

func (m *mockIndexService) Status(_ context.Context) (*domain.IndexStatus, error) {
	return m.status, m.err
}

// Ensure mocks implement interfaces
var (
	_ driving.AnswerService    = (*mockAnswerService)(nil)
	_ driving.RetrievalService = (*mockRetrievalService)(nil)
	_ driving.IndexService     = (*mockIndexService)(nil)
)
