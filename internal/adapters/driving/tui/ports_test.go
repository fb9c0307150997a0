package tui

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// MockAnswerService implements driving.AnswerService for testing.
type MockAnswerService struct {
	OnceText string
	OnceErr  error
	sessions int
}

func (m *MockAnswerService) AnswerOnce(_ context.Context, _ string) (string, error) {
	return m.OnceText, m.OnceErr
}

func (m *MockAnswerService) AnswerInSession(
	_ context.Context,
	session *domain.ConversationSession,
	query string,
) (*domain.SessionReply, error) {
	if domain.IsExitCommand(query) {
		return &domain.SessionReply{Answer: domain.FarewellMessage, Farewell: true}, nil
	}
	turn := session.Append(query, "answer to "+query)
	return &domain.SessionReply{Answer: turn.Answer, Turn: &turn}, nil
}

func (m *MockAnswerService) NewSession() *domain.ConversationSession {
	m.sessions++
	return domain.NewConversationSession(fmt.Sprintf("session-%d", m.sessions))
}

// MockIndexService implements driving.IndexService for testing.
type MockIndexService struct {
	StatusResult *domain.IndexStatus
	Err          error
}

func (m *MockIndexService) EnsureIndex(_ context.Context) (driven.VectorIndex, error) {
	return nil, m.Err
}

func (m *MockIndexService) Rebuild(_ context.Context) (driven.VectorIndex, error) {
	return nil, m.Err
}

func (m *MockIndexService) Status(_ context.Context) (*domain.IndexStatus, error) {
	return m.StatusResult, m.Err
}

var (
	_ driving.AnswerService = (*MockAnswerService)(nil)
	_ driving.IndexService  = (*MockIndexService)(nil)
)

func TestNewPorts(t *testing.T) {
	answer := &MockAnswerService{}
	index := &MockIndexService{}

	ports := NewPorts(answer, index, nil)

	require.NotNil(t, ports)
	assert.Equal(t, answer, ports.Answer)
	assert.Equal(t, index, ports.Index)
	assert.Nil(t, ports.Settings)
}

func TestPorts_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ports   *Ports
		wantErr error
	}{
		{
			name:  "answer only",
			ports: &Ports{Answer: &MockAnswerService{}},
		},
		{
			name:  "all services",
			ports: &Ports{Answer: &MockAnswerService{}, Index: &MockIndexService{}},
		},
		{
			name:    "missing answer service",
			ports:   &Ports{Index: &MockIndexService{}},
			wantErr: ErrMissingAnswerService,
		},
		{
			name:    "nil ports",
			ports:   nil,
			wantErr: ErrMissingAnswerService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ports.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
