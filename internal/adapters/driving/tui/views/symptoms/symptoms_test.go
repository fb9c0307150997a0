package symptoms

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// MockAnswerService implements driving.AnswerService for testing.
type MockAnswerService struct {
	Text     string
	Err      error
	Symptoms string
}

func (m *MockAnswerService) AnswerOnce(_ context.Context, symptoms string) (string, error) {
	m.Symptoms = symptoms
	return m.Text, m.Err
}

func (m *MockAnswerService) AnswerInSession(
	_ context.Context,
	_ *domain.ConversationSession,
	_ string,
) (*domain.SessionReply, error) {
	return nil, domain.ErrNotImplemented
}

func (m *MockAnswerService) NewSession() *domain.ConversationSession {
	return domain.NewConversationSession("test")
}

var _ driving.AnswerService = (*MockAnswerService)(nil)

func newReadyView(answer driving.AnswerService) *View {
	view := NewView(styles.DefaultStyles(), answer)
	view.SetDimensions(80, 24)
	return view
}

func TestNewView(t *testing.T) {
	view := NewView(nil, &MockAnswerService{})

	require.NotNil(t, view)
	assert.NotNil(t, view.styles)
	assert.False(t, view.Ready())
	assert.Equal(t, "Initialising...", view.View())
}

func TestView_Submit(t *testing.T) {
	answer := &MockAnswerService{Text: "Possible conditions: common cold."}
	view := newReadyView(answer)

	view.SetInput("  runny nose and sneezing ")
	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, view.Loading())
	assert.Contains(t, view.View(), "Assessing")

	view.Update(cmd())

	assert.False(t, view.Loading())
	assert.Equal(t, "runny nose and sneezing", answer.Symptoms)
	assert.Equal(t, "runny nose and sneezing", view.Symptoms())
	assert.Equal(t, "Possible conditions: common cold.", view.Assessment())
	assert.NoError(t, view.Err())
	assert.Contains(t, view.View(), "common cold")
}

func TestView_Submit_EmptyIgnored(t *testing.T) {
	view := newReadyView(&MockAnswerService{})

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, view.Loading())
}

func TestView_Submit_WhileLoadingIgnored(t *testing.T) {
	view := newReadyView(&MockAnswerService{})
	view.SetInput("cough")
	view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
}

func TestView_FallbackShownWithError(t *testing.T) {
	answer := &MockAnswerService{
		Text: "I'm unable to provide an assessment right now.",
		Err:  domain.ErrGenerationTimeout,
	}
	view := newReadyView(answer)
	view.SetInput("dizziness")
	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})

	view.Update(cmd())

	assert.Equal(t, answer.Text, view.Assessment())
	assert.ErrorIs(t, view.Err(), domain.ErrGenerationTimeout)
	out := view.View()
	assert.Contains(t, out, "unable to provide")
	assert.Contains(t, out, "Error:")
}

func TestView_NoAnswerService(t *testing.T) {
	view := newReadyView(nil)

	msg := view.assess("fever")()

	errMsg, ok := msg.(messages.ErrorOccurred)
	require.True(t, ok)
	assert.ErrorIs(t, errMsg.Err, ErrNoAnswerService)

	view.Update(errMsg)
	assert.False(t, view.Loading())
	assert.ErrorIs(t, view.Err(), ErrNoAnswerService)
}

func TestView_Esc(t *testing.T) {
	view := newReadyView(&MockAnswerService{})

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	changed, ok := cmd().(messages.ViewChanged)
	require.True(t, ok)
	assert.Equal(t, messages.ViewMenu, changed.View)
}

func TestView_Reset(t *testing.T) {
	view := newReadyView(&MockAnswerService{Text: "rest"})
	view.SetInput("fatigue")
	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	view.Update(cmd())

	view.Reset()

	assert.Empty(t, view.Symptoms())
	assert.Empty(t, view.Assessment())
	assert.NoError(t, view.Err())
}

func TestView_WindowSize(t *testing.T) {
	view := NewView(nil, &MockAnswerService{})

	view.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	assert.True(t, view.Ready())
	assert.Equal(t, 100, view.viewport.Width)
	assert.Equal(t, 20, view.viewport.Height)
}

func TestView_WindowSize_MinimumHeight(t *testing.T) {
	view := NewView(nil, &MockAnswerService{})

	view.SetDimensions(40, 5)

	assert.Equal(t, 3, view.viewport.Height)
}
