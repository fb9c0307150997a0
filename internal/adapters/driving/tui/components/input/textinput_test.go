package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/styles"
)

func TestNewPromptInput(t *testing.T) {
	in := NewPromptInput(styles.DefaultStyles(), "You:", "Ask a question...")

	require.NotNil(t, in)
	assert.True(t, in.Focused())
	assert.Equal(t, "", in.Value())
	assert.Equal(t, 50, in.Width())
}

func TestNewPromptInput_NilStyles(t *testing.T) {
	in := NewPromptInput(nil, "You:", "")

	require.NotNil(t, in)
	assert.NotNil(t, in.styles)
}

func TestPromptInput_Init(t *testing.T) {
	in := NewPromptInput(nil, "You:", "")

	assert.NotNil(t, in.Init())
}

func TestPromptInput_TypingUpdatesValue(t *testing.T) {
	in := NewPromptInput(nil, "You:", "")

	in, _ = in.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("fever")})

	assert.Equal(t, "fever", in.Value())
}

func TestPromptInput_SetValueAndReset(t *testing.T) {
	in := NewPromptInput(nil, "You:", "")

	in.SetValue("chest pain")
	assert.Equal(t, "chest pain", in.Value())

	in.Reset()
	assert.Equal(t, "", in.Value())
}

func TestPromptInput_FocusAndBlur(t *testing.T) {
	in := NewPromptInput(nil, "You:", "")

	in.Blur()
	assert.False(t, in.Focused())

	in.Focus()
	assert.True(t, in.Focused())
}

func TestPromptInput_SetWidth(t *testing.T) {
	in := NewPromptInput(nil, "You:", "")

	in.SetWidth(100)
	assert.Equal(t, 100, in.Width())
	assert.Equal(t, 88, in.textinput.Width)

	// Never narrower than the minimum.
	in.SetWidth(10)
	assert.Equal(t, 20, in.textinput.Width)
}

func TestPromptInput_View(t *testing.T) {
	in := NewPromptInput(nil, "Symptoms:", "")
	in.SetValue("rash")

	view := in.View()

	assert.Contains(t, view, "Symptoms:")
	assert.Contains(t, view, "rash")
}
