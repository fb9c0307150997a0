// Package symptoms provides the one-shot symptom assessment view for the TUI.
package symptoms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// ErrNoAnswerService indicates that no answer service was provided.
var ErrNoAnswerService = errors.New("answer service is required")

// View asks for a symptom description and shows the assessment.
// Each assessment is independent of the ones before it.
type View struct {
	styles        *styles.Styles
	answerService driving.AnswerService
	ctx           context.Context

	input    *input.PromptInput
	viewport viewport.Model

	symptoms   string
	assessment string
	loading    bool
	err        error

	width  int
	height int
	ready  bool
}

// NewView creates a new symptom assessment view.
func NewView(s *styles.Styles, answerService driving.AnswerService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles:        s,
		answerService: answerService,
		ctx:           context.Background(),
		input:         input.NewPromptInput(s, "Symptoms:", "e.g. headache and fever for two days"),
		viewport:      viewport.New(80, 10),
		width:         80,
		height:        24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the symptom view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AssessmentReceived:
		v.loading = false
		// The text is a fallback when generation failed, so show it either way.
		v.assessment = msg.Text
		v.err = msg.Err
		v.refresh()
		return v, nil

	case messages.ErrorOccurred:
		v.loading = false
		v.err = msg.Err
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case "enter":
		return v, v.submit()
	case "pgup", "ctrl+u":
		v.viewport.PageUp()
		return v, nil
	case "pgdown", "ctrl+d":
		v.viewport.PageDown()
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit requests an assessment of the entered symptoms.
func (v *View) submit() tea.Cmd {
	symptoms := strings.TrimSpace(v.input.Value())
	if symptoms == "" || v.loading {
		return nil
	}

	v.symptoms = symptoms
	v.assessment = ""
	v.err = nil
	v.loading = true
	v.refresh()
	return v.assess(symptoms)
}

// assess returns a command that produces the assessment.
func (v *View) assess(symptoms string) tea.Cmd {
	return func() tea.Msg {
		if v.answerService == nil {
			return messages.ErrorOccurred{Err: ErrNoAnswerService}
		}
		text, err := v.answerService.AnswerOnce(v.ctx, symptoms)
		return messages.AssessmentReceived{Symptoms: symptoms, Text: text, Err: err}
	}
}

func (v *View) refresh() {
	width := v.width - 4
	if width < 20 {
		width = 20
	}
	v.viewport.SetContent(lipgloss.NewStyle().Width(width).Render(v.assessment))
	v.viewport.GotoTop()
}

// View renders the symptom view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Symptom Check"))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Describe your symptoms for a preliminary assessment."))
	b.WriteString("\n\n")
	b.WriteString(v.input.View())
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("Assessing %q...", v.symptoms)))
		b.WriteString("\n")
	case v.assessment != "":
		b.WriteString(v.viewport.View())
		b.WriteString("\n")
	}

	if v.err != nil {
		b.WriteString("\n")
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[enter] assess  [PgUp/PgDn] scroll  [esc] back"))

	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	// Reserve lines for title, input, error and help
	viewportHeight := height - 10
	if viewportHeight < 3 {
		viewportHeight = 3
	}
	v.input.SetWidth(width)
	v.viewport.Width = width
	v.viewport.Height = viewportHeight
	v.refresh()
}

// Reset clears the input and the last assessment.
func (v *View) Reset() {
	v.input.Reset()
	v.input.Focus()
	v.symptoms = ""
	v.assessment = ""
	v.loading = false
	v.err = nil
	v.refresh()
}

// SetInput sets the input text.
func (v *View) SetInput(text string) {
	v.input.SetValue(text)
}

// Symptoms returns the symptoms of the last request.
func (v *View) Symptoms() string {
	return v.symptoms
}

// Assessment returns the last assessment text.
func (v *View) Assessment() string {
	return v.assessment
}

// Loading returns whether an assessment is in progress.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}
