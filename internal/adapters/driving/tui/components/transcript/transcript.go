// Package transcript provides a scrollable conversation transcript for the TUI.
package transcript

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/styles"
)

// Speaker identifies who produced an entry.
type Speaker int

const (
	// SpeakerUser is the person asking.
	SpeakerUser Speaker = iota
	// SpeakerBot is DiagnoBot.
	SpeakerBot
	// SpeakerNotice is a system notice, such as an error.
	SpeakerNotice
)

// Entry is one rendered message.
type Entry struct {
	Speaker Speaker
	Text    string

	// Sources lists the 1-based pages a bot answer was drawn from.
	Sources []int
}

// Transcript renders entries in a viewport that follows the latest message.
type Transcript struct {
	styles   *styles.Styles
	viewport viewport.Model
	entries  []Entry
	width    int
	height   int
}

// New creates an empty transcript.
func New(s *styles.Styles) *Transcript {
	if s == nil {
		s = styles.DefaultStyles()
	}
	t := &Transcript{
		styles:   s,
		viewport: viewport.New(80, 10),
		width:    80,
		height:   10,
	}
	t.refresh()
	return t
}

// Update forwards scroll keys and mouse events to the viewport.
func (t *Transcript) Update(msg tea.Msg) (*Transcript, tea.Cmd) {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

// View renders the visible part of the transcript.
func (t *Transcript) View() string {
	return t.viewport.View()
}

// Append adds an entry and scrolls to it.
func (t *Transcript) Append(e Entry) {
	t.entries = append(t.entries, e)
	t.refresh()
	t.viewport.GotoBottom()
}

// Entries returns the entries, oldest first.
func (t *Transcript) Entries() []Entry {
	return t.entries
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Clear removes all entries.
func (t *Transcript) Clear() {
	t.entries = nil
	t.refresh()
}

// PageUp scrolls up one page.
func (t *Transcript) PageUp() {
	t.viewport.PageUp()
}

// PageDown scrolls down one page.
func (t *Transcript) PageDown() {
	t.viewport.PageDown()
}

// AtBottom reports whether the latest entry is visible.
func (t *Transcript) AtBottom() bool {
	return t.viewport.AtBottom()
}

// SetDimensions resizes the transcript.
func (t *Transcript) SetDimensions(width, height int) {
	if height < 1 {
		height = 1
	}
	t.width = width
	t.height = height
	t.viewport.Width = width
	t.viewport.Height = height
	t.refresh()
}

// Content returns the full rendered transcript, including off-screen lines.
func (t *Transcript) Content() string {
	return t.render()
}

func (t *Transcript) refresh() {
	t.viewport.SetContent(t.render())
}

func (t *Transcript) render() string {
	if len(t.entries) == 0 {
		return t.styles.Muted.Render("Ask a medical question to begin. Answers are drawn from the reference document.")
	}

	wrap := lipgloss.NewStyle().Width(t.width)
	blocks := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		var b strings.Builder
		switch e.Speaker {
		case SpeakerUser:
			b.WriteString(t.styles.UserLabel.Render("You: "))
			b.WriteString(e.Text)
		case SpeakerBot:
			b.WriteString(t.styles.BotLabel.Render("DiagnoBot: "))
			b.WriteString(e.Text)
			if len(e.Sources) > 0 {
				b.WriteString("\n")
				b.WriteString(t.styles.Source.Render("Sources: " + formatPages(e.Sources)))
			}
		case SpeakerNotice:
			b.WriteString(t.styles.Error.Render(e.Text))
		}
		blocks = append(blocks, wrap.Render(b.String()))
	}
	return strings.Join(blocks, "\n\n")
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("page %d", p)
	}
	return strings.Join(parts, ", ")
}
