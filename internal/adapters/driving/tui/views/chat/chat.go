// Package chat provides the grounded conversation view for the TUI.
package chat

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/components/transcript"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// View is the chat view: a transcript, an input line and a status bar.
// It owns one conversation session at a time.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.PromptInput
	transcript *transcript.Transcript
	statusbar  *status.Bar

	answerService driving.AnswerService
	indexService  driving.IndexService
	ctx           context.Context

	session   *domain.ConversationSession
	prepared  bool
	preparing bool
	pending   bool
	ended     bool

	width  int
	height int
	ready  bool
	err    error
}

// NewView creates a new chat view.
// indexService is optional; when set the index is prepared before the first question.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	answerService driving.AnswerService,
	indexService driving.IndexService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:        s,
		keymap:        km,
		input:         input.NewPromptInput(s, "You:", "Ask a medical question, or type 'exit'..."),
		transcript:    transcript.New(s),
		statusbar:     status.NewBar(s, km),
		answerService: answerService,
		indexService:  indexService,
		ctx:           context.Background(),
		width:         80,
		height:        24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init starts a session if needed and prepares the index.
func (v *View) Init() tea.Cmd {
	if v.session == nil && v.answerService != nil {
		v.session = v.answerService.NewSession()
	}
	cmds := []tea.Cmd{v.input.Init()}
	if !v.prepared && !v.preparing && v.indexService != nil {
		cmds = append(cmds, v.startPreparing())
	}
	return tea.Batch(cmds...)
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.IndexPrepared:
		return v, v.handleIndexPrepared(msg)

	case messages.AnswerReceived:
		return v, v.handleAnswer(msg)

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	// Spinner ticks and cursor blinks
	var cmds []tea.Cmd
	var cmd tea.Cmd
	v.statusbar, cmd = v.statusbar.Update(msg)
	cmds = append(cmds, cmd)
	v.input, cmd = v.input.Update(msg)
	cmds = append(cmds, cmd)
	return v, tea.Batch(cmds...)
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	// Esc always signals to go back to menu
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	switch {
	case keymap.Matches(keyStr, v.keymap.ScrollUp):
		v.transcript.PageUp()
		return v, nil
	case keymap.Matches(keyStr, v.keymap.ScrollDown):
		v.transcript.PageDown()
		return v, nil
	case keymap.Matches(keyStr, v.keymap.NewChat):
		if v.pending {
			return v, nil
		}
		v.Reset()
		return v, nil
	}

	if msg.Type == tea.KeyEnter {
		return v, v.submit()
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit sends the current input as a question.
// Only one question is in flight at a time, since a session is not safe
// for concurrent use.
func (v *View) submit() tea.Cmd {
	question := strings.TrimSpace(v.input.Value())
	if question == "" || v.pending || v.ended {
		return nil
	}
	if !v.prepared && v.indexService != nil {
		if v.preparing {
			return nil
		}
		// The last attempt failed; try again before accepting questions.
		return v.startPreparing()
	}

	v.input.Reset()
	v.pending = true
	v.transcript.Append(transcript.Entry{Speaker: transcript.SpeakerUser, Text: question})
	return tea.Batch(v.statusbar.SetState(status.StateThinking), v.ask(question))
}

// ask runs one turn against the session.
func (v *View) ask(question string) tea.Cmd {
	session := v.session
	return func() tea.Msg {
		if v.answerService == nil {
			return messages.ErrorOccurred{Err: ErrNoAnswerService}
		}
		reply, err := v.answerService.AnswerInSession(v.ctx, session, question)
		return messages.AnswerReceived{Question: question, Reply: reply, Err: err}
	}
}

func (v *View) startPreparing() tea.Cmd {
	v.preparing = true
	v.err = nil
	return tea.Batch(v.statusbar.SetState(status.StatePreparing), v.prepareIndex())
}

// prepareIndex loads or builds the index in the background.
func (v *View) prepareIndex() tea.Cmd {
	return func() tea.Msg {
		idx, err := v.indexService.EnsureIndex(v.ctx)
		if err != nil {
			return messages.IndexPrepared{Err: err}
		}
		var chunks int
		if idx != nil {
			chunks = idx.Len()
		}
		return messages.IndexPrepared{Chunks: chunks}
	}
}

func (v *View) handleIndexPrepared(msg messages.IndexPrepared) tea.Cmd {
	v.preparing = false
	if msg.Err != nil {
		v.setError(msg.Err)
		return nil
	}
	v.prepared = true
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
	return nil
}

func (v *View) handleAnswer(msg messages.AnswerReceived) tea.Cmd {
	v.pending = false
	if msg.Err != nil {
		// The session is unchanged; the user can retry.
		v.transcript.Append(transcript.Entry{
			Speaker: transcript.SpeakerNotice,
			Text:    "Could not answer: " + msg.Err.Error(),
		})
		v.setError(msg.Err)
		return nil
	}

	v.err = nil
	reply := msg.Reply
	v.transcript.Append(transcript.Entry{
		Speaker: transcript.SpeakerBot,
		Text:    reply.Answer,
		Sources: sourcePages(reply.Sources),
	})
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
	v.statusbar.SetTurnCount(v.session.Len())

	if reply.Farewell {
		v.ended = true
		v.input.Blur()
		v.statusbar.SetMessage("Conversation ended. ctrl+n for a new chat, esc for the menu")
	}
	return nil
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// sourcePages returns the distinct 1-based pages of the chunks, in rank order.
func sourcePages(chunks []domain.ScoredChunk) []int {
	seen := make(map[int]bool, len(chunks))
	pages := make([]int, 0, len(chunks))
	for i := range chunks {
		page := chunks[i].Chunk.SourcePage + 1
		if !seen[page] {
			seen[page] = true
			pages = append(pages, page)
		}
	}
	return pages
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 8)
	sections = append(sections,
		v.styles.Title.Render("DiagnoBot")+"  "+v.styles.Muted.Render("Conversation"),
		"",
		v.transcript.View(),
		"",
	)
	if !v.ended {
		sections = append(sections, v.input.View())
	}
	sections = append(sections,
		v.styles.Warning.Render("Preliminary information only. Consult a healthcare professional."),
		v.statusbar.View(),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	// Reserve space for header, input, disclaimer and status
	v.input.SetWidth(width)
	v.transcript.SetDimensions(width, height-9)
	v.statusbar.SetWidth(width)
}

// Reset starts a new conversation.
func (v *View) Reset() {
	if v.answerService != nil {
		v.session = v.answerService.NewSession()
	}
	v.pending = false
	v.ended = false
	v.err = nil
	v.transcript.Clear()
	v.input.Reset()
	v.input.Focus()
	v.statusbar.Clear()
	if v.preparing {
		v.statusbar.SetState(status.StatePreparing)
	}
}

// Session returns the current conversation session.
func (v *View) Session() *domain.ConversationSession {
	return v.session
}

// Transcript returns the transcript component.
func (v *View) Transcript() *transcript.Transcript {
	return v.transcript
}

// Pending returns whether a question is awaiting its answer.
func (v *View) Pending() bool {
	return v.pending
}

// Ended returns whether the user ended the conversation.
func (v *View) Ended() bool {
	return v.ended
}

// Prepared returns whether the index is ready.
func (v *View) Prepared() bool {
	return v.prepared
}

// Input returns the current input text.
func (v *View) Input() string {
	return v.input.Value()
}

// SetInput sets the input text.
func (v *View) SetInput(text string) {
	v.input.SetValue(text)
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}
