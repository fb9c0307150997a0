// Package status provides the index and configuration status view for the TUI.
package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/diagnobot/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// ErrNoStatusServices indicates that neither index nor settings service was provided.
var ErrNoStatusServices = errors.New("status services not available")

// View shows the vector index state and the active configuration.
type View struct {
	styles          *styles.Styles
	indexService    driving.IndexService
	settingsService driving.SettingsService
	ctx             context.Context

	index    *domain.IndexStatus
	settings *domain.AppSettings
	loading  bool
	err      error

	width  int
	height int
	ready  bool
}

// NewView creates a new status view. Either service may be nil.
func NewView(s *styles.Styles, indexService driving.IndexService, settingsService driving.SettingsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles:          s,
		indexService:    indexService,
		settingsService: settingsService,
		ctx:             context.Background(),
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the status.
func (v *View) Init() tea.Cmd {
	return v.Refresh()
}

// Refresh returns a command that reloads the status.
func (v *View) Refresh() tea.Cmd {
	v.loading = true
	return v.loadStatus()
}

func (v *View) loadStatus() tea.Cmd {
	return func() tea.Msg {
		if v.indexService == nil && v.settingsService == nil {
			return messages.StatusLoaded{Err: ErrNoStatusServices}
		}

		var msg messages.StatusLoaded
		var errs []error
		if v.indexService != nil {
			status, err := v.indexService.Status(v.ctx)
			if err != nil {
				errs = append(errs, fmt.Errorf("index status: %w", err))
			}
			msg.Index = status
		}
		if v.settingsService != nil {
			settings, err := v.settingsService.Get()
			if err != nil {
				errs = append(errs, fmt.Errorf("settings: %w", err))
			}
			msg.Settings = settings
		}
		msg.Err = errors.Join(errs...)
		return msg
	}
}

// Update handles messages for the status view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.StatusLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Index != nil {
			v.index = msg.Index
		}
		if msg.Settings != nil {
			v.settings = msg.Settings
		}
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return v, func() tea.Msg {
				return messages.ViewChanged{View: messages.ViewMenu}
			}
		case "r":
			return v, v.Refresh()
		}
	}

	return v, nil
}

// View renders the status view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Status"))
	b.WriteString("\n\n")

	if v.loading && v.index == nil && v.settings == nil {
		b.WriteString(v.styles.Muted.Render("Loading status..."))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	if v.index != nil {
		v.renderIndex(&b)
	}
	if v.settings != nil {
		v.renderSettings(&b)
	}

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
	}

	b.WriteString(v.renderHelp())
	return b.String()
}

func (v *View) renderIndex(b *strings.Builder) {
	b.WriteString(v.styles.Subtitle.Render("Vector Index"))
	b.WriteString("\n")
	writeField(b, v.styles, "Location", v.index.Location)

	if !v.index.Exists {
		writeField(b, v.styles, "Status", "not built")
		b.WriteString("\n")
		return
	}

	state := "persisted"
	if v.index.Loaded {
		state = "persisted, loaded"
	}
	writeField(b, v.styles, "Status", state)

	if meta := v.index.Metadata; meta != nil {
		writeField(b, v.styles, "Document", meta.DocumentID)
		writeField(b, v.styles, "Model", meta.Model.String())
		writeField(b, v.styles, "Chunks", fmt.Sprintf("%d (%d dimensions, %s)", meta.ChunkCount, meta.Dimensions, meta.Metric))
		writeField(b, v.styles, "Built", meta.BuiltAt.Local().Format(time.RFC1123))
	}
	b.WriteString("\n")
}

func (v *View) renderSettings(b *strings.Builder) {
	s := v.settings

	b.WriteString(v.styles.Subtitle.Render("Configuration"))
	b.WriteString("\n")
	writeField(b, v.styles, "Source", s.Source.Path)
	writeField(b, v.styles, "Embedding", providerLine(s.Embedding.Provider, s.Embedding.Model, s.Embedding.IsConfigured()))
	writeField(b, v.styles, "LLM", providerLine(s.LLM.Provider, s.LLM.Model, s.LLM.IsConfigured()))
	writeField(b, v.styles, "Backend", string(s.Index.Backend))
	writeField(b, v.styles, "Top K", fmt.Sprintf("%d", s.Retrieval.TopK))
	b.WriteString("\n")
}

func providerLine(provider domain.AIProvider, model string, configured bool) string {
	line := fmt.Sprintf("%s (%s)", provider, model)
	if !configured {
		line += " [not configured]"
	}
	return line
}

func writeField(b *strings.Builder, s *styles.Styles, label, value string) {
	b.WriteString("  ")
	b.WriteString(s.Muted.Render(fmt.Sprintf("%-10s", label+":")))
	b.WriteString(" ")
	b.WriteString(s.Normal.Render(value))
	b.WriteString("\n")
}

func (v *View) renderHelp() string {
	return v.styles.Help.Render("[r] refresh  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// IndexStatus returns the last loaded index status.
func (v *View) IndexStatus() *domain.IndexStatus {
	return v.index
}

// Settings returns the last loaded settings.
func (v *View) Settings() *domain.AppSettings {
	return v.settings
}

// Loading returns whether a refresh is in progress.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
