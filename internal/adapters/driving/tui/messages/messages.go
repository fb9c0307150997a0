// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

// QuestionSubmitted is sent when the user sends a chat question.
type QuestionSubmitted struct {
	Question string
}

// AnswerReceived carries the reply to a chat question back to the model.
type AnswerReceived struct {
	Question string
	Reply    *domain.SessionReply
	Err      error
}

// AssessmentReceived carries a symptom assessment back to the model.
// Text is presentable even when Err is set.
type AssessmentReceived struct {
	Symptoms string
	Text     string
	Err      error
}

// IndexPrepared signals the vector index is ready for questions.
type IndexPrepared struct {
	Chunks int
	Err    error
}

// StatusLoaded carries the index status and settings for the status view.
type StatusLoaded struct {
	Index    *domain.IndexStatus
	Settings *domain.AppSettings
	Err      error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewChat is the grounded conversation view.
	ViewChat
	// ViewSymptoms is the stateless symptom check view.
	ViewSymptoms
	// ViewStatus shows the index state and settings.
	ViewStatus
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewChat:
		return "chat"
	case ViewSymptoms:
		return "symptoms"
	case ViewStatus:
		return "status"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
