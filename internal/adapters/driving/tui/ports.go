// Package tui provides an interactive terminal user interface for DiagnoBot.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer answers chat questions and symptom descriptions.
	Answer driving.AnswerService

	// Index reports and prepares the vector index. Optional.
	Index driving.IndexService

	// Settings reads application settings. Optional.
	Settings driving.SettingsService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(
	answer driving.AnswerService,
	index driving.IndexService,
	settings driving.SettingsService,
) *Ports {
	return &Ports{
		Answer:   answer,
		Index:    index,
		Settings: settings,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Answer == nil {
		return ErrMissingAnswerService
	}
	return nil
}
