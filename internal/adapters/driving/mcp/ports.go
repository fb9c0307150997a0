package mcp

import (
	"github.com/custodia-labs/diagnobot/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer answers symptom descriptions and conversational questions.
	Answer driving.AnswerService

	// Retrieval returns passages without generating an answer.
	Retrieval driving.RetrievalService

	// Index reports the state of the vector index.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	// Retrieval and Index are optional; their tools and resources are
	// registered only when set.
	return nil
}
