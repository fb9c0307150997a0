// Package mcp provides an MCP (Model Context Protocol) server adapter for DiagnoBot.
// It lets AI assistants ask DiagnoBot medical questions and retrieve passages
// from the reference document.
package mcp

import "errors"

var (
	// ErrMissingAnswerService is returned when the answer service is not provided.
	ErrMissingAnswerService = errors.New("mcp: answer service is required")

	// ErrUnknownSession is returned when a chat names a session that does not exist.
	ErrUnknownSession = errors.New("mcp: unknown session")
)
