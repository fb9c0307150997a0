package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for DiagnoBot resources.
	uriScheme = "diagnobot://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Index != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "index/status",
			Name:        "index-status",
			Description: "State and build metadata of the vector index",
			MIMEType:    "application/json",
		}, s.handleIndexStatusResource)
	}

	// Template for chat session transcripts.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sessions/{sessionId}",
		Name:        "session-transcript",
		Description: "Turns of an open chat session, oldest first",
		MIMEType:    "application/json",
	}, s.handleSessionResource)
}

// handleIndexStatusResource returns the vector index status.
func (s *Server) handleIndexStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	status, err := s.ports.Index.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting index status: %w", err)
	}

	type statusInfo struct {
		Location   string    `json:"location"`
		Exists     bool      `json:"exists"`
		Loaded     bool      `json:"loaded"`
		DocumentID string    `json:"document_id,omitempty"`
		Model      string    `json:"model,omitempty"`
		Dimensions int       `json:"dimensions,omitempty"`
		Metric     string    `json:"metric,omitempty"`
		Chunks     int       `json:"chunks,omitempty"`
		BuiltAt    time.Time `json:"built_at,omitzero"`
	}

	info := statusInfo{
		Location: status.Location,
		Exists:   status.Exists,
		Loaded:   status.Loaded,
	}
	if meta := status.Metadata; meta != nil {
		info.DocumentID = meta.DocumentID
		info.Model = meta.Model.String()
		info.Dimensions = meta.Dimensions
		info.Metric = meta.Metric.String()
		info.Chunks = meta.ChunkCount
		info.BuiltAt = meta.BuiltAt
	}

	return jsonResource(req.Params.URI, info)
}

// handleSessionResource returns the transcript of an open session.
func (s *Server) handleSessionResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract sessionId from URI: diagnobot://sessions/{sessionId}
	sessionID := extractSessionID(req.Params.URI)
	if sessionID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	entry, ok := s.sessions.get(sessionID)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	type turnInfo struct {
		Turn     int       `json:"turn"`
		Question string    `json:"question"`
		Answer   string    `json:"answer"`
		At       time.Time `json:"at"`
	}

	entry.mu.Lock()
	history := entry.session.History()
	entry.mu.Unlock()

	turns := make([]turnInfo, len(history))
	for i, t := range history {
		turns[i] = turnInfo{
			Turn:     t.SequenceNumber,
			Question: t.Question,
			Answer:   t.Answer,
			At:       t.CreatedAt,
		}
	}

	return jsonResource(req.Params.URI, turns)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSessionID extracts the session ID from a URI like diagnobot://sessions/{sessionId}.
func extractSessionID(uri string) string {
	const prefix = uriScheme + "sessions/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
