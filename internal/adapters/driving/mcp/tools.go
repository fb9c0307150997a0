package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Symptoms string `json:"symptoms" jsonschema:"a plain-language description of the symptoms"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	// Assessment is always presentable, even when Error is set.
	Assessment string `json:"assessment"`
	Error      string `json:"error,omitempty"`
}

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"the session to continue; omit to start a new conversation"`
	Message   string `json:"message" jsonschema:"the question to ask, or 'exit' to end the conversation"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	SessionID string          `json:"session_id"`
	Answer    string          `json:"answer"`
	Farewell  bool            `json:"farewell,omitempty"`
	Turn      int             `json:"turn,omitempty"`
	Sources   []PassageOutput `json:"sources,omitempty"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the text to find similar passages for"`
	K     int    `json:"k,omitempty" jsonschema:"number of passages to return (default: configured top_k)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Passages []PassageOutput `json:"passages"`
	Count    int             `json:"count"`
}

// PassageOutput represents a single retrieved chunk.
type PassageOutput struct {
	ChunkID  string  `json:"chunk_id"`
	Page     int     `json:"page"`
	Rank     int     `json:"rank"`
	Distance float64 `json:"distance"`
	Text     string  `json:"text"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Get a preliminary, ungrounded assessment of a set of symptoms",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "chat",
		Description: "Ask a medical question answered from the reference document, " +
			"keeping conversation history per session",
	}, s.handleChat)

	if s.ports.Retrieval != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "retrieve",
			Description: "Return the reference document passages most similar to a query",
		}, s.handleRetrieve)
	}
}

// handleAsk handles the ask tool invocation.
// A failed generation still yields the fallback text, with the failure in Error.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	text, err := s.ports.Answer.AnswerOnce(ctx, input.Symptoms)
	output := AskOutput{Assessment: text}
	if err != nil {
		logger.Warn("mcp ask failed: %v", err)
		output.Error = err.Error()
	}
	return nil, output, nil
}

// handleChat handles the chat tool invocation.
func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	if input.SessionID == "" {
		// A new session is registered only once its first turn succeeds,
		// so a failed opening question leaves nothing behind.
		session := s.ports.Answer.NewSession()
		reply, err := s.ports.Answer.AnswerInSession(ctx, session, input.Message)
		if err != nil {
			return nil, ChatOutput{}, err
		}
		if !reply.Farewell {
			s.sessions.add(session)
		}
		return nil, chatOutput(session, reply), nil
	}

	entry, ok := s.sessions.get(input.SessionID)
	if !ok {
		return nil, ChatOutput{}, fmt.Errorf("%w: %s", ErrUnknownSession, input.SessionID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := entry.session
	reply, err := s.ports.Answer.AnswerInSession(ctx, session, input.Message)
	if err != nil {
		return nil, ChatOutput{}, err
	}
	if reply.Farewell {
		s.sessions.remove(session.ID)
	}
	return nil, chatOutput(session, reply), nil
}

func chatOutput(session *domain.ConversationSession, reply *domain.SessionReply) ChatOutput {
	output := ChatOutput{
		SessionID: session.ID,
		Answer:    reply.Answer,
		Farewell:  reply.Farewell,
		Sources:   passages(reply.Sources),
	}
	if reply.Turn != nil {
		output.Turn = reply.Turn.SequenceNumber
	}
	return output
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	result, err := s.ports.Retrieval.Retrieve(ctx, input.Query, input.K)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, RetrieveOutput{
		Passages: passages(result.Chunks),
		Count:    result.Len(),
	}, nil
}

// passages converts scored chunks to tool output. Pages are 1-based.
func passages(chunks []domain.ScoredChunk) []PassageOutput {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]PassageOutput, len(chunks))
	for i := range chunks {
		out[i] = PassageOutput{
			ChunkID:  chunks[i].Chunk.ID,
			Page:     chunks[i].Chunk.SourcePage + 1,
			Rank:     chunks[i].Rank,
			Distance: chunks[i].Distance,
			Text:     chunks[i].Chunk.Text,
		}
	}
	return out
}
