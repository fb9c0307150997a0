package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func testChunk(page int, text string, rank int) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			ID:         domain.ChunkID("gale", page, 0),
			DocumentID: "gale",
			Text:       text,
			SourcePage: page,
		},
		Distance: 0.25,
		Rank:     rank,
	}
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the assessment", func(t *testing.T) {
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{onceText: "## Preliminary Assessment"}})

		_, output, err := server.handleAsk(ctx, nil, AskInput{Symptoms: "fever"})

		require.NoError(t, err)
		assert.Equal(t, "## Preliminary Assessment", output.Assessment)
		assert.Empty(t, output.Error)
	})

	t.Run("fallback text is returned with the failure", func(t *testing.T) {
		answers := &mockAnswerService{
			onceText: "could not prepare an assessment",
			onceErr:  domain.ErrGenerationUnavailable,
		}
		server := newTestServer(t, &Ports{Answer: answers})

		_, output, err := server.handleAsk(ctx, nil, AskInput{Symptoms: "fever"})

		require.NoError(t, err)
		assert.Equal(t, "could not prepare an assessment", output.Assessment)
		assert.Contains(t, output.Error, "generation")
	})
}

func TestServer_handleChat(t *testing.T) {
	ctx := context.Background()

	t.Run("starts a session and continues it", func(t *testing.T) {
		answers := &mockAnswerService{sources: []domain.ScoredChunk{testChunk(4, "Antibiotics.", 1)}}
		server := newTestServer(t, &Ports{Answer: answers})

		_, first, err := server.handleChat(ctx, nil, ChatInput{Message: "What helps with infection?"})
		require.NoError(t, err)
		assert.Equal(t, "session-1", first.SessionID)
		assert.Equal(t, 1, first.Turn)
		require.Len(t, first.Sources, 1)
		assert.Equal(t, 5, first.Sources[0].Page)
		assert.Equal(t, "gale:4:0", first.Sources[0].ChunkID)

		_, second, err := server.handleChat(ctx, nil, ChatInput{SessionID: first.SessionID, Message: "For how long?"})
		require.NoError(t, err)
		assert.Equal(t, "session-1", second.SessionID)
		assert.Equal(t, 2, second.Turn)
		assert.Equal(t, "answer to For how long?", second.Answer)
		assert.Equal(t, 1, server.sessions.len())
	})

	t.Run("unknown session returns error", func(t *testing.T) {
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{}})

		_, _, err := server.handleChat(ctx, nil, ChatInput{SessionID: "missing", Message: "hello"})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownSession)
	})

	t.Run("exit ends the session", func(t *testing.T) {
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{}})

		_, first, err := server.handleChat(ctx, nil, ChatInput{Message: "hello"})
		require.NoError(t, err)

		_, bye, err := server.handleChat(ctx, nil, ChatInput{SessionID: first.SessionID, Message: "EXIT"})
		require.NoError(t, err)
		assert.True(t, bye.Farewell)
		assert.Equal(t, domain.FarewellMessage, bye.Answer)
		assert.Zero(t, bye.Turn)
		assert.Zero(t, server.sessions.len())
	})

	t.Run("failed first turn registers no session", func(t *testing.T) {
		answers := &mockAnswerService{err: domain.ErrGenerationUnavailable}
		server := newTestServer(t, &Ports{Answer: answers})

		_, _, err := server.handleChat(ctx, nil, ChatInput{Message: "hello"})

		require.ErrorIs(t, err, domain.ErrGenerationUnavailable)
		assert.Zero(t, server.sessions.len())
	})

	t.Run("exit as first message registers no session", func(t *testing.T) {
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{}})

		_, bye, err := server.handleChat(ctx, nil, ChatInput{Message: "exit"})

		require.NoError(t, err)
		assert.True(t, bye.Farewell)
		assert.Zero(t, server.sessions.len())
	})

	t.Run("failure keeps the session", func(t *testing.T) {
		answers := &mockAnswerService{}
		server := newTestServer(t, &Ports{Answer: answers})

		_, first, err := server.handleChat(ctx, nil, ChatInput{Message: "hello"})
		require.NoError(t, err)

		answers.err = domain.ErrGenerationTimeout
		_, _, err = server.handleChat(ctx, nil, ChatInput{SessionID: first.SessionID, Message: "again"})
		require.ErrorIs(t, err, domain.ErrGenerationTimeout)

		entry, ok := server.sessions.get(first.SessionID)
		require.True(t, ok)
		assert.Equal(t, 1, entry.session.Len())
	})
}

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns passages", func(t *testing.T) {
		retrieval := &mockRetrievalService{result: domain.RetrievalResult{
			Query:  "fracture",
			Chunks: []domain.ScoredChunk{testChunk(1, "Fractures are broken bones.", 1)},
		}}
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{}, Retrieval: retrieval})

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "fracture", K: 3})

		require.NoError(t, err)
		assert.Equal(t, 3, retrieval.k)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Passages, 1)
		assert.Equal(t, "Fractures are broken bones.", output.Passages[0].Text)
		assert.Equal(t, 2, output.Passages[0].Page)
		assert.Equal(t, 1, output.Passages[0].Rank)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		retrieval := &mockRetrievalService{err: errors.New("embedding service down")}
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{}, Retrieval: retrieval})

		_, _, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "fracture"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding service down")
	})
}
