package domain

import (
	"strings"
	"time"
)

// ExitCommand is the control input that ends a conversation.
const ExitCommand = "exit"

// FarewellMessage is returned when the user sends the exit command.
const FarewellMessage = "Take care! Feel free to ask anytime. Goodbye! 👋"

// IsExitCommand reports whether input is the exit command, ignoring case
// and surrounding whitespace.
func IsExitCommand(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), ExitCommand)
}

// ConversationTurn is one answered question.
type ConversationTurn struct {
	// Question is the user's input.
	Question string

	// Answer is the generated answer.
	Answer string

	// SequenceNumber starts at 1 and increases by one per turn.
	SequenceNumber int

	// CreatedAt is when the turn was appended.
	CreatedAt time.Time
}

// ConversationSession is the ordered, append-only record of one user's turns.
// A session is owned by a single caller and is not safe for concurrent mutation.
// It is never embedded or persisted into the vector index.
type ConversationSession struct {
	// ID identifies the session.
	ID string

	// CreatedAt is when the session started.
	CreatedAt time.Time

	turns []ConversationTurn
}

// NewConversationSession creates an empty session.
func NewConversationSession(id string) *ConversationSession {
	return &ConversationSession{
		ID:        id,
		CreatedAt: time.Now(),
	}
}

// Append adds a turn with the next sequence number and returns it.
func (s *ConversationSession) Append(question, answer string) ConversationTurn {
	turn := ConversationTurn{
		Question:       question,
		Answer:         answer,
		SequenceNumber: len(s.turns) + 1,
		CreatedAt:      time.Now(),
	}
	s.turns = append(s.turns, turn)
	return turn
}

// History returns a copy of the turns in conversation order.
func (s *ConversationSession) History() []ConversationTurn {
	out := make([]ConversationTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *ConversationSession) Len() int {
	return len(s.turns)
}

// SessionReply is the outcome of one retrieval-augmented turn.
type SessionReply struct {
	// Answer is the text to show the user.
	Answer string

	// Farewell is true when the input was the exit command.
	// No turn is appended and no retrieval or generation happens.
	Farewell bool

	// Sources are the chunks the answer was conditioned on.
	Sources []ScoredChunk

	// Turn is the appended turn; nil for a farewell.
	Turn *ConversationTurn
}
