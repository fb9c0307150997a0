package domain

import (
	"fmt"
	"strings"
	"time"
)

// GenerationOptions controls a language-model completion.
type GenerationOptions struct {
	// Temperature controls output randomness, in [0, 1].
	Temperature float64

	// MaxOutputTokens caps the answer length; must be positive.
	MaxOutputTokens int

	// TopP controls nucleus sampling, in (0, 1].
	TopP float64

	// Timeout bounds the wait for a completion. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration
}

// Validate checks every option is within range.
func (o GenerationOptions) Validate() error {
	var problems []string
	if o.Temperature < 0 || o.Temperature > 1 {
		problems = append(problems, fmt.Sprintf("temperature %v not in [0,1]", o.Temperature))
	}
	if o.MaxOutputTokens <= 0 {
		problems = append(problems, fmt.Sprintf("max output tokens %d not positive", o.MaxOutputTokens))
	}
	if o.TopP <= 0 || o.TopP > 1 {
		problems = append(problems, fmt.Sprintf("top_p %v not in (0,1]", o.TopP))
	}
	if o.Timeout < 0 {
		problems = append(problems, "negative timeout")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidGenerationOptions, strings.Join(problems, "; "))
	}
	return nil
}

// DefaultRAGOptions returns the options used for retrieval-augmented answers.
func DefaultRAGOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:     0,
		MaxOutputTokens: 1024,
		TopP:            1,
		Timeout:         60 * time.Second,
	}
}

// DefaultSymptomOptions returns the options used for stateless symptom answers.
func DefaultSymptomOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:     0.3,
		MaxOutputTokens: 1024,
		TopP:            0.9,
		Timeout:         60 * time.Second,
	}
}

// Prompt is an assembled language-model request.
type Prompt struct {
	// System is the fixed instruction describing the assistant's role.
	System string

	// Body carries context, history and the question.
	Body string
}

// Text returns the prompt as one structured text block.
func (p Prompt) Text() string {
	if p.System == "" {
		return p.Body
	}
	return p.System + "\n\n" + p.Body
}

// Size returns the prompt length in characters.
func (p Prompt) Size() int {
	return len([]rune(p.Text()))
}
