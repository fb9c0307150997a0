package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// GenerationClient sends prompts to the language model with validated
// options and a bounded wait. It never retries.
type GenerationClient struct {
	llm driven.GenerationService
}

// NewGenerationClient creates a generation client over llm.
func NewGenerationClient(llm driven.GenerationService) *GenerationClient {
	return &GenerationClient{llm: llm}
}

// Generate returns the completion for prompt.
//
// Errors:
//   - domain.ErrInvalidGenerationOptions when opts are out of range
//   - domain.ErrGenerationTimeout when opts.Timeout elapses first
//   - context.Canceled (or the caller's deadline) passed through unchanged
//   - domain.ErrGenerationUnavailable for any other failure or an empty answer
func (c *GenerationClient) Generate(ctx context.Context, prompt domain.Prompt, opts domain.GenerationOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if c.llm == nil {
		return "", fmt.Errorf("%w: no generation provider configured", domain.ErrGenerationUnavailable)
	}

	callCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	logger.Debug("Generating with %s (prompt %d chars, temperature %.2f, max tokens %d)",
		c.llm.ModelName(), prompt.Size(), opts.Temperature, opts.MaxOutputTokens)

	answer, err := c.llm.Complete(callCtx, prompt, opts)
	if err != nil {
		return "", classifyGenerationError(ctx, callCtx, err, opts)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty completion from %s", domain.ErrGenerationUnavailable, c.llm.ModelName())
	}
	return answer, nil
}

// classifyGenerationError maps a completion failure onto the error taxonomy.
// The caller's own cancellation wins over the client's timeout.
func classifyGenerationError(ctx, callCtx context.Context, err error, opts domain.GenerationOptions) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch {
	case errors.Is(callCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		if errors.Is(err, domain.ErrGenerationTimeout) {
			return err
		}
		return fmt.Errorf("%w: no answer within %s: %w", domain.ErrGenerationTimeout, opts.Timeout, err)
	case errors.Is(err, domain.ErrGenerationTimeout), errors.Is(err, domain.ErrGenerationUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
}
