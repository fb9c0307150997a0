package domain

import "errors"

// Domain errors represent pipeline failures.
// Adapters wrap infrastructure errors with one of these so callers can
// classify failures with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates a document type no normaliser handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// Ingestion Errors.

	// ErrSourceUnavailable indicates the reference document cannot be located.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceUnreadable indicates the reference document cannot be parsed.
	ErrSourceUnreadable = errors.New("source unreadable")

	// Configuration Errors.

	// ErrInvalidChunkingParameters indicates chunk size and overlap are inconsistent.
	// Overlap must satisfy 0 <= overlap < size.
	ErrInvalidChunkingParameters = errors.New("invalid chunking parameters")

	// ErrInvalidTopK indicates a retrieval request asked for fewer than one chunk.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrPromptTooLarge indicates the assembled prompt exceeds the configured limit
	// and the truncation strategy could not bring it under.
	ErrPromptTooLarge = errors.New("prompt too large")

	// ErrInvalidGenerationOptions indicates temperature, top-p or max tokens are out of range.
	ErrInvalidGenerationOptions = errors.New("invalid generation options")

	// Index Consistency Errors.

	// ErrDimensionMismatch indicates vectors of different lengths were mixed.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmptyIndex indicates an index build was requested with no chunks.
	ErrEmptyIndex = errors.New("empty index")

	// ErrModelIdentityMismatch indicates a vector was produced by a different
	// embedding model than the one the index was built with.
	ErrModelIdentityMismatch = errors.New("model identity mismatch")

	// ErrIndexCorrupt indicates persisted index data failed validation on load.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrBuildInProgress indicates another build holds the index lock.
	ErrBuildInProgress = errors.New("index build in progress")

	// Service Errors.

	// ErrEmbeddingService indicates the embedding service failed or is unreachable.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrGenerationUnavailable indicates the language-model service failed or is unreachable.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrGenerationTimeout indicates a generation call exceeded its wait bound.
	ErrGenerationTimeout = errors.New("generation timeout")
)

// IsTransient reports whether err belongs to the caller-retryable class.
// The pipeline never retries these itself; front ends may retry with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbeddingService) ||
		errors.Is(err, ErrGenerationUnavailable) ||
		errors.Is(err, ErrGenerationTimeout) ||
		errors.Is(err, ErrBuildInProgress)
}
