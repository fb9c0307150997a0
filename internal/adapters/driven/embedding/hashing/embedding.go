// Package hashing provides a deterministic offline embedding service.
//
// Each token is mapped to a pseudo-random ±1 vector seeded by its FNV hash;
// a text embedding is the L2-normalised sum of its token vectors. Texts that
// share tokens have positive cosine similarity, unrelated texts are close to
// orthogonal. No network access is needed, which makes it suitable for
// offline use and tests.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "hashing-384"
	DefaultDimensions = 384
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "for": true, "from": true, "how": true,
	"i": true, "in": true, "is": true, "it": true, "my": true, "of": true,
	"on": true, "or": true, "the": true, "to": true, "was": true, "what": true,
	"when": true, "which": true, "who": true, "with": true,
}

// Config holds configuration for the hashing embedding service.
type Config struct {
	// Model names the embedding for identity purposes (default: hashing-384).
	Model string

	// Dimensions is the vector size (default: 384).
	Dimensions int
}

// EmbeddingService generates feature-hashed embeddings locally.
type EmbeddingService struct {
	model      string
	dimensions int
}

// NewEmbeddingService creates a new hashing embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{model: cfg.Model, dimensions: cfg.Dimensions}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := make([]float64, s.dimensions)
	for _, token := range Tokenize(text) {
		addTokenVector(sum, token)
	}

	var norm float64
	for _, v := range sum {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, s.dimensions)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range sum {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts, preserving input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		e, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		embeddings[i] = e
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// Identity returns the model identity recorded alongside every vector.
func (s *EmbeddingService) Identity() domain.ModelIdentity {
	return domain.NewModelIdentity(domain.AIProviderHashing, s.model)
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

// Tokenize lower-cases text and splits it into letter and digit runs,
// dropping common English stop words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if !stopWords[f] {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// addTokenVector adds the ±1 vector for token to sum.
func addTokenVector(sum []float64, token string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	state := h.Sum64()

	for i := 0; i < len(sum); i += 64 {
		bits := splitmix64(&state)
		for j := 0; j < 64 && i+j < len(sum); j++ {
			if bits&(1<<uint(j)) != 0 {
				sum[i+j]++
			} else {
				sum[i+j]--
			}
		}
	}
}

func splitmix64(state *uint64) uint64 {
	*state += 0x9e3779b97f4a7c15
	z := *state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
