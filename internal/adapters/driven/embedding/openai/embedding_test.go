package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
)

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions"`
}

func newService(t *testing.T, cfg Config, handler http.HandlerFunc) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL + "/v1"
	svc, err := NewEmbeddingService(cfg)
	require.NoError(t, err)
	return svc
}

func writeEmbeddings(t *testing.T, w http.ResponseWriter, order []int, dims int) {
	t.Helper()
	data := make([]map[string]any, 0, len(order))
	for _, idx := range order {
		vec := make([]float64, dims)
		vec[0] = float64(idx)
		data = append(data, map[string]any{"object": "embedding", "index": idx, "embedding": vec})
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  "text-embedding-3-small",
		"data":   data,
		"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
	}))
}

func TestNewEmbeddingService(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.Error(t, err)

	svc, err := NewEmbeddingService(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, 1536, svc.Dimensions())
	assert.Equal(t, domain.ModelIdentity("openai/text-embedding-3-small"), svc.Identity())
	assert.NoError(t, svc.Close())
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	svc := newService(t, Config{Dimensions: 8}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b", "c"}, req.Input)
		assert.Equal(t, 8, req.Dimensions)

		writeEmbeddings(t, w, []int{2, 0, 1}, 8)
	})

	embeddings, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	require.Len(t, embeddings, 3)
	for i, e := range embeddings {
		assert.Equal(t, float32(i), e[0])
	}
}

func TestEmbed_Single(t *testing.T) {
	svc := newService(t, Config{Dimensions: 4}, func(w http.ResponseWriter, _ *http.Request) {
		writeEmbeddings(t, w, []int{0}, 4)
	})

	e, err := svc.Embed(context.Background(), "fever")
	require.NoError(t, err)
	assert.Len(t, e, 4)
}

func TestEmbedBatch_Empty(t *testing.T) {
	svc := newService(t, Config{}, func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	})

	embeddings, err := svc.EmbedBatch(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestEmbedBatch_APIError(t *testing.T) {
	calls := 0
	svc := newService(t, Config{}, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, 1, calls, "adapter must not retry")
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	svc := newService(t, Config{Dimensions: 8}, func(w http.ResponseWriter, _ *http.Request) {
		writeEmbeddings(t, w, []int{0}, 4)
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"a"})

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	svc := newService(t, Config{Dimensions: 4}, func(w http.ResponseWriter, _ *http.Request) {
		writeEmbeddings(t, w, []int{0}, 4)
	})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})

	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}

func TestPing(t *testing.T) {
	svc := newService(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})

	assert.NoError(t, svc.Ping(context.Background()))
}
