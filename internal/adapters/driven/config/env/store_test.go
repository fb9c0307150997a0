package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/diagnobot/internal/adapters/driven/storage/memory"
)

func lookupFrom(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestVarName(t *testing.T) {
	assert.Equal(t, "DIAGNOBOT_EMBEDDING_BATCH_SIZE", VarName("embedding.batch_size"))
	assert.Equal(t, "DIAGNOBOT_RETRIEVAL_TOP_K", VarName("retrieval.top_k"))
}

func TestStore_Overrides(t *testing.T) {
	base := memory.NewConfigStore(map[string]any{
		"retrieval.top_k": 4,
		"llm.model":       "from-file",
	})

	s := NewStore(base, []string{"retrieval.top_k", "llm.model", "chunking.size"}, WithLookup(lookupFrom(map[string]string{
		"DIAGNOBOT_RETRIEVAL_TOP_K": "8",
		"DIAGNOBOT_CHUNKING_SIZE":   "300",
		"DIAGNOBOT_UNLISTED_KEY":    "ignored",
	})))

	assert.Equal(t, 8, s.GetInt("retrieval.top_k"))
	assert.Equal(t, 300, s.GetInt("chunking.size"))
	assert.Equal(t, "from-file", s.GetString("llm.model"))
	assert.True(t, s.Overridden("retrieval.top_k"))
	assert.False(t, s.Overridden("llm.model"))
	_, ok := s.Get("unlisted.key")
	assert.False(t, ok)
}

func TestStore_TypedOverrides(t *testing.T) {
	s := NewStore(memory.NewConfigStore(), []string{"llm.temperature", "prompt.include_history"},
		WithLookup(lookupFrom(map[string]string{
			"DIAGNOBOT_LLM_TEMPERATURE":        "0.25",
			"DIAGNOBOT_PROMPT_INCLUDE_HISTORY": "true",
		})))

	assert.Equal(t, 0.25, s.GetFloat("llm.temperature"))
	assert.True(t, s.GetBool("prompt.include_history"))
}

func TestStore_ProviderAPIKeys(t *testing.T) {
	t.Run("matching provider", func(t *testing.T) {
		base := memory.NewConfigStore(map[string]any{
			"llm.provider":       "groq",
			"embedding.provider": "openai",
		})
		s := NewStore(base, nil, WithLookup(lookupFrom(map[string]string{
			"GROQ_API_KEY":   "gsk-test",
			"OPENAI_API_KEY": "sk-test",
		})))

		assert.Equal(t, "gsk-test", s.GetString("llm.api_key"))
		assert.Equal(t, "sk-test", s.GetString("embedding.api_key"))
	})

	t.Run("explicit key wins", func(t *testing.T) {
		base := memory.NewConfigStore(map[string]any{
			"llm.provider": "anthropic",
			"llm.api_key":  "from-file",
		})
		s := NewStore(base, nil, WithLookup(lookupFrom(map[string]string{
			"ANTHROPIC_API_KEY": "from-env",
		})))

		assert.Equal(t, "from-file", s.GetString("llm.api_key"))
	})

	t.Run("prefixed variable beats provider variable", func(t *testing.T) {
		base := memory.NewConfigStore(map[string]any{"llm.provider": "openai"})
		s := NewStore(base, []string{"llm.api_key"}, WithLookup(lookupFrom(map[string]string{
			"DIAGNOBOT_LLM_API_KEY": "prefixed",
			"OPENAI_API_KEY":        "provider",
		})))

		assert.Equal(t, "prefixed", s.GetString("llm.api_key"))
	})

	t.Run("default provider", func(t *testing.T) {
		s := NewStore(memory.NewConfigStore(), nil, WithLookup(lookupFrom(map[string]string{
			"GROQ_API_KEY": "gsk-default",
		})))

		assert.Equal(t, "gsk-default", s.GetString("llm.api_key"))
		assert.Equal(t, "", s.GetString("embedding.api_key"))
	})

	t.Run("other provider untouched", func(t *testing.T) {
		base := memory.NewConfigStore(map[string]any{"llm.provider": "ollama"})
		s := NewStore(base, nil, WithLookup(lookupFrom(map[string]string{
			"GROQ_API_KEY": "gsk-test",
		})))

		assert.Equal(t, "", s.GetString("llm.api_key"))
	})
}

func TestStore_SetAndSaveUseBase(t *testing.T) {
	base := memory.NewConfigStore()
	s := NewStore(base, []string{"llm.model"}, WithLookup(lookupFrom(map[string]string{
		"DIAGNOBOT_LLM_MODEL": "env-model",
	})))

	require.NoError(t, s.Set("llm.model", "file-model"))
	require.NoError(t, s.Save())

	assert.Equal(t, "env-model", s.GetString("llm.model"))
	assert.Equal(t, "file-model", base.GetString("llm.model"))
	assert.Equal(t, base.Path(), s.Path())
	assert.NoError(t, s.Load())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DIAGNOBOT_TEST_DOTENV=loaded\nDIAGNOBOT_TEST_PRESET=file\n"), 0600))
	t.Setenv("DIAGNOBOT_TEST_PRESET", "process")
	t.Cleanup(func() { os.Unsetenv("DIAGNOBOT_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "loaded", os.Getenv("DIAGNOBOT_TEST_DOTENV"))
	assert.Equal(t, "process", os.Getenv("DIAGNOBOT_TEST_PRESET"))
}
