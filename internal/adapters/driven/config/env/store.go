// Package env overlays environment variables, optionally loaded from a
// .env file, onto a file-backed configuration store.
package env

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/diagnobot/internal/adapters/driven/config/values"
	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.ConfigStore = (*Store)(nil)

// Prefix is prepended to every configuration key's variable name.
const Prefix = "DIAGNOBOT_"

// providerKeys maps provider API key variables to the provider they serve.
var providerKeys = map[string]string{
	"GROQ_API_KEY":      "groq",
	"OPENAI_API_KEY":    "openai",
	"ANTHROPIC_API_KEY": "anthropic",
}

// VarName returns the environment variable for a dot-path key,
// e.g. "embedding.batch_size" is DIAGNOBOT_EMBEDDING_BATCH_SIZE.
func VarName(key string) string {
	return Prefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped. With no paths, ".env" in the working directory is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		logger.Debug("Loaded environment from %s", p)
	}
	return nil
}

// Store reads environment overrides before falling back to a base store.
// Overrides live in memory only: Save persists the base values, so secrets
// supplied through the environment are never written to the config file.
type Store struct {
	base      driven.ConfigStore
	overrides map[string]string
}

// Option configures a Store.
type Option func(*options)

type options struct {
	lookup func(string) (string, bool)
}

// WithLookup replaces os.LookupEnv, for tests.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *options) {
		o.lookup = lookup
	}
}

// NewStore captures overrides for keys from the environment.
//
// Each key is read from VarName(key). Provider API keys (GROQ_API_KEY,
// OPENAI_API_KEY, ANTHROPIC_API_KEY) fill llm.api_key and embedding.api_key
// when the configured provider matches and no explicit key is set.
func NewStore(base driven.ConfigStore, keys []string, opts ...Option) *Store {
	o := options{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{base: base, overrides: make(map[string]string)}
	for _, key := range keys {
		if v, ok := o.lookup(VarName(key)); ok {
			s.overrides[key] = v
		}
	}

	for variable, provider := range providerKeys {
		secret, ok := o.lookup(variable)
		if !ok || secret == "" {
			continue
		}
		for _, section := range []string{"llm", "embedding"} {
			keyName := section + ".api_key"
			if s.provider(section) != provider || s.GetString(keyName) != "" {
				continue
			}
			s.overrides[keyName] = secret
		}
	}

	if len(s.overrides) > 0 {
		logger.Debug("Environment overrides %d configuration keys", len(s.overrides))
	}
	return s
}

// provider returns the configured provider for a section, falling back to
// the default when none is set.
func (s *Store) provider(section string) string {
	if p := s.GetString(section + ".provider"); p != "" {
		return p
	}
	defaults := domain.DefaultAppSettings()
	if section == "llm" {
		return defaults.LLM.Provider.String()
	}
	return defaults.Embedding.Provider.String()
}

// Overridden reports whether key is set by the environment.
func (s *Store) Overridden(key string) bool {
	_, ok := s.overrides[key]
	return ok
}

// Get returns the environment value for key if set, otherwise the base value.
func (s *Store) Get(key string) (any, bool) {
	if v, ok := s.overrides[key]; ok {
		return v, true
	}
	return s.base.Get(key)
}

// GetString retrieves a string configuration value.
func (s *Store) GetString(key string) string {
	v, _ := s.Get(key)
	return values.String(v)
}

// GetInt retrieves an integer configuration value.
func (s *Store) GetInt(key string) int {
	v, _ := s.Get(key)
	return values.Int(v)
}

// GetFloat retrieves a floating-point configuration value.
func (s *Store) GetFloat(key string) float64 {
	v, _ := s.Get(key)
	return values.Float(v)
}

// GetBool retrieves a boolean configuration value.
func (s *Store) GetBool(key string) bool {
	v, _ := s.Get(key)
	return values.Bool(v)
}

// Set stores a value in the base store. An environment override for the
// same key still takes precedence on reads.
func (s *Store) Set(key string, value any) error {
	if s.Overridden(key) {
		logger.Warn("%s is set in the environment and overrides %s", VarName(key), key)
	}
	return s.base.Set(key, value)
}

// Save persists the base store.
func (s *Store) Save() error {
	return s.base.Save()
}

// Load reloads the base store. Overrides are captured once at construction.
func (s *Store) Load() error {
	return s.base.Load()
}

// Path returns the base store's file path.
func (s *Store) Path() string {
	return s.base.Path()
}
