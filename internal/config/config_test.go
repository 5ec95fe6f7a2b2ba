package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1000, cfg.Splitter.ChunkSize)
	assert.Equal(t, 200, cfg.Splitter.ChunkOverlap)
	assert.Equal(t, 3, cfg.Retrieval.K)
	assert.Equal(t, GoogleEmbeddingModel, cfg.Provider.EmbeddingModel)
	assert.Equal(t, GeminiModelName, cfg.Provider.GenerationModel)
	assert.Equal(t, GoogleAPIKeyEnv, cfg.Provider.APIKeyEnv)
	assert.InDelta(t, 0.6, cfg.Provider.Temperature, 1e-6)
}

func TestValidateRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero chunk size", func(c *Config) { c.Splitter.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.Splitter.ChunkOverlap = -1 }},
		{"overlap equals size", func(c *Config) { c.Splitter.ChunkOverlap = c.Splitter.ChunkSize }},
		{"negative k", func(c *Config) { c.Retrieval.K = -1 }},
		{"zero k", func(c *Config) { c.Retrieval.K = 0 }},
		{"unknown backend", func(c *Config) { c.Index.Backend = "chroma" }},
		{"unknown metric", func(c *Config) { c.Index.Metric = "manhattan" }},
		{"unknown strategy", func(c *Config) { c.Splitter.Strategy = "semantic" }},
		{"unknown provider", func(c *Config) { c.Provider.Name = "ollama" }},
		{"empty document", func(c *Config) { c.Document.Path = " " }},
		{"empty collection", func(c *Config) { c.Index.Collection = "" }},
		{"temperature too high", func(c *Config) { c.Provider.Temperature = 3 }},
		{"template without question", func(c *Config) { c.Prompt.Template = "{{.Context}} only" }},
		{"empty refusal", func(c *Config) { c.Prompt.Refusal = "" }},
		{"unknown session store", func(c *Config) { c.Sessions.Store = "memcached" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, ragErrors.IsConfig(err), "expected config error, got %v", err)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Splitter.ChunkSize = 0
	cfg.Retrieval.K = -2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_size")
	assert.Contains(t, err.Error(), "retrieval.k")
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `
document:
  path: abap.pdf
splitter:
  chunk_size: 500
  chunk_overlap: 50
retrieval:
  k: 5
provider:
  name: openai
  timeout: 15s
sessions:
  ttl: 1h
`)
	t.Setenv(envCollection, "from-env")
	t.Setenv(envLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abap.pdf", cfg.Document.Path)
	assert.Equal(t, 500, cfg.Splitter.ChunkSize)
	assert.Equal(t, 50, cfg.Splitter.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.Equal(t, "from-env", cfg.Index.Collection)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 15*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, time.Hour, cfg.Sessions.TTL)

	// provider defaults follow the provider chosen in the file
	assert.Equal(t, OpenAIAPIKeyEnv, cfg.Provider.APIKeyEnv)
	assert.Equal(t, OpenAIEmbeddingModel, cfg.Provider.EmbeddingModel)
	assert.Equal(t, OpenAIEmbeddingDimensionality, cfg.Provider.EmbeddingDimension)
}

func TestLoadExplicitZeroChunkSizeFails(t *testing.T) {
	path := writeConfig(t, "splitter:\n  chunk_size: 0\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ragErrors.IsConfig(err))
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "retrieval:\n  top_k: 4\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ragErrors.IsConfig(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, ragErrors.IsConfig(err))
}

func TestQdrantLocationFollowsHost(t *testing.T) {
	t.Setenv(envIndexBackend, "qdrant")
	t.Setenv(envQdrantHost, "qdrant.internal")
	t.Setenv(envQdrantPort, "7334")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal:7334", cfg.Index.Location)
}

func TestBadQdrantPort(t *testing.T) {
	t.Setenv(envQdrantPort, "not-a-port")

	_, err := Load("")
	require.Error(t, err)
	assert.True(t, ragErrors.IsConfig(err))
}

func TestAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Provider.APIKeyEnv = "DOCQA_TEST_KEY"

	t.Setenv("DOCQA_TEST_KEY", "")
	_, err := cfg.APIKey()
	require.Error(t, err)
	assert.True(t, ragErrors.IsConfig(err))
	assert.True(t, errors.Is(err, ragErrors.ErrMissingCredential))

	t.Setenv("DOCQA_TEST_KEY", "secret")
	key, err := cfg.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "secret", key)
}

func TestCustomTemplate(t *testing.T) {
	cfg := Default()
	cfg.Prompt.Template = "Notes:\n{{.Context}}\nQ: {{.Question}}"
	assert.NoError(t, cfg.Validate())

	cfg.Prompt.Template = "{{.Context}} {{.Question}} {{.Missing}}"
	assert.Error(t, cfg.Validate())
}
