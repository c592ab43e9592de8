package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 400, cfg.Retrieval.MaxDocLength)
	assert.Equal(t, 3, cfg.Retrieval.MinQueryLength)
	assert.Equal(t, "aven.com", cfg.Retrieval.SearchSite)
	assert.Equal(t, uint64(1536), cfg.Qdrant.VectorSize)
	assert.Equal(t, 5, cfg.Chat.MaxToolIterations)
	assert.Equal(t, 100, cfg.Cache.EmbeddingCapacity)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "invalid server port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "invalid logging format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging format",
		},
		{
			name:    "zero top_k",
			mutate:  func(c *Config) { c.Retrieval.TopK = 0 },
			wantErr: "top_k",
		},
		{
			name:    "missing collection",
			mutate:  func(c *Config) { c.Qdrant.Collection = "" },
			wantErr: "collection required",
		},
		{
			name:    "zero vector size",
			mutate:  func(c *Config) { c.Qdrant.VectorSize = 0 },
			wantErr: "vector_size",
		},
		{
			name:    "zero tool iterations",
			mutate:  func(c *Config) { c.Chat.MaxToolIterations = 0 },
			wantErr: "max_tool_iterations",
		},
		{
			name:    "zero idle ttl",
			mutate:  func(c *Config) { c.Session.IdleTTL = 0 },
			wantErr: "idle_ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9100\nretrieval:\n  top_k: 3\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("SUPPORTD_SERVER_PORT", "9200")
	t.Setenv("SUPPORTD_RETRIEVAL_SEARCH_SITE", "example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env beats YAML, YAML beats defaults.
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "example.com", cfg.Retrieval.SearchSite)
	assert.Equal(t, 400, cfg.Retrieval.MaxDocLength)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Session.IdleTTL)
}

func TestLoadCredentialEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SERPER_API_KEY", "serper-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey)
	assert.Equal(t, "serper-test", cfg.Serper.APIKey)
}
