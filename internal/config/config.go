// Package config provides configuration loading for supportd.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. Defaults are production-ready for local development
// against a local Qdrant instance.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete supportd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	Serper     SerperConfig     `koanf:"serper"`
	Vapi       VapiConfig       `koanf:"vapi"`
	Calendar   CalendarConfig   `koanf:"calendar"`
	Cache      CacheConfig      `koanf:"cache"`
	Session    SessionConfig    `koanf:"session"`
	Chat       ChatConfig       `koanf:"chat"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RetrievalConfig holds tuning knobs for the retrieval pipeline.
type RetrievalConfig struct {
	TopK             int    `koanf:"top_k"`
	MaxDocLength     int    `koanf:"max_doc_length"`
	SnippetLength    int    `koanf:"snippet_length"`
	MinQueryLength   int    `koanf:"min_query_length"`
	MinContentLength int    `koanf:"min_content_length"`
	SufficientLength int    `koanf:"sufficient_length"`
	MinFallbackLen   int    `koanf:"min_fallback_length"`
	SearchSite       string `koanf:"search_site"`
}

// QdrantConfig holds vector index connection settings.
type QdrantConfig struct {
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Collection string        `koanf:"collection"`
	VectorSize uint64        `koanf:"vector_size"`
	UseTLS     bool          `koanf:"use_tls"`
	Timeout    time.Duration `koanf:"timeout"`
}

// EmbeddingsConfig holds embedding backend settings.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

// SerperConfig holds web search API settings.
type SerperConfig struct {
	APIKey   string        `koanf:"api_key"`
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
}

// VapiConfig holds voice platform settings.
type VapiConfig struct {
	APIKey     string `koanf:"api_key"`
	BaseURL    string `koanf:"base_url"`
	WebhookURL string `koanf:"webhook_url"`
}

// CalendarConfig holds calendar service settings.
type CalendarConfig struct {
	TokenPath    string `koanf:"token_path"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	CalendarID   string `koanf:"calendar_id"`
}

// CacheConfig holds memoization cache capacities.
type CacheConfig struct {
	EmbeddingCapacity int `koanf:"embedding_capacity"`
	WebCapacity       int `koanf:"web_capacity"`
}

// SessionConfig holds chat session lifecycle settings.
type SessionConfig struct {
	IdleTTL       time.Duration `koanf:"idle_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// ChatConfig holds tool-calling loop settings.
type ChatConfig struct {
	MaxToolIterations int `koanf:"max_tool_iterations"`
}

// IngestConfig holds website ingestion settings.
type IngestConfig struct {
	SupportURL   string        `koanf:"support_url"`
	ChunkSize    int           `koanf:"chunk_size"`
	ChunkOverlap int           `koanf:"chunk_overlap"`
	Timeout      time.Duration `koanf:"timeout"`
}

// TelemetryConfig holds OpenTelemetry trace export settings.
//
// Disabled by default; deployments without an OTLP collector run with
// the no-op global tracer.
type TelemetryConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Endpoint        string        `koanf:"endpoint"`
	ServiceName     string        `koanf:"service_name"`
	ServiceVersion  string        `koanf:"service_version"`
	Insecure        bool          `koanf:"insecure"`
	SamplingRate    float64       `koanf:"sampling_rate"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Default returns config with production-ready defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Retrieval: RetrievalConfig{
			TopK:             5,
			MaxDocLength:     400,
			SnippetLength:    200,
			MinQueryLength:   3,
			MinContentLength: 20,
			SufficientLength: 100,
			MinFallbackLen:   50,
			SearchSite:       "aven.com",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "aven_support_index",
			VectorSize: 1536,
			Timeout:    10 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-small",
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			MaxTokens:   300,
		},
		Serper: SerperConfig{
			Endpoint: "https://google.serper.dev/search",
			Timeout:  5 * time.Second,
		},
		Vapi: VapiConfig{
			BaseURL:    "https://api.vapi.ai",
			WebhookURL: "http://localhost:8000",
		},
		Calendar: CalendarConfig{
			TokenPath:  "token.json",
			CalendarID: "primary",
		},
		Cache: CacheConfig{
			EmbeddingCapacity: 100,
			WebCapacity:       50,
		},
		Session: SessionConfig{
			IdleTTL:       time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Chat: ChatConfig{
			MaxToolIterations: 5,
		},
		Ingest: IngestConfig{
			SupportURL:   "https://www.aven.com/support",
			ChunkSize:    500,
			ChunkOverlap: 50,
			Timeout:      30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			Endpoint:        "localhost:4317",
			ServiceName:     "supportd",
			ServiceVersion:  "0.1.0",
			Insecure:        true,
			SamplingRate:    1.0,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval top_k must be >= 1, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxDocLength < 1 {
		return errors.New("retrieval max_doc_length must be positive")
	}
	if c.Retrieval.MinQueryLength < 1 {
		return errors.New("retrieval min_query_length must be positive")
	}
	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("invalid qdrant port: %d", c.Qdrant.Port)
	}
	if c.Qdrant.Collection == "" {
		return errors.New("qdrant collection required")
	}
	if c.Qdrant.VectorSize == 0 {
		return errors.New("qdrant vector_size required")
	}
	if c.Cache.EmbeddingCapacity < 1 || c.Cache.WebCapacity < 1 {
		return errors.New("cache capacities must be positive")
	}
	if c.Chat.MaxToolIterations < 1 {
		return errors.New("chat max_tool_iterations must be positive")
	}
	if c.Session.IdleTTL <= 0 || c.Session.SweepInterval <= 0 {
		return errors.New("session idle_ttl and sweep_interval must be positive")
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry endpoint required when telemetry enabled")
		}
		if c.Telemetry.ServiceName == "" {
			return errors.New("telemetry service_name required when telemetry enabled")
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return fmt.Errorf("telemetry sampling_rate must be between 0 and 1, got %f", c.Telemetry.SamplingRate)
		}
	}
	return nil
}
