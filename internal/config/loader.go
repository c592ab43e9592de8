package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix restricts env overrides to supportd's own namespace.
const envPrefix = "SUPPORTD_"

// Load loads configuration from an optional YAML file and environment
// variables.
//
// Precedence (highest to lowest):
//  1. SUPPORTD_* environment variables (SUPPORTD_SERVER_PORT, ...)
//  2. YAML config file (configPath, skipped when empty or missing)
//  3. Hardcoded defaults
//
// Environment variables map the first underscore-separated token to the
// config section and the remainder to the field:
//
//	SUPPORTD_SERVER_PORT             -> server.port
//	SUPPORTD_RETRIEVAL_MAX_DOC_LENGTH -> retrieval.max_doc_length
//	SUPPORTD_QDRANT_COLLECTION       -> qdrant.collection
//
// API credentials additionally honor the conventional unprefixed variables
// OPENAI_API_KEY, SERPER_API_KEY and VAPI_API_KEY.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyCredentialEnv(cfg)
	return cfg, nil
}

// transformEnvKey maps SUPPORTD_SECTION_FIELD_NAME to section.field_name.
func transformEnvKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + field
}

// applyCredentialEnv fills API keys from the conventional environment
// variables when the config left them empty.
func applyCredentialEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = key
		}
		if cfg.Embeddings.APIKey == "" {
			cfg.Embeddings.APIKey = key
		}
	}
	if cfg.Serper.APIKey == "" {
		cfg.Serper.APIKey = os.Getenv("SERPER_API_KEY")
	}
	if cfg.Vapi.APIKey == "" {
		cfg.Vapi.APIKey = os.Getenv("VAPI_API_KEY")
	}
}
