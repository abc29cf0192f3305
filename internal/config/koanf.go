package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the variable that points at a YAML config file
const ConfigPathEnvVar = "RECOMMENDER_CONFIG"

// envMappings maps environment variables to config paths. The credential
// and API_URL names are the ones deployments already set.
var envMappings = map[string]string{
	"hf_token":       "embedding.api_key",
	"gemini_api_key": "llm.api_key",
	"api_url":        "batch.api_url",

	"recommender_embedding_provider": "embedding.provider",
	"recommender_embedding_model":    "embedding.model",
	"recommender_embedding_url":      "embedding.base_url",
	"recommender_llm_model":          "llm.model",
	"recommender_system_prompt":      "llm.system_prompt_path",
	"recommender_index_dir":          "index.dir",
	"recommender_index_backend":      "index.backend",
	"recommender_source":             "index.source",
	"recommender_top_k":              "retrieval.top_k",
	"recommender_addr":               "server.addr",
	"recommender_rate_limit":         "server.rate_limit",
	"recommender_cors_origins":       "server.cors_origins",
	"recommender_batch_concurrency":  "batch.concurrency",
	"recommender_log_level":          "logging.level",
	"recommender_log_format":         "logging.format",
}

// sliceConfigPaths are parsed from comma-separated env values
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// Load builds the configuration from three layers, later ones winning:
//  1. built-in defaults
//  2. an optional YAML file (path argument, else RECOMMENDER_CONFIG)
//  3. environment variables
//
// The result is validated before it is returned.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransformFunc maps known variables and drops the rest
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// processSliceFields splits comma-separated strings for slice fields
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return err
		}
	}
	return nil
}
