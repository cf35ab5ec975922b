package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // keychain account for secrets
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "KEYWEAVE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "KEYWEAVE_API_TOKEN",
		secret: true, account: "api_token",
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "collab.base_url", typ: kString, env: "KEYWEAVE_COLLAB_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Collab.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Collab.BaseURL },
	},
	{
		key: "collab.concept_timeout", typ: kDuration, env: "KEYWEAVE_COLLAB_CONCEPT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Collab.ConceptTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Collab.ConceptTimeout },
	},
	{
		key: "collab.merge_timeout", typ: kDuration, env: "KEYWEAVE_COLLAB_MERGE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Collab.MergeTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Collab.MergeTimeout },
	},
	{
		key: "collab.similarity_timeout", typ: kDuration, env: "KEYWEAVE_COLLAB_SIMILARITY_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Collab.SimilarityTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Collab.SimilarityTimeout },
	},
	{
		key: "collab.search_timeout", typ: kDuration, env: "KEYWEAVE_COLLAB_SEARCH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Collab.SearchTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Collab.SearchTimeout },
	},
	{
		key: "session.ttl", typ: kDuration, env: "KEYWEAVE_SESSION_TTL",
		apply:   func(cfg *Config, v any) { cfg.Session.TTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Session.TTL },
	},
	{
		key: "session.idle_timeout", typ: kDuration, env: "KEYWEAVE_SESSION_IDLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Session.IdleTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Session.IdleTimeout },
	},
	{
		key: "session.alert_duration", typ: kDuration, env: "KEYWEAVE_SESSION_ALERT_DURATION",
		apply:   func(cfg *Config, v any) { cfg.Session.AlertDuration = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Session.AlertDuration },
	},
	{
		key: "storage.data_dir", typ: kString, env: "KEYWEAVE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "KEYWEAVE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "engine.port", typ: kInt, env: "KEYWEAVE_ENGINE_PORT",
		apply:   func(cfg *Config, v any) { cfg.Engine.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Engine.Port },
	},
	{
		key: "engine.provider", typ: kString, env: "KEYWEAVE_ENGINE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Engine.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Provider },
	},
	{
		key: "ollama.base_url", typ: kString, env: "KEYWEAVE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: "KEYWEAVE_OLLAMA_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "KEYWEAVE_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "openai.base_url", typ: kString, env: "KEYWEAVE_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.model", typ: kString, env: "KEYWEAVE_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.Model },
	},
	{
		key: "openai.embed_model", typ: kString, env: "KEYWEAVE_OPENAI_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EmbedModel },
	},
	{
		key: "openai.api_key", typ: kString, env: "KEYWEAVE_OPENAI_API_KEY",
		secret: true, account: "openai_api_key",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts a raw stored or environment value to the key's type.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kDuration:
		d, err := time.ParseDuration(raw)
		if err == nil && d < 0 {
			return nil, fmt.Errorf("negative duration %s", raw)
		}
		return d, err
	default:
		return raw, nil
	}
}

func applyStore(cfg *Config, st Store) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok, err := st.Lookup(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
