package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Collab  CollabConfig
	Session SessionConfig
	Storage StorageConfig
	Log     LogConfig
	Engine  EngineConfig
	Ollama  OllamaConfig
	OpenAI  OpenAIConfig
}

type ServerConfig struct {
	Port int
	// APIToken, when set, is required as a bearer token on /v1 routes.
	APIToken string
}

// CollabConfig points the workspace at the collaborator service and bounds
// each of its calls.
type CollabConfig struct {
	BaseURL           string
	ConceptTimeout    time.Duration
	MergeTimeout      time.Duration
	SimilarityTimeout time.Duration
	SearchTimeout     time.Duration
}

type SessionConfig struct {
	// TTL is how long an untouched session survives in storage. Zero keeps
	// sessions forever.
	TTL time.Duration
	// IdleTimeout drops a live workspace from memory.
	IdleTimeout   time.Duration
	AlertDuration time.Duration
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// EngineConfig configures the reference collaborator service.
type EngineConfig struct {
	Port     int
	Provider string // "ollama" or "openai"
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type OpenAIConfig struct {
	BaseURL    string
	Model      string
	EmbedModel string
	APIKey     string
}

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Collab: CollabConfig{
			BaseURL:           "http://localhost:4101",
			ConceptTimeout:    30 * time.Second,
			MergeTimeout:      30 * time.Second,
			SimilarityTimeout: 30 * time.Second,
			SearchTimeout:     30 * time.Second,
		},
		Session: SessionConfig{
			TTL:           30 * 24 * time.Hour,
			IdleTimeout:   30 * time.Minute,
			AlertDuration: 3 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			Port:     4101,
			Provider: ProviderOllama,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "mistral-nemo",
			EmbedModel: "nomic-embed-text",
		},
		OpenAI: OpenAIConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
	}
}

// Load reads configuration from the platform-native store, environment
// variables, and platform secret store.
//
// On macOS the store is UserDefaults (domain: com.keyweave.app) and
// secrets fall back to macOS Keychain.
// On Linux the store is a JSON file at $XDG_CONFIG_HOME/keyweave/config.json
// and secrets fall back to $XDG_DATA_HOME/keyweave/secrets.json.
//
// Environment variables (KEYWEAVE_*) override store values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformStore(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

const keychainService = "keyweave"

func loadWith(st Store, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyStore(&cfg, st); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Secrets not set in the environment come from the platform keychain.
	for _, s := range specs {
		if !s.secret || s.extract(cfg) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Engine.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid engine.provider %q: want %q or %q", c.Engine.Provider, ProviderOllama, ProviderOpenAI)
	}
	if c.Collab.BaseURL == "" {
		return fmt.Errorf("missing required config: collab.base_url")
	}
	for _, p := range []struct {
		key  string
		port int
	}{{"server.port", c.Server.Port}, {"engine.port", c.Engine.Port}} {
		if p.port <= 0 || p.port > 65535 {
			return fmt.Errorf("invalid %s %d", p.key, p.port)
		}
	}
	// A live workspace must outlast any merge started on it.
	if c.Session.IdleTimeout > 0 && c.Session.IdleTimeout <= c.Collab.MergeTimeout {
		return fmt.Errorf("invalid session.idle_timeout %s: must exceed collab.merge_timeout %s",
			c.Session.IdleTimeout, c.Collab.MergeTimeout)
	}
	return nil
}

// RequireOpenAIKey returns an error when the OpenAI provider is selected but
// no API key was found.
func (c Config) RequireOpenAIKey() error {
	if c.Engine.Provider != ProviderOpenAI || c.OpenAI.APIKey != "" {
		return nil
	}
	return fmt.Errorf("%s", "missing required config: OpenAI API key. " +
		"Set it via environment variable KEYWEAVE_OPENAI_API_KEY" +
		apiKeyHint())
}

// keychainReader reads secrets from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
