package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thomasluizon/orbit-api-sub001/internal/constants"
	"github.com/thomasluizon/orbit-api-sub001/internal/keyring"
)

// Provider names accepted for the llm section.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Database drivers accepted for the database section.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all Orbit configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Facts    FactsConfig    `yaml:"facts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects the store. DSN is a file path for sqlite and a
// connection string (without password) for postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// FromKeyring is set when DSN was read from the OS keyring, which is the
	// one place a postgres password may live.
	FromKeyring bool `yaml:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen        string `yaml:"listen"`
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTL      string `yaml:"token_ttl"`
	MaxImageBytes int64  `yaml:"max_image_bytes"`
}

// LLMConfig configures the intent interpreter and the fact extractor.
// ExtractProvider is deliberately independent of InterpretProvider: extraction
// always goes to the provider that is most reliable at structured output.
type LLMConfig struct {
	InterpretProvider string       `yaml:"interpret_provider"`
	ExtractProvider   string       `yaml:"extract_provider"`
	MaxRetries        int          `yaml:"max_retries"`
	RetryBackoff      string       `yaml:"retry_backoff"`
	Gemini            GeminiConfig `yaml:"gemini"`
	Ollama            OllamaConfig `yaml:"ollama"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

type OllamaConfig struct {
	URL     string `yaml:"url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// FactsConfig configures the fact extraction pass.
type FactsConfig struct {
	Async   bool   `yaml:"async"`
	Timeout string `yaml:"timeout"`
}

type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Dir   string `yaml:"dir"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	dataDir := ExpandHome(constants.DefaultDataDir)
	return Config{
		DataDir: dataDir,
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    filepath.Join(dataDir, constants.DefaultDBFile),
		},
		Server: ServerConfig{
			Listen:        constants.DefaultListenAddr,
			TokenTTL:      constants.DefaultTokenTTL.String(),
			MaxImageBytes: constants.DefaultMaxImageBytes,
		},
		LLM: LLMConfig{
			InterpretProvider: ProviderGemini,
			ExtractProvider:   ProviderGemini,
			MaxRetries:        constants.DefaultMaxRetries,
			RetryBackoff:      constants.DefaultRetryBackoff.String(),
			Gemini: GeminiConfig{
				Model:   constants.DefaultGeminiModel,
				Timeout: constants.DefaultLLMTimeout.String(),
			},
			Ollama: OllamaConfig{
				URL:     constants.DefaultOllamaURL,
				Model:   constants.DefaultOllamaModel,
				Timeout: constants.DefaultLLMTimeout.String(),
			},
		},
		Facts: FactsConfig{
			Async:   true,
			Timeout: constants.DefaultFactsWait.String(),
		},
	}
}

// Load reads the YAML file at path on top of Default(), applies environment
// overrides and fills still-empty secrets from the OS keyring. A missing file
// is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	path = ExpandHome(path)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyKeyring(keyring.Lookup)
	cfg.DataDir = ExpandHome(cfg.DataDir)
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = cfg.DataDir
	}
	cfg.Logging.Dir = ExpandHome(cfg.Logging.Dir)
	if cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = ExpandHome(cfg.Database.DSN)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ORBIT_DB"); v != "" {
		c.Database.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			c.Database.Driver = DriverPostgres
		}
	}
	if v := getenv("ORBIT_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := getenv("ORBIT_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.Gemini.APIKey = v
	}
	if v := getenv("OLLAMA_URL"); v != "" {
		c.LLM.Ollama.URL = v
	}
	if v := getenv("ORBIT_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.Debug = b
		}
	}
}

func (c *Config) applyKeyring(lookup func(string) string) {
	if c.LLM.Gemini.APIKey == "" {
		c.LLM.Gemini.APIKey = lookup(constants.SecretGeminiAPIKey)
	}
	if c.Server.JWTSecret == "" {
		c.Server.JWTSecret = lookup(constants.SecretJWT)
	}
	if c.Database.Driver == DriverPostgres && c.Database.DSN == "" {
		c.Database.DSN = lookup(constants.SecretDBConnection)
		c.Database.FromKeyring = c.Database.DSN != ""
	}
}

// Validate rejects unknown providers and drivers and malformed durations.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	for _, p := range []string{c.LLM.InterpretProvider, c.LLM.ExtractProvider} {
		if p != ProviderGemini && p != ProviderOllama {
			return fmt.Errorf("unknown llm provider %q", p)
		}
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	durations := map[string]string{
		"server.token_ttl":   c.Server.TokenTTL,
		"llm.retry_backoff":  c.LLM.RetryBackoff,
		"llm.gemini.timeout": c.LLM.Gemini.Timeout,
		"llm.ollama.timeout": c.LLM.Ollama.Timeout,
		"facts.timeout":      c.Facts.Timeout,
	}
	for name, raw := range durations {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Server.MaxImageBytes <= 0 {
		return fmt.Errorf("server.max_image_bytes must be positive")
	}
	return nil
}

// Duration parses one of the validated duration fields. Invalid values have
// already been rejected by Validate, so the fallback is only reached for a
// zero-value Config.
func Duration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
