// Package config loads BEAGLE configuration from the environment.
//
// Configuration is environment-first: a .env file is loaded if present
// (via godotenv), then recognized BEAGLE_* and provider-key variables are
// read into per-component config structs. There are no implicit singletons;
// callers construct components from the structs returned here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level BEAGLE configuration.
type Config struct {
	// DataDir is the root directory for journals, alerts and exports.
	DataDir string `yaml:"data_dir"`

	Log       LogConfig       `yaml:"log"`
	Providers ProviderConfig  `yaml:"providers"`
	Local     LocalTierConfig `yaml:"local"`
	Search    SearchConfig    `yaml:"search"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProviderConfig holds hosted-API provider credentials discovered from env.
type ProviderConfig struct {
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	XAIAPIKey       string `yaml:"-"`
	DeepSeekAPIKey  string `yaml:"-"`
}

// LocalTierConfig configures the local-model fallback tier.
type LocalTierConfig struct {
	// Host is the Ollama server URL (OLLAMA_HOST).
	Host string `yaml:"host"`
	// Model is the default local model (BEAGLE_LOCAL_MODEL).
	Model string `yaml:"model"`
	// Timeout for local completions (BEAGLE_LOCAL_TIMEOUT, seconds).
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig configures external literature search collaborators.
type SearchConfig struct {
	// NCBIAPIKey raises the external search rate limit when set.
	NCBIAPIKey string `yaml:"-"`
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.DataDir = filepath.Join(home, ".beagle")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Local.Host == "" {
		c.Local.Host = "http://localhost:11434"
	}
	if c.Local.Model == "" {
		c.Local.Model = "gemma2:9b"
	}
	if c.Local.Timeout == 0 {
		c.Local.Timeout = 120 * time.Second
	}
}

// Load reads configuration from the environment, loading a .env file first
// if one exists in the working directory.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.applyEnv()
	cfg.SetDefaults()
	return cfg
}

// LoadFile loads a YAML config file, then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.SetDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BEAGLE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("BEAGLE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BEAGLE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	c.Providers.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.Providers.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.Providers.XAIAPIKey = os.Getenv("XAI_API_KEY")
	c.Providers.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")
	c.Search.NCBIAPIKey = os.Getenv("NCBI_API_KEY")

	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Local.Host = v
	}
	if v := os.Getenv("BEAGLE_LOCAL_MODEL"); v != "" {
		c.Local.Model = v
	}
	if v := os.Getenv("BEAGLE_LOCAL_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Local.Timeout = time.Duration(secs) * time.Second
		}
	}
}

// EnsureDataLayout creates the persisted-state directory layout under the
// data dir: alerts/, experiments/, feedback/, logs/.
func (c *Config) EnsureDataLayout() error {
	for _, sub := range []string{"alerts", "experiments", "feedback", "logs"} {
		if err := os.MkdirAll(filepath.Join(c.DataDir, sub), 0o755); err != nil {
			return fmt.Errorf("create data dir %s: %w", sub, err)
		}
	}
	return nil
}
