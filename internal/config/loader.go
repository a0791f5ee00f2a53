package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultMaxTokens      = 250
	DefaultTemperature    = 0.2
	DefaultLLMTimeout     = 30000 // ms
	DefaultToolTimeout    = 30000 // ms
	DefaultShutdownGrace  = 500   // ms
	DefaultPort           = "3001"
	DefaultRateLimit      = 60 // requests per minute
)

// Config represents the root configuration structure
type Config struct {
	Server ServerConfig `yaml:"server" validate:"required"`
	LLM    LLMConfig    `yaml:"llm" validate:"required"`
	HTTP   HTTPConfig   `yaml:"http"`
}

// ServerConfig describes how to spawn the tool registry process
type ServerConfig struct {
	Name          string   `yaml:"name" validate:"required,hostname_rfc1123,max=50"`
	Command       string   `yaml:"command" validate:"required"`
	Args          []string `yaml:"args"`
	Envs          []EnvVar `yaml:"envs" validate:"dive"`
	Timeout       int      `yaml:"timeout" validate:"min=0,max=300000"`       // Max 5 minutes
	ShutdownGrace int      `yaml:"shutdown_grace" validate:"min=0,max=60000"` // Max 1 minute
}

// EnvVar represents an environment variable for the server
type EnvVar struct {
	Name  string `yaml:"name" validate:"required,printascii"`
	Value string `yaml:"value"`
}

// LLMConfig selects and tunes the language model
type LLMConfig struct {
	Provider    string  `yaml:"provider" validate:"required,oneof=openai anthropic"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key" validate:"required"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	MaxTokens   int     `yaml:"max_tokens" validate:"min=1,max=4096"`
	Temperature float64 `yaml:"temperature" validate:"min=0,max=2"`
	Timeout     int     `yaml:"timeout" validate:"min=0,max=300000"`
}

// HTTPConfig configures the serve mode
type HTTPConfig struct {
	Port               string `yaml:"port" validate:"omitempty,numeric"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute" validate:"min=0,max=100000"`
}

// LoadConfig loads and validates the configuration from the specified path.
// A .env file in the working directory is loaded first when present; it never
// overrides variables already set in the environment.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expandedData := os.ExpandEnv(string(data))

	// Parse YAML
	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyDefaults(&config); err != nil {
		return nil, err
	}

	// Validate config
	validate := validator.New()
	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) error {
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = DefaultToolTimeout
	}
	if cfg.Server.ShutdownGrace == 0 {
		cfg.Server.ShutdownGrace = DefaultShutdownGrace
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	// YAML takes precedence; fall back to the provider's conventional variable
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case ProviderOpenAI:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case ProviderOpenAI:
			cfg.LLM.Model = DefaultOpenAIModel
		case ProviderAnthropic:
			cfg.LLM.Model = DefaultAnthropicModel
		}
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultMaxTokens
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = DefaultTemperature
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultLLMTimeout
	}

	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = os.Getenv("PORT")
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = DefaultPort
	}
	if cfg.HTTP.RateLimitPerMinute == 0 {
		if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
			}
			cfg.HTTP.RateLimitPerMinute = n
		} else {
			cfg.HTTP.RateLimitPerMinute = DefaultRateLimit
		}
	}
	return nil
}
