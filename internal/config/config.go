// Package config loads the gateway configuration.
//
// DESIGN: Configuration is an explicit struct constructed once at startup and
// passed by reference into the components that need it. No component reads
// ambient environment state directly; the environment is consulted exactly
// once, here.
//
// Provider credentials decide which backend serves requests (see
// provider.Select). Model token limits live in a built-in table that an
// optional YAML file can override.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// MaxFileSize is the hard cap for uploaded files (16 MiB).
const MaxFileSize = 16 * 1024 * 1024

// Config is the root configuration for the CSV gateway.
type Config struct {
	// Server
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // "json" or "console"

	// Enterprise gateway (Azure OpenAI style deployment)
	AzureAPIKey     string `env:"AZURE_OPENAI_API_KEY"`
	AzureEndpoint   string `env:"AZURE_OPENAI_ENDPOINT"`
	AzureDeployment string `env:"AZURE_OPENAI_DEPLOYMENT_NAME" envDefault:"gpt-4o"`
	AzureAPIVersion string `env:"AZURE_OPENAI_API_VERSION" envDefault:"2024-02-15-preview"`

	// Anthropic (direct file upload)
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-sonnet-20240229"`

	// OpenAI
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL" envDefault:"gpt-4-turbo-preview"`

	// Google Gemini
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	GoogleModel  string `env:"GOOGLE_MODEL" envDefault:"gemini-pro"`

	// MaxResponseTokens overrides the per-backend response-token cap when
	// positive; zero keeps each backend's default.
	MaxResponseTokens int `env:"MAX_RESPONSE_TOKENS"`

	// Optional YAML file overriding the built-in model token limits.
	TokenLimitsFile string `env:"TOKEN_LIMITS_FILE"`

	// ModelLimits maps model name -> context window in tokens. Populated by
	// Load from the built-in table plus the optional override file.
	ModelLimits map[string]int `env:"-"`
}

// defaultModelLimits is the built-in context-window table. Models absent from
// the table fall back to budget.DefaultModelLimit.
var defaultModelLimits = map[string]int{
	"gpt-4":            8192,
	"gpt-4-32k":        32768,
	"gpt-4o":           50000,
	"gpt-4-turbo":      128000,
	"gpt-35-turbo":     4096,
	"gpt-35-turbo-16k": 16385,
}

// Load parses configuration from the environment and merges model limits.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.ModelLimits = make(map[string]int, len(defaultModelLimits))
	for k, v := range defaultModelLimits {
		cfg.ModelLimits[k] = v
	}

	if cfg.TokenLimitsFile != "" {
		data, err := os.ReadFile(cfg.TokenLimitsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read token limits file '%s': %w", cfg.TokenLimitsFile, err)
		}
		overrides, err := parseModelLimits(data)
		if err != nil {
			return nil, fmt.Errorf("invalid token limits file '%s': %w", cfg.TokenLimitsFile, err)
		}
		for k, v := range overrides {
			cfg.ModelLimits[k] = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// parseModelLimits reads a YAML mapping of model name -> token limit.
// Values support ${VAR:-default} env var expansion.
func parseModelLimits(data []byte) (map[string]int, error) {
	expanded := expandEnvWithDefaults(string(data))

	var doc struct {
		Limits map[string]int `yaml:"limits"`
	}
	if err := yaml.Unmarshal([]byte(expanded), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for model, limit := range doc.Limits {
		if limit <= 0 {
			return nil, fmt.Errorf("limit for model '%s' must be positive, got %d", model, limit)
		}
	}
	return doc.Limits, nil
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks structural constraints. Credential presence is deliberately
// NOT validated here: provider selection owns that decision.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1-65535, got %d", c.Port)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got '%s'", c.LogFormat)
	}
	if c.AzureEndpoint != "" && !strings.HasPrefix(c.AzureEndpoint, "http") {
		return fmt.Errorf("azure endpoint must be an http(s) URL, got '%s'", c.AzureEndpoint)
	}
	return nil
}
