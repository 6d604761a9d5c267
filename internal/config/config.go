package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models nova.yml.
type Config struct {
	Owner struct {
		ID string `yaml:"id"`
	} `yaml:"owner"`
	Segments []string `yaml:"segments"`
	Matcher  struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"matcher"`
	Assistant struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		APIKey    string `yaml:"api_key"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"assistant"`
	Auth struct {
		JWTSecret              string `yaml:"jwt_secret"`
		AllowLegacyOwnerHeader bool   `yaml:"allow_legacy_owner_header"`
	} `yaml:"auth"`
	Blob struct {
		SignedURLSecret string `yaml:"signed_url_secret"`
	} `yaml:"blob"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// FallbackSegment is used when a supplied segment is not in the catalog.
const FallbackSegment = "other"

// DefaultThreshold is the minimum title similarity for a reconciliation match.
const DefaultThreshold = 0.85

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Segments) == 0 {
		return fmt.Errorf("config.segments is required")
	}
	hasFallback := false
	for _, s := range c.Segments {
		if s == "" {
			return fmt.Errorf("config.segments contains empty segment")
		}
		if s == FallbackSegment {
			hasFallback = true
		}
	}
	if !hasFallback {
		return fmt.Errorf("config.segments must include %q", FallbackSegment)
	}
	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 1 {
		return fmt.Errorf("config.matcher.threshold must be within [0,1]")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// ValidSegment reports whether s is in the configured catalog.
func (c *Config) ValidSegment(s string) bool {
	for _, seg := range c.Segments {
		if seg == s {
			return true
		}
	}
	return false
}

// Threshold returns the matcher threshold, defaulting when unset.
func (c *Config) Threshold() float64 {
	if c.Matcher.Threshold == 0 {
		return DefaultThreshold
	}
	return c.Matcher.Threshold
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "nova.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with nova config init", Path(workspace))
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `owner:
  id: local-user

segments:
  - saas
  - freelance
  - content
  - investments
  - other

matcher:
  threshold: 0.85

assistant:
  base_url: https://api.openai.com/v1
  model: gpt-4o-mini
  api_key: ""
  timeout_ms: 60000

auth:
  jwt_secret: ""
  allow_legacy_owner_header: true

blob:
  signed_url_secret: ""

webhooks: []
`
