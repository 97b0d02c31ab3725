package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/xmledit/internal/markup"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// AI providers.
const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
	ProviderMock    = "mock"
)

// Session stores.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Samples  SamplesConfig     `yaml:"samples"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	AI       AIConfig          `yaml:"ai"`
	Sessions SessionsConfig    `yaml:"sessions"`
	Markup   MarkupConfig      `yaml:"markup"`
	Archive  ArchiveConfig     `yaml:"archive"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Samples, &c.SQLite, &c.Auth, &c.AI, &c.Sessions, &c.Markup, &c.Archive,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// LogFile, when set, receives a copy of every log record.
	LogFile string `yaml:"log_file"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// CORSOrigins lists the origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors_origins"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SamplesConfig holds the path to the directory of XML documents.
type SamplesConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the samples configuration.
func (c *SamplesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AIConfig selects and configures the completion provider.
//
// Credentials left empty in the file are taken from the environment:
// AWS_REGION, AI_MODEL, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and
// OPENAI_API_KEY. A provider without credentials still starts; the AI
// endpoints then answer 503.
type AIConfig struct {
	Provider        string  `yaml:"provider"`
	ModelID         string  `yaml:"model_id"`
	Region          string  `yaml:"region"`
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	AccessKeyID     string  `yaml:"access_key_id"`
	SecretAccessKey string  `yaml:"secret_access_key"`
	SystemPrompt    string  `yaml:"system_prompt"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
}

func (c *AIConfig) applyEnv(getenv func(string) string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}
	fill(&c.Region, "AWS_REGION")
	fill(&c.ModelID, "AI_MODEL")
	fill(&c.AccessKeyID, "AWS_ACCESS_KEY_ID")
	fill(&c.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	fill(&c.APIKey, "OPENAI_API_KEY")
}

// Validate fills credentials from the environment and validates the AI
// configuration.
func (c *AIConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = ProviderMock
	}
	c.applyEnv(os.Getenv)
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(ProviderBedrock, ProviderOpenAI, ProviderMock)),
		validation.Field(&c.MaxTokens, validation.Min(0), validation.Max(100000)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
	)
}

// SessionsConfig selects where editing sessions are kept.
type SessionsConfig struct {
	Store    string        `yaml:"store"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Validate validates the sessions configuration.
func (c *SessionsConfig) Validate() error {
	if c.Store == "" {
		c.Store = SessionStoreMemory
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Store, validation.In(SessionStoreMemory, SessionStoreRedis)),
		validation.Field(&c.RedisURL, validation.When(c.Store == SessionStoreRedis, validation.Required)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	)
}

// MarkupConfig controls the transcoder.
type MarkupConfig struct {
	Mode     string `yaml:"mode"`
	Sanitize bool   `yaml:"sanitize"`
}

// Validate validates the markup configuration.
func (c *MarkupConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = string(markup.ModeTree)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(string(markup.ModeTree), string(markup.ModeLegacy))),
	)
}

// ArchiveConfig enables the git history of finalized revisions.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:        8080,
				CORSOrigins: []string{"*"},
			},
		},
		Samples: SamplesConfig{
			Path: "./samples",
		},
		SQLite: SQLiteConfig{
			Path: "./xmledit.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		AI: AIConfig{
			Provider:    ProviderMock,
			MaxTokens:   1000,
			Temperature: 0.7,
		},
		Sessions: SessionsConfig{
			Store: SessionStoreMemory,
			TTL:   24 * time.Hour,
		},
		Markup: MarkupConfig{
			Mode:     string(markup.ModeTree),
			Sanitize: true,
		},
		Archive: ArchiveConfig{
			Path: "./archive",
		},
	}
}
