package internal

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Docs      DocsConfig        `yaml:"docs"`
	Discourse DiscourseConfig   `yaml:"discourse"`
	Sync      SyncConfig        `yaml:"sync"`
	Output    OutputConfig      `yaml:"output"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Docs.Validate(); err != nil {
		return err
	}
	if err := c.Discourse.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the status HTTP server configuration used in watch mode.
type HTTPConfig struct {
	Port int `yaml:"port"`
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

// DocsConfig locates the documentation inputs. Base is the project root
// holding metadata.yaml; Path is the documentation tree beneath it.
type DocsConfig struct {
	Base string `yaml:"base"`
	Path string `yaml:"path"`
}

// Validate validates the docs configuration.
func (c *DocsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Base, validation.Required),
		validation.Field(&c.Path, validation.Required),
	)
}

// DiscourseConfig holds the connection settings for the Discourse forum.
//
// Host is the bare hostname of the forum, without a protocol prefix; the
// client always speaks HTTPS.
type DiscourseConfig struct {
	Host        string `yaml:"host"`
	APIUsername string `yaml:"api_username"`
	APIKey      string `yaml:"api_key"`
	CategoryID  int    `yaml:"category_id"`
}

// Validate validates the Discourse configuration.
func (c *DiscourseConfig) Validate() error {
	if strings.Contains(c.Host, "://") {
		return fmt.Errorf("discourse: host %q must not include a protocol", c.Host)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.APIUsername, validation.Required),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.CategoryID, validation.Min(0)),
	)
}

// SyncConfig controls how the reconciliation run behaves.
type SyncConfig struct {
	DeleteTopics bool `yaml:"delete_topics"`
	DryRun       bool `yaml:"dry_run"`
	Concurrency  int  `yaml:"concurrency"`
	Retries      int  `yaml:"retries"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.Retries, validation.Min(0), validation.Max(10)),
	)
}

// OutputConfig holds the optional action output file.
//
// When Path is non-empty each run appends its urls_with_actions map and
// server config descriptor there as key=value lines.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration for the status API.
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
	// Normalise empty mode to "disabled" for backward compatibility.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Docs: DocsConfig{
			Base: ".",
			Path: "./docs",
		},
		Sync: SyncConfig{
			DeleteTopics: true,
			Concurrency:  4,
			Retries:      3,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
