package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/pathguard"
	"github.com/starford/quire/internal/search"
	"github.com/starford/quire/internal/watcher"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	Search SearchConfig      `yaml:"search"`
	Watch  WatchConfig       `yaml:"watch"`
	Hugo   HugoConfig        `yaml:"hugo"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.Hugo.Validate(); err != nil {
		return fmt.Errorf("hugo: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
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

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path       string `yaml:"path"`
	ShowHidden bool   `yaml:"show_hidden"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SearchConfig holds the search engine limits.
type SearchConfig struct {
	MaxResults   int   `yaml:"max_results"`
	MaxFileBytes int64 `yaml:"max_file_bytes"`
	Workers      int   `yaml:"workers"`
	ContextLines int   `yaml:"context_lines"`
}

// Validate validates the search configuration.
func (c *SearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxResults, validation.Min(1), validation.Max(10000)),
		validation.Field(&c.MaxFileBytes, validation.Min(int64(1))),
		validation.Field(&c.Workers, validation.Min(1), validation.Max(64)),
		validation.Field(&c.ContextLines, validation.Min(0), validation.Max(20)),
	)
}

// Engine returns the search engine configuration.
func (c *SearchConfig) Engine() search.Config {
	return search.Config{
		MaxResults:   c.MaxResults,
		MaxFileBytes: c.MaxFileBytes,
		Workers:      c.Workers,
		ContextLines: c.ContextLines,
	}
}

// WatchConfig controls the file system watcher.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watcher configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0)), validation.Max(time.Minute)),
	)
}

// HugoConfig holds the Hugo content layout.
type HugoConfig struct {
	// BlogRoot is the vault folder new posts go under when no parent is
	// given. Empty means the vault root.
	BlogRoot string `yaml:"blog_root"`
}

var vaultPathRule = validation.NewStringRule(pathguard.Valid, "must be a relative path inside the vault")

// Validate validates the Hugo configuration.
func (c *HugoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BlogRoot, vaultPathRule),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Search: SearchConfig{
			MaxResults:   search.DefaultMaxResults,
			MaxFileBytes: search.DefaultMaxFileBytes,
			Workers:      search.DefaultWorkers,
			ContextLines: search.DefaultContextLines,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: watcher.DefaultDebounce,
		},
		Hugo: HugoConfig{
			BlogRoot: "content/posts",
		},
	}
}
