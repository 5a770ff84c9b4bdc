// Package config loads bugfiler's own configuration: where settings and
// history live, how credentials are stored, logging, and filing defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	bferrors "github.com/randalmurphal/bugfiler/internal/errors"
)

const (
	// EnvPrefix prefixes every environment override (BUGFILER_LOG_LEVEL, ...).
	EnvPrefix = "BUGFILER"
	// ConfigFileName is the config file name inside Dir().
	ConfigFileName = "config.yaml"
)

// Credential backends.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
)

// Config is the merged configuration.
type Config struct {
	SettingsFile string            `mapstructure:"settings_file" yaml:"settings_file"`
	Credentials  CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
	Log          LogConfig         `mapstructure:"log" yaml:"log"`
	History      HistoryConfig     `mapstructure:"history" yaml:"history"`
	HTTP         HTTPConfig        `mapstructure:"http" yaml:"http"`
	Defaults     DefaultsConfig    `mapstructure:"defaults" yaml:"defaults"`
}

// CredentialsConfig selects where the password is kept.
type CredentialsConfig struct {
	// Backend is "file" (settings file, mode 0600) or "keyring". The
	// keyring's encrypted-file fallback reads its passphrase from
	// BUGFILER_KEYRING_PASSWORD.
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// File receives log output instead of stderr when set. It is also the
	// log attached by `file --attach-log`.
	File string `mapstructure:"file" yaml:"file"`
}

// HistoryConfig locates the filing history database.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// HTTPConfig configures tracker round trips.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DefaultsConfig pre-fills the file command.
type DefaultsConfig struct {
	Project   string `mapstructure:"project" yaml:"project"`
	IssueType string `mapstructure:"issue_type" yaml:"issue_type"`
	Priority  string `mapstructure:"priority" yaml:"priority"`
	Component string `mapstructure:"component" yaml:"component"`
}

// Dir returns the configuration directory, ~/.config/bugfiler.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bugfiler"
	}
	return filepath.Join(home, ".config", "bugfiler")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := Dir()
	return &Config{
		SettingsFile: filepath.Join(dir, "settings.yaml"),
		Credentials:  CredentialsConfig{Backend: BackendFile},
		Log:          LogConfig{Level: "info", Format: "text"},
		History:      HistoryConfig{Path: filepath.Join(dir, "history.db")},
		HTTP:         HTTPConfig{Timeout: 30 * time.Second},
	}
}

// Keys lists every configuration key in display order.
var Keys = []string{
	"settings_file",
	"credentials.backend",
	"log.level",
	"log.format",
	"log.file",
	"history.path",
	"http.timeout",
	"defaults.project",
	"defaults.issue_type",
	"defaults.priority",
	"defaults.component",
}

// SetDefaults registers the built-in values on v and enables BUGFILER_*
// environment overrides.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("settings_file", d.SettingsFile)
	v.SetDefault("credentials.backend", d.Credentials.Backend)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("defaults.project", "")
	v.SetDefault("defaults.issue_type", "")
	v.SetDefault("defaults.priority", "")
	v.SetDefault("defaults.component", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v. A path given with --config must
// exist; the default path is optional.
func Load(v *viper.Viper, explicitPath string) (*Config, error) {
	SetDefaults(v)

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &notFound) {
			return nil, bferrors.ErrConfigInvalid("config file", err.Error()).WithCause(err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, bferrors.ErrConfigInvalid("config", err.Error()).WithCause(err)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	switch c.Credentials.Backend {
	case BackendFile, BackendKeyring:
	default:
		return bferrors.ErrConfigInvalid("credentials.backend",
			fmt.Sprintf("must be %q or %q, got %q", BackendFile, BackendKeyring, c.Credentials.Backend))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return bferrors.ErrConfigInvalid("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return bferrors.ErrConfigInvalid("log.format", fmt.Sprintf("must be text or json, got %q", c.Log.Format))
	}

	if c.SettingsFile == "" {
		return bferrors.ErrConfigInvalid("settings_file", "must not be empty")
	}
	if c.History.Path == "" {
		return bferrors.ErrConfigInvalid("history.path", "must not be empty")
	}
	if c.HTTP.Timeout <= 0 {
		return bferrors.ErrConfigInvalid("http.timeout", fmt.Sprintf("must be positive, got %s", c.HTTP.Timeout))
	}
	return nil
}

// expandPaths resolves a leading ~ in path values.
func (c *Config) expandPaths() {
	c.SettingsFile = expandHome(c.SettingsFile)
	c.History.Path = expandHome(c.History.Path)
	c.Log.File = expandHome(c.Log.File)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
