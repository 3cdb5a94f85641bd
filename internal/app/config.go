package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hrustic/seedhub/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// SessionStorageType represents the storage backends for the session
// record.
type SessionStorageType string

const (
	SessionStorageTypeFile    SessionStorageType = "file"
	SessionStorageTypeEnv     SessionStorageType = "env"
	SessionStorageTypeKeyring SessionStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 4680
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigSessionStorage  = SessionStorageTypeFile
	DefaultConfigUpstreamBaseURL = "https://api.seedhub.dev"
)

// keyringService identifies seedhub entries in the OS keyring.
const keyringService = "seedhub-session"

// ServerConfig holds local gateway server configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds the remote SeedHub API configuration.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// UIConfig holds web UI asset configuration for the gateway.
type UIConfig struct {
	// Assets is a directory containing a build of the SeedHub web app.
	// Empty serves a placeholder shell.
	Assets string `json:"assets,omitempty"`
}

// SessionConfig describes where the session record is stored.
type SessionConfig struct {
	Storage SessionStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to session file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewStore creates the tokenstore backend described by the
// configuration.
func (s *SessionConfig) NewStore() (tokenstore.Store, error) {
	switch s.Storage {
	case SessionStorageTypeFile:
		return tokenstore.NewFileStore(s.File)
	case SessionStorageTypeEnv:
		return tokenstore.NewEnvStore(s.EnvKey)
	case SessionStorageTypeKeyring:
		return tokenstore.NewKeyringStore(keyringService, s.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Upstream  UpstreamConfig `json:"upstream"`
	Session   SessionConfig  `json:"session"`
	UI        UIConfig       `json:"ui"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultConfigUpstreamBaseURL
	}
	if c.Session.Storage == "" {
		c.Session.Storage = DefaultConfigSessionStorage
	}

	// Dynamic defaults based on storage type
	switch c.Session.Storage {
	case SessionStorageTypeFile:
		if c.Session.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("session.file required (auto-detect failed: %w)", err)
			}
			c.Session.File = filepath.Join(configDir, "seedhub", "session.json")
		}
	case SessionStorageTypeKeyring:
		if c.Session.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("session.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Session.KeyringUser = currentUser.Username
		}
	case SessionStorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum
// values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Session.Storage {
	case SessionStorageTypeFile:
		if c.Session.File == "" {
			return errors.New("file path required for file storage")
		}
	case SessionStorageTypeEnv:
		if c.Session.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case SessionStorageTypeKeyring:
		if c.Session.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}
