package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("blogctl version %s, commit %s, built at %s", version, commit, date)
}

type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Session     SessionConfig     `mapstructure:"session"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// APIConfig describes the backend the client talks to.
type APIConfig struct {
	BaseURL   string            `json:"base_url" mapstructure:"base_url"`
	Timeout   time.Duration     `json:"timeout" mapstructure:"timeout"`
	UserAgent string            `json:"user_agent" mapstructure:"user_agent"`
	Headers   map[string]string `json:"headers" mapstructure:"headers"`
}

// CredentialsBackend selects where the token pair is persisted
type CredentialsBackend string

const (
	CredentialsBackendMemory CredentialsBackend = "memory"
	CredentialsBackendFile   CredentialsBackend = "file"
	CredentialsBackendRedis  CredentialsBackend = "redis"
)

type CredentialsConfig struct {
	Backend   CredentialsBackend `mapstructure:"backend"`
	Path      string             `mapstructure:"path"`
	RedisURL  string             `mapstructure:"redis_url"`
	KeyPrefix string             `mapstructure:"key_prefix"`
}

type SessionConfig struct {
	// DedupeRefresh collapses concurrent refresh calls into one backend request.
	DedupeRefresh bool `mapstructure:"dedupe_refresh"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	Color             bool   `mapstructure:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console"`
}

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "blogctl"
	DefaultKeyPrefix = "blogctl"
)

// DefaultCredentialsPath returns the file used by the file credential backend
// when none is configured.
func DefaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "blogctl", "credentials.yaml")
}

// InitFlags initializes command line flags (without parsing)
func InitFlags(flags *pflag.FlagSet) {
	flags.String("api.base-url", "", "Base URL of the blog API (e.g. http://localhost:8000/api)")
	flags.String("credentials.backend", string(CredentialsBackendFile), "Credential store (memory|file|redis)")
	flags.String("credentials.path", "", "Path of the credentials file for the file backend")
	flags.String("credentials.redis-url", "", "Redis URL for the redis backend")
	flags.String("logging.level", "warn", "Log level (debug|info|warn|error)")
	// Note: parsing is left to cobra
}

// every key needs a default, otherwise Unmarshal ignores its env var
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout", DefaultTimeout)
	v.SetDefault("credentials.path", "")
	v.SetDefault("credentials.redis_url", "")
	v.SetDefault("logging.color", false)
	v.SetDefault("logging.output_path", "")
	v.SetDefault("logging.append_to_file", false)
	v.SetDefault("logging.disable_console", false)
	v.SetDefault("api.user_agent", DefaultUserAgent)
	v.SetDefault("credentials.backend", string(CredentialsBackendFile))
	v.SetDefault("credentials.key_prefix", DefaultKeyPrefix)
	v.SetDefault("session.dedupe_refresh", false)
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.disable_stacktrace", true)
}

// Load reads configuration from config.yaml, BLOGCTL_* environment variables
// and the given flag set (which may be nil).
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BLOGCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "blogctl"))
	}
	v.AddConfigPath("/etc/blogctl")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything has a default or an env var
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Flags use dashes, config keys use underscores
	if flags != nil {
		applyFlags(flags, &config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyFlags(flags *pflag.FlagSet, config *Config) {
	changed := func(name string) (string, bool) {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			return "", false
		}
		return f.Value.String(), true
	}

	if v, ok := changed("api.base-url"); ok {
		config.API.BaseURL = v
	}
	if v, ok := changed("credentials.backend"); ok {
		config.Credentials.Backend = CredentialsBackend(v)
	}
	if v, ok := changed("credentials.path"); ok {
		config.Credentials.Path = v
	}
	if v, ok := changed("credentials.redis-url"); ok {
		config.Credentials.RedisURL = v
	}
	if v, ok := changed("logging.level"); ok {
		config.Logging.Level = v
	}
}

// Validate checks the configuration and fills in derived defaults
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required, please adjust the config or pass --api.base-url or BLOGCTL_API_BASE_URL environment variable")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	c.API.BaseURL = strings.TrimSuffix(c.API.BaseURL, "/")

	if c.API.Timeout <= 0 {
		c.API.Timeout = DefaultTimeout
	}

	switch c.Credentials.Backend {
	case CredentialsBackendMemory:
	case CredentialsBackendFile, "":
		c.Credentials.Backend = CredentialsBackendFile
		if c.Credentials.Path == "" {
			c.Credentials.Path = DefaultCredentialsPath()
		}
	case CredentialsBackendRedis:
		if c.Credentials.RedisURL == "" {
			return fmt.Errorf("credentials.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported credentials backend: %s", c.Credentials.Backend)
	}
	if c.Credentials.KeyPrefix == "" {
		c.Credentials.KeyPrefix = DefaultKeyPrefix
	}
	return nil
}
