// Package config loads runtime settings. Sources are layered, highest
// precedence first: explicit overrides passed to Load, environment variables
// (a .env file is loaded into the environment first), magiclink.yaml, and
// the defaults below.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const FileName = "magiclink"

type Config struct {
	DefaultExpirySeconds  int    `mapstructure:"MAGIC_LINK_DEFAULT_EXPIRY"`
	DefaultRedirect       string `mapstructure:"MAGIC_LINK_DEFAULT_REDIRECT"`
	AuthenticationBackend string `mapstructure:"MAGIC_LINK_AUTHENTICATION_BACKEND"`
	SessionExpirySeconds  int    `mapstructure:"MAGIC_LINK_SESSION_EXPIRY"`

	DBDriver        string `mapstructure:"DB_DRIVER"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	SkipAutoMigrate bool   `mapstructure:"SKIP_AUTO_MIGRATE"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	HTTPAddr     string `mapstructure:"HTTP_ADDR"`
	AppBaseURL   string `mapstructure:"APP_BASE_URL"`
	CookieDomain string `mapstructure:"COOKIE_DOMAIN"`
	CookieSecure bool   `mapstructure:"COOKIE_SECURE"`

	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
	EmailFrom    string `mapstructure:"EMAIL_FROM"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]any{
	"MAGIC_LINK_DEFAULT_EXPIRY":         300,
	"MAGIC_LINK_DEFAULT_REDIRECT":       "/",
	"MAGIC_LINK_AUTHENTICATION_BACKEND": "session",
	"MAGIC_LINK_SESSION_EXPIRY":         1209600,
	"DB_DRIVER":                         DriverPostgres,
	"DATABASE_URL":                      "",
	"SKIP_AUTO_MIGRATE":                 false,
	"JWT_SECRET":                        "",
	"JWT_ISSUER":                        "magiclink",
	"HTTP_ADDR":                         ":8080",
	"APP_BASE_URL":                      "http://localhost:8080",
	"COOKIE_DOMAIN":                     "",
	"COOKIE_SECURE":                     true,
	"RESEND_API_KEY":                    "",
	"EMAIL_FROM":                        "",
	"LOG_LEVEL":                         "info",
}

// Load reads the configuration. Config files are searched for in paths, or
// the working directory when none are given.
func Load(overrides map[string]any, paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DefaultExpirySeconds <= 0 {
		return errors.New("MAGIC_LINK_DEFAULT_EXPIRY must be positive")
	}
	if c.SessionExpirySeconds <= 0 {
		return errors.New("MAGIC_LINK_SESSION_EXPIRY must be positive")
	}
	if strings.TrimSpace(c.DefaultRedirect) == "" {
		return errors.New("MAGIC_LINK_DEFAULT_REDIRECT must not be empty")
	}
	return nil
}

func (c *Config) DefaultExpiry() time.Duration {
	return time.Duration(c.DefaultExpirySeconds) * time.Second
}

func (c *Config) SessionExpiry() time.Duration {
	return time.Duration(c.SessionExpirySeconds) * time.Second
}
