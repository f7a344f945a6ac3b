// Package config loads the OAuth client configuration from a file, a .env file
// and the environment, and validates it before any network call is made.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/go-training/osu-companion/pkg/core"
)

const (
	// DefaultPath is the config file picked up from the working directory.
	DefaultPath = "config.json"
	// DefaultRedirectURI must match the callback registered with the provider.
	DefaultRedirectURI = "http://localhost:8080/callback"
	// DefaultBaseURL is the osu! web service.
	DefaultBaseURL = "https://osu.ppy.sh"
	// DefaultScope is the only scope the client asks for.
	DefaultScope = "public"

	defaultCallbackTimeout = 120 * time.Second
	defaultRequestTimeout  = 10 * time.Second
)

// Config holds everything needed to run the authorization-code flow.
type Config struct {
	ClientID        string        `yaml:"client_id"        env:"OSU_CLIENT_ID"`
	ClientSecret    string        `yaml:"client_secret"    env:"OSU_CLIENT_SECRET"`
	RedirectURI     string        `yaml:"redirect_uri"     env:"OSU_REDIRECT_URI"`
	BaseURL         string        `yaml:"base_url"         env:"OSU_BASE_URL"`
	Scope           string        `yaml:"scope"            env:"OSU_SCOPE"`
	CallbackTimeout time.Duration `yaml:"callback_timeout" env:"OSU_CALLBACK_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"OSU_REQUEST_TIMEOUT"`
}

// Default returns a Config with every optional field filled in.
func Default() Config {
	return Config{
		RedirectURI:     DefaultRedirectURI,
		BaseURL:         DefaultBaseURL,
		Scope:           DefaultScope,
		CallbackTimeout: defaultCallbackTimeout,
		RequestTimeout:  defaultRequestTimeout,
	}
}

// ResolvePath returns flagValue, or DefaultPath when the flag is empty and
// that file exists, or "" when there is no file to read.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// Load builds a Config from defaults, the file at path (JSON or YAML; skipped
// when path is empty), a .env file in the working directory, and OSU_*
// environment variables, in that order. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, &core.Error{Kind: core.ErrConfigInvalid, Reason: "parse env", Err: err}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files (default ".env") without overriding
// variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return &core.Error{Kind: core.ErrConfigInvalid, Reason: "load " + f, Err: err}
		}
	}
	return nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &core.Error{Kind: core.ErrConfigInvalid, Reason: "read " + path, Err: err}
	}
	// yaml.v3 also accepts JSON documents
	if err := yaml.Unmarshal(data, c); err != nil {
		return &core.Error{Kind: core.ErrConfigInvalid, Reason: "decode " + path, Err: err}
	}
	return nil
}

func (c *Config) normalize() {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.ClientSecret = strings.TrimSpace(c.ClientSecret)
	c.RedirectURI = strings.TrimSpace(c.RedirectURI)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.Scope = strings.TrimSpace(c.Scope)
}

// Validate reports the first missing or malformed field.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return core.ConfigInvalid("client_id", "is required")
	}
	if c.ClientSecret == "" {
		return core.ConfigInvalid("client_secret", "is required")
	}

	redirect, err := url.Parse(c.RedirectURI)
	if err != nil {
		return core.ConfigInvalid("redirect_uri", fmt.Sprintf("is not a URL: %v", err))
	}
	if redirect.Scheme != "http" || redirect.Hostname() == "" {
		return core.ConfigInvalid("redirect_uri", "must be an absolute http:// URL with a host")
	}
	if redirect.Port() == "" {
		return core.ConfigInvalid("redirect_uri", "must name an explicit port")
	}

	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return core.ConfigInvalid("base_url", fmt.Sprintf("is not a URL: %v", err))
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return core.ConfigInvalid("base_url", "must be an absolute http(s) URL")
	}

	if c.Scope == "" {
		return core.ConfigInvalid("scope", "is required")
	}
	if c.CallbackTimeout <= 0 {
		return core.ConfigInvalid("callback_timeout", "must be positive")
	}
	if c.RequestTimeout <= 0 {
		return core.ConfigInvalid("request_timeout", "must be positive")
	}
	return nil
}

// LogValue keeps the client secret out of logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("client_id", c.ClientID),
		slog.String("redirect_uri", c.RedirectURI),
		slog.String("base_url", c.BaseURL),
		slog.String("scope", c.Scope),
		slog.Duration("callback_timeout", c.CallbackTimeout),
		slog.Duration("request_timeout", c.RequestTimeout),
	)
}
