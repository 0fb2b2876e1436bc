// Package config loads the process configuration once at startup.
//
// Everything the app needs from the environment is declared here as one
// struct with env tags; business logic never calls os.Getenv. Constructors
// receive the values they need from main, so a test can build a Config
// literal without touching the environment at all.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting.
//
// The JWT secret has no default on purpose: a fixed fallback secret would
// mean every deployment that forgot to set one signs tokens with a value
// that's sitting in a public repo.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/snippetkeep.db"`

	// JWTSecret signs every access token. Rotating it invalidates all
	// outstanding tokens. Generate with: openssl rand -hex 32
	JWTSecret string `env:"JWT_SECRET"`

	// Token lifetimes. Local login/registration issue AccessTokenTTL
	// tokens; the OAuth callback issues OAuthTokenTTL ones, since nobody
	// wants to re-run the GitHub dance every hour.
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	OAuthTokenTTL  time.Duration `env:"OAUTH_TOKEN_TTL" envDefault:"168h"`

	// GitHub OAuth app credentials. Leaving them empty disables the
	// /auth/github routes; local auth still works.
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`

	// FrontendURL is where OAuth outcomes land (token or error appended to
	// <FrontendURL>/auth/callback) and the origin allowed by CORS.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	// Extra CORS origins beyond FrontendURL, comma separated.
	ExtraOrigins []string `env:"EXTRA_ORIGINS" envSeparator:","`
}

// Load reads .env (if present), parses the environment, fills in derived
// defaults, and validates. Call once from main.
func Load() (*Config, error) {
	// .env is a local-development convenience; in production the variables
	// come from the real environment and the file simply doesn't exist.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.AccessTokenTTL <= 0 || c.OAuthTokenTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	return nil
}

// GitHubEnabled reports whether the OAuth routes should be registered.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// AllowedOrigins returns the CORS allowlist: the frontend plus any extras.
func (c *Config) AllowedOrigins() []string {
	return append([]string{c.FrontendURL}, c.ExtraOrigins...)
}
