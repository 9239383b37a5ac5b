package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Environment variables recognized by the proxy.
const (
	EnvConfigDir    = "ANTIGRAVITY_CONFIG_DIR"
	EnvAccountsFile = "ANTIGRAVITY_ACCOUNTS_FILE"
	EnvAPIBase      = "ANTIGRAVITY_API_BASE"
	EnvAPIKey       = "ANTIGRAVITY_API_KEY"
)

// Config is the runtime configuration, resolved from the environment once at
// startup and passed explicitly to the components that need it.
type Config struct {
	Host  string
	Port  int
	Debug bool

	// APIKey, when set, is required as a Bearer token on API requests.
	APIKey string

	// APIBase overrides the primary upstream endpoint (testing, regional
	// mirrors). The standard endpoints remain as fallbacks behind it.
	APIBase string

	// Endpoints, when non-empty, replaces the endpoint fallback list
	// entirely. Only set programmatically.
	Endpoints []string

	ConfigDir    string
	AccountsFile string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RequestTimeout  time.Duration
	CallbackTimeout time.Duration
}

// FromEnv builds a Config from the process environment, applying defaults.
func FromEnv() *Config {
	cfg := &Config{
		Host:            "127.0.0.1",
		Port:            8889,
		APIKey:          os.Getenv(EnvAPIKey),
		APIBase:         os.Getenv(EnvAPIBase),
		ConfigDir:       os.Getenv(EnvConfigDir),
		AccountsFile:    os.Getenv(EnvAccountsFile),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RequestTimeout:  600 * time.Second,
		CallbackTimeout: 120 * time.Second,
	}

	if cfg.ConfigDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.ConfigDir = filepath.Join(home, ".config", "litellm", "antigravity")
	}
	if cfg.AccountsFile == "" {
		cfg.AccountsFile = "accounts.json"
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.RedisDB = db
		}
	}
	return cfg
}

// AccountsPath returns the absolute path of the account store file.
func (c *Config) AccountsPath() string {
	if filepath.IsAbs(c.AccountsFile) {
		return c.AccountsFile
	}
	return filepath.Join(c.ConfigDir, c.AccountsFile)
}

// EndpointFallbacks returns the upstream endpoints in try order, with the
// APIBase override (if any) ahead of the standard pair.
func (c *Config) EndpointFallbacks() []string {
	if len(c.Endpoints) > 0 {
		return c.Endpoints
	}
	endpoints := AntigravityEndpointFallbacks()
	if c.APIBase == "" {
		return endpoints
	}
	out := make([]string, 0, len(endpoints)+1)
	out = append(out, c.APIBase)
	for _, e := range endpoints {
		if e != c.APIBase {
			out = append(out, e)
		}
	}
	return out
}
