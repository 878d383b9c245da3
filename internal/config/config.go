package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Remote API
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Credential store
	StoreBackend string
	StorePath    string

	// OAuth hand-off
	OAuthCallbackPort int
	OAuthTimeout      time.Duration

	// Listing defaults
	PageSize    int
	DefaultSort string

	// Pending-queue watcher
	WatchInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		APIBaseURL:  getEnv("APPROVA_API_BASE_URL", "http://localhost:8080/api"),
		HTTPTimeout: getEnvDuration("APPROVA_HTTP_TIMEOUT", 15*time.Second),

		StoreBackend: getEnv("APPROVA_STORE_BACKEND", "sqlite"),
		StorePath:    getEnv("APPROVA_STORE_PATH", defaultStorePath()),

		OAuthCallbackPort: getEnvInt("APPROVA_OAUTH_CALLBACK_PORT", 8085),
		OAuthTimeout:      getEnvDuration("APPROVA_OAUTH_TIMEOUT", 5*time.Minute),

		PageSize:    getEnvInt("APPROVA_PAGE_SIZE", 10),
		DefaultSort: getEnv("APPROVA_DEFAULT_SORT", "createdAt,desc"),

		WatchInterval: getEnvDuration("APPROVA_WATCH_INTERVAL", 30*time.Second),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if parsed, err := url.Parse(c.APIBaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
	}

	validBackends := []string{"sqlite", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.StoreBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errs = append(errs, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	if c.StoreBackend == "sqlite" {
		if c.StorePath == "" {
			errs = append(errs, "store path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.StorePath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0700); err != nil {
						errs = append(errs, fmt.Sprintf("cannot create store directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.OAuthCallbackPort < 1 || c.OAuthCallbackPort > 65535 {
		errs = append(errs, fmt.Sprintf("invalid OAuth callback port %d: must be between 1 and 65535", c.OAuthCallbackPort))
	}

	if c.OAuthTimeout < 10*time.Second {
		errs = append(errs, fmt.Sprintf("invalid OAuth timeout %v: must be at least 10 seconds", c.OAuthTimeout))
	}

	if c.HTTPTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	}

	if c.PageSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid page size %d: must be at least 1", c.PageSize))
	} else if c.PageSize > 200 {
		errs = append(errs, fmt.Sprintf("invalid page size %d: must be at most 200", c.PageSize))
	}

	if c.WatchInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid watch interval %v: must be at least 1 second", c.WatchInterval))
	} else if c.WatchInterval > time.Hour {
		errs = append(errs, fmt.Sprintf("invalid watch interval %v: must be at most 1 hour", c.WatchInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

// OAuthRedirectURL is the loopback URL the authorization server redirects
// back to during the hand-off.
func (c *Config) OAuthRedirectURL() string {
	return "http://localhost:" + strconv.Itoa(c.OAuthCallbackPort) + "/callback"
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data/approva.db"
	}
	return filepath.Join(home, ".approva", "approva.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
