package config

import (
	"fmt"
	"net/url"
	"strings"
)

// minCookieSecretLen is the shortest cookie secret accepted. The HMAC key
// is derived from it, so anything guessable undermines cookie integrity.
const minCookieSecretLen = 32

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks that the loaded configuration can run the server.
func ValidateConfig(cfg *Config) error {
	var errs []string
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg}.Error())
	}

	switch cfg.DBDriver {
	case "sqlite":
		if cfg.DBName == "" {
			add("db_name", "sqlite database file is required")
		}
	case "postgres":
		for field, value := range map[string]string{
			"db_host":     cfg.DBHost,
			"db_port":     cfg.DBPort,
			"db_user":     cfg.DBUser,
			"db_password": cfg.DBPassword,
			"db_name":     cfg.DBName,
		} {
			if value == "" {
				add(field, "is required")
			}
		}
	default:
		add("db_driver", fmt.Sprintf("unsupported driver %q", cfg.DBDriver))
	}

	if cfg.AuthJWTSecret == "" {
		add("auth_jwt_secret", "is required")
	}
	if len(cfg.CookieSecret) < minCookieSecretLen {
		add("cookie_secret", fmt.Sprintf("must be at least %d bytes", minCookieSecretLen))
	}
	if cfg.APIOrigin != "" {
		if u, err := url.Parse(cfg.APIOrigin); err != nil || u.Scheme == "" || u.Host == "" {
			add("api_origin", "must be an absolute origin such as https://api.example.com")
		}
	}
	if cfg.GuestCacheTTL <= 0 {
		add("guest_cache_ttl", "must be positive")
	}
	if cfg.GuestCacheSweepInterval < cfg.GuestCacheTTL {
		add("guest_cache_sweep_interval", "must not be shorter than the cache TTL")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}
