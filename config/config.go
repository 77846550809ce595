package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultCookieName              = "guest_session"
	DefaultGuestCacheTTL           = 5 * time.Minute
	DefaultGuestCacheSweepInterval = 10 * time.Minute
	DefaultConversionRateLimit     = 10
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	ServerPort string
	ServerHost string

	// Database configuration
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisURL      string

	// Auth provider configuration. Bearer tokens are HS256 JWTs signed
	// with the provider's shared secret.
	AuthJWTSecret string
	AuthIssuer    string
	AuthAudience  string

	// Guest session cookie configuration
	CookieSecret   string
	CookieName     string
	CookieDomain   string
	APIOrigin      string
	AllowedOrigins []string

	GuestCacheTTL           time.Duration
	GuestCacheSweepInterval time.Duration
	ConversionRateLimit     int
}

// LoadConfig creates a new Config instance with values from environment variables or secrets
func LoadConfig() (*Config, error) {
	env := GetEnvironment()
	cfg := &Config{}

	// Load configuration based on environment
	switch env {
	case CI:
		if err := loadCIConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load CI configuration: %w", err)
		}
	case Development, Test:
		if err := loadDevConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load development configuration: %w", err)
		}
	case Production:
		loadProdConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}

	if err := loadTuning(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	// Validate the configuration
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadCIConfig loads configuration for CI environment using ONLY environment variables
func loadCIConfig(cfg *Config) error {
	cfg.ServerPort = os.Getenv("SERVER_PORT")
	cfg.ServerHost = os.Getenv("SERVER_HOST")
	cfg.DBDriver = os.Getenv("DB_DRIVER")
	cfg.DBHost = os.Getenv("DB_HOST")
	cfg.DBPort = os.Getenv("DB_PORT")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.DBSSLMode = os.Getenv("DB_SSL_MODE")
	cfg.RedisHost = os.Getenv("REDIS_HOST")
	cfg.RedisPort = os.Getenv("REDIS_PORT")
	cfg.CookieName = os.Getenv("COOKIE_NAME")
	cfg.CookieDomain = os.Getenv("COOKIE_DOMAIN")
	cfg.APIOrigin = os.Getenv("API_ORIGIN")
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	cfg.AuthIssuer = os.Getenv("AUTH_ISSUER")
	cfg.AuthAudience = os.Getenv("AUTH_AUDIENCE")

	// Secrets come from the CI runner's environment
	cfg.DBPassword = os.Getenv("TEST_DB_PASSWORD")
	if cfg.DBPassword == "" && cfg.DBDriver != "sqlite" {
		return fmt.Errorf("TEST_DB_PASSWORD environment variable is required in CI environment")
	}
	cfg.AuthJWTSecret = os.Getenv("TEST_AUTH_JWT_SECRET")
	cfg.CookieSecret = os.Getenv("TEST_COOKIE_SECRET")
	cfg.RedisPassword = os.Getenv("TEST_REDIS_PASSWORD")
	cfg.RedisURL = os.Getenv("TEST_REDIS_URL")
	cfg.RedisDB = 0

	return nil
}

// loadDevConfig loads configuration for development environment
func loadDevConfig(cfg *Config) error {
	secrets := make(map[string]string)
	required := []string{
		"db_user",
		"db_password",
		"auth_jwt_secret",
		"cookie_secret",
		"db_host",
		"db_port",
		"db_name",
		"server_port",
	}
	optional := []string{
		"db_driver",
		"db_ssl_mode",
		"redis_host",
		"redis_port",
		"redis_password",
		"redis_url",
		"server_host",
		"auth_issuer",
		"auth_audience",
		"cookie_name",
		"cookie_domain",
		"api_origin",
		"allowed_origins",
	}

	for _, name := range required {
		content, err := os.ReadFile(filepath.Join(secretsDir(), name))
		if err != nil {
			return fmt.Errorf("failed to read secret %s: %v", name, err)
		}
		secrets[name] = strings.TrimSpace(string(content))
	}
	for _, name := range optional {
		secrets[name] = readSecret(name)
	}

	fromSecrets(cfg, secrets)
	return nil
}

// loadProdConfig loads configuration for production environment using ONLY Docker secrets
func loadProdConfig(cfg *Config) {
	names := []string{
		"server_port", "server_host",
		"db_driver", "db_host", "db_port", "db_user", "db_password", "db_name", "db_ssl_mode",
		"redis_host", "redis_port", "redis_password", "redis_url",
		"auth_jwt_secret", "auth_issuer", "auth_audience",
		"cookie_secret", "cookie_name", "cookie_domain", "api_origin", "allowed_origins",
	}
	secrets := make(map[string]string, len(names))
	for _, name := range names {
		secrets[name] = readSecret(name)
	}
	fromSecrets(cfg, secrets)
}

func fromSecrets(cfg *Config, secrets map[string]string) {
	cfg.ServerPort = secrets["server_port"]
	cfg.ServerHost = secrets["server_host"]
	cfg.DBDriver = secrets["db_driver"]
	cfg.DBHost = secrets["db_host"]
	cfg.DBPort = secrets["db_port"]
	cfg.DBUser = secrets["db_user"]
	cfg.DBPassword = secrets["db_password"]
	cfg.DBName = secrets["db_name"]
	cfg.DBSSLMode = secrets["db_ssl_mode"]
	cfg.RedisHost = secrets["redis_host"]
	cfg.RedisPort = secrets["redis_port"]
	cfg.RedisPassword = secrets["redis_password"]
	cfg.RedisDB = 0 // This is a constant, not a secret
	cfg.RedisURL = secrets["redis_url"]
	cfg.AuthJWTSecret = secrets["auth_jwt_secret"]
	cfg.AuthIssuer = secrets["auth_issuer"]
	cfg.AuthAudience = secrets["auth_audience"]
	cfg.CookieSecret = secrets["cookie_secret"]
	cfg.CookieName = secrets["cookie_name"]
	cfg.CookieDomain = secrets["cookie_domain"]
	cfg.APIOrigin = secrets["api_origin"]
	cfg.AllowedOrigins = splitList(secrets["allowed_origins"])
}

// loadTuning reads the non-secret knobs that are always plain env vars.
func loadTuning(cfg *Config) error {
	var err error
	if cfg.GuestCacheTTL, err = durationEnv("GUEST_CACHE_TTL"); err != nil {
		return err
	}
	if cfg.GuestCacheSweepInterval, err = durationEnv("GUEST_CACHE_SWEEP_INTERVAL"); err != nil {
		return err
	}
	if v := os.Getenv("CONVERSION_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CONVERSION_RATE_LIMIT %q: %w", v, err)
		}
		cfg.ConversionRateLimit = n
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.DBDriver == "" {
		cfg.DBDriver = "postgres"
	}
	if cfg.DBSSLMode == "" {
		cfg.DBSSLMode = "disable"
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.GuestCacheTTL == 0 {
		cfg.GuestCacheTTL = DefaultGuestCacheTTL
	}
	if cfg.GuestCacheSweepInterval == 0 {
		cfg.GuestCacheSweepInterval = DefaultGuestCacheSweepInterval
	}
	if cfg.ConversionRateLimit == 0 {
		cfg.ConversionRateLimit = DefaultConversionRateLimit
	}
}

func durationEnv(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func secretsDir() string {
	if dir := os.Getenv("SECRETS_DIR"); dir != "" {
		return dir
	}
	return "/run/secrets"
}

// readSecret reads a Docker secret from the secrets directory
func readSecret(name string) string {
	if data, err := os.ReadFile(filepath.Join(secretsDir(), name)); err == nil {
		return strings.TrimSpace(string(data))
	}
	return ""
}
