package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vedran77/pulse/internal/encryption"
)

// ErrMissingEncryptionSecret is a startup error: the server must not accept
// traffic without the instance secret.
var ErrMissingEncryptionSecret = encryption.ErrMissingSecret

type Config struct {
	ServerPort     string        `yaml:"server_port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	StorageDriver string `yaml:"storage_driver"` // postgres | memory
	DatabaseDSN   string `yaml:"database_url"`
	DBHost        string `yaml:"db_host"`
	DBPort        string `yaml:"db_port"`
	DBUser        string `yaml:"db_user"`
	DBPassword    string `yaml:"db_password"`
	DBName        string `yaml:"db_name"`
	DBMaxConns    int    `yaml:"db_max_conns"`

	JWTSecret string `yaml:"jwt_secret"`

	EncryptionSecret   string `yaml:"encryption_secret"`
	EncryptionRequired bool   `yaml:"encryption_required"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// AdminUserIDs may write global and organization settings over HTTP.
	AdminUserIDs []string `yaml:"admin_user_ids"`
}

func defaults() *Config {
	return &Config{
		ServerPort:         "8080",
		RequestTimeout:     10 * time.Second,
		StorageDriver:      "postgres",
		DBHost:             "localhost",
		DBPort:             "5432",
		DBUser:             "pulse",
		DBPassword:         "pulse_dev_password",
		DBName:             "pulse",
		JWTSecret:          "dev-secret-change-me",
		EncryptionRequired: true,
		LogLevel:           "info",
		LogFormat:          "text",
		RateLimitRPS:       20,
		RateLimitBurst:     40,
		CORSAllowedOrigins: []string{"*"},
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// at path, then a .env file if present, then the process environment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load(".env")

	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.StorageDriver = getEnv("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.DatabaseDSN = getEnv("DATABASE_URL", cfg.DatabaseDSN)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBMaxConns = getEnvInt("DB_MAX_CONNS", cfg.DBMaxConns)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.EncryptionSecret = getEnv("MESSAGE_ENCRYPTION_SECRET", cfg.EncryptionSecret)
	cfg.EncryptionRequired = getEnvBool("ENCRYPTION_REQUIRED", cfg.EncryptionRequired)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.AdminUserIDs = getEnvList("ADMIN_USER_IDS", cfg.AdminUserIDs)

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.EncryptionSecret) == "" {
		return ErrMissingEncryptionSecret
	}
	switch c.StorageDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	for _, id := range c.AdminUserIDs {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid ADMIN_USER_IDS entry %q: %w", id, err)
		}
	}
	return nil
}

// AdminIDs returns the parsed admin list. Entries that do not parse are
// skipped; Validate reports them.
func (c *Config) AdminIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.AdminUserIDs))
	for _, raw := range c.AdminUserIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Config) DatabaseURL() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
