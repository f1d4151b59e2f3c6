package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	OAuth    OAuthConfig
	Sinks    SinkConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	SecretKey             string
	RoutePrefix           string
	PublicBaseURL         string
	RequestTimeoutSeconds int
}

// OAuthConfig describes the single identity provider the service enrolls against.
type OAuthConfig struct {
	ClientID            string
	ClientSecret        string
	AuthorizeURL        string
	AccessTokenURL      string
	APIBaseURL          string
	Scopes              []string
	FlowStateTTLMinutes int
}

// SinkConfig holds the activation targets of the enrollment sinks.
// An empty target disables the corresponding sink.
type SinkConfig struct {
	SMTPServer   string
	EmailFrom    string
	EmailTo      string
	CSVFilePath  string
	SQLiteDBPath string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
// A .env file in the working directory and the file named by OAUTH_DEMO_CONFIG are
// loaded first; variables already present in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()
	if path := os.Getenv("OAUTH_DEMO_CONFIG"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "octo-oauth-demo"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			SecretKey:             os.Getenv("SECRET_KEY"),
			RoutePrefix:           normalizePrefix(os.Getenv("ROUTE_PREFIX")),
			PublicBaseURL:         strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 0),
		},
		OAuth: OAuthConfig{
			ClientID:            os.Getenv("OEGB_CLIENT_ID"),
			ClientSecret:        os.Getenv("OEGB_CLIENT_SECRET"),
			AuthorizeURL:        getEnv("OEGB_AUTHORIZE_URL", "https://auth.octopus.energy/authorize/"),
			AccessTokenURL:      getEnv("OEGB_ACCESS_TOKEN_URL", "https://auth.octopus.energy/token/"),
			APIBaseURL:          getEnv("OEGB_API_BASE_URL", "https://api.octopus.energy/"),
			Scopes:              strings.Fields(os.Getenv("OEGB_SCOPES")),
			FlowStateTTLMinutes: getEnvAsInt("FLOW_STATE_TTL_MINUTES", 10),
		},
		Sinks: SinkConfig{
			SMTPServer:   strings.TrimSpace(os.Getenv("SMTP_SERVER")),
			EmailFrom:    os.Getenv("ENROLMENT_EMAIL_FROM"),
			EmailTo:      os.Getenv("ENROLMENT_EMAIL_TO"),
			CSVFilePath:  strings.TrimSpace(os.Getenv("ENROLMENTS_CSV_FILE_PATH")),
			SQLiteDBPath: strings.TrimSpace(os.Getenv("SQLITE_DB_PATH")),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the options the service cannot start without.
func (c *Config) Validate() error {
	if c.App.SecretKey == "" {
		return errors.New("SECRET_KEY must be set")
	}
	if c.OAuth.ClientID == "" {
		return errors.New("OEGB_CLIENT_ID must be set")
	}
	if c.Sinks.SMTPServer != "" && (c.Sinks.EmailFrom == "" || c.Sinks.EmailTo == "") {
		return errors.New("ENROLMENT_EMAIL_FROM and ENROLMENT_EMAIL_TO must be set when SMTP_SERVER is set")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// FlowStateTTL bounds how long an authorize redirect may wait for its callback.
func (o OAuthConfig) FlowStateTTL() time.Duration {
	if o.FlowStateTTLMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(o.FlowStateTTLMinutes) * time.Minute
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
