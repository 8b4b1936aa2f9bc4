package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	LogLevel      string
	DefaultLocale string
	AuthJWTSecret string

	// BootstrapSysadmin names a user created with the sysadmin flag at
	// startup. Empty disables the seed.
	BootstrapSysadmin string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBDSN             string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Email     EmailConfig
	Otel      OtelConfig
	RateLimit RateLimitConfig
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type OtelConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// RateLimitConfig throttles the action API per principal through a Redis
// token bucket. Disabled unless RATE_LIMIT_ENABLED is set.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ActionRate    float64
	ActionBurst   int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "memberrequest"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
		DefaultLocale: strings.TrimSpace(getenv("DEFAULT_LOCALE", "en")),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),

		BootstrapSysadmin: strings.TrimSpace(getenv("BOOTSTRAP_SYSADMIN", "")),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBDSN:             getenv("DATABASE_DSN", "memberrequest.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@localhost"),
		},
		Otel: OtelConfig{
			Enabled:          getenvBool("OTEL_ENABLED", false),
			ExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")),
			ExporterProtocol: strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http"))),
			SamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "localhost:6379")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			ActionRate:    getenvFloat("RATE_LIMIT_ACTION_RATE", 5),
			ActionBurst:   getenvInt("RATE_LIMIT_ACTION_BURST", 20),
		},
	}

	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en"
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
