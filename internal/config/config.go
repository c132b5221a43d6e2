package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// DevJWTSecret signs tokens in local and dev environments when JWT_SECRET is
// unset. It must never reach production.
const DevJWTSecret = "dev-only-insecure-jwt-secret-do-not-use"

type Config struct {
	AppName         string        `env:"APP_NAME" env-default:"mvp-25"`
	Env             string        `env:"APP_ENV" env-default:"prod"`
	HTTPAddr        string        `env:"HTTP_ADDR" env-default:":8080"`
	RegionName      string        `env:"REGION" env-default:"intl"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s"`

	JWTSecret       string        `env:"JWT_SECRET"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	RotateOnUse     bool          `env:"REFRESH_ROTATE_ON_USE" env-default:"false"`
	GoogleClientID  string        `env:"GOOGLE_CLIENT_ID"`

	Postgres  PostgresConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig

	// Region is RegionName parsed.
	Region domain.Region
	// UsingDevSecret reports that JWTSecret fell back to DevJWTSecret.
	UsingDevSecret bool
}

type PostgresConfig struct {
	URL         string `env:"DATABASE_URL"`
	Host        string `env:"POSTGRES_HOST" env-default:"localhost"`
	Port        string `env:"POSTGRES_PORT" env-default:"5432"`
	User        string `env:"POSTGRES_USER"`
	Password    string `env:"POSTGRES_PASSWORD"`
	DB          string `env:"POSTGRES_DB"`
	SSLMode     string `env:"POSTGRES_SSLMODE" env-default:"disable"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" env-default:"false"`
}

// DSN prefers DATABASE_URL and otherwise assembles one from the POSTGRES_*
// variables.
func (c PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.DB == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.DB, c.SSLMode)
}

type MongoConfig struct {
	URI      string `env:"MONGODB_URI"`
	Database string `env:"MONGODB_DATABASE" env-default:"mvp25"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

type RateLimitConfig struct {
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"1m"`
	Login    int64         `env:"RATE_LIMIT_LOGIN" env-default:"10"`
	Register int64         `env:"RATE_LIMIT_REGISTER" env-default:"5"`
	Refresh  int64         `env:"RATE_LIMIT_REFRESH" env-default:"30"`
}

type AuditConfig struct {
	BufferSize    int           `env:"AUDIT_BUFFER" env-default:"1024"`
	FlushInterval time.Duration `env:"AUDIT_FLUSH_INTERVAL" env-default:"30s"`
	S3Bucket      string        `env:"AUDIT_S3_BUCKET"`
	S3Prefix      string        `env:"AUDIT_S3_PREFIX" env-default:"audit"`
	S3Region      string        `env:"AUDIT_S3_REGION" env-default:"us-east-1"`
	S3Endpoint    string        `env:"AUDIT_S3_ENDPOINT"`
	S3AccessKey   string        `env:"AUDIT_S3_ACCESS_KEY"`
	S3SecretKey   string        `env:"AUDIT_S3_SECRET_KEY"`
}

// Load reads the given dotenv files (".env" when none are given) and then the
// process environment. Missing dotenv files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown APP_ENV %q", c.Env)
	}

	region, err := domain.ParseRegion(c.RegionName)
	if err != nil {
		return err
	}
	c.Region = region

	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET is required outside local and dev environments")
		}
		c.JWTSecret = DevJWTSecret
		c.UsingDevSecret = true
	}

	if c.RefreshTokenTTL <= 0 {
		return errors.New("REFRESH_TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvLocal || c.Env == EnvDev
}
