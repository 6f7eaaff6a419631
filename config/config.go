package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// DefaultFiles are the dotenv files Load reads when present
var DefaultFiles = []string{".env", "config.env"}

type Config struct {
	Env        string
	Server     ServerConfig
	Auth       AuthConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	Email      EmailConfig
	HasherName string
}

type ServerConfig struct {
	Port       string
	BodyLimit  int
	CORSOrigin string
	// ProxyHeader carries the client IP when requests come through
	// one of TrustedProxies, e.g. X-Forwarded-For
	ProxyHeader    string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret        string
	TokenExpiration  time.Duration
	CookieExpiration time.Duration
	Issuer           string
	ContextKey       string
	AuthScheme       string
}

type DatabaseConfig struct {
	Driver   string
	DSN      string
	MongoURI string
	MongoDB  string
}

type RedisConfig struct {
	URL string
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

type EmailConfig struct {
	From     string
	Host     string
	Port     int
	Username string
	Password string
}

// Load reads the dotenv files that exist, then builds the configuration
// from the environment. Variables already set win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to load env file").
				WithMetadata(map[string]any{"file": f})
		}
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds the configuration from the process environment
func FromEnv() *Config {
	env := getEnv("NODE_ENV", getEnv("APP_ENV", EnvDevelopment))

	return &Config{
		Env: strings.ToLower(env),
		Server: ServerConfig{
			Port:       getEnv("PORT", "3000"),
			BodyLimit:  getInt("BODY_LIMIT", 10*1024),
			CORSOrigin: getEnv("CORS_ORIGIN", "*"),

			ProxyHeader:    getEnv("PROXY_HEADER", ""),
			TrustedProxies: getList("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", "dev-only-secret-change-in-prod"),
			TokenExpiration:  getDuration("JWT_EXPIRES_IN", 90*24*time.Hour),
			CookieExpiration: time.Duration(getInt("JWT_COOKIE_EXPIRES_IN", 90)) * 24 * time.Hour,
			Issuer:           getEnv("JWT_ISSUER", "natours"),
			ContextKey:       getEnv("JWT_COOKIE_NAME", "jwt"),
			AuthScheme:       "Bearer",
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DATABASE_DRIVER", DriverSQLite),
			DSN:      getEnv("DATABASE_DSN", "file:tours.db?cache=shared"),
			MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDB:  getEnv("MONGO_DATABASE", "natours"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		RateLimit: RateLimitConfig{
			Max:    getInt("RATE_LIMIT_MAX", 100),
			Window: getDuration("RATE_LIMIT_WINDOW", time.Hour),
		},
		Email: EmailConfig{
			From:     getEnv("EMAIL_FROM", "Natours <hello@natours.io>"),
			Host:     getEnv("EMAIL_HOST", ""),
			Port:     getInt("EMAIL_PORT", 587),
			Username: getEnv("EMAIL_USERNAME", ""),
			Password: getEnv("EMAIL_PASSWORD", ""),
		},
		HasherName: getEnv("PASSWORD_HASHER", "bcrypt"),
	}
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Env, validation.In(EnvDevelopment, EnvProduction)),
		validation.Field(&c.HasherName, validation.In("bcrypt", "argon2id")),
	)
	if err == nil {
		err = validation.Errors{
			"driver": validation.Validate(c.Database.Driver, validation.In(DriverSQLite, DriverMongo)),
			"port":   validation.Validate(c.Server.Port, validation.Required, is.Port),
			"secret": validation.Validate(c.Auth.JWTSecret, validation.Required, validation.Length(16, 0)),
		}.Filter()
	}
	if err != nil {
		return errors.ValidateWithOzzo(func() error { return err }, "invalid configuration")
	}

	if c.IsProduction() && c.Auth.JWTSecret == "dev-only-secret-change-in-prod" {
		return errors.New("JWT_SECRET must be set in production", errors.CategoryValidation)
	}

	return nil
}

func (c Config) GetSigningKey() string {
	return c.Auth.JWTSecret
}

func (c Config) GetTokenExpiration() time.Duration {
	return c.Auth.TokenExpiration
}

func (c Config) GetCookieExpiration() time.Duration {
	return c.Auth.CookieExpiration
}

func (c Config) GetContextKey() string {
	return c.Auth.ContextKey
}

func (c Config) GetAuthScheme() string {
	return c.Auth.AuthScheme
}

func (c Config) GetIssuer() string {
	return c.Auth.Issuer
}

func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getList(key string) []string {
	out := []string{}
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

// getDuration also accepts a day suffix, as in "90d"
func getDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	if days, found := strings.CutSuffix(value, "d"); found {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
		return fallback
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return fallback
}
