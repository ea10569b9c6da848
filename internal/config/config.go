package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yes-simulation/accounts/internal/service"
	"github.com/yes-simulation/accounts/internal/validation"
	pkgconfig "github.com/yes-simulation/accounts/pkg/config"
	"github.com/yes-simulation/accounts/pkg/database"
	"github.com/yes-simulation/accounts/pkg/middleware"
	"github.com/yes-simulation/accounts/pkg/tracing"
)

const (
	defaultJWTSecret = "change-this-to-a-secure-secret"
	minJWTSecretLen  = 32
)

// developmentSecretKeys are the registration keys shipped for local use.
var developmentSecretKeys = []string{"123", "test_key"}

// Config holds all configuration for the accounts service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8000"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"accounts"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"accounts"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"accounts"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns           int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns           int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	DBMaxConnLifetime    time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime    time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryThresholdMs int           `env:"DB_SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"20m"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" envDefault:"168h"`

	// Registration and passwords
	RegistrationSecretKeys []string `env:"REGISTRATION_SECRET_KEYS" envDefault:"123,test_key" envSeparator:","`
	BcryptCost             int      `env:"BCRYPT_COST" envDefault:"12"`
	PasswordMinLength      int      `env:"PASSWORD_MIN_LENGTH" envDefault:"6"`
	// CommonPasswordsFile replaces the embedded common password list. Plain
	// text or gzip, one password per line.
	CommonPasswordsFile string `env:"COMMON_PASSWORDS_FILE"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadFrom(envMap(os.Environ()))
}

// LoadFrom reads configuration from the given variables. Missing keys take
// their defaults.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load accounts config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.JWTAccessExpiry <= 0 {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_TOKEN_EXPIRY must be positive, got %s", c.JWTAccessExpiry))
	}
	if c.JWTRefreshExpiry <= 0 {
		errs = append(errs, fmt.Errorf("JWT_REFRESH_TOKEN_EXPIRY must be positive, got %s", c.JWTRefreshExpiry))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost))
	}
	if c.PasswordMinLength < 1 {
		errs = append(errs, fmt.Errorf("PASSWORD_MIN_LENGTH must be at least 1, got %d", c.PasswordMinLength))
	}
	if c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, fmt.Errorf("invalid pool size: min %d, max %d", c.DBMinConns, c.DBMaxConns))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %g", c.OTELSampleRate))
	}
	if c.KafkaEnabled && len(nonBlank(c.KafkaBrokers)) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must be set when KAFKA_ENABLED is true"))
	}

	if len(c.secretKeys()) == 0 {
		errs = append(errs, errors.New("REGISTRATION_SECRET_KEYS must contain at least one key"))
	}

	// Outside development require an explicitly set, strong JWT secret and
	// registration keys other than the shipped ones.
	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment))
		} else if len(c.JWTSecret) < minJWTSecretLen {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters long, got %d", minJWTSecretLen, len(c.JWTSecret)))
		}
		for _, k := range c.secretKeys() {
			if slices.Contains(developmentSecretKeys, k) {
				errs = append(errs, fmt.Errorf("REGISTRATION_SECRET_KEYS must not contain the development key %q in %q mode", k, c.Environment))
			}
		}
	}

	return errors.Join(errs...)
}

func (c *Config) secretKeys() []string {
	return nonBlank(c.RegistrationSecretKeys)
}

// Brokers returns the configured Kafka brokers without blanks.
func (c *Config) Brokers() []string {
	return nonBlank(c.KafkaBrokers)
}

func nonBlank(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Service returns the read-only policy for the auth service.
func (c *Config) Service() service.Config {
	return service.Config{
		SecretKeys:        c.secretKeys(),
		BcryptCost:        c.BcryptCost,
		PasswordMinLength: c.PasswordMinLength,
	}
}

// CommonPasswords loads COMMON_PASSWORDS_FILE. It returns nil when the
// variable is unset so the embedded list applies.
func (c *Config) CommonPasswords() (*validation.CommonList, error) {
	if c.CommonPasswordsFile == "" {
		return nil, nil
	}
	list, err := validation.LoadCommonListFile(c.CommonPasswordsFile)
	if err != nil {
		return nil, fmt.Errorf("load COMMON_PASSWORDS_FILE: %w", err)
	}
	return list, nil
}

// Postgres returns the connection settings for the pool.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

// Tracing returns the OpenTelemetry settings for serviceName.
func (c *Config) Tracing(serviceName, version string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}

// CORS returns the CORS middleware settings.
func (c *Config) CORS() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = c.CORSAllowedOrigins
	return cors
}

func envMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
