package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DemoPassword is the development-only fallback when no identity is configured.
const DemoPassword = "password123"

type Config struct {
	Port        string `mapstructure:"PORT"`
	BindAddr    string `mapstructure:"BIND_ADDR"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	DBSchema    string `mapstructure:"DB_SCHEMA"`

	JWTSigningKey string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`

	AuthUserEmail        string `mapstructure:"AUTH_USER_EMAIL"`
	AuthUserPasswordHash string `mapstructure:"AUTH_USER_PASSWORD_HASH"`
	AuthUserPassword     string `mapstructure:"AUTH_USER_PASSWORD"`

	RedisURL           string        `mapstructure:"REDIS_URL"`
	LoginMaxFailures   int           `mapstructure:"LOGIN_MAX_FAILURES"`
	LoginFailureWindow time.Duration `mapstructure:"LOGIN_FAILURE_WINDOW"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	VitalsTolerance time.Duration `mapstructure:"VITALS_TOLERANCE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var keys = []string{
	"PORT", "BIND_ADDR", "ENV",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"JWT_SIGNING_KEY", "JWT_ISSUER", "TOKEN_TTL",
	"AUTH_USER_EMAIL", "AUTH_USER_PASSWORD_HASH", "AUTH_USER_PASSWORD",
	"REDIS_URL", "LOGIN_MAX_FAILURES", "LOGIN_FAILURE_WINDOW",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"VITALS_TOLERANCE", "LOG_LEVEL", "LOG_FORMAT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("BIND_ADDR", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("JWT_ISSUER", "caretrail")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("AUTH_USER_EMAIL", "demo@rustemr.com")
	v.SetDefault("LOGIN_MAX_FAILURES", 5)
	v.SetDefault("LOGIN_FAILURE_WINDOW", "15m")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("VITALS_TOLERANCE", "1h")
	v.SetDefault("LOG_LEVEL", "info")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.AuthUserPasswordHash == "" && cfg.AuthUserPassword == "" {
		cfg.AuthUserPassword = DemoPassword
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// SigningKey decodes JWT_SIGNING_KEY. It returns nil when the key is unset.
func (c *Config) SigningKey() ([]byte, error) {
	if c.JWTSigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.JWTSigningKey)
	if err != nil {
		return nil, fmt.Errorf("JWT_SIGNING_KEY is not valid hex: %w", err)
	}
	return key, nil
}

// Warnings lists insecure settings that are tolerated outside production.
func (c *Config) Warnings() []string {
	var w []string
	if c.JWTSigningKey == "" {
		w = append(w, "JWT_SIGNING_KEY is not set; a random key is generated and tokens will not survive a restart")
	}
	if c.AuthUserPassword != "" {
		w = append(w, "AUTH_USER_PASSWORD is set in plaintext; use AUTH_USER_PASSWORD_HASH outside development")
	}
	if len(c.CORSOrigins) == 1 && c.CORSOrigins[0] == "*" {
		w = append(w, "CORS allows every origin")
	}
	return w
}

// Validate checks that the configuration is safe to run. Production requires
// a signing key of at least 32 bytes and a bcrypt hash for the identity; a
// plaintext password is refused there.
func (c *Config) Validate() error {
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	key, err := c.SigningKey()
	if err != nil {
		return err
	}
	if key != nil && len(key) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.LoginMaxFailures <= 0 {
		return fmt.Errorf("LOGIN_MAX_FAILURES must be positive, got %d", c.LoginMaxFailures)
	}
	if c.LoginFailureWindow <= 0 {
		return fmt.Errorf("LOGIN_FAILURE_WINDOW must be positive, got %s", c.LoginFailureWindow)
	}
	if c.VitalsTolerance < 0 {
		return fmt.Errorf("VITALS_TOLERANCE must not be negative, got %s", c.VitalsTolerance)
	}
	if c.AuthUserEmail == "" {
		return fmt.Errorf("AUTH_USER_EMAIL is required")
	}

	switch c.LogFormat {
	case "", "json", "console", "ecs":
	default:
		return fmt.Errorf("LOG_FORMAT must be \"json\", \"console\", or \"ecs\", got %q", c.LogFormat)
	}

	if c.IsProduction() {
		if key == nil {
			return fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
		if c.AuthUserPasswordHash == "" {
			return fmt.Errorf("AUTH_USER_PASSWORD_HASH is required in production")
		}
		if c.AuthUserPassword != "" {
			return fmt.Errorf("AUTH_USER_PASSWORD must not be set in production; use AUTH_USER_PASSWORD_HASH")
		}
	} else if c.AuthUserPasswordHash == "" && c.AuthUserPassword == "" {
		return fmt.Errorf("one of AUTH_USER_PASSWORD_HASH or AUTH_USER_PASSWORD is required")
	}

	return nil
}
