package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port                   string `validate:"required"`
	DatabaseDSN            string `validate:"required"`
	JWTSecret              string `validate:"required"`
	Env                    string
	AccessTokenTTLMinutes  int `validate:"gt=0"`
	RefreshTokenTTLDays    int `validate:"gt=0"`
	RedisAddr              string
	SessionCacheTTLSeconds int `validate:"gte=0"`
	WsAuthTimeoutSeconds   int `validate:"gte=0"`
	WsSendBuffer           int `validate:"gte=0"`
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLDays) * 24 * time.Hour
}

func (c Config) SessionCacheTTL() time.Duration {
	return time.Duration(c.SessionCacheTTLSeconds) * time.Second
}

func (c Config) WsAuthTimeout() time.Duration {
	return time.Duration(c.WsAuthTimeoutSeconds) * time.Second
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt falls back to def when the value is missing, malformed or negative.
// Zero is kept; Validate decides whether it is allowed.
func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, strconv.Itoa(def)))
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set take precedence.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:                   getenv("APP_PORT", "8080"),
		DatabaseDSN:            getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=chatapp port=5432 sslmode=disable TimeZone=UTC"),
		JWTSecret:              getenv("JWT_SECRET", defaultJWTSecret),
		Env:                    getenv("APP_ENV", "dev"),
		AccessTokenTTLMinutes:  getenvInt("ACCESS_TOKEN_TTL_MINUTES", 15),
		RefreshTokenTTLDays:    getenvInt("REFRESH_TOKEN_TTL_DAYS", 7),
		RedisAddr:              getenv("REDIS_ADDR", ""),
		SessionCacheTTLSeconds: getenvInt("SESSION_CACHE_TTL_SECONDS", 60),
		WsAuthTimeoutSeconds:   getenvInt("WS_AUTH_TIMEOUT_SECONDS", 30),
		WsSendBuffer:           getenvInt("WS_SEND_BUFFER", 256),
	}
}

var validate = validator.New()

// Validate rejects incomplete configs and the built-in JWT secret outside dev.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set outside dev")
	}
	return nil
}
