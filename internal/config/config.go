package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Email providers selectable through EMAIL_PROVIDER.
const (
	EmailProviderLog   = "log"
	EmailProviderSMTP  = "smtp"
	EmailProviderBrevo = "brevo"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string
	Env         string
	CORSOrigins []string
	FrontendURL string
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	StoreBackend  string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	StoreTimeout  time.Duration

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	AutoVerifyEmail bool
	AllowFullName   bool

	Redis RedisConfig
	Email EmailConfig

	SchedulerEnabled bool
}

// RedisConfig is optional; an empty Addr disables redis-backed features.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// EmailConfig selects and configures the outbound email transport.
type EmailConfig struct {
	Provider    string
	Host        string
	Port        string
	User        string
	Password    string
	From        string
	FromName    string
	BrevoAPIKey string
	FallbackLog string
	QueueSize   int
	Workers     int
}

// rawEnv mirrors the environment before normalisation.
type rawEnv struct {
	Port        string `env:"PORT"`
	Env         string `env:"APP_ENV"`
	CORSOrigins string `env:"CORS_ALLOWED_ORIGINS"`
	FrontendURL string `env:"FRONTEND_URL"`
	TrustProxy  bool   `env:"TRUST_PROXY_HEADERS"`

	StoreBackend        string `env:"STORE_BACKEND"`
	DatabaseURL         string `env:"DATABASE_URL"`
	MongoURI            string `env:"MONGO_URI"`
	MongoDatabase       string `env:"MONGO_DATABASE"`
	StoreTimeoutSeconds int    `env:"STORE_TIMEOUT_SECONDS"`

	JWTSecret     string `env:"JWT_SECRET"`
	JWTIssuer     string `env:"JWT_ISSUER"`
	JWTTTLMinutes int    `env:"JWT_TTL_MINUTES"`

	AutoVerifyEmail bool `env:"AUTO_VERIFY_EMAIL"`
	AllowFullName   bool `env:"ALLOW_FULL_NAME"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	EmailProvider    string `env:"EMAIL_PROVIDER"`
	EmailHost        string `env:"EMAIL_HOST"`
	EmailPort        string `env:"EMAIL_PORT"`
	EmailUser        string `env:"EMAIL_USER"`
	EmailPass        string `env:"EMAIL_PASS"`
	EmailFrom        string `env:"EMAIL_FROM"`
	EmailFromName    string `env:"EMAIL_FROM_NAME"`
	BrevoAPIKey      string `env:"BREVO_API_KEY"`
	EmailFallbackLog string `env:"EMAIL_FALLBACK_LOG"`
	EmailQueueSize   int    `env:"EMAIL_QUEUE_SIZE"`
	EmailWorkers     int    `env:"EMAIL_WORKERS"`

	SchedulerEnabled string `env:"SCHEDULER_ENABLED"`
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	var raw rawEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return fromRaw(raw)
}

func fromRaw(raw rawEnv) (Config, error) {
	cfg := Config{
		Port:          fallback(raw.Port, "8080"),
		Env:           fallback(raw.Env, "production"),
		CORSOrigins:   parseCSV(fallback(raw.CORSOrigins, "*")),
		FrontendURL:   strings.TrimRight(fallback(raw.FrontendURL, "http://localhost:3001"), "/"),
		StoreBackend:  strings.ToLower(fallback(raw.StoreBackend, BackendMemory)),
		DatabaseURL:   strings.TrimSpace(raw.DatabaseURL),
		MongoURI:      strings.TrimSpace(raw.MongoURI),
		MongoDatabase: fallback(raw.MongoDatabase, "ekonzims"),
		StoreTimeout:  positiveDuration(raw.StoreTimeoutSeconds, time.Second, 5*time.Second),

		JWTSecret: strings.TrimSpace(raw.JWTSecret),
		JWTIssuer: fallback(raw.JWTIssuer, "ekonzims-backend"),
		JWTTTL:    positiveDuration(raw.JWTTTLMinutes, time.Minute, 7*24*time.Hour),

		AutoVerifyEmail: raw.AutoVerifyEmail,
		AllowFullName:   raw.AllowFullName,

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(raw.RedisAddr),
			Password: raw.RedisPassword,
			DB:       raw.RedisDB,
		},
		Email: EmailConfig{
			Provider:    strings.ToLower(fallback(raw.EmailProvider, EmailProviderLog)),
			Host:        strings.TrimSpace(raw.EmailHost),
			Port:        fallback(raw.EmailPort, "465"),
			User:        strings.TrimSpace(raw.EmailUser),
			Password:    raw.EmailPass,
			FromName:    fallback(raw.EmailFromName, "EkoNzims"),
			BrevoAPIKey: strings.TrimSpace(raw.BrevoAPIKey),
			FallbackLog: fallback(raw.EmailFallbackLog, "logs/emails.log"),
			QueueSize:   positiveInt(raw.EmailQueueSize, 256),
			Workers:     positiveInt(raw.EmailWorkers, 4),
		},
		SchedulerEnabled: !strings.EqualFold(strings.TrimSpace(raw.SchedulerEnabled), "false"),
	}
	cfg.TrustProxyHeaders = raw.TrustProxy
	cfg.Email.From = fallback(raw.EmailFrom, fallback(cfg.Email.User, "no-reply@ekonzims.com"))

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendMongo:
		if cfg.MongoURI == "" {
			return Config{}, errors.New("MONGO_URI is required for the mongo backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.Email.Provider {
	case EmailProviderLog:
	case EmailProviderSMTP:
		if cfg.Email.Host == "" || cfg.Email.User == "" || cfg.Email.Password == "" {
			return Config{}, errors.New("EMAIL_HOST, EMAIL_USER and EMAIL_PASS are required for the smtp provider")
		}
	case EmailProviderBrevo:
		if cfg.Email.BrevoAPIKey == "" {
			return Config{}, errors.New("BREVO_API_KEY is required for the brevo provider")
		}
	default:
		return Config{}, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.Email.Provider)
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether APP_ENV selects development behaviour.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveDuration(n int, unit, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * unit
}

func positiveInt(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
