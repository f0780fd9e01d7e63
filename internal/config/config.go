package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sudo-init-do/greenvault/internal/ledger"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/default.yaml"

type Config struct {
	Env      string
	HTTPPort int
	GRPCPort int
	LogLevel string

	DatabaseURL string
	JWTSecret   string
	RedisAddr   string

	KafkaBrokers     []string
	KafkaTopicPrefix string

	MaturationDelay time.Duration
	SweepInterval   time.Duration
	SweepInProcess  bool
	IdempotencyTTL  time.Duration
	AdminRateLimit  int

	AlertEmail string
	Mail       MailConfig
}

type MailConfig struct {
	Provider     string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	ReplyTo      string
	PlunkAPIKey  string
	PlunkFrom    string
	PlunkAPIURL  string
}

type configFile struct {
	Service struct {
		Env      string `yaml:"env"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL      string   `yaml:"postgres_url"`
		RedisAddr        string   `yaml:"redis_addr"`
		KafkaBrokers     []string `yaml:"kafka_brokers"`
		KafkaTopicPrefix string   `yaml:"kafka_topic_prefix"`
	} `yaml:"dependencies"`
	Ledger struct {
		MaturationDelayHours int   `yaml:"maturation_delay_hours"`
		SweepIntervalSeconds int   `yaml:"sweep_interval_seconds"`
		SweepInProcess       *bool `yaml:"sweep_in_process"`
		IdempotencyTTLHours  int   `yaml:"idempotency_ttl_hours"`
		AdminRateLimit       int   `yaml:"admin_rate_limit"`
	} `yaml:"ledger"`
	Alerts struct {
		Email        string `yaml:"email"`
		MailProvider string `yaml:"mail_provider"`
	} `yaml:"alerts"`
}

// Load reads .env (if present), then the YAML file at path (if present), then
// the environment. Later sources win.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env", "module", "config", "error", err)
	}

	cfg := Config{
		Env:              "development",
		HTTPPort:         8080,
		GRPCPort:         9090,
		LogLevel:         "info",
		KafkaTopicPrefix: "greenvault",
		MaturationDelay:  ledger.DefaultMaturationDelay,
		SweepInterval:    time.Minute,
		IdempotencyTTL:   24 * time.Hour,
		AdminRateLimit:   20,
		AlertEmail:       "ops@greenvault.local",
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.Env = envOrDefault("ENV", cfg.Env)
	cfg.HTTPPort = envInt("PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	if cfg.DatabaseURL == "" && os.Getenv("DB_HOST") != "" {
		cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_HOST"),
			envOrDefault("DB_PORT", "5432"), os.Getenv("DB_NAME"))
	}
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.RedisAddr = redisAddr(cfg.RedisAddr)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopicPrefix = envOrDefault("KAFKA_TOPIC_PREFIX", cfg.KafkaTopicPrefix)
	cfg.MaturationDelay = time.Duration(envInt("MATURATION_DELAY_HOURS", int(cfg.MaturationDelay.Hours()))) * time.Hour
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_SECONDS", int(cfg.SweepInterval.Seconds()))) * time.Second
	cfg.SweepInProcess = envBool("SWEEP_IN_PROCESS", cfg.SweepInProcess)
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.AdminRateLimit = envInt("ADMIN_RATE_LIMIT", cfg.AdminRateLimit)
	cfg.AlertEmail = envOrDefault("ALERT_EMAIL", cfg.AlertEmail)

	cfg.Mail = MailConfig{
		Provider:     envOrDefault("MAIL_PROVIDER", cfg.Mail.Provider),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     os.Getenv("SMTP_PORT"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		ReplyTo:      os.Getenv("MAIL_REPLY_TO"),
		PlunkAPIKey:  os.Getenv("PLUNK_API_KEY"),
		PlunkFrom:    os.Getenv("PLUNK_FROM"),
		PlunkAPIURL:  envOrDefault("PLUNK_API_URL", "https://api.useplunk.com/v1/send"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DATABASE_URL or DB_HOST")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing JWT_SECRET")
	}
	if cfg.MaturationDelay < 0 {
		return Config{}, fmt.Errorf("MATURATION_DELAY_HOURS must not be negative")
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.Env != "" {
		cfg.Env = f.Service.Env
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.LogLevel != "" {
		cfg.LogLevel = f.Service.LogLevel
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisAddr != "" {
		cfg.RedisAddr = f.Dependencies.RedisAddr
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
	}
	if f.Dependencies.KafkaTopicPrefix != "" {
		cfg.KafkaTopicPrefix = f.Dependencies.KafkaTopicPrefix
	}
	if f.Ledger.MaturationDelayHours > 0 {
		cfg.MaturationDelay = time.Duration(f.Ledger.MaturationDelayHours) * time.Hour
	}
	if f.Ledger.SweepIntervalSeconds > 0 {
		cfg.SweepInterval = time.Duration(f.Ledger.SweepIntervalSeconds) * time.Second
	}
	if f.Ledger.SweepInProcess != nil {
		cfg.SweepInProcess = *f.Ledger.SweepInProcess
	}
	if f.Ledger.IdempotencyTTLHours > 0 {
		cfg.IdempotencyTTL = time.Duration(f.Ledger.IdempotencyTTLHours) * time.Hour
	}
	if f.Ledger.AdminRateLimit > 0 {
		cfg.AdminRateLimit = f.Ledger.AdminRateLimit
	}
	if f.Alerts.Email != "" {
		cfg.AlertEmail = f.Alerts.Email
	}
	if f.Alerts.MailProvider != "" {
		cfg.Mail.Provider = f.Alerts.MailProvider
	}
	return nil
}

// redisAddr resolves the Redis address the same way for the API and the
// worker: REDIS_ADDR, then REDIS_HOST/REDIS_PORT, then the file value, then
// the docker-compose service name (or localhost with RUN_LOCAL=true).
func redisAddr(fromFile string) string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		return host + ":" + envOrDefault("REDIS_PORT", "6379")
	}
	if fromFile != "" {
		return fromFile
	}
	if os.Getenv("RUN_LOCAL") == "true" {
		return "127.0.0.1:6379"
	}
	return "redis:6379"
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
