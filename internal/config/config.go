// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port              int           `yaml:"port"`
	PublicBaseURL     string        `yaml:"public_base_url"` // absolute; the callback URL sent to OKPAY is built from it
	CallbackPath      string        `yaml:"callback_path"`   // must contain {id}
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	CheckoutRateLimit int           `yaml:"checkout_rate_limit"` // per client ip and minute; 0 disables, needs redis
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // optional; callback locking is skipped when empty
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // callback lock ttl
}

type OkPayConfig struct {
	WalletID           string        `yaml:"wallet_id"`
	APIPassword        string        `yaml:"api_password"`
	ProcessURL         string        `yaml:"process_url"`
	VerifyURL          string        `yaml:"verify_url"`
	VerifyTimeout      time.Duration `yaml:"verify_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"` // empty disables /api/v1
	TokenTTL  time.Duration `yaml:"token_ttl"`
	URL       string        `yaml:"url"` // back-office link in operator notifications
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // empty disables the publisher
	Topic   string   `yaml:"topic"`
}

type SettlementConfig struct {
	StaleAfter   time.Duration `yaml:"stale_after"` // pending transactions older than this are reported
	ScanInterval time.Duration `yaml:"scan_interval"`
}

type TelegramConfig struct {
	Token    string  `yaml:"token"` // empty disables deposit notifications
	AdminIDs []int64 `yaml:"admin_ids"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	OkPay      OkPayConfig      `yaml:"okpay"`
	Admin      AdminConfig      `yaml:"admin"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Settlement SettlementConfig `yaml:"settlement"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the
// environment (and a .env file next to the binary, if any) and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	_ = godotenv.Load() // .env is optional
	return Parse(b, dev)
}

// Parse is LoadConfig without the file system.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.CallbackPath == "" {
		cfg.HTTP.CallbackPath = "/payment/okpay/callback/{id}"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.OkPay.VerifyTimeout <= 0 {
		cfg.OkPay.VerifyTimeout = 30 * time.Second
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 45 * time.Second
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 24 * time.Hour
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "payments.deposit"
	}
	if cfg.Settlement.StaleAfter <= 0 {
		cfg.Settlement.StaleAfter = 30 * time.Minute
	}
	if cfg.Settlement.ScanInterval <= 0 {
		cfg.Settlement.ScanInterval = 5 * time.Minute
	}

	// Minimal validation
	if cfg.OkPay.WalletID == "" {
		return nil, errors.New("okpay.wallet_id is required")
	}
	if cfg.OkPay.APIPassword == "" {
		return nil, errors.New("okpay.api_password is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.HTTP.PublicBaseURL == "" {
		return nil, errors.New("http.public_base_url is required")
	}
	if !strings.Contains(cfg.HTTP.CallbackPath, "{id}") {
		return nil, fmt.Errorf("http.callback_path %q must contain {id}", cfg.HTTP.CallbackPath)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// applyEnv lets the environment override secrets kept out of the YAML file.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	set(&cfg.OkPay.WalletID, "OKPAY_WALLET_ID")
	set(&cfg.OkPay.APIPassword, "OKPAY_API_PASSWORD")
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Admin.JWTSecret, "JWT_SECRET")
	set(&cfg.Telegram.Token, "TELEGRAM_TOKEN")
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}
