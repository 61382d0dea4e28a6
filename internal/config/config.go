package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Server struct {
		Host            string   `yaml:"host"`
		Port            int      `yaml:"port"`
		Env             string   `yaml:"env"`
		ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
		WriteTimeoutSec int      `yaml:"write_timeout_sec"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Database struct {
		Driver          string `yaml:"driver"` // postgres, mysql, sqlite
		DSN             string `yaml:"url"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime_min"`
		AutoMigrate     bool   `yaml:"auto_migrate"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // минуты
	} `yaml:"jwt"`

	MTN struct {
		BaseURL                string `yaml:"base_url"`
		CollectionPrimaryKey   string `yaml:"collection_primary_key"`
		CollectionSecondaryKey string `yaml:"collection_secondary_key"`
		APIUser                string `yaml:"api_user"`
		APIKey                 string `yaml:"api_key"`
		TargetEnvironment      string `yaml:"target_environment"`
		Currency               string `yaml:"currency"`
		CallbackHost           string `yaml:"callback_host"`
		TimeoutSec             int    `yaml:"timeout_sec"`
		// ProvisionSandbox создаёт API user/key при старте, если они не заданы
		ProvisionSandbox bool `yaml:"provision_sandbox"`
	} `yaml:"mtn"`

	Stripe struct {
		SecretKey     string            `yaml:"secret_key"`
		WebhookSecret string            `yaml:"webhook_secret"`
		Prices        map[string]string `yaml:"prices"` // plan -> price id
	} `yaml:"stripe"`

	Storage struct {
		Type          string `yaml:"type"`      // local, s3
		BasePath      string `yaml:"base_path"` // For local storage
		BaseURL       string `yaml:"base_url"`  // Public URL base
		Bucket        string `yaml:"bucket"`
		Region        string `yaml:"region"`
		AccessKey     string `yaml:"access_key"`
		SecretKey     string `yaml:"secret_key"`
		Endpoint      string `yaml:"endpoint"` // MinIO / R2 / custom S3
		UsePathStyle  bool   `yaml:"use_path_style"`
		PresignTTLMin int    `yaml:"presign_ttl_min"`
	} `yaml:"storage"`

	Upload struct {
		MaxSize      int64    `yaml:"max_size"`
		AllowedTypes []string `yaml:"allowed_types"`
	} `yaml:"upload"`

	Quota QuotaConfig `yaml:"quota"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Locks struct {
		Backend string `yaml:"backend"` // memory, redis
		// TTLSec - срок аренды redis-блокировки; пока загрузка идёт,
		// аренда продлевается каждые ttl/3
		TTLSec int `yaml:"ttl_sec"`
	} `yaml:"locks"`

	Email struct {
		Enabled      bool   `yaml:"enabled"`
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`

	Workers struct {
		PaymentPoll struct {
			Enabled           bool   `yaml:"enabled"`
			Schedule          string `yaml:"schedule"`
			ReconcileSchedule string `yaml:"reconcile_schedule"`
			PendingOlderSec   int    `yaml:"pending_older_sec"`
			BatchSize         int    `yaml:"batch_size"`
		} `yaml:"payment_poll"`
	} `yaml:"workers"`
}

var AppConfig *Config

// Load собирает конфигурацию: значения по умолчанию, затем YAML, затем .env
// и переменные окружения.
func Load(path string) (*Config, error) {
	// .env не обязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = defaultConfigPath
	}

	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.Printf("Config file %s not found, using defaults and environment", path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig загружает глобальную конфигурацию и завершает процесс при ошибке
func LoadConfig() {
	cfg, err := Load("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

// Default - конфигурация для локального запуска
func Default() *Config {
	var cfg Config

	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.Env = "development"
	cfg.Server.ReadTimeoutSec = 30
	cfg.Server.WriteTimeoutSec = 60
	cfg.Server.AllowedOrigins = []string{"*"}

	cfg.Database.Driver = "postgres"
	cfg.Database.MaxOpenConns = 25
	cfg.Database.MaxIdleConns = 5
	cfg.Database.ConnMaxLifetime = 30
	cfg.Database.AutoMigrate = true

	cfg.JWT.TTL = 60

	cfg.MTN.BaseURL = "https://sandbox.momodeveloper.mtn.com"
	cfg.MTN.TargetEnvironment = "sandbox"
	cfg.MTN.TimeoutSec = 30

	cfg.Storage.Type = "local"
	cfg.Storage.BasePath = "./uploads"
	cfg.Storage.BaseURL = "/api/v1/files"
	cfg.Storage.PresignTTLMin = 15

	cfg.Upload.MaxSize = 50 * 1024 * 1024

	cfg.Quota = DefaultQuotaConfig()

	cfg.Locks.Backend = "memory"
	cfg.Locks.TTLSec = 120

	cfg.Email.SMTPPort = 587
	cfg.Email.FromName = "DocVault"

	cfg.Workers.PaymentPoll.Schedule = "@every 1m"
	cfg.Workers.PaymentPoll.ReconcileSchedule = "@every 5m"
	cfg.Workers.PaymentPoll.PendingOlderSec = 60
	cfg.Workers.PaymentPoll.BatchSize = 50

	return &cfg
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file at %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file at %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Env, "SERVER_ENV")
	setString(&c.Server.Host, "SERVER_HOST")
	setInt(&c.Server.Port, "SERVER_PORT")
	if v, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}

	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setBool(&c.Database.AutoMigrate, "DATABASE_AUTO_MIGRATE")

	setString(&c.JWT.Secret, "JWT_SECRET")
	setInt(&c.JWT.TTL, "JWT_TTL")

	setString(&c.MTN.BaseURL, "MTN_URL")
	setString(&c.MTN.CollectionPrimaryKey, "MTN_COLLECTION_PRIMARY_KEY")
	setString(&c.MTN.CollectionSecondaryKey, "MTN_COLLECTION_SECONDARY_KEY")
	setString(&c.MTN.APIUser, "MTN_API_USER")
	setString(&c.MTN.APIKey, "MTN_API_KEY")
	setString(&c.MTN.TargetEnvironment, "MTN_TARGET_ENVIRONMENT")
	setString(&c.MTN.Currency, "MTN_CURRENCY")
	setString(&c.MTN.CallbackHost, "MTN_CALLBACK_HOST")
	setBool(&c.MTN.ProvisionSandbox, "MTN_PROVISION_SANDBOX")

	setString(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setString(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")

	setString(&c.Storage.Type, "STORAGE_TYPE")
	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	setString(&c.Storage.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "S3_SECRET_KEY")
	setString(&c.Storage.Bucket, "S3_BUCKET")
	setString(&c.Storage.Region, "S3_REGION")

	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Locks.Backend, "LOCKS_BACKEND")

	setBool(&c.Email.Enabled, "SMTP_ENABLED")
	setString(&c.Email.SMTPHost, "SMTP_HOST")
	setInt(&c.Email.SMTPPort, "SMTP_PORT")
	setString(&c.Email.SMTPUsername, "SMTP_USER")
	setString(&c.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&c.Email.FromEmail, "SMTP_FROM")

	setBool(&c.Workers.PaymentPoll.Enabled, "PAYMENT_POLL_ENABLED")
}

// Validate проверяет то, без чего сервер не может стартовать
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database url is required (DATABASE_URL)")
	}
	if c.Storage.Type == "s3" && c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required for s3 storage")
	}
	if c.Locks.Backend == "redis" && c.Redis.URL == "" {
		return errors.New("redis url is required for redis locks (REDIS_URL)")
	}
	if _, err := c.Quota.Policy(); err != nil {
		return err
	}
	return nil
}

// IsProduction - детали 5xx скрываются только в production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWT.TTL) * time.Minute
}

func (c *Config) MTNTimeout() time.Duration {
	return time.Duration(c.MTN.TimeoutSec) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Locks.TTLSec) * time.Second
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			*dst = n
		} else {
			log.Printf("Ignoring %s=%q: %v", key, v, err)
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			*dst = b
		} else {
			log.Printf("Ignoring %s=%q: %v", key, v, err)
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
