package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/wb-go/wbf/retry"
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Upload  UploadConfig  `yaml:"upload"`
	Session SessionConfig `yaml:"session"`
	Preview PreviewConfig `yaml:"preview"`
	MinIO   MinIOConfig   `yaml:"minio"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Worker  WorkerConfig  `yaml:"worker"`
	Retry   RetryConfig   `yaml:"retry"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:"8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url" env:"BACKEND_BASE_URL" env-default:"http://localhost:3001" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" env:"BACKEND_TIMEOUT" env-default:"60s" validate:"gt=0"`
}

type UploadConfig struct {
	MaxSize      int64    `yaml:"max_size" env:"UPLOAD_MAX_SIZE" env-default:"10485760" validate:"gt=0"`
	AllowedTypes []string `yaml:"allowed_types" env:"UPLOAD_ALLOWED_TYPES" env-default:"image/jpeg,image/jpg,image/png,image/webp" validate:"min=1,dive,required"`
	MaxWidth     int      `yaml:"max_width" env:"UPLOAD_MAX_WIDTH" env-default:"4096" validate:"gte=0"`
	MaxHeight    int      `yaml:"max_height" env:"UPLOAD_MAX_HEIGHT" env-default:"4096" validate:"gte=0"`
}

type SessionConfig struct {
	CookieName    string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"tryon_session" validate:"required"`
	TTL           time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"30m" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SESSION_SWEEP_INTERVAL" env-default:"1m" validate:"gt=0"`
}

type PreviewConfig struct {
	Backend string `yaml:"backend" env:"PREVIEW_BACKEND" env-default:"memory" validate:"oneof=memory minio"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET" env-default:"tryon-previews"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	EventsTopic string   `yaml:"events_topic" env:"KAFKA_EVENTS_TOPIC" env-default:"tryon-events"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" env:"WORKER_CONCURRENCY" env-default:"2" validate:"gte=1"`
	QueueSize   int `yaml:"queue_size" env:"WORKER_QUEUE_SIZE" env-default:"256" validate:"gte=1"`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts" env:"RETRY_ATTEMPTS" env-default:"3" validate:"gte=1"`
	Delay    time.Duration `yaml:"delay" env:"RETRY_DELAY" env-default:"500ms"`
	Backoff  float64       `yaml:"backoff" env:"RETRY_BACKOFF" env-default:"2"`
}

// MustLoad reads the YAML file at CONFIG_PATH (if present) and applies
// environment overrides.
func MustLoad() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read env config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Preview.Backend == "minio" && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		return fmt.Errorf("invalid configuration: minio preview backend requires MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
	}
	return nil
}

func (c *Config) DefaultRetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		Backoff:  c.Retry.Backoff,
	}
}

func (c *Config) KafkaEnabled() bool {
	for _, b := range c.Kafka.Brokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}
