package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. INTAKE_DATABASE_HOST.
const EnvPrefix = "INTAKE"

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Minio         MinioConfig         `mapstructure:"minio"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Questionnaire QuestionnaireConfig `mapstructure:"questionnaire"`
	Scoring       ScoringConfig       `mapstructure:"scoring"`
	Listing       ListingConfig       `mapstructure:"listing"`
	Stats         StatsConfig         `mapstructure:"stats"`
	Push          PushConfig          `mapstructure:"push"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" split_words:"true"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Log           LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	// MaxBodyBytes bounds request bodies, which may carry base64 files.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" split_words:"true"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true"`
	// Migrate applies the embedded schema at start-up.
	Migrate bool `mapstructure:"migrate"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
	// EventChannel receives every committed domain event as JSON.
	EventChannel string `mapstructure:"event_channel" split_words:"true"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key" split_words:"true"`
	SecretKey string `mapstructure:"secret_key" split_words:"true"`
	UseSSL    bool   `mapstructure:"use_ssl" split_words:"true"`
	Bucket    string `mapstructure:"bucket"`
	PublicURL string `mapstructure:"public_url" split_words:"true"`
	Prefix    string `mapstructure:"prefix"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type QuestionnaireConfig struct {
	OutcomeSectionID int64 `mapstructure:"outcome_section_id" split_words:"true"`
	AgeQuestionID    int64 `mapstructure:"age_question_id" split_words:"true"`
}

type ScoringConfig struct {
	PointsPerOutcome   int `mapstructure:"points_per_outcome" split_words:"true"`
	MilestoneThreshold int `mapstructure:"milestone_threshold" split_words:"true"`
	HistoryLimit       int `mapstructure:"history_limit" split_words:"true"`
}

type ListingConfig struct {
	// Strategy is "batch" or "join".
	Strategy        string `mapstructure:"strategy"`
	DefaultPageSize int    `mapstructure:"default_page_size" split_words:"true"`
	MaxPageSize     int    `mapstructure:"max_page_size" split_words:"true"`
}

type StatsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type PushConfig struct {
	Channel       string        `mapstructure:"channel"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval" split_words:"true"`
	RetryAfter    time.Duration `mapstructure:"retry_after" split_words:"true"`
	BatchSize     int           `mapstructure:"batch_size" split_words:"true"`
	MaxAttempts   int           `mapstructure:"max_attempts" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type WorkerConfig struct {
	// HealthPort serves /health and /metrics for cmd/worker.
	HealthPort int `mapstructure:"health_port" split_words:"true"`
	// NotificationRetention is how long settled notifications are kept.
	NotificationRetention time.Duration `mapstructure:"notification_retention" split_words:"true"`
	CleanupInterval       time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Defaults returns a configuration that works without any file.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxBodyBytes:    25 << 20,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Name:            "intake",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		Redis: RedisConfig{
			URL:          "redis://localhost:6379/0",
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     10,
			MinIdleConns: 2,
			EventChannel: "intake.events",
		},
		Minio: MinioConfig{
			Endpoint: "localhost:9000",
			Bucket:   "intake-files",
			Prefix:   "answers",
		},
		Questionnaire: QuestionnaireConfig{
			OutcomeSectionID: 5,
			AgeQuestionID:    3,
		},
		Scoring: ScoringConfig{
			PointsPerOutcome:   1,
			MilestoneThreshold: 50,
			HistoryLimit:       20,
		},
		Listing: ListingConfig{
			Strategy:        "batch",
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
		Stats: StatsConfig{
			TTL:             5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Push: PushConfig{
			Channel:       "push.outbound",
			Timeout:       10 * time.Second,
			RetryInterval: 30 * time.Second,
			RetryAfter:    time.Minute,
			BatchSize:     100,
			MaxAttempts:   5,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Worker: WorkerConfig{
			HealthPort:            8081,
			NotificationRetention: 90 * 24 * time.Hour,
			CleanupInterval:       time.Hour,
		},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig reads config.yml from the usual locations on top of Defaults, then
// applies INTAKE_* environment overrides. A missing file is not an error.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	v.AddConfigPath("/app/config")

	return load(v)
}

// LoadFile is LoadConfig for an explicit path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	cfg := Defaults()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Listing.Strategy) {
	case "batch", "join":
	default:
		return fmt.Errorf("invalid listing strategy %q", c.Listing.Strategy)
	}
	if c.Scoring.MilestoneThreshold <= 0 {
		return fmt.Errorf("scoring.milestone_threshold must be positive")
	}
	if c.Scoring.PointsPerOutcome <= 0 {
		return fmt.Errorf("scoring.points_per_outcome must be positive")
	}
	if c.Questionnaire.OutcomeSectionID <= 0 {
		return fmt.Errorf("questionnaire.outcome_section_id must be set")
	}
	return nil
}
