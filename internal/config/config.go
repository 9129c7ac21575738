package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL   string
	DBPoolSize    int
	DBMaxOverflow int
	DBPoolTimeout time.Duration
	DBPoolRecycle time.Duration

	SecretKey         string
	AccessTokenExpiry time.Duration

	APIHost        string
	APIPort        string
	Debug          bool
	AllowedOrigins []string

	MaxFileSizeMB int
	UploadDir     string

	OnboardingPassThreshold   float64
	OnboardingQuestionCount   int
	MaxAnnotationsPerSentence int

	MTBatchLimit       int
	MTBatchConcurrency int
	ScorerAPIKey       string
	ScorerAPIURL       string
	ScorerModel        string
	ScorerRatePerSec   float64

	StatsCacheTTL time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string
}

func defaults(v *viper.Viper) {
	v.SetDefault("database_url", "sqlite:///./annotation_system.db")
	v.SetDefault("db_pool_size", 10)
	v.SetDefault("db_max_overflow", 20)
	v.SetDefault("db_pool_timeout", 30)
	v.SetDefault("db_pool_recycle", 3600)
	v.SetDefault("secret_key", "fallback-secret-key-change-this")
	v.SetDefault("access_token_expire_minutes", 1440)
	v.SetDefault("api_host", "0.0.0.0")
	v.SetDefault("api_port", "8000")
	v.SetDefault("debug", true)
	v.SetDefault("allowed_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("max_file_size_mb", 10)
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("onboarding_pass_threshold", 70.0)
	v.SetDefault("onboarding_question_count", 10)
	v.SetDefault("max_annotations_per_sentence", 0)
	v.SetDefault("mt_batch_limit", 10)
	v.SetDefault("mt_batch_concurrency", 4)
	v.SetDefault("scorer_api_key", "")
	v.SetDefault("scorer_api_url", "https://api.openai.com/v1")
	v.SetDefault("scorer_model", "gpt-4o-mini")
	v.SetDefault("scorer_rate_per_sec", 2.0)
	v.SetDefault("stats_cache_ttl_seconds", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
}

// Load reads settings from the environment and, when present, a config.yaml in the
// working directory or /etc/lakra. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/lakra")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:   v.GetString("database_url"),
		DBPoolSize:    v.GetInt("db_pool_size"),
		DBMaxOverflow: v.GetInt("db_max_overflow"),
		DBPoolTimeout: time.Duration(v.GetInt("db_pool_timeout")) * time.Second,
		DBPoolRecycle: time.Duration(v.GetInt("db_pool_recycle")) * time.Second,

		SecretKey:         v.GetString("secret_key"),
		AccessTokenExpiry: time.Duration(v.GetInt("access_token_expire_minutes")) * time.Minute,

		APIHost:        v.GetString("api_host"),
		APIPort:        v.GetString("api_port"),
		Debug:          v.GetBool("debug"),
		AllowedOrigins: splitList(v.GetString("allowed_origins")),

		MaxFileSizeMB: v.GetInt("max_file_size_mb"),
		UploadDir:     v.GetString("upload_dir"),

		OnboardingPassThreshold:   v.GetFloat64("onboarding_pass_threshold"),
		OnboardingQuestionCount:   v.GetInt("onboarding_question_count"),
		MaxAnnotationsPerSentence: v.GetInt("max_annotations_per_sentence"),

		MTBatchLimit:       v.GetInt("mt_batch_limit"),
		MTBatchConcurrency: v.GetInt("mt_batch_concurrency"),
		ScorerAPIKey:       v.GetString("scorer_api_key"),
		ScorerAPIURL:       v.GetString("scorer_api_url"),
		ScorerModel:        v.GetString("scorer_model"),
		ScorerRatePerSec:   v.GetFloat64("scorer_rate_per_sec"),

		StatsCacheTTL: time.Duration(v.GetInt("stats_cache_ttl_seconds")) * time.Second,

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogFile:   v.GetString("log_file"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL cannot be empty")
	}
	if !c.IsPostgres() && !c.IsSQLite() {
		return errors.New("DATABASE_URL must be SQLite or PostgreSQL")
	}
	if c.OnboardingPassThreshold < 0 || c.OnboardingPassThreshold > 100 {
		return fmt.Errorf("ONBOARDING_PASS_THRESHOLD must be within 0..100, got %v", c.OnboardingPassThreshold)
	}
	if c.MTBatchLimit <= 0 {
		return errors.New("MT_BATCH_LIMIT must be positive")
	}
	if c.MTBatchConcurrency <= 0 {
		c.MTBatchConcurrency = 1
	}
	return nil
}

func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgresql://") || strings.HasPrefix(c.DatabaseURL, "postgres://")
}

func (c *Config) IsSQLite() bool {
	return strings.HasPrefix(c.DatabaseURL, "sqlite:///")
}

// SQLitePath strips the sqlite:/// scheme.
func (c *Config) SQLitePath() string {
	return strings.TrimPrefix(c.DatabaseURL, "sqlite:///")
}

func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
