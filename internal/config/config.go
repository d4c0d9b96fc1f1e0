// Package config loads the platform's single configuration value. There is
// no package-level mutable singleton: Load returns a Config that callers
// thread through every constructor.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port" env:"SERVER_PORT,default=8080"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS,default=5"`
}

type RedisConfig struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR,default=localhost:6379"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL,default=info"`
	Format string `yaml:"format" env:"LOG_FORMAT,default=json"`
}

type WorkWindowConfig struct {
	Start    string `yaml:"start" env:"WORK_WINDOW_START,default=02:00"`
	End      string `yaml:"end" env:"WORK_WINDOW_END,default=06:30"`
	Timezone string `yaml:"timezone" env:"WORK_WINDOW_TZ,default=UTC"`
	Enabled  bool   `yaml:"enabled" env:"WORK_WINDOW_ENABLED,default=true"`
}

type RateLimitConfig struct {
	WindowSeconds int64 `yaml:"window_seconds" env:"RATE_LIMIT_WINDOW_SECONDS,default=60"`
	DefaultLimit  int   `yaml:"default_limit" env:"RATE_LIMIT_DEFAULT,default=120"`
}

type ObjectStoreConfig struct {
	Bucket             string `yaml:"bucket" env:"OBJECT_STORE_BUCKET,default=course-materials"`
	MultipartThreshold int64  `yaml:"multipart_threshold_bytes" env:"OBJECT_STORE_MULTIPART_THRESHOLD,default=8388608"`
	PartSize           int64  `yaml:"part_size_bytes" env:"OBJECT_STORE_PART_SIZE,default=5242880"`
	SupabaseURL        string `yaml:"supabase_url" env:"SUPABASE_STORAGE_URL"`
	SupabaseServiceKey string `yaml:"supabase_service_key" env:"SUPABASE_SERVICE_KEY"`
}

type ProviderConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `yaml:"openai_base_url" env:"OPENAI_BASE_URL,default=https://api.openai.com/v1"`
	GeminiAPIKey    string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
}

type JobConfig struct {
	MaxJobs       int           `yaml:"max_jobs" env:"JOB_MAX_CONCURRENT,default=4"`
	JobTimeout    time.Duration `yaml:"job_timeout" env:"JOB_TIMEOUT,default=30m"`
	MaxTries      int           `yaml:"max_tries" env:"JOB_MAX_TRIES,default=3"`
	RegistryPath  string        `yaml:"registry_path" env:"MODEL_REGISTRY_PATH,default=configs/models.yaml"`
}

// Config is the full set of runtime tunables for the platform.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Logging     LoggingConfig     `yaml:"logging"`
	WorkWindow  WorkWindowConfig  `yaml:"work_window"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Providers   ProviderConfig    `yaml:"providers"`
	Jobs        JobConfig         `yaml:"jobs"`
}

// New returns a Config populated from environment variables and envdecode
// tag defaults only; it reads no YAML file and Load does not call it.
func New() *Config {
	cfg := &Config{}
	_ = envdecode.Decode(cfg)
	return cfg
}

// Load layers: optional YAML file, then .env, then environment variables.
// Environment variables always win over the file, matching the precedence
// a database DSN override needs in deployment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "configs/config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode env config: %w", err)
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}

	return cfg, nil
}
