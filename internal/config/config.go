package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Pipeline  PipelineConfig
	Dedup     DedupConfig
	Auth      AuthConfig
	JWT       JWTConfig
	Zitadel   ZitadelConfig
	RateLimit RateLimitConfig
	Groq      GroqConfig
	Render    RenderConfig
	R2        R2Config
	Instagram InstagramConfig
	Telegram  TelegramConfig
	Storage   StorageConfig
	Logging   LoggingConfig
	Modules   ModulesConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	PublicURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SchedulerConfig struct {
	Mode           string // asynq, local or off
	IntervalCron   string
	Timezone       string
	RunTimeout     time.Duration
	MaxConcurrency int

	// TickConcurrency is how many asynq ticks may run at once; at least 2 so
	// a slow tick never delays the next one
	TickConcurrency int
}

type PipelineConfig struct {
	StageTimeout      time.Duration
	HistoryExclusions int
}

type DedupConfig struct {
	Window    int
	Threshold float64
}

// AuthConfig holds the shared secret for the trigger and publish endpoints.
// It has no default; an empty secret rejects every call. Gateway switches the
// dashboard API to identity headers set by a ForwardAuth proxy.
type AuthConfig struct {
	SharedSecret string
	Gateway      bool
}

type JWTConfig struct {
	Secret string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type RateLimitConfig struct {
	TriggerPerMin int
}

type GroqConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
}

type RenderConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type InstagramConfig struct {
	AccessToken string
	BaseURL     string
}

type TelegramConfig struct {
	BotToken string
}

type StorageConfig struct {
	Driver string // redis, sqlite or memory
	Path   string
}

type LoggingConfig struct {
	Level   string
	Console bool
	File    string
}

type ModulesConfig struct {
	QuotesTarget     string
	CharactersTarget string
	ReelsTarget      string
}

// Location resolves the configured scheduler timezone
func (c *SchedulerConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	readSecret("REDIS_PASSWORD")
	readSecret("SHARED_SECRET")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("INSTAGRAM_ACCESS_TOKEN")
	readSecret("TELEGRAM_BOT_TOKEN")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	bindings := map[string]string{
		"server.port":                 "SERVER_PORT",
		"server.env":                  "SERVER_ENV",
		"server.public_url":           "PUBLIC_URL",
		"redis.addr":                  "REDIS_ADDR",
		"redis.password":              "REDIS_PASSWORD",
		"redis.db":                    "REDIS_DB",
		"scheduler.mode":              "SCHEDULER_MODE",
		"scheduler.interval_cron":     "SCHEDULER_INTERVAL_CRON",
		"scheduler.timezone":          "SCHEDULER_TIMEZONE",
		"scheduler.run_timeout":       "SCHEDULER_RUN_TIMEOUT",
		"scheduler.max_concurrency":   "SCHEDULER_MAX_CONCURRENCY",
		"scheduler.tick_concurrency":  "SCHEDULER_TICK_CONCURRENCY",
		"pipeline.stage_timeout":      "PIPELINE_STAGE_TIMEOUT",
		"pipeline.history_exclusions": "PIPELINE_HISTORY_EXCLUSIONS",
		"dedup.window":                "DEDUP_WINDOW",
		"dedup.threshold":             "DEDUP_THRESHOLD",
		"auth.shared_secret":          "SHARED_SECRET",
		"jwt.secret":                  "JWT_SECRET",
		"zitadel.domain":              "ZITADEL_DOMAIN",
		"zitadel.client_id":           "ZITADEL_CLIENT_ID",
		"zitadel.issuer":              "ZITADEL_ISSUER",
		"ratelimit.trigger_per_min":   "RATELIMIT_TRIGGER_PER_MIN",
		"groq.api_key":                "GROQ_API_KEY",
		"groq.base_url":               "GROQ_BASE_URL",
		"groq.model":                  "GROQ_MODEL",
		"groq.requests_per_second":    "GROQ_REQUESTS_PER_SECOND",
		"render.service_url":          "RENDER_SERVICE_URL",
		"render.timeout":              "RENDER_SERVICE_TIMEOUT",
		"r2.account_id":               "R2_ACCOUNT_ID",
		"r2.access_key_id":            "R2_ACCESS_KEY_ID",
		"r2.secret_access_key":        "R2_SECRET_ACCESS_KEY",
		"r2.bucket_name":              "R2_BUCKET_NAME",
		"r2.public_url":               "R2_PUBLIC_URL",
		"instagram.access_token":      "INSTAGRAM_ACCESS_TOKEN",
		"instagram.base_url":          "INSTAGRAM_BASE_URL",
		"telegram.bot_token":          "TELEGRAM_BOT_TOKEN",
		"storage.driver":              "STORAGE_DRIVER",
		"storage.path":                "STORAGE_PATH",
		"logging.level":               "LOG_LEVEL",
		"logging.console":             "LOG_CONSOLE",
		"logging.file":                "LOG_FILE",
		"modules.quotes_target":       "MODULE_QUOTES_TARGET",
		"modules.characters_target":   "MODULE_CHARACTERS_TARGET",
		"modules.reels_target":        "MODULE_REELS_TARGET",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.public_url", "http://localhost:8000")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("scheduler.mode", "asynq")
	v.SetDefault("scheduler.interval_cron", "*/5 * * * *")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.run_timeout", "9m")
	v.SetDefault("scheduler.max_concurrency", 8)
	v.SetDefault("scheduler.tick_concurrency", 3)

	v.SetDefault("pipeline.stage_timeout", "3m")
	v.SetDefault("pipeline.history_exclusions", 10)

	v.SetDefault("dedup.window", 50)
	v.SetDefault("dedup.threshold", 0.7)

	v.SetDefault("ratelimit.trigger_per_min", 10)

	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("groq.requests_per_second", 2)

	v.SetDefault("render.service_url", "")
	v.SetDefault("render.timeout", 180)

	v.SetDefault("instagram.base_url", "https://graph.facebook.com/v19.0")

	v.SetDefault("storage.driver", "redis")
	v.SetDefault("storage.path", "data/autogram.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)

	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			PublicURL: strings.TrimRight(v.GetString("server.public_url"), "/"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Scheduler: SchedulerConfig{
			Mode:            strings.ToLower(v.GetString("scheduler.mode")),
			IntervalCron:    v.GetString("scheduler.interval_cron"),
			Timezone:        v.GetString("scheduler.timezone"),
			RunTimeout:      v.GetDuration("scheduler.run_timeout"),
			MaxConcurrency:  v.GetInt("scheduler.max_concurrency"),
			TickConcurrency: v.GetInt("scheduler.tick_concurrency"),
		},
		Pipeline: PipelineConfig{
			StageTimeout:      v.GetDuration("pipeline.stage_timeout"),
			HistoryExclusions: v.GetInt("pipeline.history_exclusions"),
		},
		Dedup: DedupConfig{
			Window:    v.GetInt("dedup.window"),
			Threshold: v.GetFloat64("dedup.threshold"),
		},
		Auth: AuthConfig{
			SharedSecret: v.GetString("auth.shared_secret"),
			Gateway:      v.GetBool("auth.gateway"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		Zitadel: ZitadelConfig{
			Domain:   v.GetString("zitadel.domain"),
			ClientID: v.GetString("zitadel.client_id"),
			Issuer:   v.GetString("zitadel.issuer"),
		},
		RateLimit: RateLimitConfig{
			TriggerPerMin: v.GetInt("ratelimit.trigger_per_min"),
		},
		Groq: GroqConfig{
			APIKey:            v.GetString("groq.api_key"),
			BaseURL:           v.GetString("groq.base_url"),
			Model:             v.GetString("groq.model"),
			RequestsPerSecond: v.GetFloat64("groq.requests_per_second"),
		},
		Render: RenderConfig{
			ServiceURL: v.GetString("render.service_url"),
			Timeout:    v.GetInt("render.timeout"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Instagram: InstagramConfig{
			AccessToken: v.GetString("instagram.access_token"),
			BaseURL:     v.GetString("instagram.base_url"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("telegram.bot_token"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
			Path:   v.GetString("storage.path"),
		},
		Logging: LoggingConfig{
			Level:   v.GetString("logging.level"),
			Console: v.GetBool("logging.console"),
			File:    v.GetString("logging.file"),
		},
		Modules: ModulesConfig{
			QuotesTarget:     v.GetString("modules.quotes_target"),
			CharactersTarget: v.GetString("modules.characters_target"),
			ReelsTarget:      v.GetString("modules.reels_target"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the scheduler cannot run with
func (c *Config) Validate() error {
	switch c.Scheduler.Mode {
	case "asynq", "local", "off":
	default:
		return fmt.Errorf("unknown scheduler mode %q", c.Scheduler.Mode)
	}
	if _, err := cron.ParseStandard(c.Scheduler.IntervalCron); err != nil {
		return fmt.Errorf("invalid scheduler.interval_cron %q: %w", c.Scheduler.IntervalCron, err)
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Scheduler.MaxConcurrency < 1 {
		return fmt.Errorf("scheduler.max_concurrency must be at least 1")
	}
	if c.Scheduler.TickConcurrency < 2 {
		return fmt.Errorf("scheduler.tick_concurrency must be at least 2 so ticks can overlap")
	}
	if c.Dedup.Window < 1 {
		return fmt.Errorf("dedup.window must be at least 1")
	}
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup.threshold must be in (0,1], got %v", c.Dedup.Threshold)
	}
	switch c.Storage.Driver {
	case "redis", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
