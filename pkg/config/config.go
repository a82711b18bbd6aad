package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	CMS     CMSConfig
	Redis   RedisConfig
	CORS    CORSConfig
	Log     LogConfig
	SMTP    SMTPConfig
	Jobs    JobsConfig
	Webhook WebhookConfig
	Auth    AuthConfig
}

// CMSConfig maps run stages to Strapi deployments.
type CMSConfig struct {
	Stages       map[string]StageConfig
	DefaultStage string
	Timeout      time.Duration
}

// StageConfig identifies one Strapi tenant.
type StageConfig struct {
	APIRoot string
	Token   string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SMTPConfig configures the transactional mail sender.
type SMTPConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	From          string
	SkipTLSVerify bool
}

// JobsConfig tunes the in-memory onboarding queue.
type JobsConfig struct {
	Workers    int
	BufferSize int
}

// WebhookConfig bounds outbound callback delivery.
type WebhookConfig struct {
	Timeout       time.Duration
	MaxRetries    int
	MaxRetryDelay time.Duration
}

// AuthConfig governs CMS-delegated token validation.
type AuthConfig struct {
	AllowedRoles []string
	CacheTTL     time.Duration
}

// Stage resolves a run stage to its tenant, falling back to the default stage.
func (c CMSConfig) Stage(runStage string) (StageConfig, error) {
	if runStage == "" {
		runStage = c.DefaultStage
	}
	stage, ok := c.Stages[runStage]
	if !ok {
		return StageConfig{}, fmt.Errorf("unknown run stage %q", runStage)
	}
	if stage.APIRoot == "" {
		return StageConfig{}, fmt.Errorf("run stage %q has no API root configured", runStage)
	}
	return stage, nil
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.CMS = CMSConfig{
		Stages:       loadStages(v),
		DefaultStage: v.GetString("CMS_DEFAULT_STAGE"),
		Timeout:      parseDuration(v.GetString("CMS_TIMEOUT"), 30*time.Second),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SMTP = SMTPConfig{
		Host:          v.GetString("SMTP_HOST"),
		Port:          v.GetInt("SMTP_PORT"),
		User:          v.GetString("SMTP_USER"),
		Password:      v.GetString("SMTP_PASS"),
		From:          v.GetString("SMTP_FROM"),
		SkipTLSVerify: v.GetBool("SMTP_SKIP_TLS_VERIFY"),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		BufferSize: v.GetInt("JOBS_BUFFER_SIZE"),
	}

	cfg.Webhook = WebhookConfig{
		Timeout:       parseDuration(v.GetString("WEBHOOK_TIMEOUT"), 30*time.Second),
		MaxRetries:    v.GetInt("WEBHOOK_MAX_RETRIES"),
		MaxRetryDelay: parseDuration(v.GetString("WEBHOOK_MAX_RETRY_DELAY"), 60*time.Second),
	}

	cfg.Auth = AuthConfig{
		AllowedRoles: splitAndTrim(v.GetString("AUTH_ADMIN_ROLES")),
		CacheTTL:     parseDuration(v.GetString("AUTH_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

// loadStages reads CMS_STAGES (comma-separated stage names) plus one
// CMS_<STAGE>_URL / CMS_<STAGE>_TOKEN pair per stage. Tokens come from the
// environment only, never from checked-in files.
func loadStages(v *viper.Viper) map[string]StageConfig {
	stages := make(map[string]StageConfig)
	for _, name := range splitAndTrim(v.GetString("CMS_STAGES")) {
		key := strings.ToUpper(name)
		stages[name] = StageConfig{
			APIRoot: strings.TrimRight(v.GetString("CMS_"+key+"_URL"), "/"),
			Token:   v.GetString("CMS_" + key + "_TOKEN"),
		}
	}
	return stages
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("CMS_STAGES", "dev,staging,prod")
	v.SetDefault("CMS_DEFAULT_STAGE", "dev")
	v.SetDefault("CMS_DEV_URL", "https://dev-cms.10academy.org")
	v.SetDefault("CMS_STAGING_URL", "https://stage-cms.10academy.org")
	v.SetDefault("CMS_PROD_URL", "https://cms.10academy.org")
	v.SetDefault("CMS_TIMEOUT", "30s")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_SKIP_TLS_VERIFY", false)

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_BUFFER_SIZE", 8)

	v.SetDefault("WEBHOOK_TIMEOUT", "30s")
	v.SetDefault("WEBHOOK_MAX_RETRIES", 10)
	v.SetDefault("WEBHOOK_MAX_RETRY_DELAY", "60s")

	v.SetDefault("AUTH_ADMIN_ROLES", "Authenticated,Staff")
	v.SetDefault("AUTH_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
