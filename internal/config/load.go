package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TASKTRACK_SERVER_PORT.
const EnvPrefix = "TASKTRACK"

// keys lists every configuration key so that viper binds the matching
// environment variable even when no default or file value exists.
var keys = []string{
	"server.port",
	"server.log_level",
	"database.driver",
	"database.url",
	"auth.jwt_secret",
	"auth.token_lifetime_minutes",
	"tasks.timezone",
	"tasks.default_page_limit",
	"tasks.max_page_limit",
	"scheduler.enabled",
	"scheduler.reminder_cron",
	"scheduler.overdue_cron",
	"notify.workers",
	"notify.queue_size",
	"cache.redis_addr",
	"cache.password",
	"cache.db",
	"cache.ttl_seconds",
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.RegisterValidation("timezone_name", validateTimezone); err != nil {
		return fmt.Errorf("failed to register timezone validator: %w", err)
	}
	if err := validate.RegisterValidation("cron_spec", validateCronSpec); err != nil {
		return fmt.Errorf("failed to register cron validator: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Location resolves the configured task timezone.
func (c TasksConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("tasks.timezone", "Local")
	v.SetDefault("tasks.default_page_limit", 15)
	v.SetDefault("tasks.max_page_limit", 100)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminder_cron", "0 9 * * *")
	v.SetDefault("scheduler.overdue_cron", "0 * * * *")
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl_seconds", 300)
}

func validateTimezone(fl validator.FieldLevel) bool {
	_, err := TasksConfig{Timezone: fl.Field().String()}.Location()
	return err == nil
}

func validateCronSpec(fl validator.FieldLevel) bool {
	_, err := cron.ParseStandard(fl.Field().String())
	return err == nil
}
