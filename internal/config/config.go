package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Tasks     TasksConfig     `mapstructure:"tasks"     validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Notify    NotifyConfig    `mapstructure:"notify"    validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Users     []UserConfig    `mapstructure:"users"     validate:"dive"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig selects the task store backend.
// URL is only consulted when Driver is "postgres".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory postgres"`
	URL    string `mapstructure:"url"    validate:"required_if=Driver postgres"`
}

// AuthConfig contains the settings used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=1"`
}

// TasksConfig controls calendar and listing behavior of the task engine.
type TasksConfig struct {
	// Timezone is an IANA name or "Local". Scoring, date-only deadlines and
	// the reminder window are all evaluated in this location.
	Timezone         string `mapstructure:"timezone"           validate:"required,timezone_name"`
	DefaultPageLimit int    `mapstructure:"default_page_limit" validate:"gte=1"`
	MaxPageLimit     int    `mapstructure:"max_page_limit"     validate:"gtefield=DefaultPageLimit"`
}

// SchedulerConfig holds the cron specs for the background sweeps.
type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ReminderCron string `mapstructure:"reminder_cron" validate:"required,cron_spec"`
	OverdueCron  string `mapstructure:"overdue_cron"  validate:"required,cron_spec"`
}

// NotifyConfig sizes the notification delivery pool.
type NotifyConfig struct {
	Workers   int `mapstructure:"workers"    validate:"gte=1"`
	QueueSize int `mapstructure:"queue_size" validate:"gte=1"`
}

// CacheConfig configures the Redis-backed statistics cache.
// An empty RedisAddr disables caching.
type CacheConfig struct {
	RedisAddr  string `mapstructure:"redis_addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"          validate:"gte=0"`
	TTLSeconds int    `mapstructure:"ttl_seconds" validate:"gte=1"`
}

// UserConfig is a user entry for the built-in directory. These users are
// the notification recipients when the memory driver is selected.
type UserConfig struct {
	ID    int64  `mapstructure:"id"    validate:"gt=0"`
	Name  string `mapstructure:"name"  validate:"required"`
	Email string `mapstructure:"email" validate:"omitempty,email"`
}
