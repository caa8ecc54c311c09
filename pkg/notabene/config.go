package notabene

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Local    LocalConfig    `mapstructure:"local"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Notes    NotesConfig    `mapstructure:"notes"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LocalConfig holds the on-device store configuration.
type LocalConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig holds the SurrealDB connection settings. When Enabled is
// false the application runs local-only: no mirroring, no live updates.
type RemoteConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
	Database  string `mapstructure:"database"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	UserID    string `mapstructure:"user_id"`
}

// CalendarConfig holds the external calendar service settings.
type CalendarConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// NotesConfig tunes the facade.
type NotesConfig struct {
	UndoRetention      time.Duration `mapstructure:"undo_retention"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from the environment, with a .env file as
// an optional source for development.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvPrefix("notabene")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")

	v.SetDefault("local.path", "notabene.db")

	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.url", "ws://localhost:8000/rpc")
	v.SetDefault("remote.namespace", "notabene")
	v.SetDefault("remote.database", "default")
	v.SetDefault("remote.user_id", "default")

	v.SetDefault("calendar.enabled", false)

	v.SetDefault("notes.undo_retention", "5m")
	v.SetDefault("notes.outbox_poll_interval", "10s")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.host", "NOTABENE_HOST")
	v.BindEnv("server.port", "NOTABENE_PORT")

	v.BindEnv("local.path", "NOTABENE_DB_PATH")

	v.BindEnv("remote.enabled", "NOTABENE_REMOTE_ENABLED")
	v.BindEnv("remote.url", "NOTABENE_REMOTE_URL")
	v.BindEnv("remote.namespace", "NOTABENE_REMOTE_NAMESPACE")
	v.BindEnv("remote.database", "NOTABENE_REMOTE_DATABASE")
	v.BindEnv("remote.username", "NOTABENE_REMOTE_USER")
	v.BindEnv("remote.password", "NOTABENE_REMOTE_PASS")
	v.BindEnv("remote.user_id", "NOTABENE_USER_ID")

	v.BindEnv("calendar.enabled", "NOTABENE_CALENDAR_ENABLED")
	v.BindEnv("calendar.base_url", "NOTABENE_CALENDAR_URL")
	v.BindEnv("calendar.token", "NOTABENE_CALENDAR_TOKEN")

	v.BindEnv("notes.undo_retention", "NOTABENE_UNDO_RETENTION")
	v.BindEnv("notes.outbox_poll_interval", "NOTABENE_OUTBOX_POLL_INTERVAL")

	v.BindEnv("logger.level", "NOTABENE_LOG_LEVEL")
	v.BindEnv("logger.format", "NOTABENE_LOG_FORMAT")
}

func (cfg *Config) validate() error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if cfg.Local.Path == "" {
		return fmt.Errorf("local store path is required")
	}
	if cfg.Remote.Enabled && cfg.Remote.URL == "" {
		return fmt.Errorf("remote URL is required when the remote store is enabled")
	}
	if cfg.Calendar.Enabled && cfg.Calendar.BaseURL == "" {
		return fmt.Errorf("calendar base URL is required when the calendar is enabled")
	}
	if cfg.Notes.UndoRetention <= 0 {
		return fmt.Errorf("undo retention must be positive")
	}
	return nil
}
