package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

// AuthConfig carries the lockout and session policy. Values are passed to
// the auth service and lockout policy at construction time.
type AuthConfig struct {
	CookieName            string `mapstructure:"cookie_name"`
	SessionExpireHours    int    `mapstructure:"session_expire_hours"`
	FailLockAttempts      int    `mapstructure:"fail_lock_attempts"`
	FailLockDurationHours int    `mapstructure:"fail_lock_duration_hours"`
	MinPasswordLength     int    `mapstructure:"min_password_length"`
	MaxPasswordLength     int    `mapstructure:"max_password_length"`
	Debug                 bool   `mapstructure:"debug"` // debug 模式下 cookie 不加 Secure
}

// SessionTTL returns the session lifetime as a duration.
func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionExpireHours) * time.Hour
}

// LockDuration returns the temporary lock duration.
func (a AuthConfig) LockDuration() time.Duration {
	return time.Duration(a.FailLockDurationHours) * time.Hour
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// Load loads configuration from given file path (e.g. "config.yaml").
// If path is empty, it defaults to "config.yaml" in current working directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// environment overrides, e.g. OPENLOCKEY_SERVER_PORT=9080
	v.SetEnvPrefix("OPENLOCKEY")
	v.AutomaticEnv()

	// policy defaults
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 9080)
	v.SetDefault("database.path", "data/openlockey.db")
	v.SetDefault("auth.cookie_name", "openlockey_session")
	v.SetDefault("auth.session_expire_hours", 72)
	v.SetDefault("auth.fail_lock_attempts", 5)
	v.SetDefault("auth.fail_lock_duration_hours", 2)
	v.SetDefault("auth.min_password_length", 32)
	v.SetDefault("auth.max_password_length", 128)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &c, nil
}
