package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the system-wide settings tree. Values are resolved with the
// precedence: explicit config file > environment (CLASSHUB_*) > defaults.
type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Database    DatabaseConfig    `mapstructure:"database"`
	WebSocket   WebSocketConfig   `mapstructure:"websocket"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Media       MediaConfig       `mapstructure:"media"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
}

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type MediaConfig struct {
	AudioDir string `mapstructure:"audio_dir"`
}

type CoordinatorConfig struct {
	// HostGrace is how long a session survives after its host drops
	// before remaining members are told the session ended. Zero ends the
	// session immediately.
	HostGrace time.Duration `mapstructure:"host_grace"`

	// HistoryLimit caps the number of messages returned for initial
	// chat backfill.
	HistoryLimit int `mapstructure:"history_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "./classhub.db")
	v.SetDefault("database.timeout", 30*time.Second)

	v.SetDefault("websocket.ping_interval", 30*time.Second)
	v.SetDefault("websocket.read_timeout", 60*time.Second)
	v.SetDefault("websocket.write_timeout", 10*time.Second)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("media.audio_dir", "./uploads/audio")

	v.SetDefault("coordinator.host_grace", time.Duration(0))
	v.SetDefault("coordinator.history_limit", 100)
}

// Load resolves configuration. An optional .env file is read first so
// that local development can keep secrets out of the shell environment;
// a missing .env is not an error.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CLASSHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot serve.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket intervals must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout must exceed ping interval")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}
	if c.Media.AudioDir == "" {
		return fmt.Errorf("media audio dir cannot be empty")
	}
	if c.Coordinator.HostGrace < 0 {
		return fmt.Errorf("coordinator host grace cannot be negative")
	}
	if c.Coordinator.HistoryLimit <= 0 {
		return fmt.Errorf("coordinator history limit must be positive")
	}
	return nil
}
