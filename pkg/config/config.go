package config

import (
	"errors"
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
	Env string

	API      APIConfig
	Store    StoreConfig
	Realtime RealtimeConfig
	Log      LogConfig
	Export   ExportConfig
}

// APIConfig configures the HTTP client adapter.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// StoreConfig selects and configures the persisted key-value store backing
// the session (file is the default; redis serves headless deployments).
type StoreConfig struct {
	Backend string
	Dir     string
	Redis   RedisConfig
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// RealtimeConfig configures the notification hub connection.
type RealtimeConfig struct {
	HubURL        string
	Enabled       bool
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	InboxCapacity int
}

type LogConfig struct {
	Level  string
	Format string
}

// ExportConfig configures grade sheet export output.
type ExportConfig struct {
	Dir string
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

	cfg.API = APIConfig{
		BaseURL:   strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		Timeout:   parseDuration(v.GetString("API_TIMEOUT"), 15*time.Second),
		UserAgent: v.GetString("API_USER_AGENT"),
	}

	cfg.Store = StoreConfig{
		Backend: v.GetString("STORE_BACKEND"),
		Dir:     v.GetString("STORE_DIR"),
		Redis: RedisConfig{
			Host:      v.GetString("REDIS_HOST"),
			Port:      v.GetInt("REDIS_PORT"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
		},
	}

	cfg.Realtime = RealtimeConfig{
		HubURL:        v.GetString("REALTIME_HUB_URL"),
		Enabled:       v.GetBool("REALTIME_ENABLED"),
		ReconnectMin:  parseDuration(v.GetString("REALTIME_RECONNECT_MIN"), time.Second),
		ReconnectMax:  parseDuration(v.GetString("REALTIME_RECONNECT_MAX"), 30*time.Second),
		WriteTimeout:  parseDuration(v.GetString("REALTIME_WRITE_TIMEOUT"), 10*time.Second),
		PingInterval:  parseDuration(v.GetString("REALTIME_PING_INTERVAL"), 30*time.Second),
		InboxCapacity: v.GetInt("REALTIME_INBOX_CAPACITY"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Export = ExportConfig{
		Dir: v.GetString("EXPORT_DIR"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("API_BASE_URL", "http://localhost:5250/api")
	v.SetDefault("API_TIMEOUT", "15s")
	v.SetDefault("API_USER_AGENT", "classhub-go")

	v.SetDefault("STORE_BACKEND", "file")
	v.SetDefault("STORE_DIR", ".classhub")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "classhub:session:")

	v.SetDefault("REALTIME_HUB_URL", "ws://localhost:5250/notificationHub")
	v.SetDefault("REALTIME_ENABLED", false)
	v.SetDefault("REALTIME_RECONNECT_MIN", "1s")
	v.SetDefault("REALTIME_RECONNECT_MAX", "30s")
	v.SetDefault("REALTIME_WRITE_TIMEOUT", "10s")
	v.SetDefault("REALTIME_PING_INTERVAL", "30s")
	v.SetDefault("REALTIME_INBOX_CAPACITY", 200)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("EXPORT_DIR", "./exports")
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
