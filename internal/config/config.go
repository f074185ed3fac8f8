package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Database
		Library
		Log
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	Database struct {
		Path  string
		Debug bool // Log SQL statements
	}
	Library struct {
		DecodeWorkers   int // Concurrent decodes while listing; <= 0 means unbounded
		CoverThumbWidth int // Width covers are resized to when served; 0 serves originals
	}
	Log struct {
		Level  string // debug, info, warn, error
		Format string // text or json
	}
	Global struct {
		ShutdownTimeout time.Duration
	}
)

// NewConfig reads configuration from the environment, falling back to defaults.
func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8080)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("database_path", "./lazyreader.db")
	v.SetDefault("database_debug", false)
	v.SetDefault("decode_workers", 4)
	v.SetDefault("cover_thumb_width", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("shutdown_timeout", "10s")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Database: Database{
			Path:  v.GetString("DATABASE_PATH"),
			Debug: v.GetBool("DATABASE_DEBUG"),
		},
		Library: Library{
			DecodeWorkers:   v.GetInt("DECODE_WORKERS"),
			CoverThumbWidth: v.GetInt("COVER_THUMB_WIDTH"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Global: Global{
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
	}
}
