// Package config assembles service settings from defaults, an optional
// TOML file, .env files and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Server struct {
	Port                  string   `toml:"port"`
	Env                   string   `toml:"env"`
	LogLevel              string   `toml:"log_level"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
	MaxUploadMB           int      `toml:"max_upload_mb"`
	CORSOrigins           []string `toml:"cors_origins"`
}

type Paths struct {
	DataDir string `toml:"data_dir"`
	// TempDir holds per-request work dirs; empty means the OS default.
	TempDir string `toml:"temp_dir"`
}

type Gemini struct {
	APIKey                       string `toml:"api_key"`
	GoogleAPIKey                 string `toml:"google_api_key"`
	Model                        string `toml:"model"`
	BaseURL                      string `toml:"base_url"`
	FileReadyTimeoutSeconds      int    `toml:"file_ready_timeout_seconds"`
	FileReadyPollIntervalSeconds int    `toml:"file_ready_poll_interval_seconds"`
}

type Cache struct {
	Backend   string `toml:"backend"`
	RedisAddr string `toml:"redis_addr"`
	Prefix    string `toml:"prefix"`
}

type Transcode struct {
	FFmpegBin    string `toml:"ffmpeg_bin"`
	FFprobeBin   string `toml:"ffprobe_bin"`
	HWAccel      string `toml:"hwaccel"`
	TargetHeight int    `toml:"target_height"`
	MaxHeight    int    `toml:"max_height"`
	MaxSizeMB    int    `toml:"max_size_mb"`
}

type Config struct {
	Server    Server    `toml:"server"`
	Paths     Paths     `toml:"paths"`
	Gemini    Gemini    `toml:"gemini"`
	Cache     Cache     `toml:"cache"`
	Transcode Transcode `toml:"transcode"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: Server{
			Port:                  "8000",
			Env:                   "prod",
			LogLevel:              "info",
			RequestTimeoutSeconds: 600,
			MaxUploadMB:           2048,
			CORSOrigins:           []string{"http://localhost:5173"},
		},
		Paths: Paths{
			DataDir: "backend/data",
		},
		Gemini: Gemini{
			Model:                        "gemini-2.5-flash",
			BaseURL:                      "https://generativelanguage.googleapis.com",
			FileReadyTimeoutSeconds:      180,
			FileReadyPollIntervalSeconds: 2,
		},
		Cache: Cache{
			Backend:   "file",
			RedisAddr: "127.0.0.1:6379",
			Prefix:    "interview-analyzer",
		},
		Transcode: Transcode{
			FFmpegBin:    "ffmpeg",
			FFprobeBin:   "ffprobe",
			HWAccel:      "auto",
			TargetHeight: 360,
			MaxHeight:    360,
			MaxSizeMB:    20,
		},
	}
}

// DotEnvFiles are loaded when present. Existing environment variables win.
var DotEnvFiles = []string{".env", "../.env"}

// Load builds the configuration. path may be empty, in which case
// CONFIG_FILE is consulted; a named file that does not exist is an error.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(DotEnvFiles); err != nil {
		return nil, err
	}

	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func loadDotEnv(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", f, err)
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// EffectiveAPIKey prefers GEMINI_API_KEY over GOOGLE_API_KEY. Empty when
// neither is set.
func (c *Config) EffectiveAPIKey() string {
	if c.Gemini.APIKey != "" {
		return c.Gemini.APIKey
	}
	return c.Gemini.GoogleAPIKey
}

func (c *Config) FileReadyTimeout() time.Duration {
	return time.Duration(c.Gemini.FileReadyTimeoutSeconds) * time.Second
}

func (c *Config) FileReadyPollInterval() time.Duration {
	return time.Duration(c.Gemini.FileReadyPollIntervalSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func (c *Config) MaxTranscodeFreeBytes() int64 {
	return int64(c.Transcode.MaxSizeMB) << 20
}
