package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

func (c *Config) normalize() {
	c.Server.Env = strings.ToLower(strings.TrimSpace(c.Server.Env))
	c.Server.LogLevel = strings.ToLower(strings.TrimSpace(c.Server.LogLevel))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Transcode.HWAccel = strings.ToLower(strings.TrimSpace(c.Transcode.HWAccel))
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	c.Gemini.GoogleAPIKey = strings.TrimSpace(c.Gemini.GoogleAPIKey)
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	c.Paths.DataDir = strings.TrimSpace(c.Paths.DataDir)
	c.Paths.TempDir = strings.TrimSpace(c.Paths.TempDir)
}

// Validate ensures the configuration is usable. A missing API key is not an
// error here; analysis requests fail individually until one is provided.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateTranscode()
}

func (c *Config) validateServer() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port %q is not a valid port", c.Server.Port)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q must be debug, info, warn or error", c.Server.LogLevel)
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return errors.New("server.request_timeout_seconds must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if c.Gemini.Model == "" {
		return errors.New("gemini.model must be set")
	}
	if !strings.HasPrefix(c.Gemini.BaseURL, "http://") && !strings.HasPrefix(c.Gemini.BaseURL, "https://") {
		return fmt.Errorf("gemini.base_url %q must be an http(s) URL", c.Gemini.BaseURL)
	}
	if c.Gemini.FileReadyTimeoutSeconds <= 0 {
		return errors.New("gemini.file_ready_timeout_seconds must be positive")
	}
	if c.Gemini.FileReadyPollIntervalSeconds <= 0 {
		return errors.New("gemini.file_ready_poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "file", "memory", "sqlite":
		return nil
	case "redis":
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
		return nil
	default:
		return fmt.Errorf("cache.backend %q must be file, memory, redis or sqlite", c.Cache.Backend)
	}
}

func (c *Config) validateTranscode() error {
	switch c.Transcode.HWAccel {
	case "auto", "videotoolbox", "nvenc", "none":
	default:
		return fmt.Errorf("transcode.hwaccel %q must be auto, videotoolbox, nvenc or none", c.Transcode.HWAccel)
	}
	if c.Transcode.TargetHeight <= 0 || c.Transcode.TargetHeight%2 != 0 {
		return errors.New("transcode.target_height must be a positive even number")
	}
	if c.Transcode.MaxHeight <= 0 {
		return errors.New("transcode.max_height must be positive")
	}
	if c.Transcode.MaxSizeMB <= 0 {
		return errors.New("transcode.max_size_mb must be positive")
	}
	return nil
}
