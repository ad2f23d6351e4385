package config

import (
	"fmt"
	"strconv"
	"strings"
)

type lookupFunc func(string) (string, bool)

// applyEnv overlays environment variables onto cfg. Unset or blank
// variables leave the current value alone.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, v)
		}
		*dst = n
		return nil
	}

	str("PORT", &cfg.Server.Port)
	str("ENV", &cfg.Server.Env)
	str("LOG_LEVEL", &cfg.Server.LogLevel)
	if v, ok := lookup("CORS_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	str("DATA_DIR", &cfg.Paths.DataDir)
	str("TEMP_DIR", &cfg.Paths.TempDir)

	str("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	str("GOOGLE_API_KEY", &cfg.Gemini.GoogleAPIKey)
	str("GEMINI_MODEL", &cfg.Gemini.Model)
	str("GEMINI_BASE_URL", &cfg.Gemini.BaseURL)

	str("CACHE_BACKEND", &cfg.Cache.Backend)
	str("REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("CACHE_PREFIX", &cfg.Cache.Prefix)

	str("FFMPEG_BIN", &cfg.Transcode.FFmpegBin)
	str("FFPROBE_BIN", &cfg.Transcode.FFprobeBin)
	str("TRANSCODE_HWACCEL", &cfg.Transcode.HWAccel)

	ints := []struct {
		key string
		dst *int
	}{
		{"REQUEST_TIMEOUT_SECONDS", &cfg.Server.RequestTimeoutSeconds},
		{"MAX_UPLOAD_MB", &cfg.Server.MaxUploadMB},
		{"FILE_READY_TIMEOUT_SECONDS", &cfg.Gemini.FileReadyTimeoutSeconds},
		{"FILE_READY_POLL_INTERVAL_SECONDS", &cfg.Gemini.FileReadyPollIntervalSeconds},
		{"TRANSCODE_TARGET_HEIGHT", &cfg.Transcode.TargetHeight},
		{"TRANSCODE_MAX_HEIGHT", &cfg.Transcode.MaxHeight},
		{"TRANSCODE_MAX_SIZE_MB", &cfg.Transcode.MaxSizeMB},
	}
	for _, i := range ints {
		if err := num(i.key, i.dst); err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
