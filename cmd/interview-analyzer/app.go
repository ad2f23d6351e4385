package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"interview-analyzer/internal/cache"
	"interview-analyzer/internal/config"
	"interview-analyzer/internal/gemini"
	"interview-analyzer/internal/media"
	"interview-analyzer/internal/pipeline"
	"interview-analyzer/internal/prefs"
)

// app holds the components shared by the server and the one-shot commands.
type app struct {
	store    cache.Store
	pipeline *pipeline.Pipeline
	prompts  *prefs.PromptStore
	models   *prefs.ModelStore

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// openStore connects the configured cache backend wrapped with logging and
// metrics. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Store, func() error, error) {
	var redisClient *redis.Client
	if cfg.Cache.Backend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.Cache.RedisAddr),
		)
	}

	store, closeStore, err := cache.NewStore(cache.Config{
		Backend: cfg.Cache.Backend,
		DataDir: cfg.Paths.DataDir,
		Prefix:  cfg.Cache.Prefix,
	}, redisClient, logger)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, nil, err
	}

	closeAll := func() error {
		err := closeStore()
		if redisClient != nil {
			if cerr := redisClient.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return cache.NewLoggingStore(store, cfg.Cache.Backend), closeAll, nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	// ----- Cache -----
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	// ----- Gemini client -----
	client, err := gemini.NewClient(gemini.Config{
		BaseURL:      cfg.Gemini.BaseURL,
		APIKey:       cfg.EffectiveAPIKey(),
		PollInterval: cfg.FileReadyPollInterval(),
		ReadyTimeout: cfg.FileReadyTimeout(),
	}, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	if !client.HasAPIKey() {
		logger.Warn("no Gemini API key configured; analyses will fail until GEMINI_API_KEY or GOOGLE_API_KEY is set")
	}

	// ----- Media tools -----
	runner := media.ExecRunner{}
	policy := media.Policy{
		MaxSizeBytes:      cfg.MaxTranscodeFreeBytes(),
		AllowedExtensions: media.DefaultAllowedExtensions,
		MaxHeight:         cfg.Transcode.MaxHeight,
		Prober:            media.FFProbe{Binary: cfg.Transcode.FFprobeBin, Runner: runner},
		Logger:            logger,
	}
	transcoder := media.NewTranscoder(media.TranscoderConfig{
		FFmpegBin:    cfg.Transcode.FFmpegBin,
		TargetHeight: cfg.Transcode.TargetHeight,
		HWAccel:      media.HWAccel(cfg.Transcode.HWAccel),
	}, runner, logger)

	// ----- Pipeline + preferences -----
	a.pipeline = pipeline.New(pipeline.Deps{
		Store:      store,
		Decider:    policy,
		Transcoder: transcoder,
		Analyzer:   client,
		TempDir:    cfg.Paths.TempDir,
	})
	a.prompts = prefs.NewPromptStore(cfg.Paths.DataDir, logger)
	a.models = prefs.NewModelStore(cfg.Paths.DataDir, cfg.Gemini.Model, logger)

	return a, nil
}
