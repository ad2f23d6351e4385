// Package pipeline runs one analysis request end to end: fingerprint the
// upload, consult the result cache, transcode if needed, analyze, cache.
package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interview-analyzer/internal/analysis"
	"interview-analyzer/internal/cache"
	"interview-analyzer/internal/fingerprint"
	"interview-analyzer/internal/media"
	"interview-analyzer/internal/metrics"
	"interview-analyzer/pkg/logging/logging"
)

type Decider interface {
	Decide(ctx context.Context, path string) (media.Decision, error)
}

type Transcoder interface {
	Transcode(ctx context.Context, in, out string) error
}

type Analyzer interface {
	Analyze(ctx context.Context, mediaPath string, cfg analysis.EvaluationConfig) (*analysis.Result, error)
}

// Upload is one inbound video. Body is read exactly once.
type Upload struct {
	Filename string
	Body     io.Reader
}

type Deps struct {
	Store      cache.Store
	Decider    Decider
	Transcoder Transcoder
	Analyzer   Analyzer
	// TempDir is the parent of per-request work dirs; "" means os.TempDir().
	TempDir string
}

type Pipeline struct {
	store      cache.Store
	decider    Decider
	transcoder Transcoder
	analyzer   Analyzer
	tempDir    string
}

func New(deps Deps) *Pipeline {
	return &Pipeline{
		store:      deps.Store,
		decider:    deps.Decider,
		transcoder: deps.Transcoder,
		analyzer:   deps.Analyzer,
		tempDir:    deps.TempDir,
	}
}

type timings struct {
	upload    time.Duration
	transcode time.Duration
	analyze   time.Duration
	start     time.Time
}

// Run processes a single upload. A cache hit returns before any transcode
// or remote call. The request's work dir is removed on every return path.
func (p *Pipeline) Run(ctx context.Context, up Upload, cfg analysis.EvaluationConfig) (*analysis.Response, error) {
	t := timings{start: time.Now()}

	if strings.TrimSpace(up.Filename) == "" {
		return nil, inputErr("upload", ErrMissingFilename)
	}
	if up.Body == nil {
		return nil, inputErr("upload", ErrMissingBody)
	}

	logger := logging.L(ctx).With(
		zap.String("run_id", uuid.NewString()),
		zap.String("model", cfg.Model),
	)
	ctx = logging.WithLogger(ctx, logger)

	dir, err := os.MkdirTemp(p.tempDir, "analysis-*")
	if err != nil {
		return nil, internalErr("workdir", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("temp cleanup failed", zap.String("dir", dir), zap.Error(err))
		}
	}()

	stageStart := time.Now()
	file, err := fingerprint.Stream(ctx, up.Body, dir, safeSuffix(up.Filename))
	t.upload = time.Since(stageStart)
	if err != nil {
		if ctx.Err() != nil {
			return nil, internalErr("upload", err)
		}
		return nil, inputErr("upload", err)
	}
	if file.Size == 0 {
		return nil, inputErr("upload", ErrEmptyUpload)
	}

	key, err := cache.BuildKey(file.Hash, cfg)
	if err != nil {
		return nil, internalErr("cache key", err)
	}

	entry, hit, err := p.store.Get(ctx, key.String())
	if err != nil {
		logger.Warn("cache read failed, treating as miss", zap.Error(err))
		hit = false
	}
	if hit {
		p.report(logger, t, "hit", file)
		return &analysis.Response{
			Analysis:    entry.Analysis,
			Cached:      true,
			Model:       entry.Model,
			ContentHash: file.Hash,
		}, nil
	}

	mediaPath, err := p.prepare(ctx, logger, file.Path, dir, &t)
	if err != nil {
		return nil, err
	}

	stageStart = time.Now()
	result, err := p.analyzer.Analyze(ctx, mediaPath, cfg)
	t.analyze = time.Since(stageStart)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, internalErr("analyze", err)
		}
		return nil, processingErr("analyze", err)
	}
	if err := result.Validate(); err != nil {
		return nil, processingErr("analyze", err)
	}

	// The analysis is already paid for; store it even if the caller left.
	if err := p.store.Put(context.WithoutCancel(ctx), key.String(), cfg.Model, *result); err != nil {
		logger.Error("cache write failed", zap.String("cache_key", key.String()), zap.Error(err))
	}

	p.report(logger, t, "miss", file)
	return &analysis.Response{
		Analysis:    *result,
		Cached:      false,
		Model:       cfg.Model,
		ContentHash: file.Hash,
	}, nil
}

// prepare returns the path to send for analysis, transcoding into dir when
// the policy asks for it.
func (p *Pipeline) prepare(ctx context.Context, logger *zap.Logger, raw, dir string, t *timings) (string, error) {
	decision, err := p.decider.Decide(ctx, raw)
	if err != nil {
		return "", internalErr("transcode decision", err)
	}
	if !decision.Transcode {
		return raw, nil
	}

	logger.Debug("transcoding upload",
		zap.String("reason", string(decision.Reason)),
		zap.Int64("size_bytes", decision.SizeBytes),
		zap.Int("height", decision.Height),
	)

	out := filepath.Join(dir, "transcoded.mp4")
	start := time.Now()
	err = p.transcoder.Transcode(ctx, raw, out)
	t.transcode = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return "", internalErr("transcode", err)
		}
		return "", processingErr("transcode", err)
	}
	return out, nil
}

func (p *Pipeline) report(logger *zap.Logger, t timings, cacheResult string, file fingerprint.File) {
	total := time.Since(t.start)

	metrics.ObserveStage("upload", cacheResult, t.upload)
	if cacheResult == "miss" {
		metrics.ObserveStage("transcode", cacheResult, t.transcode)
		metrics.ObserveStage("analyze", cacheResult, t.analyze)
	}
	metrics.ObserveStage("total", cacheResult, total)

	logger.Info("analysis latency",
		zap.String("cache", cacheResult),
		zap.String("video_hash", file.Hash),
		zap.Int64("size_bytes", file.Size),
		zap.Float64("upload_ms", ms(t.upload)),
		zap.Float64("transcode_ms", ms(t.transcode)),
		zap.Float64("analyze_ms", ms(t.analyze)),
		zap.Float64("total_ms", ms(total)),
	)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

var suffixPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// safeSuffix keeps the client's extension only when it is a plain token.
func safeSuffix(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !suffixPattern.MatchString(ext) {
		return ""
	}
	return ext
}
