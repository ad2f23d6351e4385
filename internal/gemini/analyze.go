package gemini

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"interview-analyzer/internal/analysis"
)

// Analyze uploads the media file, waits for it to become ACTIVE, requests a
// structured rubric evaluation and validates the reply. The remote file is
// deleted on every path once the upload succeeded.
func (c *Client) Analyze(ctx context.Context, mediaPath string, cfg analysis.EvaluationConfig) (*analysis.Result, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	start := time.Now()

	file, err := c.upload(ctx, mediaPath)
	if err != nil {
		return nil, err
	}
	defer c.deleteFile(ctx, file.Name)

	file, err = c.waitActive(ctx, file)
	if err != nil {
		return nil, err
	}
	readyAt := time.Now()

	text, err := c.generate(ctx, file, cfg)
	if err != nil {
		return nil, err
	}

	result, err := analysis.ParseResult(text)
	if err != nil {
		c.logger.Warn("model reply failed validation",
			zap.String("model", cfg.Model),
			zap.String("reply", truncate(text, 500)),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Info("analysis completed",
		zap.String("model", cfg.Model),
		zap.String("file", file.Name),
		zap.Int("rubric_items", len(result.Rubric)),
		zap.Duration("ready_wait", readyAt.Sub(start)),
		zap.Duration("generate", time.Since(readyAt)),
	)
	return result, nil
}

// waitActive polls the file until it is ACTIVE. ReadyTimeout bounds the
// whole wait, status calls and their retries included.
func (c *Client) waitActive(ctx context.Context, file providerFile) (providerFile, error) {
	if file.State == stateActive {
		return file, nil
	}

	start := time.Now()
	readyCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	lastState := file.State
	expired := func() (providerFile, error) {
		if err := ctx.Err(); err != nil {
			return providerFile{}, err
		}
		c.logger.Warn("file not ready before deadline",
			zap.String("name", file.Name),
			zap.String("state", lastState),
			zap.Duration("waited", time.Since(start)),
		)
		return providerFile{}, &ReadinessTimeoutError{
			Name:      file.Name,
			LastState: lastState,
			Waited:    time.Since(start),
		}
	}

	for {
		got, err := c.getFile(readyCtx, file.Name)
		if err != nil {
			if readyCtx.Err() != nil {
				return expired()
			}
			return providerFile{}, &UploadError{Op: "status", Err: err}
		}
		lastState = got.State

		switch got.State {
		case stateActive:
			if got.URI == "" {
				got.URI = file.URI
			}
			if got.MimeType == "" {
				got.MimeType = file.MimeType
			}
			return got, nil
		case stateFailed:
			if got.Error != nil && got.Error.Message != "" {
				return providerFile{}, fmt.Errorf("%w: %s", ErrFileProcessingFailed, got.Error.Message)
			}
			return providerFile{}, ErrFileProcessingFailed
		}

		select {
		case <-readyCtx.Done():
			return expired()
		case <-ticker.C:
		}
	}
}
