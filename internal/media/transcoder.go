package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"interview-analyzer/internal/metrics"
)

// HWAccel selects the hardware H.264 encoder tried before libx264.
type HWAccel string

const (
	HWAccelAuto         HWAccel = "auto"
	HWAccelVideoToolbox HWAccel = "videotoolbox"
	HWAccelNVENC        HWAccel = "nvenc"
	HWAccelNone         HWAccel = "none"
)

const (
	encoderVideoToolbox = "h264_videotoolbox"
	encoderNVENC        = "h264_nvenc"
	encoderSoftware     = "libx264"
)

// ErrFFmpegNotFound means the ffmpeg binary could not be resolved.
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

// TranscodeError is returned when no encoder produced an output file.
type TranscodeError struct {
	Encoder string
	Err     error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode with %s failed: %v", e.Encoder, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

type TranscoderConfig struct {
	FFmpegBin    string
	TargetHeight int
	HWAccel      HWAccel
}

// Transcoder shrinks uploads to a small H.264/AAC mp4.
type Transcoder struct {
	cfg      TranscoderConfig
	runner   Runner
	logger   *zap.Logger
	lookPath func(string) (string, error)
	goos     string
}

func NewTranscoder(cfg TranscoderConfig, runner Runner, logger *zap.Logger) *Transcoder {
	if strings.TrimSpace(cfg.FFmpegBin) == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.TargetHeight <= 0 {
		cfg.TargetHeight = DefaultMaxHeight
	}
	if cfg.HWAccel == "" {
		cfg.HWAccel = HWAccelAuto
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcoder{
		cfg:      cfg,
		runner:   runner,
		logger:   logger.Named("transcoder"),
		lookPath: exec.LookPath,
		goos:     runtime.GOOS,
	}
}

// Transcode writes a re-encoded copy of in to out. A hardware encoder is
// tried first when configured; any failure falls back to libx264.
func (t *Transcoder) Transcode(ctx context.Context, in, out string) error {
	bin, err := t.lookPath(t.cfg.FFmpegBin)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, t.cfg.FFmpegBin)
	}

	if hw := t.hardwareEncoder(); hw != "" {
		hwErr := t.run(ctx, bin, hw, in, out)
		if hwErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.logger.Warn("hardware encoder failed, falling back to libx264",
			zap.String("encoder", hw),
			zap.Error(hwErr),
		)
		_ = os.Remove(out)
	}

	if err := t.run(ctx, bin, encoderSoftware, in, out); err != nil {
		_ = os.Remove(out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TranscodeError{Encoder: encoderSoftware, Err: err}
	}
	return nil
}

func (t *Transcoder) run(ctx context.Context, bin, encoder, in, out string) error {
	_, err := t.runner.Run(ctx, bin, encodeArgs(encoder, in, out, t.cfg.TargetHeight)...)
	metrics.TranscodesTotal.WithLabelValues(encoder, metrics.Outcome(err)).Inc()
	return err
}

func (t *Transcoder) hardwareEncoder() string {
	switch t.cfg.HWAccel {
	case HWAccelVideoToolbox:
		return encoderVideoToolbox
	case HWAccelNVENC:
		return encoderNVENC
	case HWAccelAuto:
		if t.goos == "darwin" {
			return encoderVideoToolbox
		}
	}
	return ""
}

func encodeArgs(encoder, in, out string, height int) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", in,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-vf", "scale=-2:" + strconv.Itoa(height),
		"-c:v", encoder,
	}

	switch encoder {
	case encoderSoftware:
		args = append(args,
			"-preset", "ultrafast",
			"-crf", "30",
			"-maxrate", "1200k",
			"-bufsize", "2400k",
		)
	default:
		args = append(args,
			"-b:v", "800k",
			"-maxrate", "1200k",
			"-bufsize", "2400k",
		)
	}

	return append(args,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "96k",
		"-movflags", "+faststart",
		out,
	)
}
