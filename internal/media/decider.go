package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Reason names why a file needs transcoding. Empty means it does not.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonSize      Reason = "size"
	ReasonContainer Reason = "container"
	ReasonProbe     Reason = "probe"
	ReasonHeight    Reason = "height"
)

const (
	DefaultMaxSizeBytes = 20 << 20
	DefaultMaxHeight    = 360
)

// DefaultAllowedExtensions are the containers the remote API accepts as-is.
var DefaultAllowedExtensions = []string{"mp4", "m4v", "mov"}

type Decision struct {
	Transcode bool
	Reason    Reason
	SizeBytes int64
	// Height is 0 when probing was skipped or failed.
	Height int
}

// Policy decides whether an upload must be transcoded before analysis.
type Policy struct {
	MaxSizeBytes      int64
	AllowedExtensions []string
	MaxHeight         int
	Prober            Prober
	Logger            *zap.Logger
}

// DefaultPolicy returns the stock thresholds backed by prober.
func DefaultPolicy(prober Prober) Policy {
	return Policy{
		MaxSizeBytes:      DefaultMaxSizeBytes,
		AllowedExtensions: DefaultAllowedExtensions,
		MaxHeight:         DefaultMaxHeight,
		Prober:            prober,
	}
}

// Decide checks size, then container, then probed height. Probe failures
// force a transcode; only a failed stat is returned as an error.
func (p Policy) Decide(ctx context.Context, path string) (Decision, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Decision{}, fmt.Errorf("stat upload: %w", err)
	}
	d := Decision{SizeBytes: info.Size()}

	maxSize := p.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = DefaultMaxSizeBytes
	}
	if d.SizeBytes > maxSize {
		return d.needs(ReasonSize), nil
	}

	if !p.allowed(filepath.Ext(path)) {
		return d.needs(ReasonContainer), nil
	}

	if p.Prober == nil {
		return d.needs(ReasonProbe), nil
	}
	height, err := p.Prober.Height(ctx, path)
	if err != nil {
		p.logger().Debug("probe failed, forcing transcode",
			zap.String("path", path),
			zap.Error(err),
		)
		return d.needs(ReasonProbe), nil
	}
	d.Height = height

	maxHeight := p.MaxHeight
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	if height > maxHeight {
		return d.needs(ReasonHeight), nil
	}
	return d, nil
}

func (d Decision) needs(r Reason) Decision {
	d.Transcode = true
	d.Reason = r
	return d
}

func (p Policy) allowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return false
	}
	allowed := p.AllowedExtensions
	if len(allowed) == 0 {
		allowed = DefaultAllowedExtensions
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}

func (p Policy) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
