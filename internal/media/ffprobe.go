package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoVideoStream is returned when ffprobe reports no usable video stream.
var ErrNoVideoStream = errors.New("no video stream with a known height")

// Prober reports the pixel height of the first video stream.
type Prober interface {
	Height(ctx context.Context, path string) (int, error)
}

// FFProbe inspects files with the ffprobe binary.
type FFProbe struct {
	Binary string
	Runner Runner
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Height int `json:"height"`
}

func (p FFProbe) Height(ctx context.Context, path string) (int, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	out, err := runner.Run(ctx, binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=height",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	if len(parsed.Streams) == 0 || parsed.Streams[0].Height <= 0 {
		return 0, ErrNoVideoStream
	}
	return parsed.Streams[0].Height, nil
}
