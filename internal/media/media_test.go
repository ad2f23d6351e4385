package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(name string, args []string) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(name, args)
}

type fakeProber struct {
	height int
	err    error
	calls  int
}

func (p *fakeProber) Height(context.Context, string) (int, error) {
	p.calls++
	return p.height, p.err
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestPolicyDecide(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		size      int
		prober    *fakeProber
		transcode bool
		reason    Reason
		probed    bool
	}{
		{"oversized", "a.mp4", 2048, &fakeProber{height: 240}, true, ReasonSize, false},
		{"bad container", "a.webm", 10, &fakeProber{height: 240}, true, ReasonContainer, false},
		{"no extension", "upload", 10, &fakeProber{height: 240}, true, ReasonContainer, false},
		{"probe fails", "a.mov", 10, &fakeProber{err: errors.New("boom")}, true, ReasonProbe, true},
		{"too tall", "a.MP4", 10, &fakeProber{height: 1080}, true, ReasonHeight, true},
		{"at limit", "a.m4v", 10, &fakeProber{height: 360}, false, ReasonNone, true},
		{"small", "a.mp4", 10, &fakeProber{height: 240}, false, ReasonNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{
				MaxSizeBytes: 1024,
				MaxHeight:    360,
				Prober:       tt.prober,
				Logger:       zaptest.NewLogger(t),
			}
			d, err := p.Decide(context.Background(), writeFile(t, tt.file, tt.size))
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if d.Transcode != tt.transcode || d.Reason != tt.reason {
				t.Fatalf("expected transcode=%v reason=%q, got %v %q", tt.transcode, tt.reason, d.Transcode, d.Reason)
			}
			if (tt.prober.calls > 0) != tt.probed {
				t.Fatalf("expected probed=%v, prober called %d times", tt.probed, tt.prober.calls)
			}
		})
	}
}

func TestPolicySizeBoundaryIsExclusive(t *testing.T) {
	p := Policy{MaxSizeBytes: 100, Prober: &fakeProber{height: 100}}
	d, err := p.Decide(context.Background(), writeFile(t, "a.mp4", 100))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Transcode {
		t.Fatalf("file exactly at the size limit should not be transcoded, got %q", d.Reason)
	}
}

func TestPolicyMissingFile(t *testing.T) {
	p := DefaultPolicy(&fakeProber{height: 100})
	if _, err := p.Decide(context.Background(), filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatalf("expected stat error")
	}
}

func TestFFProbeHeight(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, error) {
		return []byte(`{"programs":[],"streams":[{"height":720}]}`), nil
	}}
	h, err := FFProbe{Binary: "/opt/ffprobe", Runner: r}.Height(context.Background(), "in.mp4")
	if err != nil {
		t.Fatalf("Height: %v", err)
	}
	if h != 720 {
		t.Fatalf("expected 720, got %d", h)
	}

	got := strings.Join(r.calls[0], " ")
	want := "/opt/ffprobe -v error -select_streams v:0 -show_entries stream=height -of json in.mp4"
	if got != want {
		t.Fatalf("unexpected command:\n got %s\nwant %s", got, want)
	}
}

func TestFFProbeHeightErrors(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
	}{
		{"exit failure", "", errors.New("exit status 1")},
		{"bad json", "not json", nil},
		{"no streams", `{"streams":[]}`, nil},
		{"zero height", `{"streams":[{}]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{fn: func(string, []string) ([]byte, error) {
				return []byte(tt.out), tt.err
			}}
			if _, err := (FFProbe{Runner: r}).Height(context.Background(), "in.mp4"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func newTestTranscoder(t *testing.T, cfg TranscoderConfig, r Runner, goos string) *Transcoder {
	t.Helper()
	tr := NewTranscoder(cfg, r, zaptest.NewLogger(t))
	tr.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	tr.goos = goos
	return tr
}

func encoderOf(args []string) string {
	for i, a := range args {
		if a == "-c:v" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestTranscodeSoftwareArgs(t *testing.T) {
	r := &fakeRunner{}
	tr := newTestTranscoder(t, TranscoderConfig{TargetHeight: 360}, r, "linux")

	if err := tr.Transcode(context.Background(), "in.webm", "out.mp4"); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("expected one ffmpeg run, got %d", len(r.calls))
	}

	args := strings.Join(r.calls[0], " ")
	for _, want := range []string{
		"/usr/bin/ffmpeg ",
		"-i in.webm",
		"-map 0:v:0 -map 0:a?",
		"-vf scale=-2:360",
		"-c:v libx264",
		"-crf 30",
		"-maxrate 1200k",
		"-pix_fmt yuv420p",
		"-c:a aac -b:a 96k",
		"-movflags +faststart",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %s", want, args)
		}
	}
	if !strings.HasSuffix(args, " out.mp4") {
		t.Fatalf("output path must be last: %s", args)
	}
}

func TestTranscodeAutoPicksVideoToolboxOnDarwin(t *testing.T) {
	r := &fakeRunner{}
	tr := newTestTranscoder(t, TranscoderConfig{HWAccel: HWAccelAuto}, r, "darwin")

	if err := tr.Transcode(context.Background(), "in.mov", "out.mp4"); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if len(r.calls) != 1 || encoderOf(r.calls[0]) != encoderVideoToolbox {
		t.Fatalf("expected a single videotoolbox run, got %v", r.calls)
	}
	if !strings.Contains(strings.Join(r.calls[0], " "), "-b:v 800k") {
		t.Fatalf("hardware run must set a target bitrate")
	}
}

func TestTranscodeFallsBackToSoftware(t *testing.T) {
	r := &fakeRunner{fn: func(_ string, args []string) ([]byte, error) {
		if encoderOf(args) == encoderNVENC {
			return nil, errors.New("no cuda device")
		}
		return nil, nil
	}}
	tr := newTestTranscoder(t, TranscoderConfig{HWAccel: HWAccelNVENC}, r, "linux")

	if err := tr.Transcode(context.Background(), "in.mov", "out.mp4"); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if len(r.calls) != 2 {
		t.Fatalf("expected hardware then software run, got %d", len(r.calls))
	}
	if encoderOf(r.calls[0]) != encoderNVENC || encoderOf(r.calls[1]) != encoderSoftware {
		t.Fatalf("unexpected encoder order: %s, %s", encoderOf(r.calls[0]), encoderOf(r.calls[1]))
	}
}

func TestTranscodeBothEncodersFail(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}}
	tr := newTestTranscoder(t, TranscoderConfig{HWAccel: HWAccelVideoToolbox}, r, "darwin")

	err := tr.Transcode(context.Background(), "in.mov", "out.mp4")
	var te *TranscodeError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TranscodeError, got %v", err)
	}
	if te.Encoder != encoderSoftware {
		t.Fatalf("expected final encoder libx264, got %s", te.Encoder)
	}
}

func TestTranscodeMissingFFmpeg(t *testing.T) {
	r := &fakeRunner{}
	tr := newTestTranscoder(t, TranscoderConfig{}, r, "linux")
	tr.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	err := tr.Transcode(context.Background(), "in.mov", "out.mp4")
	if !errors.Is(err, ErrFFmpegNotFound) {
		t.Fatalf("expected ErrFFmpegNotFound, got %v", err)
	}
	if len(r.calls) != 0 {
		t.Fatalf("ffmpeg must not run when missing")
	}
}

func TestTranscodeCancelledSkipsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeRunner{fn: func(string, []string) ([]byte, error) {
		cancel()
		return nil, errors.New("signal: killed")
	}}
	tr := newTestTranscoder(t, TranscoderConfig{HWAccel: HWAccelNVENC}, r, "linux")

	err := tr.Transcode(ctx, "in.mov", "out.mp4")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(r.calls) != 1 {
		t.Fatalf("expected no fallback after cancellation, got %d runs", len(r.calls))
	}
}
