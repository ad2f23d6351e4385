package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"interview-analyzer/internal/analysis"
	"interview-analyzer/internal/cache"
	"interview-analyzer/internal/gemini"
	"interview-analyzer/internal/media"
	"interview-analyzer/pkg/logging/logging"
)

type fakeDecider struct {
	decision media.Decision
	err      error
}

func (d fakeDecider) Decide(context.Context, string) (media.Decision, error) {
	return d.decision, d.err
}

type fakeTranscoder struct {
	mu    sync.Mutex
	calls int
	err   error
	at    time.Time
}

func (f *fakeTranscoder) Transcode(_ context.Context, in, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.at = time.Now()
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, append([]byte("small:"), data...), 0o644)
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    int
	paths    []string
	existed  []bool
	contents []string
	at       time.Time
	result   *analysis.Result
	err      error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, path string, _ analysis.EvaluationConfig) (*analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.at = time.Now()
	f.paths = append(f.paths, path)
	data, err := os.ReadFile(path)
	f.existed = append(f.existed, err == nil)
	f.contents = append(f.contents, string(data))
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

type failingStore struct {
	cache.Store
	getErr error
	putErr error
}

func (s failingStore) Get(ctx context.Context, key string) (*cache.Entry, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.Store.Get(ctx, key)
}

func (s failingStore) Put(ctx context.Context, key, model string, result analysis.Result) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.Put(ctx, key, model, result)
}

func goodResult() *analysis.Result {
	return &analysis.Result{
		Rubric:         []analysis.RubricScore{{Label: "Communication", Score: 4, Rationale: "Clear."}},
		OverallSummary: "Solid.",
	}
}

func evalConfig(model string) analysis.EvaluationConfig {
	return analysis.EvaluationConfig{
		PromptVersion: "v1",
		PromptText:    "Evaluate.",
		Rubric:        []string{"Communication"},
		Model:         model,
	}
}

type fixture struct {
	pipeline   *Pipeline
	store      cache.Store
	transcoder *fakeTranscoder
	analyzer   *fakeAnalyzer
	tempDir    string
}

func newFixture(t *testing.T, decision media.Decision) *fixture {
	t.Helper()
	f := &fixture{
		store:      cache.NewMemoryStore(),
		transcoder: &fakeTranscoder{},
		analyzer:   &fakeAnalyzer{result: goodResult()},
		tempDir:    t.TempDir(),
	}
	f.pipeline = f.build(fakeDecider{decision: decision})
	return f
}

func (f *fixture) build(d Decider) *Pipeline {
	return New(Deps{
		Store:      f.store,
		Decider:    d,
		Transcoder: f.transcoder,
		Analyzer:   f.analyzer,
		TempDir:    f.tempDir,
	})
}

func (f *fixture) assertClean(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp dir to be empty, found %d entries", len(entries))
	}
}

func testContext(t *testing.T) context.Context {
	return logging.WithLogger(context.Background(), zaptest.NewLogger(t))
}

func upload(name, body string) Upload {
	return Upload{Filename: name, Body: strings.NewReader(body)}
}

func TestRunMissThenHit(t *testing.T) {
	f := newFixture(t, media.Decision{})
	ctx := testContext(t)

	first, err := f.pipeline.Run(ctx, upload("interview.mp4", "video-bytes"), evalConfig("gemini-2.5-flash"))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Cached {
		t.Fatalf("first run must be a miss")
	}

	second, err := f.pipeline.Run(ctx, upload("renamed.mp4", "video-bytes"), evalConfig("gemini-2.5-flash"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.Cached {
		t.Fatalf("second run must be served from cache")
	}
	if f.analyzer.calls != 1 {
		t.Fatalf("expected exactly one remote analysis, got %d", f.analyzer.calls)
	}
	if first.ContentHash != second.ContentHash || len(first.ContentHash) != 64 {
		t.Fatalf("content hashes differ: %s vs %s", first.ContentHash, second.ContentHash)
	}
	if second.Model != "gemini-2.5-flash" || second.Analysis.OverallSummary != "Solid." {
		t.Fatalf("unexpected cached response: %#v", second)
	}
	f.assertClean(t)
}

func TestRunConfigIsolation(t *testing.T) {
	f := newFixture(t, media.Decision{})
	ctx := testContext(t)

	if _, err := f.pipeline.Run(ctx, upload("a.mp4", "same"), evalConfig("gemini-2.5-flash")); err != nil {
		t.Fatalf("run: %v", err)
	}
	res, err := f.pipeline.Run(ctx, upload("a.mp4", "same"), evalConfig("gemini-2.5-pro"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Cached || f.analyzer.calls != 2 {
		t.Fatalf("different model must not share cache entries (calls=%d)", f.analyzer.calls)
	}
	if res.Model != "gemini-2.5-pro" {
		t.Fatalf("unexpected model %q", res.Model)
	}
}

func TestRunTranscodesBeforeAnalyze(t *testing.T) {
	f := newFixture(t, media.Decision{Transcode: true, Reason: media.ReasonSize})

	res, err := f.pipeline.Run(testContext(t), upload("big.mov", "huge"), evalConfig("gemini-2.5-flash"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Cached {
		t.Fatalf("expected a miss")
	}
	if f.transcoder.calls != 1 {
		t.Fatalf("expected one transcode, got %d", f.transcoder.calls)
	}
	if f.transcoder.at.After(f.analyzer.at) {
		t.Fatalf("transcode must happen before analyze")
	}
	if !f.analyzer.existed[0] || f.analyzer.contents[0] != "small:huge" {
		t.Fatalf("analyzer must receive the transcoded file, got %q", f.analyzer.contents[0])
	}
	if !strings.HasSuffix(f.analyzer.paths[0], "transcoded.mp4") {
		t.Fatalf("unexpected analyzed path %s", f.analyzer.paths[0])
	}
	f.assertClean(t)
}

func TestRunSkipsTranscodeWhenNotNeeded(t *testing.T) {
	f := newFixture(t, media.Decision{})

	if _, err := f.pipeline.Run(testContext(t), upload("small.mp4", "tiny"), evalConfig("m")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.transcoder.calls != 0 {
		t.Fatalf("no transcode expected")
	}
	if f.analyzer.contents[0] != "tiny" {
		t.Fatalf("analyzer must receive the original upload")
	}
	if !strings.HasSuffix(f.analyzer.paths[0], ".mp4") {
		t.Fatalf("spooled upload should keep its extension: %s", f.analyzer.paths[0])
	}
}

func TestRunReadinessTimeoutIsNotCached(t *testing.T) {
	f := newFixture(t, media.Decision{})
	f.analyzer.err = &gemini.ReadinessTimeoutError{Name: "files/x", LastState: "PROCESSING"}

	_, err := f.pipeline.Run(testContext(t), upload("a.mp4", "bytes"), evalConfig("m"))
	if KindOf(err) != KindProcessing {
		t.Fatalf("expected processing error, got %v (%s)", err, KindOf(err))
	}
	var rt *gemini.ReadinessTimeoutError
	if !errors.As(err, &rt) {
		t.Fatalf("expected readiness timeout in chain, got %v", err)
	}

	list, _ := f.store.List(context.Background())
	if len(list) != 0 {
		t.Fatalf("failed analysis must not be cached")
	}
	f.assertClean(t)
}

func TestRunValidationErrorIsNotCached(t *testing.T) {
	f := newFixture(t, media.Decision{})
	f.analyzer.err = &analysis.ValidationError{Field: "rubric[0].score", Reason: "out of range"}

	_, err := f.pipeline.Run(testContext(t), upload("a.mp4", "bytes"), evalConfig("m"))
	if KindOf(err) != KindProcessing {
		t.Fatalf("expected processing error, got %v", err)
	}
	if list, _ := f.store.List(context.Background()); len(list) != 0 {
		t.Fatalf("invalid analysis must not be cached")
	}
}

func TestRunTranscodeFailure(t *testing.T) {
	f := newFixture(t, media.Decision{Transcode: true, Reason: media.ReasonContainer})
	f.transcoder.err = media.ErrFFmpegNotFound

	_, err := f.pipeline.Run(testContext(t), upload("a.webm", "bytes"), evalConfig("m"))
	if KindOf(err) != KindProcessing || !errors.Is(err, media.ErrFFmpegNotFound) {
		t.Fatalf("expected processing error wrapping ErrFFmpegNotFound, got %v", err)
	}
	if f.analyzer.calls != 0 {
		t.Fatalf("analyzer must not run after transcode failure")
	}
	f.assertClean(t)
}

func TestRunInputErrors(t *testing.T) {
	f := newFixture(t, media.Decision{})

	tests := []struct {
		name string
		up   Upload
		want error
	}{
		{"missing filename", Upload{Body: strings.NewReader("x")}, ErrMissingFilename},
		{"missing body", Upload{Filename: "a.mp4"}, ErrMissingBody},
		{"empty body", upload("a.mp4", ""), ErrEmptyUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Run(testContext(t), tt.up, evalConfig("m"))
			if KindOf(err) != KindInput || !errors.Is(err, tt.want) {
				t.Fatalf("expected input error %v, got %v", tt.want, err)
			}
			f.assertClean(t)
		})
	}
}

func TestRunCacheReadErrorIsMiss(t *testing.T) {
	f := newFixture(t, media.Decision{})
	f.store = failingStore{Store: cache.NewMemoryStore(), getErr: errors.New("redis down")}
	p := f.build(fakeDecider{})

	res, err := p.Run(testContext(t), upload("a.mp4", "bytes"), evalConfig("m"))
	if err != nil {
		t.Fatalf("cache read error must not fail the request: %v", err)
	}
	if res.Cached || f.analyzer.calls != 1 {
		t.Fatalf("expected a fresh analysis")
	}
}

func TestRunCacheWriteErrorStillResponds(t *testing.T) {
	f := newFixture(t, media.Decision{})
	f.store = failingStore{Store: cache.NewMemoryStore(), putErr: errors.New("disk full")}
	p := f.build(fakeDecider{})

	res, err := p.Run(testContext(t), upload("a.mp4", "bytes"), evalConfig("m"))
	if err != nil {
		t.Fatalf("cache write error must not fail the request: %v", err)
	}
	if res.Analysis.OverallSummary != "Solid." {
		t.Fatalf("unexpected analysis %#v", res.Analysis)
	}
}

func TestRunDecisionErrorIsInternal(t *testing.T) {
	f := newFixture(t, media.Decision{})
	p := f.build(fakeDecider{err: errors.New("stat failed")})

	_, err := p.Run(testContext(t), upload("a.mp4", "bytes"), evalConfig("m"))
	if KindOf(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	f.assertClean(t)
}

func TestKindOf(t *testing.T) {
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatalf("untyped errors are internal")
	}
	wrapped := errors.Join(errors.New("ctx"), inputErr("upload", ErrMissingFilename))
	if KindOf(wrapped) != KindInput {
		t.Fatalf("KindOf must look through wrapping")
	}
}

func TestSafeSuffix(t *testing.T) {
	tests := map[string]string{
		"clip.MP4":          ".mp4",
		"../../etc/x.mov":   ".mov",
		"noext":             "",
		"weird.m p4":        "",
		"archive.tar.gz":    ".gz",
		"long.abcdefghijkl": "",
	}
	for in, want := range tests {
		if got := safeSuffix(in); got != want {
			t.Fatalf("safeSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}
