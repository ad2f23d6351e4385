package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"interview-analyzer/internal/analysis"
	"interview-analyzer/internal/cache"
	"interview-analyzer/internal/prefs"
)

const testModel = "gemini-2.5-flash"

// setupEnv points configuration at a scratch data dir with the file cache.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("TEMP_DIR", t.TempDir())
	t.Setenv("CACHE_BACKEND", "file")
	t.Setenv("GEMINI_MODEL", testModel)
	t.Setenv("ENV", "prod")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func seedCache(t *testing.T, dataDir string, content []byte) cache.Key {
	t.Helper()
	sum := sha256.Sum256(content)
	key, err := cache.BuildKey(hex.EncodeToString(sum[:]), prefs.DefaultPrompt().Evaluation(testModel))
	if err != nil {
		t.Fatalf("BuildKey: %v", err)
	}

	store, err := cache.NewFileStore(filepath.Join(dataDir, "cache.json"), nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	err = store.Put(context.Background(), key.String(), testModel, analysis.Result{
		Rubric:         []analysis.RubricScore{{Label: "Communication", Score: 4, Rationale: "Clear."}},
		OverallSummary: "Strong   candidate\nwith clear answers.",
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	return key
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeCommandServesCachedResult(t *testing.T) {
	dataDir := setupEnv(t)
	content := []byte("recorded interview bytes")
	key := seedCache(t, dataDir, content)

	video := filepath.Join(t.TempDir(), "interview.mp4")
	if err := os.WriteFile(video, content, 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	out, err := execute(t, "analyze", video)
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}

	var resp analysis.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if !resp.Cached || resp.Model != testModel {
		t.Fatalf("expected cached response for %s, got %#v", testModel, resp)
	}
	if resp.ContentHash != key.ContentHash {
		t.Fatalf("expected video hash %s, got %s", key.ContentHash, resp.ContentHash)
	}
}

func TestAnalyzeCommandMissingFile(t *testing.T) {
	setupEnv(t)
	if _, err := execute(t, "analyze", filepath.Join(t.TempDir(), "nope.mp4")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestCacheListCommand(t *testing.T) {
	dataDir := setupEnv(t)

	out, err := execute(t, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(out, "none") {
		t.Fatalf("expected empty listing, got %q", out)
	}

	key := seedCache(t, dataDir, []byte("abc"))

	out, err = execute(t, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(out, key.String()[:keyPrefixLen-1]) || !strings.Contains(out, testModel) {
		t.Fatalf("expected seeded entry in table, got:\n%s", out)
	}
	if !strings.Contains(out, "Strong candidate with clear answers.") {
		t.Fatalf("expected collapsed summary in table, got:\n%s", out)
	}

	out, err = execute(t, "cache", "list", "--json")
	if err != nil {
		t.Fatalf("cache list --json: %v", err)
	}
	var entries []cache.KeyedEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode json listing: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != key.String() {
		t.Fatalf("unexpected json listing %#v", entries)
	}
}

func TestShorten(t *testing.T) {
	if got := shorten("abcdef", 10); got != "abcdef" {
		t.Fatalf("short strings pass through, got %q", got)
	}
	if got := shorten("abcdefghij", 4); got != "abc…" {
		t.Fatalf("expected truncation with ellipsis, got %q", got)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"x"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "A") || !strings.Contains(out, "x") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}
