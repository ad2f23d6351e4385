// Package prefs persists the operator-editable prompt and model selection
// as small JSON files under the data directory.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"interview-analyzer/internal/analysis"
)

const DefaultPromptVersion = "v1"

// PromptConfig is the evaluation template the operator edits.
type PromptConfig struct {
	PromptVersion string   `json:"prompt_version"`
	PromptText    string   `json:"prompt_text"`
	Rubric        []string `json:"rubric"`
}

func DefaultPrompt() PromptConfig {
	return PromptConfig{
		PromptVersion: DefaultPromptVersion,
		PromptText: "You are an expert interview evaluator. Analyze the candidate's interview video. " +
			"Score each rubric category from 1 to 5, provide a concise rationale, " +
			"and return an overall summary. " +
			"Be fair, specific, and constructive.",
		Rubric: []string{
			"Communication",
			"Structure & clarity",
			"Technical depth",
			"Problem-solving",
			"Confidence",
		},
	}
}

// Normalize fills the version and trims labels, dropping blank ones.
func (p PromptConfig) Normalize() PromptConfig {
	p.PromptVersion = strings.TrimSpace(p.PromptVersion)
	if p.PromptVersion == "" {
		p.PromptVersion = DefaultPromptVersion
	}
	rubric := make([]string, 0, len(p.Rubric))
	for _, label := range p.Rubric {
		if label = strings.TrimSpace(label); label != "" {
			rubric = append(rubric, label)
		}
	}
	p.Rubric = rubric
	return p
}

func (p PromptConfig) Validate() error {
	if strings.TrimSpace(p.PromptText) == "" {
		return errors.New("prompt_text is required")
	}
	if len(p.Rubric) == 0 {
		return errors.New("rubric must list at least one category")
	}
	return nil
}

// Evaluation binds the prompt to a model for one request.
func (p PromptConfig) Evaluation(model string) analysis.EvaluationConfig {
	return analysis.EvaluationConfig{
		PromptVersion: p.PromptVersion,
		PromptText:    p.PromptText,
		Rubric:        append([]string(nil), p.Rubric...),
		Model:         model,
		SchemaVersion: analysis.SchemaVersion,
	}
}

// PromptStore reads and writes DATA_DIR/prompt.json.
type PromptStore struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewPromptStore(dataDir string, logger *zap.Logger) *PromptStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptStore{
		path:   filepath.Join(dataDir, "prompt.json"),
		logger: logger.Named("prompt_store"),
	}
}

// Load returns the stored prompt, writing the default on first use.
func (s *PromptStore) Load() (PromptConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultPrompt()
		if err := writeJSONAtomic(s.path, def); err != nil {
			return PromptConfig{}, err
		}
		s.logger.Info("wrote default prompt", zap.String("path", s.path))
		return def, nil
	}
	if err != nil {
		return PromptConfig{}, fmt.Errorf("read prompt: %w", err)
	}

	var p PromptConfig
	if err := json.Unmarshal(data, &p); err != nil {
		return PromptConfig{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return PromptConfig{}, fmt.Errorf("invalid %s: %w", s.path, err)
	}
	return p, nil
}

// Save normalizes, validates and persists p, returning what was stored.
func (s *PromptStore) Save(p PromptConfig) (PromptConfig, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return PromptConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSONAtomic(s.path, p); err != nil {
		return PromptConfig{}, err
	}
	return p, nil
}

// writeJSONAtomic writes v as indented JSON via a temp file and rename.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
