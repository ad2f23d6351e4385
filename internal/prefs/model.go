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
)

// AvailableModels is the selection offered to the frontend.
var AvailableModels = []string{
	"gemini-2.5-pro",
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-3-pro-preview",
	"gemini-3-flash-preview",
}

var ErrMissingModel = errors.New("missing model")

type modelFile struct {
	Model string `json:"model"`
}

// ModelStore reads and writes DATA_DIR/model.json.
type ModelStore struct {
	path         string
	defaultModel string
	mu           sync.Mutex
	logger       *zap.Logger
}

func NewModelStore(dataDir, defaultModel string, logger *zap.Logger) *ModelStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelStore{
		path:         filepath.Join(dataDir, "model.json"),
		defaultModel: defaultModel,
		logger:       logger.Named("model_store"),
	}
}

// Load returns the selected model, writing the default on first use.
func (s *ModelStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := writeJSONAtomic(s.path, modelFile{Model: s.defaultModel}); err != nil {
			return "", err
		}
		return s.defaultModel, nil
	}
	if err != nil {
		return "", fmt.Errorf("read model: %w", err)
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return "", fmt.Errorf("decode %s: %w", s.path, err)
	}
	if strings.TrimSpace(mf.Model) == "" {
		return s.defaultModel, nil
	}
	return mf.Model, nil
}

func (s *ModelStore) Save(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", ErrMissingModel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSONAtomic(s.path, modelFile{Model: model}); err != nil {
		return "", err
	}
	s.logger.Info("model selection changed", zap.String("model", model))
	return model, nil
}
