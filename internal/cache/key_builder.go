package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"interview-analyzer/internal/analysis"
)

// BuildKey combines the content fingerprint of an upload with the hash of
// the evaluation config it is scored under.
func BuildKey(contentHash string, cfg analysis.EvaluationConfig) (Key, error) {
	contentHash = strings.TrimSpace(contentHash)
	if contentHash == "" {
		return Key{}, errors.New("cache key: empty content hash")
	}

	configHash, err := cfg.Hash()
	if err != nil {
		return Key{}, err
	}

	sum := sha256.Sum256([]byte(contentHash + ":" + configHash))
	return Key{
		ContentHash: contentHash,
		ConfigHash:  configHash,
		Hash:        hex.EncodeToString(sum[:]),
	}, nil
}
