package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaVersion identifies the AnalysisResult shape. It is part of the config
// hash so a schema change never serves results of the old shape.
const SchemaVersion = "analysis-v1"

const (
	MinScore = 1
	MaxScore = 5
)

// EvaluationConfig is everything besides the video that determines an analysis.
type EvaluationConfig struct {
	PromptVersion string
	PromptText    string
	Rubric        []string
	Model         string
	SchemaVersion string
}

// canonicalConfig fixes the serialized key order of EvaluationConfig.
type canonicalConfig struct {
	Model         string   `json:"model"`
	PromptText    string   `json:"prompt_text"`
	PromptVersion string   `json:"prompt_version"`
	Rubric        []string `json:"rubric"`
	Schema        string   `json:"schema"`
}

// Hash returns the hex SHA-256 of the canonical serialization of c.
func (c EvaluationConfig) Hash() (string, error) {
	schema := c.SchemaVersion
	if schema == "" {
		schema = SchemaVersion
	}
	rubric := c.Rubric
	if rubric == nil {
		rubric = []string{}
	}

	body, err := json.Marshal(canonicalConfig{
		Model:         strings.TrimSpace(c.Model),
		PromptText:    c.PromptText,
		PromptVersion: c.PromptVersion,
		Rubric:        rubric,
		Schema:        schema,
	})
	if err != nil {
		return "", fmt.Errorf("marshal evaluation config: %w", err)
	}

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

type RubricScore struct {
	Label     string `json:"label"`
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// Result is the structured analysis returned by the model.
type Result struct {
	Rubric         []RubricScore `json:"rubric"`
	OverallSummary string        `json:"overall_summary"`
}

// Validate checks the score bounds of every rubric entry.
func (r *Result) Validate() error {
	if r == nil {
		return &ValidationError{Reason: "result is nil"}
	}
	if r.Rubric == nil {
		return &ValidationError{Field: "rubric", Reason: "is required"}
	}
	for i, s := range r.Rubric {
		if s.Score < MinScore || s.Score > MaxScore {
			return &ValidationError{
				Field:  fmt.Sprintf("rubric[%d].score", i),
				Reason: fmt.Sprintf("%d is outside [%d,%d]", s.Score, MinScore, MaxScore),
			}
		}
	}
	return nil
}

// Response is what the analyze endpoint returns, fresh or cached.
type Response struct {
	Analysis    Result `json:"analysis"`
	Cached      bool   `json:"cached"`
	Model       string `json:"model"`
	ContentHash string `json:"video_hash"`
}

// ValidationError reports a model response that does not match the schema.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := "analysis validation failed"
	if detail := strings.TrimSpace(e.Field + " " + e.Reason); detail != "" {
		msg += ": " + detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }
