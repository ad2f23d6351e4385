package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const jsonInstruction = "Return JSON that matches the provided schema exactly."

// RenderPrompt builds the text part sent next to the video. The output depends
// only on the prompt text and the rubric labels.
func RenderPrompt(cfg EvaluationConfig) string {
	var b strings.Builder
	b.WriteString(cfg.PromptText)
	b.WriteString("\n\nRubric categories:\n")
	for i, label := range cfg.Rubric {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(label)
	}
	b.WriteString("\n\n")
	b.WriteString(jsonInstruction)
	return b.String()
}

// ResponseSchema is the JSON schema the model output is constrained to.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "AnalysisResult",
		"properties": map[string]any{
			"rubric": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":  "object",
					"title": "RubricScore",
					"properties": map[string]any{
						"label":     map[string]any{"type": "string"},
						"score":     map[string]any{"type": "integer", "minimum": MinScore, "maximum": MaxScore},
						"rationale": map[string]any{"type": "string"},
					},
					"required": []string{"label", "score", "rationale"},
				},
			},
			"overall_summary": map[string]any{"type": "string"},
		},
		"required": []string{"rubric", "overall_summary"},
	}
}

// wire types use pointers so that absent fields are told apart from zero values.
type wireScore struct {
	Label     *string `json:"label"`
	Score     *int    `json:"score"`
	Rationale *string `json:"rationale"`
}

type wireResult struct {
	Rubric         []wireScore `json:"rubric"`
	OverallSummary *string     `json:"overall_summary"`
}

// ParseResult decodes model output into a Result. Unknown fields, missing
// fields, wrong types, trailing data and out-of-range scores are all
// reported as *ValidationError.
func ParseResult(text string) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var w wireResult
	if err := dec.Decode(&w); err != nil {
		return nil, &ValidationError{Reason: "malformed JSON", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ValidationError{Reason: "unexpected data after JSON object"}
	}

	if w.Rubric == nil {
		return nil, &ValidationError{Field: "rubric", Reason: "is required"}
	}
	if w.OverallSummary == nil {
		return nil, &ValidationError{Field: "overall_summary", Reason: "is required"}
	}

	out := &Result{
		Rubric:         make([]RubricScore, 0, len(w.Rubric)),
		OverallSummary: *w.OverallSummary,
	}
	for i, s := range w.Rubric {
		switch {
		case s.Label == nil:
			return nil, &ValidationError{Field: fmt.Sprintf("rubric[%d].label", i), Reason: "is required"}
		case s.Score == nil:
			return nil, &ValidationError{Field: fmt.Sprintf("rubric[%d].score", i), Reason: "is required"}
		case s.Rationale == nil:
			return nil, &ValidationError{Field: fmt.Sprintf("rubric[%d].rationale", i), Reason: "is required"}
		}
		out.Rubric = append(out.Rubric, RubricScore{
			Label:     *s.Label,
			Score:     *s.Score,
			Rationale: *s.Rationale,
		})
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
