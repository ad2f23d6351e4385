package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"interview-analyzer/internal/analysis"
	"interview-analyzer/internal/metrics"
)

// generate asks the model to score the uploaded file and returns the raw
// JSON text of the first candidate.
func (c *Client) generate(ctx context.Context, file providerFile, cfg analysis.EvaluationConfig) (string, error) {
	model := strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/")
	if model == "" {
		return "", &GenerationError{Model: cfg.Model, Err: fmt.Errorf("model is required")}
	}

	body, err := json.Marshal(providerGenerateRequest{
		Contents: []providerContent{{
			Role: "user",
			Parts: []providerPart{
				{FileData: &providerFileData{MimeType: file.MimeType, FileURI: file.URI}},
				{Text: analysis.RenderPrompt(cfg)},
			},
		}},
		GenerationConfig: providerGenerationConfig{
			ResponseMimeType:   "application/json",
			ResponseJSONSchema: analysis.ResponseSchema(),
		},
	})
	if err != nil {
		return "", &GenerationError{Model: model, Err: fmt.Errorf("marshal request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + "/v1beta/models/" + url.PathEscape(model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Model: model, Err: fmt.Errorf("build request: %w", err)}
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues("generate", "error").Inc()
		return "", &GenerationError{Model: model, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RemoteRequestsTotal.WithLabelValues("generate", "error").Inc()
		return "", &GenerationError{Model: model, Err: apiErrorFrom(resp)}
	}

	var out providerGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues("generate", "error").Inc()
		return "", &GenerationError{Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}
	metrics.RemoteRequestsTotal.WithLabelValues("generate", "ok").Inc()

	if out.UsageMetadata != nil {
		c.logger.Debug("generation usage",
			zap.String("model", model),
			zap.Int("prompt_tokens", out.UsageMetadata.PromptTokenCount),
			zap.Int("candidate_tokens", out.UsageMetadata.CandidatesTokenCount),
			zap.Int("total_tokens", out.UsageMetadata.TotalTokenCount),
		)
	}

	text, finish := firstCandidateText(out)
	if strings.TrimSpace(text) == "" {
		empty := &EmptyResponseError{FinishReason: finish}
		if out.PromptFeedback != nil {
			empty.BlockReason = out.PromptFeedback.BlockReason
		}
		return "", empty
	}
	return text, nil
}

func firstCandidateText(resp providerGenerateResponse) (string, string) {
	if len(resp.Candidates) == 0 {
		return "", ""
	}
	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), cand.FinishReason
}
