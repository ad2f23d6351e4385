package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"interview-analyzer/internal/analysis"
	"interview-analyzer/internal/pipeline"
	"interview-analyzer/internal/prefs"
	"interview-analyzer/pkg/logging/logging"
)

const videoField = "video"

type Runner interface {
	Run(ctx context.Context, up pipeline.Upload, cfg analysis.EvaluationConfig) (*analysis.Response, error)
}

type PromptStore interface {
	Load() (prefs.PromptConfig, error)
	Save(p prefs.PromptConfig) (prefs.PromptConfig, error)
}

type ModelStore interface {
	Load() (string, error)
	Save(model string) (string, error)
}

// AnalyzeHandler serves POST /api/analyze.
type AnalyzeHandler struct {
	Pipeline Runner
	Prompts  PromptStore
	Models   ModelStore
}

func NewAnalyzeHandler(p Runner, prompts PromptStore, models ModelStore) *AnalyzeHandler {
	return &AnalyzeHandler{Pipeline: p, Prompts: prompts, Models: models}
}

// Analyze streams the "video" multipart field straight into the pipeline.
// The body is never buffered whole.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	mr, err := r.MultipartReader()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "expected a multipart/form-data upload")
		return
	}

	part, err := nextFilePart(mr, videoField)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeDetail(w, http.StatusBadRequest, "Missing video file")
			return
		}
		h.fail(w, logger, err)
		return
	}
	defer part.Close()

	if part.FileName() == "" {
		writeDetail(w, http.StatusBadRequest, "Missing filename")
		return
	}

	prompt, err := h.Prompts.Load()
	if err != nil {
		logger.Error("load prompt failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	model, err := h.Models.Load()
	if err != nil {
		logger.Error("load model failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := h.Pipeline.Run(ctx, pipeline.Upload{
		Filename: part.FileName(),
		Body:     part,
	}, prompt.Evaluation(model))
	if err != nil {
		h.fail(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// nextFilePart skips parts until the named field. io.EOF means it was absent.
func nextFilePart(mr *multipart.Reader, field string) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == field {
			return part, nil
		}
		_, _ = io.Copy(io.Discard, part)
		part.Close()
	}
}

func (h *AnalyzeHandler) fail(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("kind", pipeline.KindOf(err).String()),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("analysis failed", fields...)
	} else {
		logger.Warn("analysis rejected", fields...)
	}
	writeDetail(w, status, err.Error())
}

// StatusFor maps a pipeline error to an HTTP status. Input and processing
// failures are client errors, including remote calls that timed out on
// their own. Only an expired request deadline, which the pipeline tags as
// internal, is 504.
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}

	switch pipeline.KindOf(err) {
	case pipeline.KindInput, pipeline.KindProcessing:
		return http.StatusBadRequest
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	}
}
