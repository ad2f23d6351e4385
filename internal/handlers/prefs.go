package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"interview-analyzer/internal/prefs"
	"interview-analyzer/pkg/logging/logging"
)

// PrefsHandler serves the prompt and model selection endpoints.
type PrefsHandler struct {
	Prompts   PromptStore
	Models    ModelStore
	Available []string
}

func NewPrefsHandler(prompts PromptStore, models ModelStore, available []string) *PrefsHandler {
	return &PrefsHandler{Prompts: prompts, Models: models, Available: available}
}

type modelsResponse struct {
	Current   string   `json:"current"`
	Available []string `json:"available"`
}

type modelRequest struct {
	Model string `json:"model"`
}

func (h *PrefsHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := h.Prompts.Load()
	if err != nil {
		logging.L(r.Context()).Error("load prompt failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PrefsHandler) PutPrompt(w http.ResponseWriter, r *http.Request) {
	var p prefs.PromptConfig
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := p.Normalize().Validate(); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.Prompts.Save(p)
	if err != nil {
		logging.L(r.Context()).Error("save prompt failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	logging.L(r.Context()).Info("prompt updated",
		zap.String("prompt_version", saved.PromptVersion),
		zap.Int("rubric_items", len(saved.Rubric)),
	)
	writeJSON(w, http.StatusOK, saved)
}

func (h *PrefsHandler) GetModels(w http.ResponseWriter, r *http.Request) {
	current, err := h.Models.Load()
	if err != nil {
		logging.L(r.Context()).Error("load model failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, modelsResponse{Current: current, Available: h.Available})
}

func (h *PrefsHandler) PutModels(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeDetail(w, http.StatusBadRequest, "Missing model")
		return
	}

	saved, err := h.Models.Save(req.Model)
	if err != nil {
		if errors.Is(err, prefs.ErrMissingModel) {
			writeDetail(w, http.StatusBadRequest, "Missing model")
			return
		}
		logging.L(r.Context()).Error("save model failed", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, modelsResponse{Current: saved, Available: h.Available})
}
