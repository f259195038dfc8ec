package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/finquery/finquery/internal/llm"
)

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question pipeline is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	outcome, err := deps.Pipeline.Ask(r.Context(), request.Question)
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "language model backend is unavailable", true, map[string]any{"details": err.Error()})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "ASK_FAILED", "failed to process question", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}
