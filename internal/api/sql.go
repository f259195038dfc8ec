package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/finquery/finquery/internal/sqlcheck"
)

type sqlRequest struct {
	SQL string `json:"sql"`
}

type sqlResponse struct {
	Columns    []string          `json:"columns"`
	Rows       [][]any           `json:"rows"`
	RowCount   int               `json:"row_count"`
	Validation []sqlcheck.Record `json:"validation"`
	Stats      map[string]any    `json:"stats"`
}

// handleSQL is the validated passthrough: the statement runs through the same
// validator as generated SQL before it reaches the engine.
func handleSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question pipeline is not configured", false, nil)
		return
	}

	var request sqlRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid sql request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	result, records, err := deps.Pipeline.RunSQL(r.Context(), request.SQL)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REJECTED", "sql was rejected or failed", false, map[string]any{
			"details":    err.Error(),
			"validation": records,
		})
		return
	}

	writeJSON(w, http.StatusOK, sqlResponse{
		Columns:    result.Columns,
		Rows:       result.Rows,
		RowCount:   result.RowCount,
		Validation: records,
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
		},
	})
}
