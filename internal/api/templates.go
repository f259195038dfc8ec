package api

import (
	"net/http"

	"github.com/finquery/finquery/internal/templates"
)

type templatesResponse struct {
	Templates []templates.Template `json:"templates"`
	Count     int                  `json:"count"`
}

func handleListTemplates(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CATALOG_NOT_CONFIGURED", "template catalog is not configured", false, nil)
		return
	}
	all := deps.Catalog.All()
	writeJSON(w, http.StatusOK, templatesResponse{Templates: all, Count: len(all)})
}
