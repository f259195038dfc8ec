package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/finquery/finquery/internal/templates"
)

// Source loads the template catalog from Postgres. Callers fall back to the
// built-in template set when the load fails.
type Source struct {
	db *sql.DB
}

func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

func (s *Source) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping template db: %w", err)
	}
	return nil
}

func (s *Source) LoadTemplates(ctx context.Context) ([]templates.Template, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT template_id, name, pattern, sql_skeleton, parameter_names, description
FROM query_template
ORDER BY position ASC, template_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := make([]templates.Template, 0)
	for rows.Next() {
		var tpl templates.Template
		var paramsJSON []byte
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Pattern, &tpl.SQLSkeleton, &paramsJSON, &tpl.Description); err != nil {
			return nil, fmt.Errorf("scan template row: %w", err)
		}
		if len(paramsJSON) > 0 {
			if err := json.Unmarshal(paramsJSON, &tpl.ParameterNames); err != nil {
				return nil, fmt.Errorf("decode parameter names for template %q: %w", tpl.ID, err)
			}
		}
		list = append(list, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template rows: %w", err)
	}
	return list, nil
}
