// Package llm is the boundary to the language model backend. Three logical
// calls exist: template selection over a candidate set, free-form SQL
// synthesis, and a semantic validation verdict. All are JSON in, JSON out,
// tolerant of markdown fencing.
package llm

import (
	"context"
	"errors"

	"github.com/finquery/finquery/internal/entities"
	"github.com/finquery/finquery/internal/templates"
)

// ErrUnavailable signals that the backend could not produce a usable response
// within the retry budget. During template selection and validation this is
// fatal for the request.
var ErrUnavailable = errors.New("llm backend unavailable")

// TemplateSelection is the model's verdict over a candidate template set.
type TemplateSelection struct {
	SelectedTemplateID string            `json:"selected_template_id"`
	Confidence         float64           `json:"confidence"`
	Reasoning          string            `json:"reasoning"`
	UseCustomSQL       bool              `json:"use_custom_sql"`
	ParameterMapping   map[string]string `json:"parameter_mapping"`
}

// SQLGeneration is the model's answer to a custom synthesis request.
type SQLGeneration struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// Verdict is the semantic validation outcome.
type Verdict struct {
	IsValid    bool    `json:"is_valid"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// SynthesisHints carries lightweight domain context for custom SQL synthesis.
type SynthesisHints struct {
	Thresholds []string `json:"thresholds,omitempty"`
	Ordering   string   `json:"ordering,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	Unit       string   `json:"unit,omitempty"`
}

type Client interface {
	SelectTemplate(ctx context.Context, question string, ents entities.Entities, candidates []templates.Template) (TemplateSelection, error)
	GenerateSQL(ctx context.Context, question string, ents entities.Entities, schemaMarkdown string, hints SynthesisHints) (SQLGeneration, error)
	ValidateSQL(ctx context.Context, sql, question string, ents entities.Entities, schemaMarkdown string) (Verdict, error)
}
