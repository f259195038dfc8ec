// Package sqlgen orchestrates the hybrid resolution policy: deterministic
// template matching, confidence-gated LLM confirmation and fallback, and
// last-resort custom SQL synthesis. Every produced statement passes the
// validator before release.
package sqlgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finquery/finquery/internal/entities"
	"github.com/finquery/finquery/internal/llm"
	"github.com/finquery/finquery/internal/observability"
	"github.com/finquery/finquery/internal/params"
	"github.com/finquery/finquery/internal/schema"
	"github.com/finquery/finquery/internal/sqlcheck"
	"github.com/finquery/finquery/internal/templates"
)

type Method string

const (
	MethodTemplate             Method = "template"
	MethodLLMTemplateSelection Method = "llm_template_selection"
	MethodLLMCustom            Method = "llm_custom"
)

// llmSelectionConfidence is carried by LLM-selected templates regardless of
// the deterministic match score.
const llmSelectionConfidence = 0.85

// ErrNoSQL is the explicit "no SQL produced" outcome. Callers surface it as
// "unable to generate query" rather than an internal failure.
var ErrNoSQL = errors.New("no sql produced")

type GeneratedSQL struct {
	SQL        string            `json:"sql"`
	Parameters map[string]string `json:"parameters"`
	TemplateID string            `json:"template_id,omitempty"`
	Method     Method            `json:"generation_method"`
	Confidence float64           `json:"confidence"`
}

type Config struct {
	MinConfidence     float64
	FastPathThreshold float64
	LLMThreshold      float64
}

func (c Config) withDefaults() Config {
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.5
	}
	if c.FastPathThreshold <= 0 {
		c.FastPathThreshold = 0.8
	}
	if c.LLMThreshold <= 0 {
		c.LLMThreshold = 0.5
	}
	return c
}

type Generator struct {
	catalog   *templates.Catalog
	resolver  *params.Resolver
	validator *sqlcheck.Validator
	client    llm.Client
	cfg       Config
	logger    *slog.Logger
}

// New builds a generator. A nil client restricts the policy to the
// deterministic path.
func New(catalog *templates.Catalog, resolver *params.Resolver, validator *sqlcheck.Validator, client llm.Client, cfg Config, logger *slog.Logger) (*Generator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("template catalog is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("parameter resolver is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("sql validator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		catalog:   catalog,
		resolver:  resolver,
		validator: validator,
		client:    client,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}, nil
}

// Generate resolves one question to SQL. It returns the validation records
// produced along the way regardless of outcome. An LLM outage during template
// selection is fatal and surfaces llm.ErrUnavailable; everything else folds
// into ErrNoSQL.
func (g *Generator) Generate(ctx context.Context, question string, ents entities.Entities) (GeneratedSQL, []sqlcheck.Record, error) {
	match := g.catalog.Match(question, g.cfg.MinConfidence)
	observability.ObserveTemplateMatch(match.Confidence)

	if g.client == nil {
		if match.Template == nil {
			return GeneratedSQL{}, nil, fmt.Errorf("%w: no template matched and no LLM backend configured", ErrNoSQL)
		}
		return g.renderAndValidate(ctx, question, ents, match.Template, match.Params, MethodTemplate, match.Confidence)
	}

	if match.Template != nil && match.Confidence >= g.cfg.FastPathThreshold {
		g.logger.Debug("template fast path",
			slog.String("template_id", match.Template.ID),
			slog.Float64("confidence", match.Confidence),
		)
		return g.renderAndValidate(ctx, question, ents, match.Template, match.Params, MethodTemplate, match.Confidence)
	}

	var candidates []templates.Template
	if match.Template != nil && match.Confidence >= g.cfg.LLMThreshold {
		candidates = []templates.Template{*match.Template}
	} else {
		candidates = g.catalog.All()
	}

	selection, err := g.client.SelectTemplate(ctx, question, ents, candidates)
	observability.ObserveLLMCall("template_selection", err)
	if err != nil {
		// Template selection treats the backend as a required dependency.
		return GeneratedSQL{}, nil, fmt.Errorf("template selection: %w", err)
	}

	if selection.UseCustomSQL {
		return g.synthesize(ctx, question, ents)
	}

	selected, ok := g.catalog.ByID(selection.SelectedTemplateID)
	if !ok {
		if match.Template != nil {
			g.logger.Warn("llm returned unknown template id, using deterministic candidate",
				slog.String("template_id", selection.SelectedTemplateID),
			)
			selected = match.Template
		} else {
			return g.synthesize(ctx, question, ents)
		}
	}

	merged := map[string]string{}
	for name, value := range selection.ParameterMapping {
		merged[name] = value
	}
	if match.Template != nil && selected.ID == match.Template.ID {
		for name, value := range match.Params {
			if merged[name] == "" {
				merged[name] = value
			}
		}
	}
	return g.renderAndValidate(ctx, question, ents, selected, merged, MethodLLMTemplateSelection, llmSelectionConfidence)
}

func (g *Generator) renderAndValidate(ctx context.Context, question string, ents entities.Entities, tpl *templates.Template, matched map[string]string, method Method, confidence float64) (GeneratedSQL, []sqlcheck.Record, error) {
	resolved, err := g.resolver.Resolve(tpl, matched, ents)
	if err != nil {
		// The render attempt for this template is abandoned; no other
		// template is tried automatically.
		return GeneratedSQL{}, nil, fmt.Errorf("%w: %v", ErrNoSQL, err)
	}

	sql := Render(tpl, resolved)
	result, records := g.validator.Validate(ctx, sql, question, ents)
	if !result.Accepted {
		return GeneratedSQL{}, records, fmt.Errorf("%w: validation rejected: %s", ErrNoSQL, result.Reason)
	}

	observability.ObserveSQLGenerated(string(method))
	return GeneratedSQL{
		SQL:        sql,
		Parameters: resolved,
		TemplateID: tpl.ID,
		Method:     method,
		Confidence: confidence,
	}, records, nil
}

func (g *Generator) synthesize(ctx context.Context, question string, ents entities.Entities) (GeneratedSQL, []sqlcheck.Record, error) {
	generation, err := g.client.GenerateSQL(ctx, question, ents, schema.Markdown(), buildHints(question))
	observability.ObserveLLMCall("sql_synthesis", err)
	if err != nil {
		return GeneratedSQL{}, nil, fmt.Errorf("custom sql synthesis: %w", err)
	}
	if strings.TrimSpace(generation.SQL) == "" {
		return GeneratedSQL{}, nil, fmt.Errorf("%w: model returned empty SQL", ErrNoSQL)
	}

	result, records := g.validator.Validate(ctx, generation.SQL, question, ents)
	if !result.Accepted {
		// One attempt only; a rejected synthesis is discarded.
		return GeneratedSQL{}, records, fmt.Errorf("%w: synthesized SQL rejected: %s", ErrNoSQL, result.Reason)
	}

	observability.ObserveSQLGenerated(string(MethodLLMCustom))
	return GeneratedSQL{
		SQL:        generation.SQL,
		Parameters: map[string]string{},
		Method:     MethodLLMCustom,
		Confidence: result.Confidence,
	}, records, nil
}

// buildHints collects lightweight domain context for the synthesis prompt.
func buildHints(question string) llm.SynthesisHints {
	var hints llm.SynthesisHints
	if threshold, ok := templates.ExtractParameter("threshold", question); ok {
		hints.Thresholds = append(hints.Thresholds, threshold)
	}
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "top") || strings.Contains(lower, "largest") ||
		strings.Contains(lower, "highest") || strings.Contains(lower, "biggest"):
		hints.Ordering = "descending"
	case strings.Contains(lower, "smallest") || strings.Contains(lower, "lowest"):
		hints.Ordering = "ascending"
	}
	if currency, ok := templates.ExtractParameter("currency", question); ok {
		hints.Currency = currency
	}
	if unit, ok := templates.ExtractParameter("unit", question); ok {
		hints.Unit = unit
	}
	return hints
}
