// Package templates holds the query template catalog and the deterministic
// matcher that pairs natural language questions with parameterized SQL.
package templates

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Template pairs a natural language pattern with a SQL skeleton. Templates are
// loaded once and read-only afterwards.
type Template struct {
	ID             string   `json:"template_id"`
	Name           string   `json:"name"`
	Pattern        string   `json:"pattern"`
	SQLSkeleton    string   `json:"sql_skeleton"`
	ParameterNames []string `json:"parameter_names"`
	Description    string   `json:"description"`
}

// MatchResult is the outcome of deterministic matching for one question.
type MatchResult struct {
	Template      *Template
	Confidence    float64
	Params        map[string]string
	FallbackToLLM bool
}

// Source is a storage-agnostic template read path.
type Source interface {
	LoadTemplates(ctx context.Context) ([]Template, error)
}

type Catalog struct {
	templates []Template
	patterns  []*regexp.Regexp
	byID      map[string]int
}

func NewCatalog(list []Template) (*Catalog, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("at least one template is required")
	}
	catalog := &Catalog{
		templates: make([]Template, 0, len(list)),
		patterns:  make([]*regexp.Regexp, 0, len(list)),
		byID:      make(map[string]int, len(list)),
	}
	for _, tpl := range list {
		if strings.TrimSpace(tpl.ID) == "" {
			return nil, fmt.Errorf("template id is required")
		}
		if _, exists := catalog.byID[tpl.ID]; exists {
			return nil, fmt.Errorf("duplicate template id: %q", tpl.ID)
		}
		pattern, err := regexp.Compile("(?i)" + tpl.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern for template %q: %w", tpl.ID, err)
		}
		catalog.byID[tpl.ID] = len(catalog.templates)
		catalog.templates = append(catalog.templates, tpl)
		catalog.patterns = append(catalog.patterns, pattern)
	}
	return catalog, nil
}

// Load builds a catalog from source, falling back to the built-in template set
// when the source is nil or unreachable.
func Load(ctx context.Context, source Source, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if source != nil {
		list, err := source.LoadTemplates(ctx)
		if err == nil && len(list) > 0 {
			catalog, buildErr := NewCatalog(list)
			if buildErr == nil {
				logger.Info("template catalog loaded", slog.Int("templates", len(list)))
				return catalog, nil
			}
			err = buildErr
		}
		logger.Warn("falling back to built-in templates", slog.Any("error", err))
	}
	return NewCatalog(Builtin())
}

// Builtin returns the minimal template set used when no external source is
// reachable.
func Builtin() []Template {
	return []Template{
		{
			ID:             "sector_count",
			Name:           "Count companies by sector",
			Pattern:        `how many .*(companies|firms|corporations).* (in|from) .* (sector|industry)`,
			SQLSkeleton:    `SELECT COUNT(*) as count FROM companies WHERE UPPER(gics_sector) LIKE UPPER('%{sector}%')`,
			ParameterNames: []string{"sector"},
			Description:    "Count number of companies in a given sector",
		},
		{
			ID:             "company_cik",
			Name:           "Get company CIK",
			Pattern:        `what (is|are) .* cik`,
			SQLSkeleton:    `SELECT cik, name FROM companies WHERE UPPER(name) LIKE UPPER('%{company}%') LIMIT 1`,
			ParameterNames: []string{"company"},
			Description:    "Look up a company's CIK identifier",
		},
		{
			ID:             "company_sector",
			Name:           "Get company sector",
			Pattern:        `what sector (is|does) .* (in|belong)`,
			SQLSkeleton:    `SELECT name, gics_sector FROM companies WHERE UPPER(name) LIKE UPPER('%{company}%') LIMIT 1`,
			ParameterNames: []string{"company"},
			Description:    "Find which sector a company belongs to",
		},
	}
}

func (c *Catalog) All() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

func (c *Catalog) Len() int {
	return len(c.templates)
}

func (c *Catalog) ByID(id string) (*Template, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	tpl := c.templates[idx]
	return &tpl, true
}

// Match tests the question against every template. A pattern hit scores 0.80,
// raised to 0.95 when every declared parameter extracts. The best confidence
// wins; earlier templates win ties.
func (c *Catalog) Match(question string, minConfidence float64) MatchResult {
	lower := strings.ToLower(strings.TrimSpace(question))

	var best *Template
	bestConfidence := 0.0
	bestParams := map[string]string{}

	for i := range c.templates {
		if !c.patterns[i].MatchString(lower) {
			continue
		}
		confidence := 0.8
		params := extractParameters(question, &c.templates[i])
		if len(params) == len(c.templates[i].ParameterNames) {
			confidence = 0.95
		}
		if confidence > bestConfidence {
			tpl := c.templates[i]
			best = &tpl
			bestConfidence = confidence
			bestParams = params
		}
	}

	if best == nil || bestConfidence < minConfidence {
		return MatchResult{FallbackToLLM: true, Params: map[string]string{}}
	}
	return MatchResult{
		Template:   best,
		Confidence: bestConfidence,
		Params:     bestParams,
	}
}

func extractParameters(question string, tpl *Template) map[string]string {
	params := map[string]string{}
	for _, name := range tpl.ParameterNames {
		if value, ok := ExtractParameter(name, question); ok {
			params[name] = value
		}
	}
	return params
}
