// Package params reconciles template parameters from matcher extraction,
// entity records and conservative defaults, then canonicalizes the result.
package params

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/finquery/finquery/internal/entities"
	"github.com/finquery/finquery/internal/refdata"
	"github.com/finquery/finquery/internal/templates"
)

// AllSectors is the sentinel templates use to mean "no sector filter".
const AllSectors = "ALL"

// UnresolvedError reports parameters still unset after fill and defaults.
// The render attempt for the template is abandoned.
type UnresolvedError struct {
	TemplateID string
	Missing    []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("template %q: unresolved parameters: %s", e.TemplateID, strings.Join(e.Missing, ", "))
}

type Resolver struct {
	canon  *refdata.Canonicalizer
	logger *slog.Logger
	now    func() time.Time
}

func NewResolver(canon *refdata.Canonicalizer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{canon: canon, logger: logger, now: time.Now}
}

// Resolve runs fill, defaults and overrides in order. It returns a new map;
// the input is not mutated.
func (r *Resolver) Resolve(tpl *templates.Template, matched map[string]string, ents entities.Entities) (map[string]string, error) {
	resolved := make(map[string]string, len(tpl.ParameterNames))
	for name, value := range matched {
		resolved[name] = value
	}

	r.FillMissing(tpl, resolved, ents)
	r.ApplyDefaults(tpl, resolved)

	var missing []string
	for _, name := range tpl.ParameterNames {
		if strings.TrimSpace(resolved[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &UnresolvedError{TemplateID: tpl.ID, Missing: missing}
	}

	r.ApplyEntityOverrides(resolved)
	return resolved, nil
}

// FillMissing fills unset declared parameters from the extracted entities.
func (r *Resolver) FillMissing(tpl *templates.Template, params map[string]string, ents entities.Entities) {
	for _, name := range tpl.ParameterNames {
		if params[name] != "" {
			continue
		}
		switch name {
		case "company", "company_name":
			if len(ents.Companies) > 0 {
				params[name] = ents.Companies[0]
			}
		case "cik":
			if len(ents.Companies) > 0 {
				params[name] = ents.Companies[0]
			}
		case "sector":
			if len(ents.Sectors) > 0 {
				params[name] = ents.Sectors[0]
			}
		case "metric", "tag":
			if len(ents.Metrics) > 0 {
				params[name] = ents.Metrics[0]
			}
		case "time_period":
			if len(ents.TimePeriods) > 0 {
				params[name] = ents.TimePeriods[0]
			}
		case "state", "jurisdiction":
			if place, ok := scanForPlace(name, ents); ok {
				params[name] = place
			}
		}
	}
}

// scanForPlace looks through the entity sector and company lists for a
// recognizable state or country name.
func scanForPlace(kind string, ents entities.Entities) (string, bool) {
	candidates := make([]string, 0, len(ents.Sectors)+len(ents.Companies))
	candidates = append(candidates, ents.Sectors...)
	candidates = append(candidates, ents.Companies...)
	for _, candidate := range candidates {
		if value, ok := templates.ExtractParameter(kind, candidate); ok {
			return value, true
		}
	}
	return "", false
}

// ApplyDefaults supplies conservative literals for optional parameters that
// are still unset.
func (r *Resolver) ApplyDefaults(tpl *templates.Template, params map[string]string) {
	currentYear := r.now().Year()
	for _, name := range tpl.ParameterNames {
		if params[name] != "" {
			continue
		}
		switch name {
		case "sector":
			params[name] = AllSectors
		case "start_year":
			params[name] = fmt.Sprintf("%d", currentYear-2)
		case "end_year":
			params[name] = fmt.Sprintf("%d", currentYear)
		case "rank":
			params[name] = "1"
		case "limit":
			params[name] = "10"
		case "threshold", "revenue_threshold":
			params[name] = "50000000000"
		}
	}
}

// everySectorPhrases are values that mean "no sector filter". Interrogatives
// leak in when the matcher captures a question fragment instead of a sector.
var everySectorPhrases = map[string]bool{
	"all":          true,
	"all sectors":  true,
	"every sector": true,
	"any":          true,
	"which":        true,
	"what":         true,
}

var companyAliases = map[string]string{
	"google":    "alphabet",
	"facebook":  "meta platforms",
	"jp morgan": "jpmorgan chase",
}

// ApplyEntityOverrides re-normalizes already filled values from canonical
// sources.
func (r *Resolver) ApplyEntityOverrides(params map[string]string) {
	if value, ok := params["company"]; ok && value != "" {
		params["company"] = r.canonicalizeCompany(value)
	}
	if value, ok := params["company_name"]; ok && value != "" {
		params["company_name"] = r.canonicalizeCompany(value)
	}
	if value, ok := params["sector"]; ok && value != "" && value != AllSectors {
		lower := strings.ToLower(strings.TrimSpace(value))
		if everySectorPhrases[lower] {
			params["sector"] = AllSectors
		} else {
			params["sector"] = entities.NormalizeSector(value)
		}
	}
}

func (r *Resolver) canonicalizeCompany(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := companyAliases[lower]; ok {
		name = alias
	}
	if r.canon == nil {
		return name
	}
	return r.canon.Canonicalize(name)
}
