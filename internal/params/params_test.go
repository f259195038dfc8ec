package params

import (
	"errors"
	"testing"
	"time"

	"github.com/finquery/finquery/internal/entities"
	"github.com/finquery/finquery/internal/refdata"
	"github.com/finquery/finquery/internal/templates"
)

func fixedResolver(canon *refdata.Canonicalizer) *Resolver {
	r := NewResolver(canon, nil)
	r.now = func() time.Time {
		return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	}
	return r
}

func TestResolveFillsFromEntities(t *testing.T) {
	r := fixedResolver(nil)
	tpl := &templates.Template{ID: "company_cik", ParameterNames: []string{"company"}}
	ents := entities.Entities{Companies: []string{"Apple"}}

	resolved, err := r.Resolve(tpl, map[string]string{}, ents)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved["company"] != "Apple" {
		t.Fatalf("company = %q, want Apple", resolved["company"])
	}
}

func TestResolveMatchedValueWins(t *testing.T) {
	r := fixedResolver(nil)
	tpl := &templates.Template{ID: "company_cik", ParameterNames: []string{"company"}}
	ents := entities.Entities{Companies: []string{"Microsoft"}}

	resolved, err := r.Resolve(tpl, map[string]string{"company": "apple"}, ents)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved["company"] != "apple" {
		t.Fatalf("company = %q, want apple", resolved["company"])
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	r := fixedResolver(nil)
	tpl := &templates.Template{ID: "sector_count", ParameterNames: []string{"sector"}}
	matched := map[string]string{}

	if _, err := r.Resolve(tpl, matched, entities.Entities{}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(matched) != 0 {
		t.Fatalf("input map mutated: %v", matched)
	}
}

func TestApplyDefaults(t *testing.T) {
	r := fixedResolver(nil)
	tpl := &templates.Template{
		ID:             "trend",
		ParameterNames: []string{"sector", "start_year", "end_year", "rank", "limit", "threshold"},
	}
	params := map[string]string{}
	r.ApplyDefaults(tpl, params)

	want := map[string]string{
		"sector":     "ALL",
		"start_year": "2024",
		"end_year":   "2026",
		"rank":       "1",
		"limit":      "10",
		"threshold":  "50000000000",
	}
	for name, value := range want {
		if params[name] != value {
			t.Fatalf("params[%q] = %q, want %q", name, params[name], value)
		}
	}
}

func TestResolveReportsUnresolved(t *testing.T) {
	r := fixedResolver(nil)
	tpl := &templates.Template{ID: "company_cik", ParameterNames: []string{"company"}}

	_, err := r.Resolve(tpl, map[string]string{}, entities.Entities{})
	if err == nil {
		t.Fatal("Resolve() expected error for unresolved company")
	}
	var unresolved *UnresolvedError
	if !errors.As(err, &unresolved) {
		t.Fatalf("error type = %T, want *UnresolvedError", err)
	}
	if len(unresolved.Missing) != 1 || unresolved.Missing[0] != "company" {
		t.Fatalf("Missing = %v, want [company]", unresolved.Missing)
	}
	if unresolved.TemplateID != "company_cik" {
		t.Fatalf("TemplateID = %q", unresolved.TemplateID)
	}
}

func TestApplyEntityOverridesCompanyAlias(t *testing.T) {
	r := fixedResolver(nil)
	params := map[string]string{"company": "Google"}
	r.ApplyEntityOverrides(params)
	if params["company"] != "alphabet" {
		t.Fatalf("company = %q, want alphabet", params["company"])
	}
}

func TestApplyEntityOverridesCanonicalizes(t *testing.T) {
	canon := refdata.NewCanonicalizer([]refdata.Company{
		{CIK: "1652044", Name: "ALPHABET INC"},
	})
	r := fixedResolver(canon)
	params := map[string]string{"company": "google"}
	r.ApplyEntityOverrides(params)
	if params["company"] != "ALPHABET INC" {
		t.Fatalf("company = %q, want ALPHABET INC", params["company"])
	}
}

func TestApplyEntityOverridesSector(t *testing.T) {
	r := fixedResolver(nil)

	tests := []struct {
		in   string
		want string
	}{
		{"every sector", "ALL"},
		{"which", "ALL"},
		{"tech", "Information Technology"},
		{"health care", "Health Care"},
		{"ALL", "ALL"},
	}
	for _, tt := range tests {
		params := map[string]string{"sector": tt.in}
		r.ApplyEntityOverrides(params)
		if params["sector"] != tt.want {
			t.Fatalf("sector %q = %q, want %q", tt.in, params["sector"], tt.want)
		}
	}
}

func TestFillMissingState(t *testing.T) {
	r := fixedResolver(nil)
	tpl := &templates.Template{ID: "state_filter", ParameterNames: []string{"state"}}
	params := map[string]string{}
	ents := entities.Entities{Companies: []string{"Delaware Holdings"}}

	r.FillMissing(tpl, params, ents)
	if params["state"] != "DE" {
		t.Fatalf("state = %q, want DE", params["state"])
	}
}
