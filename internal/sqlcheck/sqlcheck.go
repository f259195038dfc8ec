// Package sqlcheck gates generated SQL before execution. Validation runs two
// stages: mandatory static structural checks and an optional semantic LLM
// judge. Every stage outcome is appended to the request's validation trail.
package sqlcheck

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/finquery/finquery/internal/entities"
	"github.com/finquery/finquery/internal/llm"
	"github.com/finquery/finquery/internal/observability"
	"github.com/finquery/finquery/internal/schema"
)

const (
	StageStatic   = "static"
	StageSemantic = "semantic"
)

// Record is one validation stage outcome. Records are appended, never
// overwritten.
type Record struct {
	Stage      string  `json:"stage"`
	Passed     bool    `json:"passed"`
	Skipped    bool    `json:"skipped,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Result is the terminal verdict for one candidate SQL string. When the
// semantic stage was skipped the SQL is accepted at confidence 0 and callers
// must treat that differently from a validated acceptance.
type Result struct {
	Accepted        bool
	Reason          string
	Confidence      float64
	SemanticSkipped bool
}

var disallowedKeywords = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE", "TRUNCATE", "MERGE",
}

var (
	cteHeadPattern  = regexp.MustCompile(`\bWITH\s+([A-Z_][A-Z0-9_]*)\s+AS`)
	cteChainPattern = regexp.MustCompile(`,\s*([A-Z_][A-Z0-9_]*)\s+AS`)
	// tableRefPattern captures comma-separated relation lists after FROM as
	// well as single references. Comma lists with aliases are not recognized
	// past the first relation; such queries fail the join rule conservatively.
	tableRefPattern = regexp.MustCompile(`\b(FROM|JOIN)\s+([A-Z0-9_".]+(?:\s*,\s*[A-Z0-9_".]+)*)`)
	numCIKPattern   = regexp.MustCompile(`\bNUM\.CIK\b`)
)

type Validator struct {
	client  llm.Client
	allowed map[string]bool
	logger  *slog.Logger
}

// New builds a validator. A nil client disables the semantic stage; it is
// then recorded as skipped rather than silently dropped.
func New(client llm.Client, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := map[string]bool{}
	for name := range schema.AllowedRelations() {
		allowed[strings.ToUpper(name)] = true
	}
	return &Validator{client: client, allowed: allowed, logger: logger}
}

// ValidateStatic runs the structural checks. It returns pass plus the reason
// for a rejection.
func (v *Validator) ValidateStatic(sql string) (bool, string) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return false, "SQL is empty"
	}
	upper := strings.ToUpper(trimmed)

	for _, keyword := range disallowedKeywords {
		if strings.Contains(upper, keyword) {
			return false, fmt.Sprintf("Disallowed keyword detected: %s", keyword)
		}
	}

	switch {
	case strings.HasPrefix(upper, "WITH"):
		if !strings.Contains(upper, "SELECT") {
			return false, "WITH queries must include a SELECT statement"
		}
	case strings.HasPrefix(upper, "SELECT"):
	default:
		return false, "SQL must start with SELECT or WITH"
	}

	if !strings.Contains(upper, "FROM") {
		return false, "SQL must include a FROM clause"
	}

	semicolons := strings.Count(trimmed, ";")
	if semicolons > 1 {
		return false, "Multiple SQL statements detected"
	}
	if semicolons == 1 {
		if trailing := strings.TrimSpace(trimmed[strings.IndexByte(trimmed, ';')+1:]); trailing != "" {
			return false, "Additional content found after semicolon"
		}
	}

	cteNames := map[string]bool{}
	for _, match := range cteHeadPattern.FindAllStringSubmatch(upper, -1) {
		cteNames[match[1]] = true
	}
	for _, match := range cteChainPattern.FindAllStringSubmatch(upper, -1) {
		cteNames[match[1]] = true
	}

	var referenced []string
	for _, match := range tableRefPattern.FindAllStringSubmatch(upper, -1) {
		for _, ref := range strings.Split(match[2], ",") {
			token := strings.ReplaceAll(strings.TrimSpace(ref), `"`, "")
			if token == "" {
				continue
			}
			if idx := strings.LastIndexByte(token, '.'); idx >= 0 {
				token = token[idx+1:]
			}
			referenced = append(referenced, token)
		}
	}

	unknown := map[string]bool{}
	for _, table := range referenced {
		if !v.allowed[table] && !cteNames[table] {
			unknown[table] = true
		}
	}
	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for name := range unknown {
			names = append(names, name)
		}
		sort.Strings(names)
		return false, fmt.Sprintf("Unknown tables referenced: %s", strings.Join(names, ", "))
	}

	refersNum := false
	refersSub := false
	for _, table := range referenced {
		if table == "NUM" {
			refersNum = true
		}
		if table == "SUB" {
			refersSub = true
		}
	}
	if refersNum && !refersSub {
		return false, "Queries referencing num must join through sub"
	}

	if strings.Contains(upper, "COMPANIES_WITH_SECTORS") {
		return false, "Use the companies view instead of companies_with_sectors"
	}
	if numCIKPattern.MatchString(upper) {
		return false, "num does not expose cik; join through sub for issuer details"
	}

	return true, ""
}

// Validate runs both stages and returns the terminal result plus the trail
// records produced for this candidate.
func (v *Validator) Validate(ctx context.Context, sql, question string, ents entities.Entities) (Result, []Record) {
	var records []Record

	staticPassed, staticReason := v.ValidateStatic(sql)
	records = append(records, Record{Stage: StageStatic, Passed: staticPassed, Reason: staticReason})
	if !staticPassed {
		v.logger.Warn("static sql validation failed", slog.String("reason", staticReason))
		observability.ObserveValidationRejection(StageStatic)
		return Result{Reason: staticReason}, records
	}

	if v.client == nil {
		records = append(records, Record{
			Stage:   StageSemantic,
			Skipped: true,
			Reason:  "semantic validation skipped (no LLM backend)",
		})
		return Result{Accepted: true, SemanticSkipped: true}, records
	}

	verdict, err := v.client.ValidateSQL(ctx, sql, question, ents, schema.Markdown())
	observability.ObserveLLMCall("sql_validation", err)
	if err != nil {
		// A failed semantic call is a rejection, not a silent pass.
		reason := fmt.Sprintf("semantic validation failed: %v", err)
		records = append(records, Record{Stage: StageSemantic, Reason: reason})
		observability.ObserveValidationRejection(StageSemantic)
		return Result{Reason: reason}, records
	}

	records = append(records, Record{
		Stage:      StageSemantic,
		Passed:     verdict.IsValid,
		Reason:     verdict.Reason,
		Confidence: verdict.Confidence,
	})
	if !verdict.IsValid {
		reason := verdict.Reason
		if reason == "" {
			reason = "semantic validator rejected the SQL"
		}
		v.logger.Info("semantic validator rejected sql", slog.String("reason", reason))
		observability.ObserveValidationRejection(StageSemantic)
		return Result{Reason: reason, Confidence: verdict.Confidence}, records
	}

	return Result{Accepted: true, Confidence: verdict.Confidence}, records
}
