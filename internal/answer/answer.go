// Package answer renders query results into short natural-language answers.
// Formatting is deterministic: the phrasing is chosen from the question type
// and the shape of the result, never from a model.
package answer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/finquery/finquery/internal/engine"
	"github.com/finquery/finquery/internal/entities"
)

// Format produces the answer text for one executed query.
func Format(result engine.Result, ents entities.Entities) string {
	switch ents.QuestionType {
	case entities.QuestionCount:
		return formatCount(result, ents)
	case entities.QuestionLookup:
		return formatLookup(result, ents)
	default:
		return formatGeneric(result)
	}
}

func formatCount(result engine.Result, ents entities.Entities) string {
	if len(result.Rows) == 0 {
		return "No results found."
	}
	row := result.Rows[0]

	count := 0
	countIdx := -1
	for i, value := range row {
		if n, ok := asInt(value); ok {
			count = n
			countIdx = i
			break
		}
	}

	if len(ents.Sectors) > 0 {
		return fmt.Sprintf("There are %d companies in the %s sector.", count, ents.Sectors[0])
	}
	for i, value := range row {
		if i == countIdx {
			continue
		}
		if label, ok := value.(string); ok && strings.TrimSpace(label) != "" {
			return fmt.Sprintf("%s has %d matching records.", strings.TrimSpace(label), count)
		}
	}
	return fmt.Sprintf("Count: %d", count)
}

func formatLookup(result engine.Result, ents entities.Entities) string {
	if len(result.Rows) == 0 {
		if len(ents.Companies) > 0 {
			return fmt.Sprintf("Could not find information for %s.", ents.Companies[0])
		}
		return "No results found."
	}
	row := result.Rows[0]

	columns := map[string]int{}
	for i, name := range result.Columns {
		columns[strings.ToLower(name)] = i
	}

	companyName := ""
	if idx, ok := columns["name"]; ok {
		if name, ok := row[idx].(string); ok {
			companyName = name
		}
	}
	if companyName == "" {
		if len(ents.Companies) > 0 {
			companyName = ents.Companies[0]
		} else {
			companyName = "Company"
		}
	}

	if idx, ok := columns["cik"]; ok {
		return fmt.Sprintf("%s's CIK is %s.", companyName, stringify(row[idx]))
	}
	if idx, ok := columns["gics_sector"]; ok {
		return fmt.Sprintf("%s is in the %s sector.", companyName, stringify(row[idx]))
	}
	return formatGeneric(result)
}

func formatGeneric(result engine.Result) string {
	if len(result.Rows) == 0 {
		return "No results found."
	}
	if len(result.Rows) == 1 {
		parts := make([]string, 0, len(result.Columns))
		for i, column := range result.Columns {
			parts = append(parts, fmt.Sprintf("%s: %s", column, stringify(result.Rows[0][i])))
		}
		return strings.Join(parts, " | ")
	}

	preview := result.Rows
	if len(preview) > 5 {
		preview = preview[:5]
	}
	lines := make([]string, 0, len(preview))
	for _, row := range preview {
		parts := make([]string, 0, len(result.Columns))
		for i, column := range result.Columns {
			parts = append(parts, fmt.Sprintf("%s: %s", column, stringify(row[i])))
		}
		lines = append(lines, "- "+strings.Join(parts, " | "))
	}
	return fmt.Sprintf("Found %d results. Sample:\n%s", len(result.Rows), strings.Join(lines, "\n"))
}

func asInt(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int32:
		return int(typed), true
	case int64:
		return int(typed), true
	case uint32:
		return int(typed), true
	case uint64:
		return int(typed), true
	case float32:
		return int(typed), true
	case float64:
		return int(typed), true
	case string:
		if n, err := strconv.ParseFloat(typed, 64); err == nil {
			return int(n), true
		}
	}
	return 0, false
}

func stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
