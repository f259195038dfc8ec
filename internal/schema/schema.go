// Package schema describes the analytical relations exposed to generated SQL.
// It backs both the validator's relation whitelist and the markdown summaries
// embedded in LLM prompts.
package schema

import (
	"fmt"
	"strings"
)

type Column struct {
	Name        string
	Description string
}

type Table struct {
	Name          string
	Description   string
	Columns       []Column
	PrimaryKeys   []string
	SampleFilters []string
}

var tables = []Table{
	{
		Name:        "companies",
		Description: "S&P 500 reference data with sector and incorporation details.",
		Columns: []Column{
			{"cik", "Unique SEC issuer identifier (10 digit string)."},
			{"name", "Canonical company name (uppercase)."},
			{"sic", "SIC industry code (nullable)."},
			{"countryinc", "Country of incorporation."},
			{"gics_sector", "GICS sector classification."},
		},
		PrimaryKeys: []string{"cik"},
		SampleFilters: []string{
			"gics_sector = 'Information Technology'",
			"name LIKE '%APPLE%'",
		},
	},
	{
		Name:        "sub",
		Description: "SEC submission metadata for 10-K/10-Q filings.",
		Columns: []Column{
			{"adsh", "Accession number for the filing."},
			{"cik", "Issuer CIK for the filing."},
			{"form", "SEC form type (10-K, 10-Q, etc.)."},
			{"period", "Reporting period end date (TIMESTAMP)."},
			{"fy", "Fiscal year (integer)."},
			{"fp", "Fiscal period (FY, Q1, Q2, Q3, Q4)."},
			{"stprba", "Headquarters state / province."},
			{"countryba", "Headquarters country."},
			{"stprinc", "Incorporation state / province."},
			{"filed", "Date filing was submitted."},
		},
		PrimaryKeys: []string{"adsh"},
		SampleFilters: []string{
			"form = '10-K'",
			"fy >= 2020",
		},
	},
	{
		Name:        "num",
		Description: "Numeric XBRL facts (financial metrics).",
		Columns: []Column{
			{"adsh", "Accession number linking to sub."},
			{"tag", "XBRL concept name (e.g. Revenues)."},
			{"version", "Taxonomy version for the tag."},
			{"ddate", "Date the fact applies to."},
			{"qtrs", "Number of quarters represented (0 = annual)."},
			{"uom", "Unit of measure."},
			{"value", "Numeric value (DOUBLE)."},
			{"footnote", "Associated footnote if present."},
		},
		PrimaryKeys: []string{"adsh", "tag", "ddate", "qtrs"},
		SampleFilters: []string{
			"tag IN ('Revenues', 'NetIncomeLoss')",
			"qtrs IN (0, 1)",
		},
	},
	{
		Name:        "tag",
		Description: "XBRL taxonomy metadata describing available tags.",
		Columns: []Column{
			{"tag", "Canonical tag name."},
			{"version", "Taxonomy version."},
			{"datatype", "Underlying data type."},
			{"abstract", "Whether this tag is abstract (Y/N)."},
			{"description", "Long-form tag description (if present)."},
		},
		PrimaryKeys: []string{"tag", "version"},
	},
	{
		Name:        "pre",
		Description: "Presentation linkbase for statements (line ordering).",
		Columns: []Column{
			{"adsh", "Accession number."},
			{"stmt", "Statement identifier (e.g. BS, IS, CF)."},
			{"line", "Line number within the statement."},
			{"tag", "Tag used on the statement line."},
			{"plabel", "Presentation label."},
		},
		PrimaryKeys: []string{"adsh", "stmt", "line"},
	},
}

const JoinGuidance = `- companies <-> sub: join on companies.cik = sub.cik
- sub <-> num: join on sub.adsh = num.adsh
- sub <-> pre: join on sub.adsh = pre.adsh
- num records do NOT include cik; you must join through sub
- When you need a CIK in results, select sub.cik (or join to companies), never reference num.cik
- For annual values use num.qtrs = 0; for quarterly values use num.qtrs = 1`

// CommonMetricTags maps friendly metric names to the XBRL tags that carry them.
var CommonMetricTags = map[string][]string{
	"revenue":             {"Revenues", "SalesRevenueNet"},
	"net_income":          {"NetIncomeLoss"},
	"assets":              {"Assets"},
	"equity":              {"StockholdersEquity"},
	"current_assets":      {"AssetsCurrent"},
	"current_liabilities": {"LiabilitiesCurrent"},
	"debt":                {"LongTermDebt", "DebtCurrent"},
	"operating_income":    {"OperatingIncomeLoss"},
	"cash_flow_operating": {"NetCashProvidedByUsedInOperatingActivities"},
}

func Tables() []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

func TableNames() []string {
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
	}
	return names
}

// AllowedRelations returns the set of relations generated SQL may reference.
func AllowedRelations() map[string]bool {
	allowed := make(map[string]bool, len(tables))
	for _, table := range tables {
		allowed[table.Name] = true
	}
	return allowed
}

func TableByName(name string) (Table, bool) {
	for _, table := range tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}

func renderTable(table Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- **%s**: %s\n", table.Name, table.Description)
	pk := "n/a"
	if len(table.PrimaryKeys) > 0 {
		pk = strings.Join(table.PrimaryKeys, ", ")
	}
	fmt.Fprintf(&b, "  Primary keys: %s\n", pk)
	b.WriteString("  Columns:\n")
	for _, col := range table.Columns {
		fmt.Fprintf(&b, "    - `%s`: %s\n", col.Name, col.Description)
	}
	if len(table.SampleFilters) > 0 {
		b.WriteString("  Sample filters:\n")
		for _, filter := range table.SampleFilters {
			fmt.Fprintf(&b, "    - `%s`\n", filter)
		}
	}
	return b.String()
}

// Markdown returns a prompt-friendly summary of the core schema.
func Markdown() string {
	var b strings.Builder
	b.WriteString("### Core Tables\n")
	for _, table := range tables {
		b.WriteString(renderTable(table))
	}
	b.WriteString("### Join Guidance\n")
	b.WriteString(JoinGuidance)
	b.WriteString("\n\n### Common Metric Tags\n")
	for _, metric := range []string{
		"revenue", "net_income", "assets", "equity", "current_assets",
		"current_liabilities", "debt", "operating_income", "cash_flow_operating",
	} {
		fmt.Fprintf(&b, "- **%s**: %s\n", metric, strings.Join(CommonMetricTags[metric], ", "))
	}
	return b.String()
}
