// Package entities extracts companies, metrics, sectors and time periods from
// natural language questions using deterministic pattern matching. Extraction
// never fails; a question with no recognizable entities yields an empty record
// at base confidence.
package entities

import (
	"log/slog"
	"regexp"
	"strings"
)

type QuestionType string

const (
	QuestionCount      QuestionType = "count"
	QuestionLookup     QuestionType = "lookup"
	QuestionComparison QuestionType = "comparison"
	QuestionTrend      QuestionType = "trend"
)

// Entities is the input contract of the resolution pipeline.
type Entities struct {
	Companies    []string     `json:"companies"`
	Metrics      []string     `json:"metrics"`
	Sectors      []string     `json:"sectors"`
	TimePeriods  []string     `json:"time_periods"`
	QuestionType QuestionType `json:"question_type"`
	Confidence   float64      `json:"confidence"`
}

// sectorSynonyms maps question phrasing to GICS sector names. Longer phrases
// are listed before their substrings so the first hit is the most specific.
var sectorSynonyms = []struct {
	phrase string
	sector string
}{
	{"information technology", "Information Technology"},
	{"technology", "Information Technology"},
	{"tech", "Information Technology"},
	{"health care", "Health Care"},
	{"healthcare", "Health Care"},
	{"health", "Health Care"},
	{"financial services", "Financials"},
	{"financials", "Financials"},
	{"finance", "Financials"},
	{"consumer discretionary", "Consumer Discretionary"},
	{"discretionary", "Consumer Discretionary"},
	{"communication services", "Communication Services"},
	{"communications", "Communication Services"},
	{"telecom", "Communication Services"},
	{"industrials", "Industrials"},
	{"industrial", "Industrials"},
	{"consumer staples", "Consumer Staples"},
	{"staples", "Consumer Staples"},
	{"energy", "Energy"},
	{"utilities", "Utilities"},
	{"real estate", "Real Estate"},
	{"materials", "Materials"},
}

var knownMetrics = []string{
	"cik", "revenue", "assets", "liabilities", "equity", "profit", "loss",
	"income", "earnings", "cash", "debt", "sector", "industry", "gics",
}

var questionTypeIndicators = []struct {
	qtype      QuestionType
	indicators []string
}{
	{QuestionCount, []string{"how many", "count", "number of"}},
	{QuestionComparison, []string{"compare", "versus", "vs", "difference between"}},
	{QuestionTrend, []string{"trend", "over time", "growth", "change"}},
	{QuestionLookup, []string{"what is", "what are", "get", "find", "show me"}},
}

var commonCompanies = []string{
	"apple", "microsoft", "google", "alphabet", "amazon", "meta", "facebook",
	"tesla", "nvidia", "netflix", "jpmorgan", "jp morgan", "goldman sachs",
	"bank of america", "wells fargo", "walmart", "target", "costco", "exxon",
	"chevron", "pfizer", "johnson & johnson", "merck",
}

var (
	capitalizedRun = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*(?:\s+Inc\.?|\s+Corp\.?|\s+Corporation)?)\b`)
	yearPattern    = regexp.MustCompile(`\b(20\d{2}|19\d{2})\b`)
	quarterPattern = regexp.MustCompile(`(?i)\b(Q[1-4])\b`)
	fiscalPattern  = regexp.MustCompile(`(?i)\b(FY\s*20\d{2})\b`)
)

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Extract(question string) Entities {
	lower := strings.ToLower(strings.TrimSpace(question))

	entities := Entities{
		Companies:    extractCompanies(question),
		Metrics:      extractMetrics(lower),
		Sectors:      extractSectors(lower),
		TimePeriods:  extractTimePeriods(question),
		QuestionType: determineQuestionType(lower),
	}
	entities.Confidence = scoreConfidence(entities)

	e.logger.Debug("extracted entities",
		slog.Int("companies", len(entities.Companies)),
		slog.Int("metrics", len(entities.Metrics)),
		slog.Int("sectors", len(entities.Sectors)),
		slog.Float64("confidence", entities.Confidence),
	)
	return entities
}

var interrogatives = map[string]bool{
	"what": true, "which": true, "when": true,
	"where": true, "who": true, "how": true,
}

func extractCompanies(question string) []string {
	var companies []string
	seen := map[string]bool{}

	for _, match := range capitalizedRun.FindAllString(question, -1) {
		if interrogatives[strings.ToLower(match)] {
			continue
		}
		if !seen[match] {
			seen[match] = true
			companies = append(companies, match)
		}
	}

	lower := strings.ToLower(question)
	for _, company := range commonCompanies {
		if !strings.Contains(lower, company) {
			continue
		}
		capitalized := titleCase(company)
		if !seen[capitalized] {
			seen[capitalized] = true
			companies = append(companies, capitalized)
		}
	}
	return companies
}

func extractMetrics(lower string) []string {
	var metrics []string
	for _, metric := range knownMetrics {
		if !strings.Contains(lower, metric) {
			continue
		}
		if metric == "cik" {
			metrics = append(metrics, "CIK")
		} else {
			metrics = append(metrics, titleCase(metric))
		}
	}
	return metrics
}

func extractSectors(lower string) []string {
	var sectors []string
	seen := map[string]bool{}
	for _, synonym := range sectorSynonyms {
		if !strings.Contains(lower, synonym.phrase) {
			continue
		}
		if !seen[synonym.sector] {
			seen[synonym.sector] = true
			sectors = append(sectors, synonym.sector)
		}
	}
	return sectors
}

// NormalizeSector maps a free-text sector phrase to its GICS name. Unknown
// phrases are returned title cased.
func NormalizeSector(sector string) string {
	lower := strings.ToLower(strings.TrimSpace(sector))
	for _, synonym := range sectorSynonyms {
		if synonym.phrase == lower {
			return synonym.sector
		}
	}
	return titleCase(lower)
}

func extractTimePeriods(question string) []string {
	var periods []string
	seen := map[string]bool{}
	add := func(value string) {
		if !seen[value] {
			seen[value] = true
			periods = append(periods, value)
		}
	}
	for _, year := range yearPattern.FindAllString(question, -1) {
		add(year)
	}
	for _, quarter := range quarterPattern.FindAllString(question, -1) {
		add(strings.ToUpper(quarter))
	}
	for _, fy := range fiscalPattern.FindAllString(question, -1) {
		add(strings.ToUpper(strings.ReplaceAll(fy, " ", "")))
	}
	return periods
}

func determineQuestionType(lower string) QuestionType {
	for _, entry := range questionTypeIndicators {
		for _, indicator := range entry.indicators {
			if strings.Contains(lower, indicator) {
				return entry.qtype
			}
		}
	}
	return QuestionLookup
}

func scoreConfidence(entities Entities) float64 {
	confidence := 0.5
	if len(entities.Companies) > 0 {
		confidence += 0.15
	}
	if len(entities.Metrics) > 0 {
		confidence += 0.15
	}
	if len(entities.Sectors) > 0 {
		confidence += 0.1
	}
	if len(entities.TimePeriods) > 0 {
		confidence += 0.05
	}
	if entities.QuestionType != QuestionLookup {
		confidence += 0.05
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func titleCase(phrase string) string {
	words := strings.Fields(phrase)
	for i, word := range words {
		if word == "&" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
