package templates

import (
	"regexp"
	"strconv"
	"strings"
)

// ExtractParameter applies the fixed heuristic for a parameter kind to the
// raw question text. The boolean reports whether a value was found; kinds
// with a built-in default (rank) always succeed.
func ExtractParameter(kind, question string) (string, bool) {
	switch kind {
	case "sector":
		return extractSector(question)
	case "company", "company_name":
		return extractCompanyName(question)
	case "threshold", "revenue_threshold", "asset_threshold", "value_threshold":
		return extractThreshold(question)
	case "currency":
		return extractCurrency(question)
	case "unit", "uom":
		return extractUnit(question)
	case "rank":
		return extractRank(question)
	case "state":
		return extractState(question)
	case "jurisdiction", "country":
		return extractJurisdiction(question)
	case "cik":
		return extractCIK(question)
	case "form", "form_type":
		return extractForm(question)
	case "keyword":
		return extractKeyword(question)
	case "flag", "abstract":
		return extractFlag(question)
	case "datatype":
		return extractDatatype(question)
	case "qtrs":
		return extractQtrs(question)
	case "limit":
		return extractLimit(question)
	case "fiscal_year", "year":
		return extractFiscalYear(question)
	case "fiscal_period":
		return extractFiscalPeriod(question)
	case "start_year":
		return extractYearBound(question, false)
	case "end_year":
		return extractYearBound(question, true)
	case "metric", "tag":
		return extractMetric(question)
	case "time_period":
		return extractTimePeriod(question)
	default:
		return "", false
	}
}

var (
	sectorPrepositionPattern = regexp.MustCompile(`(?i)\b(?:in|from)\s+(?:the\s+)?([\w ]+?)\s+(?:sector|industry)\b`)
	sectorBarePattern        = regexp.MustCompile(`(?i)\b([\w ]+?)\s+(?:sector|industry)\b`)
)

var sectorStopwords = map[string]bool{
	"how": true, "many": true, "companies": true, "firms": true,
	"corporations": true, "in": true, "from": true, "the": true, "of": true,
	"are": true, "there": true, "list": true, "all": true, "which": true,
	"what": true, "is": true, "a": true,
}

func extractSector(question string) (string, bool) {
	for _, pattern := range []*regexp.Regexp{sectorPrepositionPattern, sectorBarePattern} {
		match := pattern.FindStringSubmatch(question)
		if match == nil {
			continue
		}
		words := strings.Fields(match[1])
		for len(words) > 0 && sectorStopwords[strings.ToLower(words[0])] {
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		return strings.Join(words, " "), true
	}
	return "", false
}

var companyStopwords = map[string]bool{
	"what": true, "is": true, "are": true, "the": true, "sector": true,
	"cik": true, "does": true, "belong": true, "to": true, "in": true,
	"of": true, "for": true, "s": true, "whats": true, "a": true,
}

var punctuationPattern = regexp.MustCompile(`[?!.,;:]`)

func extractCompanyName(question string) (string, bool) {
	cleaned := punctuationPattern.ReplaceAllString(strings.ToLower(question), "")
	var kept []string
	for _, word := range strings.Fields(cleaned) {
		word = strings.TrimSuffix(word, "'s")
		word = strings.TrimSuffix(word, "'")
		if word == "" || companyStopwords[word] {
			continue
		}
		kept = append(kept, word)
		if len(kept) == 3 {
			break
		}
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " "), true
}

var thresholdPattern = regexp.MustCompile(`(?i)\$?\s*([0-9]+(?:\.[0-9]+)?)\s*(billion|bn|million|mm|thousand|k|m|%)?`)

func extractThreshold(question string) (string, bool) {
	match := thresholdPattern.FindStringSubmatch(question)
	if match == nil {
		return "", false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(match[2]) {
	case "billion", "bn":
		value *= 1e9
	case "million", "mm", "m":
		value *= 1e6
	case "thousand", "k":
		value *= 1e3
	}
	return strconv.FormatFloat(value, 'f', -1, 64), true
}

// currencySynonyms lists longer phrases first so "us dollars" beats "dollars".
var currencySynonyms = []struct {
	phrase string
	code   string
}{
	{"us dollars", "USD"},
	{"u.s. dollars", "USD"},
	{"dollars", "USD"},
	{"dollar", "USD"},
	{"usd", "USD"},
	{"euros", "EUR"},
	{"euro", "EUR"},
	{"eur", "EUR"},
	{"pounds sterling", "GBP"},
	{"pounds", "GBP"},
	{"gbp", "GBP"},
	{"yen", "JPY"},
	{"jpy", "JPY"},
	{"canadian dollars", "CAD"},
	{"cad", "CAD"},
}

func extractCurrency(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, synonym := range currencySynonyms {
		if containsWord(lower, synonym.phrase) {
			return synonym.code, true
		}
	}
	return "", false
}

var unitSynonyms = []struct {
	phrase string
	unit   string
}{
	{"shares", "shares"},
	{"share", "shares"},
	{"us dollars", "USD"},
	{"dollars", "USD"},
	{"usd", "USD"},
	{"percentage", "pure"},
	{"percent", "pure"},
	{"ratio", "pure"},
}

func extractUnit(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, synonym := range unitSynonyms {
		if containsWord(lower, synonym.phrase) {
			return synonym.unit, true
		}
	}
	return "", false
}

var ordinals = []struct {
	word string
	rank string
}{
	{"tenth", "10"}, {"ninth", "9"}, {"eighth", "8"}, {"seventh", "7"},
	{"sixth", "6"}, {"fifth", "5"}, {"fourth", "4"}, {"third", "3"},
	{"second", "2"}, {"first", "1"}, {"largest", "1"}, {"biggest", "1"},
	{"highest", "1"}, {"top", "1"},
}

var ordinalDigitPattern = regexp.MustCompile(`(?i)\b([0-9]+)(?:st|nd|rd|th)\b`)

func extractRank(question string) (string, bool) {
	if match := ordinalDigitPattern.FindStringSubmatch(question); match != nil {
		return match[1], true
	}
	lower := strings.ToLower(question)
	for _, ordinal := range ordinals {
		if containsWord(lower, ordinal.word) {
			return ordinal.rank, true
		}
	}
	// Rank carries a built-in default when the template declares it.
	return "1", true
}

var stateNames = []struct {
	name string
	code string
}{
	{"district of columbia", "DC"},
	{"west virginia", "WV"},
	{"south carolina", "SC"},
	{"south dakota", "SD"},
	{"north carolina", "NC"},
	{"north dakota", "ND"},
	{"new hampshire", "NH"},
	{"new jersey", "NJ"},
	{"new mexico", "NM"},
	{"new york", "NY"},
	{"rhode island", "RI"},
	{"massachusetts", "MA"},
	{"pennsylvania", "PA"},
	{"connecticut", "CT"},
	{"mississippi", "MS"},
	{"washington", "WA"},
	{"california", "CA"},
	{"minnesota", "MN"},
	{"wisconsin", "WI"},
	{"tennessee", "TN"},
	{"louisiana", "LA"},
	{"kentucky", "KY"},
	{"nebraska", "NE"},
	{"oklahoma", "OK"},
	{"colorado", "CO"},
	{"delaware", "DE"},
	{"illinois", "IL"},
	{"arkansas", "AR"},
	{"maryland", "MD"},
	{"michigan", "MI"},
	{"missouri", "MO"},
	{"virginia", "VA"},
	{"alabama", "AL"},
	{"arizona", "AZ"},
	{"florida", "FL"},
	{"georgia", "GA"},
	{"indiana", "IN"},
	{"montana", "MT"},
	{"vermont", "VT"},
	{"wyoming", "WY"},
	{"alaska", "AK"},
	{"hawaii", "HI"},
	{"kansas", "KS"},
	{"nevada", "NV"},
	{"oregon", "OR"},
	{"idaho", "ID"},
	{"maine", "ME"},
	{"texas", "TX"},
	{"iowa", "IA"},
	{"ohio", "OH"},
	{"utah", "UT"},
}

var stateCodes = func() map[string]bool {
	codes := make(map[string]bool, len(stateNames))
	for _, state := range stateNames {
		codes[state.code] = true
	}
	return codes
}()

var upperTokenPattern = regexp.MustCompile(`\b([A-Z]{2})\b`)

func extractState(question string) (string, bool) {
	lower := strings.ToLower(question)
	// Names are ordered longest first so "West Virginia" is not read as
	// "Virginia".
	for _, state := range stateNames {
		if containsWord(lower, state.name) {
			return state.code, true
		}
	}
	for _, match := range upperTokenPattern.FindAllString(question, -1) {
		if stateCodes[match] {
			return match, true
		}
	}
	return "", false
}

var countryNames = []struct {
	name string
	code string
}{
	{"united states of america", "US"},
	{"united states", "US"},
	{"united kingdom", "GB"},
	{"south korea", "KR"},
	{"netherlands", "NL"},
	{"switzerland", "CH"},
	{"singapore", "SG"},
	{"australia", "AU"},
	{"germany", "DE"},
	{"bermuda", "BM"},
	{"ireland", "IE"},
	{"britain", "GB"},
	{"america", "US"},
	{"canada", "CA"},
	{"france", "FR"},
	{"israel", "IL"},
	{"japan", "JP"},
	{"china", "CN"},
	{"india", "IN"},
}

func extractJurisdiction(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, country := range countryNames {
		if containsWord(lower, country.name) {
			return country.code, true
		}
	}
	return "", false
}

var cikPattern = regexp.MustCompile(`\b([0-9]{4,10})\b`)

func extractCIK(question string) (string, bool) {
	match := cikPattern.FindStringSubmatch(question)
	if match == nil {
		return "", false
	}
	return match[1], true
}

var knownForms = []string{"10-K", "10-Q", "8-K", "20-F", "6-K", "S-1", "DEF 14A"}

func extractForm(question string) (string, bool) {
	upper := strings.ToUpper(question)
	for _, form := range knownForms {
		if strings.Contains(upper, form) {
			return form, true
		}
	}
	return "", false
}

var (
	quotedPattern  = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	keywordPattern = regexp.MustCompile(`(?i)\b(?:containing|mentioning|about|matching)\s+(\w+(?:\s+\w+){0,2})`)
)

func extractKeyword(question string) (string, bool) {
	if match := quotedPattern.FindStringSubmatch(question); match != nil {
		if match[1] != "" {
			return match[1], true
		}
		return match[2], true
	}
	if match := keywordPattern.FindStringSubmatch(question); match != nil {
		return match[1], true
	}
	return "", false
}

func extractFlag(question string) (string, bool) {
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "non-abstract") || strings.Contains(lower, "concrete"):
		return "N", true
	case strings.Contains(lower, "abstract"):
		return "Y", true
	}
	return "", false
}

var knownDatatypes = []string{"monetary", "shares", "percent", "pure", "decimal", "text"}

func extractDatatype(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, datatype := range knownDatatypes {
		if containsWord(lower, datatype) {
			return datatype, true
		}
	}
	return "", false
}

func extractQtrs(question string) (string, bool) {
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "annual") || strings.Contains(lower, "yearly") || strings.Contains(lower, "full year"):
		return "0", true
	case strings.Contains(lower, "quarterly") || strings.Contains(lower, "quarter"):
		return "1", true
	}
	return "", false
}

var limitPattern = regexp.MustCompile(`(?i)\b(?:top|first|limit)\s+([0-9]+)\b`)

func extractLimit(question string) (string, bool) {
	match := limitPattern.FindStringSubmatch(question)
	if match == nil {
		return "", false
	}
	return match[1], true
}

var (
	fiscalYearPattern = regexp.MustCompile(`(?i)\bfy\s*((?:19|20)\d{2})\b`)
	plainYearPattern  = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	quarterTokenRE    = regexp.MustCompile(`(?i)\b(q[1-4])\b`)
)

func extractFiscalYear(question string) (string, bool) {
	if match := fiscalYearPattern.FindStringSubmatch(question); match != nil {
		return match[1], true
	}
	if match := plainYearPattern.FindStringSubmatch(question); match != nil {
		return match[1], true
	}
	return "", false
}

func extractFiscalPeriod(question string) (string, bool) {
	if match := quarterTokenRE.FindStringSubmatch(question); match != nil {
		return strings.ToUpper(match[1]), true
	}
	lower := strings.ToLower(question)
	if strings.Contains(lower, "annual") || strings.Contains(lower, "fiscal year") || strings.Contains(lower, "full year") {
		return "FY", true
	}
	return "", false
}

func extractYearBound(question string, wantLatest bool) (string, bool) {
	years := plainYearPattern.FindAllString(question, -1)
	if len(years) == 0 {
		return "", false
	}
	best := years[0]
	for _, year := range years[1:] {
		if (wantLatest && year > best) || (!wantLatest && year < best) {
			best = year
		}
	}
	return best, true
}

// metricSynonyms maps question phrasing to the primary XBRL tag, longer
// phrases first.
var metricSynonyms = []struct {
	phrase string
	tag    string
}{
	{"operating income", "OperatingIncomeLoss"},
	{"operating cash flow", "NetCashProvidedByUsedInOperatingActivities"},
	{"stockholders equity", "StockholdersEquity"},
	{"shareholders equity", "StockholdersEquity"},
	{"current liabilities", "LiabilitiesCurrent"},
	{"current assets", "AssetsCurrent"},
	{"net income", "NetIncomeLoss"},
	{"long term debt", "LongTermDebt"},
	{"revenues", "Revenues"},
	{"revenue", "Revenues"},
	{"earnings", "NetIncomeLoss"},
	{"profit", "NetIncomeLoss"},
	{"equity", "StockholdersEquity"},
	{"assets", "Assets"},
	{"sales", "Revenues"},
	{"debt", "LongTermDebt"},
}

func extractMetric(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, synonym := range metricSynonyms {
		if containsWord(lower, synonym.phrase) {
			return synonym.tag, true
		}
	}
	return "", false
}

func extractTimePeriod(question string) (string, bool) {
	if match := quarterTokenRE.FindStringSubmatch(question); match != nil {
		return strings.ToUpper(match[1]), true
	}
	if match := plainYearPattern.FindStringSubmatch(question); match != nil {
		return match[1], true
	}
	return "", false
}

// containsWord reports whether phrase appears in text on word boundaries.
func containsWord(text, phrase string) bool {
	idx := 0
	for {
		found := strings.Index(text[idx:], phrase)
		if found < 0 {
			return false
		}
		start := idx + found
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
