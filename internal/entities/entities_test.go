package entities

import (
	"slices"
	"testing"
)

func TestExtractSectorCountQuestion(t *testing.T) {
	e := NewExtractor(nil)
	got := e.Extract("How many companies are in the Technology sector?")

	if got.QuestionType != QuestionCount {
		t.Fatalf("QuestionType = %q, want count", got.QuestionType)
	}
	if !slices.Contains(got.Sectors, "Information Technology") {
		t.Fatalf("Sectors = %v, want Information Technology", got.Sectors)
	}
	if got.Confidence <= 0.5 {
		t.Fatalf("Confidence = %v, want > 0.5", got.Confidence)
	}
}

func TestExtractCompanyLookup(t *testing.T) {
	e := NewExtractor(nil)
	got := e.Extract("What is Apple's CIK?")

	if got.QuestionType != QuestionLookup {
		t.Fatalf("QuestionType = %q, want lookup", got.QuestionType)
	}
	if !slices.Contains(got.Companies, "Apple") {
		t.Fatalf("Companies = %v, want Apple", got.Companies)
	}
	if !slices.Contains(got.Metrics, "CIK") {
		t.Fatalf("Metrics = %v, want CIK", got.Metrics)
	}
}

func TestExtractSkipsInterrogatives(t *testing.T) {
	e := NewExtractor(nil)
	got := e.Extract("Which companies had losses?")

	if slices.Contains(got.Companies, "Which") {
		t.Fatalf("Companies = %v, interrogative leaked through", got.Companies)
	}
}

func TestExtractKnownCompanyLowercase(t *testing.T) {
	e := NewExtractor(nil)
	got := e.Extract("show me revenue for nvidia")

	if !slices.Contains(got.Companies, "Nvidia") {
		t.Fatalf("Companies = %v, want Nvidia from the known list", got.Companies)
	}
}

func TestExtractTimePeriods(t *testing.T) {
	e := NewExtractor(nil)
	got := e.Extract("Compare Q2 2023 and FY 2021 results")

	for _, want := range []string{"2023", "2021", "Q2", "FY2021"} {
		if !slices.Contains(got.TimePeriods, want) {
			t.Fatalf("TimePeriods = %v, missing %q", got.TimePeriods, want)
		}
	}
	if got.QuestionType != QuestionComparison {
		t.Fatalf("QuestionType = %q, want comparison", got.QuestionType)
	}
}

func TestExtractEmptyQuestion(t *testing.T) {
	e := NewExtractor(nil)
	got := e.Extract("")

	if got.Confidence != 0.5 {
		t.Fatalf("Confidence = %v, want base 0.5", got.Confidence)
	}
	if got.QuestionType != QuestionLookup {
		t.Fatalf("QuestionType = %q, want lookup default", got.QuestionType)
	}
}

func TestNormalizeSector(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tech", "Information Technology"},
		{"Technology", "Information Technology"},
		{"healthcare", "Health Care"},
		{"finance", "Financials"},
		{"energy", "Energy"},
		{"frontier markets", "Frontier Markets"},
	}
	for _, tt := range tests {
		if got := NormalizeSector(tt.in); got != tt.want {
			t.Fatalf("NormalizeSector(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScoreConfidenceCaps(t *testing.T) {
	full := Entities{
		Companies:    []string{"Apple"},
		Metrics:      []string{"Revenue"},
		Sectors:      []string{"Information Technology"},
		TimePeriods:  []string{"2023"},
		QuestionType: QuestionCount,
	}
	if got := scoreConfidence(full); got != 1 {
		t.Fatalf("scoreConfidence(full) = %v, want capped at 1", got)
	}
}
