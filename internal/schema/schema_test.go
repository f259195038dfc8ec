package schema

import (
	"strings"
	"testing"
)

func TestTableNames(t *testing.T) {
	want := []string{"companies", "sub", "num", "tag", "pre"}
	got := TableNames()
	if len(got) != len(want) {
		t.Fatalf("len(TableNames()) = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("TableNames()[%d] = %q, want %q", i, got[i], name)
		}
	}
}

func TestAllowedRelations(t *testing.T) {
	allowed := AllowedRelations()
	for _, name := range TableNames() {
		if !allowed[name] {
			t.Fatalf("AllowedRelations() missing %q", name)
		}
	}
	if allowed["companies_with_sectors"] {
		t.Fatal("companies_with_sectors must not be an allowed relation")
	}
}

func TestTableByName(t *testing.T) {
	table, ok := TableByName("num")
	if !ok {
		t.Fatal("TableByName(num) not found")
	}
	if len(table.PrimaryKeys) != 4 {
		t.Fatalf("num primary keys = %v", table.PrimaryKeys)
	}
	if _, ok := TableByName("filings"); ok {
		t.Fatal("TableByName(filings) = true, want false")
	}
}

func TestTablesReturnsCopy(t *testing.T) {
	first := Tables()
	first[0].Name = "mutated"
	if Tables()[0].Name != "companies" {
		t.Fatal("Tables() exposed internal slice")
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown()
	for _, fragment := range []string{
		"### Core Tables",
		"### Join Guidance",
		"### Common Metric Tags",
		"num records do NOT include cik",
		"gics_sector",
		"NetIncomeLoss",
	} {
		if !strings.Contains(md, fragment) {
			t.Fatalf("Markdown() missing %q", fragment)
		}
	}
}

func TestCommonMetricTags(t *testing.T) {
	tags, ok := CommonMetricTags["revenue"]
	if !ok || len(tags) != 2 {
		t.Fatalf("revenue tags = %v", tags)
	}
	if tags[0] != "Revenues" {
		t.Fatalf("revenue tags[0] = %q", tags[0])
	}
}
