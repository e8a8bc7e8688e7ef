package core

import "testing"

func TestGroupByDay(t *testing.T) {
	entries := []Entry{
		{Date: NewDate(2025, 1, 1), Type: Inflow, Description: "salary", Amount: Money{Cents: 10000}},
		{Date: NewDate(2025, 1, 2), Type: Outflow, Description: "bread", Amount: Money{Cents: 250}},
		{Date: NewDate(2025, 1, 1), Type: Outflow, Description: "rent", Amount: Money{Cents: 4000}},
	}
	days := GroupByDay(entries)
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].Date.String() != "2025-01-02" {
		t.Fatalf("expected newest day first, got %s", days[0].Date)
	}
	first := days[1]
	if first.Inflow.Cents != 10000 || first.Outflow.Cents != 4000 || first.Net() != 6000 {
		t.Fatalf("unexpected totals: %+v net=%d", first, first.Net())
	}
	if len(first.Entries) != 2 || first.Entries[0].Description != "salary" {
		t.Fatalf("unexpected entry order: %+v", first.Entries)
	}
}
