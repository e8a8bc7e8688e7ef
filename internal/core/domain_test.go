package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2025-03-09" {
		t.Fatalf("round trip mismatch: %s", d)
	}
	if _, err := ParseDate("09/03/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestParseFlowType(t *testing.T) {
	cases := []struct {
		in   string
		want FlowType
		ok   bool
	}{
		{"inflow", Inflow, true},
		{"Outflow", Outflow, true},
		{" OUTFLOW ", Outflow, true},
		{"income", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFlowType(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidFlowType) {
			t.Fatalf("%q expected ErrInvalidFlowType, got %v", tc.in, err)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestEntryValidate(t *testing.T) {
	good := Entry{
		Date:        NewDate(2025, 1, 1),
		Type:        Inflow,
		Description: "ok",
		Amount:      Money{Cents: 100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Entry{
		{Date: Date{}, Type: Inflow, Description: "a", Amount: Money{Cents: 1}}, // zero date
		{Date: NewDate(2025, 1, 1), Type: "sideways", Description: "a", Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1), Type: Outflow, Description: "  ", Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1), Type: Outflow, Description: "a", Amount: Money{Cents: 0}},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEntrySigned(t *testing.T) {
	in := Entry{Type: Inflow, Amount: Money{Cents: 250}}
	out := Entry{Type: Outflow, Amount: Money{Cents: 250}}
	if in.Signed() != 250 || out.Signed() != -250 {
		t.Fatalf("unexpected signed values: %d %d", in.Signed(), out.Signed())
	}
}
