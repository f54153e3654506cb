package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMonthKeyNavigation(t *testing.T) {
	k, err := ParseMonthKey("2024-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := k.AddMonths(-1); got != "2023-12" {
		t.Fatalf("prev = %s", got)
	}
	if got := k.AddMonths(13); got != "2025-02" {
		t.Fatalf("+13 = %s", got)
	}
	if k.Title() != "janeiro de 2024" {
		t.Fatalf("title = %q", k.Title())
	}
	for _, bad := range []string{"", "2024-13", "2024-1", "24-01", "abcd-ef"} {
		if _, err := ParseMonthKey(bad); err == nil {
			t.Errorf("%q expected error", bad)
		}
	}
}

func TestViewStateTransitionsClearAdvice(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	v := NewViewState(now).WithAdvice("gaste menos")

	next := v.Next()
	if next.Month != "2024-04" || next.Advice != "" {
		t.Fatalf("next = %+v", next)
	}
	if v.Advice != "gaste menos" || v.Month != "2024-03" {
		t.Fatalf("receiver mutated: %+v", v)
	}
	if prev := v.Prev(); prev.Month != "2024-02" || prev.Advice != "" {
		t.Fatalf("prev = %+v", prev)
	}
	if same := v.Reset(now); same.Advice != "gaste menos" {
		t.Fatalf("reset to same month should keep advice: %+v", same)
	}
	if back := next.Next().Reset(now); back.Month != "2024-03" {
		t.Fatalf("reset = %+v", back)
	}
}

func TestBuildMonthView(t *testing.T) {
	entries := []BudgetEntry{
		entry("rent", Expense, 150000, CategoryMonthly, "2024-01"),
		entry("salary", Income, 500000, CategorySalary, "2024-02"),
		entry("cinema", Expense, 4000, CategoryLeisure, "2024-02"),
	}
	v := BuildMonthView(entries, "2024-02")
	if len(v.Entries) != 3 {
		t.Fatalf("entries = %d", len(v.Entries))
	}
	if v.Summary.TotalExpenses.Cents != 154000 || v.Summary.Balance.Cents != 346000 {
		t.Fatalf("summary = %+v", v.Summary)
	}
	if len(v.Breakdown) != 2 {
		t.Fatalf("breakdown = %+v", v.Breakdown)
	}
}

func TestEntryValidate(t *testing.T) {
	good := entry("ok", Expense, 100, CategoryFood, "2024-01")
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []BudgetEntry{
		{Description: " ", Amount: Money{Cents: 1}, Type: Expense, Category: CategoryFood, MonthKey: "2024-01"},
		{Description: "a", Amount: Money{Cents: -1}, Type: Expense, Category: CategoryFood, MonthKey: "2024-01"},
		{Description: "a", Amount: Money{Cents: 1}, Type: "LOAN", Category: CategoryFood, MonthKey: "2024-01"},
		{Description: "a", Amount: Money{Cents: 1}, Type: Expense, Category: "Pets", MonthKey: "2024-01"},
		{Description: "a", Amount: Money{Cents: 1}, Type: Expense, Category: CategoryFood, MonthKey: "January"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestEntryValidateDescriptionLength(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want error
	}{
		{"ascii at limit", strings.Repeat("a", MaxDescriptionLength), nil},
		{"multibyte at limit", strings.Repeat("ç", MaxDescriptionLength), nil},
		{"multibyte over limit", strings.Repeat("ç", MaxDescriptionLength+1), ErrDescriptionTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entry(tt.desc, Expense, 100, CategoryFood, "2024-01")
			if err := e.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}
