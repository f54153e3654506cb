package memory

import (
	"context"
	"testing"

	"orcamento/internal/core"
)

func TestStore_WriteMonthReplacesTab(t *testing.T) {
	s := New("Orçamento", nil)
	ctx := context.Background()

	first := core.BuildMonthView([]core.BudgetEntry{
		{ID: "1", Description: "a", Amount: core.Money{Cents: 100}, Type: core.Expense, Category: core.CategoryFood, MonthKey: "2024-01"},
	}, "2024-01")
	if err := s.WriteMonth(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteMonth(ctx, core.BuildMonthView(nil, "2024-01")); err != nil {
		t.Fatal(err)
	}

	rows, ok := s.Tab("Orçamento 2024-01")
	if !ok {
		t.Fatal("tab not written")
	}
	if len(rows) != 7 {
		t.Fatalf("second write should replace the tab, got %d rows", len(rows))
	}
	if s.Writes() != 2 {
		t.Fatalf("Writes() = %d", s.Writes())
	}
}
