package sheets

import (
	"reflect"
	"testing"
	"time"

	"orcamento/internal/core"
)

func TestTabTitle(t *testing.T) {
	if got := TabTitle("Orçamento", "2024-01"); got != "Orçamento 2024-01" {
		t.Errorf("TabTitle() = %q", got)
	}
	if got := TabTitle("  ", "2024-01"); got != "2024-01" {
		t.Errorf("TabTitle() with empty prefix = %q", got)
	}
}

func TestBuildRows(t *testing.T) {
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	entries := []core.BudgetEntry{
		{ID: "1", Description: "Salário", Amount: core.Money{Cents: 100000}, Type: core.Income, Category: core.CategorySalary, Date: date, MonthKey: "2024-01"},
		{ID: "2", Description: "=HYPERLINK(\"x\")", Amount: core.Money{Cents: 40050}, Type: core.Expense, Category: core.CategoryMonthly, Date: date, MonthKey: "2023-11", IsPaid: true},
		{ID: "3", Description: "Cinema", Amount: core.Money{Cents: 2500}, Type: core.Expense, Category: core.CategoryLeisure, Date: date, MonthKey: "2024-01"},
	}
	rows := BuildRows(core.BuildMonthView(entries, "2024-01"))

	want := [][]any{
		{"Mês", "janeiro de 2024"},
		{"Renda Total", 1000.0},
		{"Gastos Totais", 425.5},
		{"Saldo", 574.5},
		{"% da Renda Consumida", 42.55},
		{},
		EntryHeader,
		{"Salário", "ENTRADA", "Salário", 1000.0, "2024-01-05", ""},
		{"'=HYPERLINK(\"x\")", "SAÍDA", "Mensal", 400.5, "2024-01-05", "Pago"},
		{"Cinema", "SAÍDA", "Lazer", 25.0, "2024-01-05", "Pendente"},
		{},
		{"Gastos por categoria"},
		{"Mensal", 400.5},
		{"Lazer", 25.0},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("BuildRows() =\n%v\nwant\n%v", rows, want)
	}
}

func TestBuildRows_EmptyMonth(t *testing.T) {
	rows := BuildRows(core.BuildMonthView(nil, "2024-02"))
	if len(rows) != 7 {
		t.Fatalf("empty month should only have summary and header, got %d rows", len(rows))
	}
}
