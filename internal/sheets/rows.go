package sheets

import (
	"fmt"
	"strings"

	"orcamento/internal/core"
)

// Header of the entry table in an exported month tab.
var EntryHeader = []any{"Descrição", "Tipo", "Categoria", "Valor", "Data", "Status"}

// TabTitle names the tab a month is exported to.
func TabTitle(prefix string, month core.MonthKey) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return string(month)
	}
	return fmt.Sprintf("%s %s", prefix, month)
}

// BuildRows lays out a month view as sheet rows: summary block, entry table,
// then expenses by category. Amounts are plain numbers so the sheet can sum
// them.
func BuildRows(view core.MonthView) [][]any {
	s := view.Summary
	rows := [][]any{
		{"Mês", view.Month.Title()},
		{"Renda Total", amount(s.TotalIncome)},
		{"Gastos Totais", amount(s.TotalExpenses)},
		{"Saldo", amount(s.Balance)},
		{"% da Renda Consumida", s.PercentageUsed},
		{},
		EntryHeader,
	}

	for _, e := range view.Entries {
		rows = append(rows, []any{
			cellText(e.Description),
			e.Type.Label(),
			string(e.Category),
			amount(e.Amount),
			e.Date.Format("2006-01-02"),
			status(e),
		})
	}

	if len(view.Breakdown) > 0 {
		rows = append(rows, []any{}, []any{"Gastos por categoria"})
		for _, c := range view.Breakdown {
			rows = append(rows, []any{string(c.Name), amount(c.Amount)})
		}
	}
	return rows
}

func amount(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}

func status(e core.BudgetEntry) string {
	if !e.IsExpense() {
		return ""
	}
	if e.IsPaid {
		return "Pago"
	}
	return "Pendente"
}

// cellText keeps user text from being evaluated as a formula under
// USER_ENTERED input.
func cellText(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}
