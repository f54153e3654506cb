package core

import "github.com/shopspring/decimal"

// BudgetSummary is derived from the visible entries of a month and never stored.
type BudgetSummary struct {
	TotalIncome    Money   `json:"totalIncome"`
	TotalExpenses  Money   `json:"totalExpenses"`
	Balance        Money   `json:"balance"`
	PercentageUsed float64 `json:"percentageUsed"`
}

// CategoryAmount is an expense total aggregated by category label.
type CategoryAmount struct {
	Name   Category `json:"name"`
	Amount Money    `json:"value"`
}

// IsVisible reports whether e belongs to the view of month: its own month,
// or any month when the entry is recurring.
func IsVisible(e BudgetEntry, month MonthKey) bool {
	return e.MonthKey == month || e.Category.IsRecurring()
}

// VisibleEntries filters entries for month, preserving order.
func VisibleEntries(entries []BudgetEntry, month MonthKey) []BudgetEntry {
	out := make([]BudgetEntry, 0, len(entries))
	for _, e := range entries {
		if IsVisible(e, month) {
			out = append(out, e)
		}
	}
	return out
}

// Summarize reduces entries into income, expense and balance totals.
func Summarize(entries []BudgetEntry) BudgetSummary {
	var s BudgetSummary
	for _, e := range entries {
		switch e.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(e.Amount)
		case Expense:
			s.TotalExpenses = s.TotalExpenses.Add(e.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	if s.TotalIncome.Cents > 0 {
		pct := decimal.NewFromInt(s.TotalExpenses.Cents).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromInt(s.TotalIncome.Cents), 4)
		s.PercentageUsed = pct.InexactFloat64()
	}
	return s
}

// ExpensesByCategory groups expense amounts by category in order of first
// appearance.
func ExpensesByCategory(entries []BudgetEntry) []CategoryAmount {
	var out []CategoryAmount
	index := make(map[Category]int)
	for _, e := range entries {
		if e.Type != Expense {
			continue
		}
		i, ok := index[e.Category]
		if !ok {
			index[e.Category] = len(out)
			out = append(out, CategoryAmount{Name: e.Category, Amount: e.Amount})
			continue
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	return out
}
