package core

import "time"

// ViewState is the transient state of the month view. It is a value: every
// transition returns a new state and the receiver is left untouched.
type ViewState struct {
	Month MonthKey
	// Advice holds the last advice fetched for Month, empty when none.
	Advice string
}

// NewViewState starts at the month containing now.
func NewViewState(now time.Time) ViewState {
	return ViewState{Month: MonthKeyOf(now)}
}

// WithMonth moves to month. Advice fetched for another month is dropped.
func (v ViewState) WithMonth(month MonthKey) ViewState {
	if month == v.Month {
		return v
	}
	return ViewState{Month: month}
}

func (v ViewState) Next() ViewState { return v.WithMonth(v.Month.AddMonths(1)) }

func (v ViewState) Prev() ViewState { return v.WithMonth(v.Month.AddMonths(-1)) }

// Reset jumps to the real current month.
func (v ViewState) Reset(now time.Time) ViewState { return v.WithMonth(MonthKeyOf(now)) }

func (v ViewState) WithAdvice(text string) ViewState {
	v.Advice = text
	return v
}

// MonthView bundles everything derived for one month.
type MonthView struct {
	Month     MonthKey         `json:"month"`
	Entries   []BudgetEntry    `json:"entries"`
	Summary   BudgetSummary    `json:"summary"`
	Breakdown []CategoryAmount `json:"breakdown"`
}

// BuildMonthView derives the visible subset, summary and category breakdown.
func BuildMonthView(entries []BudgetEntry, month MonthKey) MonthView {
	visible := VisibleEntries(entries, month)
	return MonthView{
		Month:     month,
		Entries:   visible,
		Summary:   Summarize(visible),
		Breakdown: ExpensesByCategory(visible),
	}
}
