package http

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/russross/blackfriday/v2"

	"orcamento/internal/core"
	appweb "orcamento/web"
)

// templateFuncs are the helpers available to web/templates.
var templateFuncs = template.FuncMap{
	"brl":      func(m core.Money) string { return m.FormatBRL() },
	"amount":   func(m core.Money) string { return strings.Replace(m.String(), ".", ",", 1) },
	"percent":  formatPercent,
	"date":     func(e core.BudgetEntry) string { return e.Date.Local().Format("02/01/2006") },
	"editable": func(e core.BudgetEntry) bool { return e.Category.EditableInPlace() },
	"markdown": renderMarkdown,
}

func parseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// formatPercent renders p with one decimal and a decimal comma, e.g. "40,0%".
func formatPercent(p float64) string {
	return strings.Replace(fmt.Sprintf("%.1f%%", p), ".", ",", 1)
}

// markdownFlags drop raw HTML from the model output and refuse unsafe links.
const markdownFlags = blackfriday.SkipHTML | blackfriday.Safelink | blackfriday.NofollowLinks | blackfriday.NoreferrerLinks

// renderMarkdown turns advice text into HTML. Raw HTML in text is dropped, so
// the result is safe to embed.
func renderMarkdown(text string) template.HTML {
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{Flags: markdownFlags})
	out := blackfriday.Run([]byte(text),
		blackfriday.WithExtensions(blackfriday.CommonExtensions),
		blackfriday.WithRenderer(renderer))
	return template.HTML(out)
}

// breakdownRow is one bar of the category chart.
type breakdownRow struct {
	Name   core.Category
	Amount core.Money
	// Share of total expenses, 0-100.
	Share float64
	// Width of the bar relative to the largest category, 2-100.
	Width int
}

func breakdownRows(view core.MonthView) []breakdownRow {
	var maxCents int64
	for _, c := range view.Breakdown {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
		}
	}
	total := view.Summary.TotalExpenses.Cents

	rows := make([]breakdownRow, 0, len(view.Breakdown))
	for _, c := range view.Breakdown {
		row := breakdownRow{Name: c.Name, Amount: c.Amount}
		if total > 0 {
			row.Share = float64(c.Amount.Cents) * 100 / float64(total)
		}
		if maxCents > 0 && c.Amount.Cents > 0 {
			row.Width = int((c.Amount.Cents*100 + maxCents/2) / maxCents)
			// keep very small values visible
			if row.Width < 2 {
				row.Width = 2
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// entryForm holds the values shown in the new-entry form.
type entryForm struct {
	Description string
	Amount      string
	Type        core.EntryType
	Category    core.Category
	Error       string
}

func defaultEntryForm() entryForm {
	return entryForm{Type: core.Expense, Category: core.CategoryMonthly}
}

// pageData is the model of index.html and its partials.
type pageData struct {
	State      core.ViewState
	Title      string
	Prev       core.MonthKey
	Next       core.MonthKey
	Today      core.MonthKey
	IsToday    bool
	View       core.MonthView
	Breakdown  []breakdownRow
	Categories []core.Category
	Form       entryForm
	// AdviceError is shown in the advice panel instead of advice text.
	AdviceError string
}

func newPageData(state core.ViewState, view core.MonthView, today core.MonthKey) pageData {
	return pageData{
		State:      state,
		Title:      state.Month.Title(),
		Prev:       state.Prev().Month,
		Next:       state.Next().Month,
		Today:      today,
		IsToday:    state.Month == today,
		View:       view,
		Breakdown:  breakdownRows(view),
		Categories: core.Categories(),
		Form:       defaultEntryForm(),
	}
}

// CanAdvise reports whether the advice button is enabled.
func (p pageData) CanAdvise() bool {
	return len(p.View.Entries) > 0
}

func (s *Server) render(name string, data pageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
