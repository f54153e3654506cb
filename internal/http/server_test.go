package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/entries"
	"orcamento/internal/log"
	"orcamento/internal/middleware/ratelimit"
	"orcamento/internal/storage"
)

var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

type fakeAdvisor struct {
	text  string
	calls atomic.Int32
}

func (f *fakeAdvisor) Advise(ctx context.Context, entries []core.BudgetEntry, summary core.BudgetSummary) string {
	f.calls.Add(1)
	return f.text
}

type testEnv struct {
	srv     *Server
	store   *entries.Store
	advisor *fakeAdvisor
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	store, err := entries.Open(context.Background(), storage.NewMemoryStore(),
		entries.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("entries.Open() error = %v", err)
	}
	advisor := &fakeAdvisor{text: "Tudo certo."}
	opts := Options{
		Addr:            ":0",
		Store:           store,
		Advisor:         advisor,
		Logger:          log.Discard(),
		AdviceRateLimit: ratelimit.Config{RequestsPerMinute: 600, Burst: 10},
		Now:             func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, advisor: advisor}
}

// do sends a request through the full middleware chain. Form values go in
// the body for POST and in the query string otherwise, as htmx does.
func (e *testEnv) do(method, target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	var req *http.Request
	if method == http.MethodPost {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		if len(form) > 0 {
			target += "?" + form.Encode()
		}
		req = httptest.NewRequest(method, target, nil)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) add(t *testing.T, desc string, cents int64, typ core.EntryType, cat core.Category, month core.MonthKey) core.BudgetEntry {
	t.Helper()
	entry, err := e.store.Add(context.Background(), entries.Draft{
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Type:        typ,
		Category:    cat,
		MonthKey:    month,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return entry
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<html", "Orçamento Mensal", "maio de 2024", "Nenhum lançamento neste mês.", `value="2024-05"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "https://unpkg.com") {
		t.Errorf("CSP = %q", rec.Header().Get("Content-Security-Policy"))
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := env.do(http.MethodGet, path, nil, false); rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}

func TestReadyzReportsBackendFailure(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("database is locked") }
	})
	if rec := env.do(http.MethodGet, "/readyz", nil, false); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d", rec.Code)
	}
}

func TestMonthNavigationFragment(t *testing.T) {
	env := newTestEnv(t, nil)
	env.add(t, "Academia", 9900, core.Expense, core.CategoryMonthly, "2024-05")
	env.add(t, "Cinema", 4000, core.Expense, core.CategoryLeisure, "2024-05")

	rec := env.do(http.MethodGet, "/", url.Values{"month": {"2024-06"}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<html") {
		t.Fatal("htmx request should get the fragment only")
	}
	for _, want := range []string{`id="month-view"`, "junho de 2024", "Academia", `/?month=2024-05`, `/?month=2024-07`, "Hoje"} {
		if !strings.Contains(body, want) {
			t.Errorf("fragment missing %q", want)
		}
	}
	if strings.Contains(body, "Cinema") {
		t.Error("non-recurring entry of another month is visible")
	}
	if rec.Header().Get("Vary") != "HX-Request" {
		t.Errorf("Vary = %q", rec.Header().Get("Vary"))
	}
}

func TestCreateEntry(t *testing.T) {
	env := newTestEnv(t, nil)
	form := url.Values{
		"description": {"Salário"},
		"amount":      {"1000"},
		"type":        {"INCOME"},
		"category":    {"Salário"},
		"month":       {"2024-04"},
	}

	rec := env.do(http.MethodPost, "/entries", form, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), `"entries:changed"`) {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}
	if !strings.Contains(rec.Body.String(), "R$ 1.000,00") {
		t.Error("refreshed view does not show the new income")
	}

	list := env.store.List()
	if len(list) != 1 || list[0].MonthKey != "2024-04" || list[0].Amount.Cents != 100000 {
		t.Fatalf("entries = %+v", list)
	}

	rec = env.do(http.MethodPost, "/entries", form, false)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/?month=2024-04" {
		t.Fatalf("plain form: status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestCreateEntryDescriptionLengthCountsCharacters(t *testing.T) {
	env := newTestEnv(t, nil)
	form := func(desc string) url.Values {
		return url.Values{
			"description": {desc},
			"amount":      {"10"},
			"type":        {"EXPENSE"},
			"category":    {"Lazer"},
		}
	}

	// 150 characters, 250 bytes.
	rec := env.do(http.MethodPost, "/entries", form(strings.Repeat("ção", 50)), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	atLimit := strings.Repeat("ção", 66) + "ãé"
	rec = env.do(http.MethodPost, "/entries", form(atLimit), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("200 characters: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/entries", form(atLimit+"é"), true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("201 characters: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "até 200 caracteres") {
		t.Errorf("body missing length message: %s", rec.Body.String())
	}

	if n := len(env.store.List()); n != 2 {
		t.Fatalf("entries = %d, want 2", n)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{"empty description", url.Values{"description": {""}, "amount": {"10"}, "type": {"EXPENSE"}, "category": {"Lazer"}}, "Informe uma descrição"},
		{"empty amount", url.Values{"description": {"x"}, "amount": {""}, "type": {"EXPENSE"}, "category": {"Lazer"}}, "Informe um valor."},
		{"bad amount", url.Values{"description": {"x"}, "amount": {"dez"}, "type": {"EXPENSE"}, "category": {"Lazer"}}, "Valor inválido."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/entries", tt.form, true)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.message) {
				t.Fatalf("body missing %q", tt.message)
			}
		})
	}
	if n := len(env.store.List()); n != 0 {
		t.Fatalf("invalid forms created %d entries", n)
	}
}

func TestInlineAmountEdit(t *testing.T) {
	env := newTestEnv(t, nil)
	rent := env.add(t, "Aluguel", 150000, core.Expense, core.CategoryMonthly, "2024-05")
	month := url.Values{"month": {"2024-05"}}

	rec := env.do(http.MethodPost, "/entries/"+rent.ID+"/amount", url.Values{"month": {"2024-05"}, "amount": {"1.600,50"}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got, _ := env.store.Get(rent.ID); got.Amount.Cents != 160050 {
		t.Fatalf("amount = %d, want 160050", got.Amount.Cents)
	}

	rec = env.do(http.MethodPost, "/entries/"+rent.ID+"/amount", url.Values{"month": month["month"], "amount": {"abc"}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("invalid edit status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("HX-Trigger"), `"warning"`) {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}
	if got, _ := env.store.Get(rent.ID); got.Amount.Cents != 160050 {
		t.Fatalf("invalid input changed amount to %d", got.Amount.Cents)
	}

	if rec := env.do(http.MethodPost, "/entries/missing/amount", url.Values{"amount": {"1"}}, true); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", rec.Code)
	}
}

func TestTogglePaid(t *testing.T) {
	env := newTestEnv(t, nil)
	card := env.add(t, "Fatura", 50000, core.Expense, core.CategoryCreditCard, "2024-05")
	salary := env.add(t, "Salário", 500000, core.Income, core.CategorySalary, "2024-05")

	if rec := env.do(http.MethodPost, "/entries/"+card.ID+"/paid", url.Values{"month": {"2024-05"}}, true); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got, _ := env.store.Get(card.ID); !got.IsPaid {
		t.Fatal("expense not marked as paid")
	}

	if rec := env.do(http.MethodPost, "/entries/"+salary.ID+"/paid", nil, true); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("income toggle status = %d", rec.Code)
	}
}

func TestDeleteEntry(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.add(t, "Mercado", 3000, core.Expense, core.CategoryFood, "2024-05")
	b := env.add(t, "Ônibus", 500, core.Expense, core.CategoryTransport, "2024-05")

	rec := env.do(http.MethodDelete, "/entries/"+a.ID, url.Values{"month": {"2024-05"}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Mercado") {
		t.Error("deleted entry still rendered")
	}

	rec = env.do(http.MethodPost, "/entries/"+b.ID+"/delete", url.Values{"month": {"2024-05"}}, false)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("form delete status = %d", rec.Code)
	}
	if n := len(env.store.List()); n != 0 {
		t.Fatalf("entries left = %d", n)
	}

	if rec := env.do(http.MethodDelete, "/entries/"+a.ID, nil, true); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestAdvice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.advisor.text = "**Economize** no lazer. <script>alert(1)</script>"

	rec := env.do(http.MethodPost, "/advice", url.Values{"month": {"2024-05"}}, true)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), msgNeedEntries) {
		t.Fatalf("empty month: status = %d body = %s", rec.Code, rec.Body.String())
	}
	if env.advisor.calls.Load() != 0 {
		t.Fatal("advisor called for an empty month")
	}

	env.add(t, "Cinema", 4000, core.Expense, core.CategoryLeisure, "2024-05")
	rec = env.do(http.MethodPost, "/advice", url.Values{"month": {"2024-05"}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `id="advice"`) || strings.Contains(body, `id="month-view"`) {
		t.Fatalf("expected the advice partial, got %s", body)
	}
	if !strings.Contains(body, "<strong>Economize</strong>") {
		t.Errorf("markdown not rendered: %s", body)
	}
	if strings.Contains(body, "<script>") {
		t.Errorf("raw html from advice leaked: %s", body)
	}

	rec = env.do(http.MethodPost, "/advice", url.Values{"month": {"2024-05"}}, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<html") {
		t.Fatalf("plain advice request should render the page, status = %d", rec.Code)
	}
}

func TestAdviceRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.AdviceRateLimit = ratelimit.Config{RequestsPerMinute: 1, Burst: 1}
	})
	env.add(t, "Cinema", 4000, core.Expense, core.CategoryLeisure, "2024-05")
	form := url.Values{"month": {"2024-05"}}

	if rec := env.do(http.MethodPost, "/advice", form, true); rec.Code != http.StatusOK {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := env.do(http.MethodPost, "/advice", form, true)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), msgRateLimited) || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("rate limited response: %s", rec.Body.String())
	}
	if env.advisor.calls.Load() != 1 {
		t.Fatalf("advisor calls = %d", env.advisor.calls.Load())
	}
}

func TestMonthAPI(t *testing.T) {
	env := newTestEnv(t, nil)
	env.add(t, "Salário", 100000, core.Income, core.CategorySalary, "2024-01")
	env.add(t, "Aluguel", 40000, core.Expense, core.CategoryMonthly, "2023-11")

	rec := env.do(http.MethodGet, "/api/months/2024-01", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Month   string `json:"month"`
		Title   string `json:"title"`
		Entries []core.BudgetEntry
		Summary core.BudgetSummary `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Month != "2024-01" || got.Title != "janeiro de 2024" || len(got.Entries) != 2 {
		t.Fatalf("response = %+v", got)
	}
	if got.Summary.Balance.Cents != 60000 || got.Summary.PercentageUsed != 40 {
		t.Fatalf("summary = %+v", got.Summary)
	}

	if rec := env.do(http.MethodGet, "/api/months/2024-13", nil, false); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad month status = %d", rec.Code)
	}
}

func TestStaticAndProbes(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/static/app.css", nil, false)
	if rec.Code != http.StatusOK || rec.Header().Get("Cache-Control") == "" {
		t.Fatalf("static status = %d cache = %q", rec.Code, rec.Header().Get("Cache-Control"))
	}
	if rec := env.do(http.MethodGet, "/.env", nil, false); rec.Code != http.StatusNotFound {
		t.Fatalf("probe status = %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/entries", nil, false); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /entries status = %d", rec.Code)
	}
}
