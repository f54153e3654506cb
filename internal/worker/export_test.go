package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/entries"
	"orcamento/internal/events"
	"orcamento/internal/sheets"
	"orcamento/internal/sheets/memory"
	"orcamento/internal/storage"
)

var fixedEventTime = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

type failingWriter struct{ err error }

func (f failingWriter) WriteMonth(context.Context, core.MonthView) error {
	if f.err != nil {
		return f.err
	}
	return errors.New("quota exceeded")
}

func TestExportWorker_ExportsCurrentStateOfMonth(t *testing.T) {
	ctx := context.Background()
	docs := storage.NewMemoryStore()
	store, err := entries.Open(ctx, docs)
	if err != nil {
		t.Fatal(err)
	}

	rent, err := store.Add(ctx, entries.Draft{Description: "Aluguel", Amount: core.Money{Cents: 150000}, Type: core.Expense, Category: core.CategoryMonthly, MonthKey: "2023-12"})
	if err != nil {
		t.Fatal(err)
	}
	store.Add(ctx, entries.Draft{Description: "Salário", Amount: core.Money{Cents: 500000}, Type: core.Income, Category: core.CategorySalary, MonthKey: "2024-01"})
	store.Add(ctx, entries.Draft{Description: "Outro mês", Amount: core.Money{Cents: 100}, Type: core.Expense, Category: core.CategoryFood, MonthKey: "2024-02"})

	writer := memory.New("Orçamento", nil)
	w := NewExportWorker(docs, writer, nil)

	ev := events.NewEntryEvent(events.OpCreated, core.BudgetEntry{ID: "x", MonthKey: "2024-01"}, rent.Date)
	if err := w.HandleEvent(ctx, &ev); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	rows, ok := writer.Tab("Orçamento 2024-01")
	if !ok {
		t.Fatal("month not exported")
	}
	// Summary block, header, then the salary and the recurring rent.
	if len(rows) != 7+2+3 {
		t.Fatalf("rows = %d: %v", len(rows), rows)
	}
	if rows[3][1] != 3500.0 {
		t.Fatalf("balance row = %v", rows[3])
	}
}

func TestExportWorker_EmptyStore(t *testing.T) {
	writer := memory.New("", nil)
	w := NewExportWorker(storage.NewMemoryStore(), writer, nil)

	if err := w.ExportMonth(context.Background(), "2024-01"); err != nil {
		t.Fatalf("ExportMonth() error = %v", err)
	}
	if _, ok := writer.Tab("2024-01"); !ok {
		t.Fatal("empty month should still be exported")
	}
}

func TestExportWorker_Errors(t *testing.T) {
	ctx := context.Background()

	corrupt := storage.NewMemoryStore()
	corrupt.Save(ctx, entries.DocumentKey, []byte("{"))
	if err := NewExportWorker(corrupt, memory.New("", nil), nil).ExportMonth(ctx, "2024-01"); !errors.Is(err, entries.ErrCorruptDocument) {
		t.Fatalf("ExportMonth() error = %v, want ErrCorruptDocument", err)
	}

	if err := NewExportWorker(storage.NewMemoryStore(), failingWriter{}, nil).ExportMonth(ctx, "2024-01"); err == nil {
		t.Fatal("writer failure should be returned so the event is requeued")
	}
}

func TestExportWorker_HandleEventMarksPermanentFailures(t *testing.T) {
	ctx := context.Background()
	ev := events.NewEntryEvent(events.OpUpdated, core.BudgetEntry{ID: "x", MonthKey: "2024-01"}, fixedEventTime)

	corrupt := storage.NewMemoryStore()
	corrupt.Save(ctx, entries.DocumentKey, []byte("{"))

	tests := []struct {
		name      string
		docs      storage.DocumentStore
		writer    sheets.MonthWriter
		permanent bool
	}{
		{"transient writer failure", storage.NewMemoryStore(), failingWriter{}, false},
		{"rejected by spreadsheet", storage.NewMemoryStore(), failingWriter{err: fmt.Errorf("update tab: %w", sheets.ErrRejected)}, true},
		{"corrupt document", corrupt, memory.New("", nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewExportWorker(tt.docs, tt.writer, nil).HandleEvent(ctx, &ev)
			if err == nil {
				t.Fatal("HandleEvent() should fail")
			}
			if got := errors.Is(err, events.ErrPermanent); got != tt.permanent {
				t.Fatalf("permanent = %v, want %v (err = %v)", got, tt.permanent, err)
			}
		})
	}
}
