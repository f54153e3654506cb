// Package worker reacts to entry events outside the web process.
package worker

import (
	"context"
	"errors"
	"fmt"

	"orcamento/internal/core"
	"orcamento/internal/entries"
	"orcamento/internal/events"
	"orcamento/internal/log"
	"orcamento/internal/sheets"
	"orcamento/internal/storage"
)

// ExportWorker re-exports the month touched by an entry event. It reads the
// stored document instead of trusting the event payload, so replays and
// out-of-order deliveries converge on the current state.
type ExportWorker struct {
	docs   storage.DocumentStore
	writer sheets.MonthWriter
	logger *log.Logger
}

func NewExportWorker(docs storage.DocumentStore, writer sheets.MonthWriter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		docs:   docs,
		writer: writer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent matches events.Handler. Failures the spreadsheet or the stored
// document will keep producing are marked events.ErrPermanent so the event
// is dropped; anything else requeues it.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *events.EntryEvent) error {
	w.logger.InfoContext(ctx, "Processing entry event",
		log.FieldOperation, string(ev.Op),
		log.FieldEntryID, ev.ID,
		log.FieldMonth, string(ev.MonthKey))

	err := w.ExportMonth(ctx, ev.MonthKey)
	if errors.Is(err, sheets.ErrRejected) || errors.Is(err, entries.ErrCorruptDocument) {
		return events.Permanent(err)
	}
	return err
}

// ExportMonth writes the current view of month to the sheet.
func (w *ExportWorker) ExportMonth(ctx context.Context, month core.MonthKey) error {
	list, err := w.loadEntries(ctx)
	if err != nil {
		return err
	}

	view := core.BuildMonthView(list, month)
	if err := w.writer.WriteMonth(ctx, view); err != nil {
		return fmt.Errorf("export month %s: %w", month, err)
	}
	return nil
}

func (w *ExportWorker) loadEntries(ctx context.Context) ([]core.BudgetEntry, error) {
	body, err := w.docs.Load(ctx, entries.DocumentKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	return entries.Decode(body)
}
