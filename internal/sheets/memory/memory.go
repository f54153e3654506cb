// Package memory is a MonthWriter that keeps exported months in process.
// The export worker uses it for dry runs when no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"orcamento/internal/core"
	"orcamento/internal/log"
	"orcamento/internal/sheets"
)

var _ sheets.MonthWriter = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	prefix string
	tabs   map[string][][]any
	writes int
	logger *log.Logger
}

func New(prefix string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		prefix: prefix,
		tabs:   make(map[string][][]any),
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

func (s *Store) WriteMonth(ctx context.Context, view core.MonthView) error {
	title := sheets.TabTitle(s.prefix, view.Month)
	rows := sheets.BuildRows(view)

	s.mu.Lock()
	s.tabs[title] = rows
	s.writes++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Exported month (dry run)",
		log.FieldOperation, log.OpExport,
		log.FieldMonth, string(view.Month),
		"tab", title,
		"rows", len(rows))
	return nil
}

// Tab returns the rows last written to title.
func (s *Store) Tab(title string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[title]
	return rows, ok
}

func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
