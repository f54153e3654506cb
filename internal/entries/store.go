// Package entries is the budget's entry store: an ordered list of entries,
// newest first, persisted as a single JSON document after every mutation.
package entries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"orcamento/internal/cache"
	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/log"
	"orcamento/internal/storage"
)

// DocumentKey is the fixed key the entry list is stored under.
const DocumentKey = "budget_entries_v2"

var (
	ErrNotFound        = errors.New("entry not found")
	ErrNotExpense      = errors.New("only expenses can be marked as paid")
	ErrCorruptDocument = errors.New("stored entry document is malformed")
)

// Draft is what a caller supplies to create an entry. ID, Date and IsPaid
// are assigned by the store.
type Draft struct {
	Description string
	Amount      core.Money
	Type        core.EntryType
	Category    core.Category
	MonthKey    core.MonthKey
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Description *string
	Amount      *core.Money
	Category    *core.Category
	IsPaid      *bool
}

type Option func(*Store)

func WithPublisher(p events.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentEntries)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithViewCache memoizes month views until the next mutation.
func WithViewCache(c cache.Cache[core.MonthView]) Option {
	return func(s *Store) { s.views = c }
}

type Store struct {
	mu      sync.RWMutex
	entries []core.BudgetEntry

	docs      storage.DocumentStore
	publisher events.Publisher
	views     cache.Cache[core.MonthView]
	logger    *log.Logger
	now       func() time.Time
	newID     func() string
}

// Open loads the entry document from docs. A missing document yields an empty
// store; a document that does not decode is reported as ErrCorruptDocument.
func Open(ctx context.Context, docs storage.DocumentStore, opts ...Option) (*Store, error) {
	s := &Store{
		docs:      docs,
		publisher: events.NopPublisher{},
		logger:    log.Discard(),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}

	body, err := docs.Load(ctx, DocumentKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.logger.InfoContext(ctx, "No stored entries, starting empty", log.FieldOperation, log.OpLoad)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load entries: %w", err)
	}

	list, err := Decode(body)
	if err != nil {
		return nil, err
	}
	s.entries = list
	s.logger.InfoContext(ctx, "Loaded stored entries",
		log.FieldOperation, log.OpLoad,
		"count", len(list))
	return s, nil
}

// Decode parses a stored entry document. An empty body is an empty list.
func Decode(body []byte) ([]core.BudgetEntry, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var list []core.BudgetEntry
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return list, nil
}

// List returns a copy of all entries, newest first.
func (s *Store) List() []core.BudgetEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.BudgetEntry(nil), s.entries...)
}

func (s *Store) Get(id string) (core.BudgetEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.BudgetEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.entries[i], nil
}

// MonthView derives the visible entries, summary and breakdown of month.
func (s *Store) MonthView(month core.MonthKey) core.MonthView {
	if s.views != nil {
		if v, ok := s.views.Get(string(month)); ok {
			return v
		}
	}

	// Held across Set so a concurrent commit cannot purge before a stale
	// view is stored.
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := core.BuildMonthView(s.entries, month)
	if s.views != nil {
		s.views.Set(string(month), v)
	}
	return v
}

func (s *Store) Add(ctx context.Context, d Draft) (core.BudgetEntry, error) {
	now := s.now()
	month := d.MonthKey
	if month == "" {
		month = core.MonthKeyOf(now)
	}
	e := core.BudgetEntry{
		ID:          s.newID(),
		Description: strings.TrimSpace(d.Description),
		Amount:      d.Amount,
		Type:        d.Type,
		Category:    d.Category,
		Date:        now.UTC(),
		MonthKey:    month,
	}
	if err := e.Validate(); err != nil {
		return core.BudgetEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(e.ID) >= 0 {
		return core.BudgetEntry{}, fmt.Errorf("duplicate entry id %s", e.ID)
	}

	next := make([]core.BudgetEntry, 0, len(s.entries)+1)
	next = append(next, e)
	next = append(next, s.entries...)
	if err := s.commit(ctx, next); err != nil {
		return core.BudgetEntry{}, err
	}

	s.logger.InfoContext(ctx, "Entry created", log.NewFields().
		WithOperation(log.OpCreate).
		WithEntry(e.ID, e.Description, string(e.Type), string(e.Category), e.Amount.Cents).
		ToSlice()...)
	s.publish(ctx, events.OpCreated, e)
	return e, nil
}

// Update applies p to the entry with id.
func (s *Store) Update(ctx context.Context, id string, p Patch) (core.BudgetEntry, error) {
	return s.mutate(ctx, id, log.OpUpdate, func(e *core.BudgetEntry) error {
		if p.Description != nil {
			e.Description = strings.TrimSpace(*p.Description)
		}
		if p.Amount != nil {
			e.Amount = *p.Amount
		}
		if p.Category != nil {
			e.Category = *p.Category
		}
		if p.IsPaid != nil {
			if *p.IsPaid && !e.IsExpense() {
				return ErrNotExpense
			}
			e.IsPaid = *p.IsPaid
		}
		err := e.Validate()
		// Documents written before the limit existed may hold longer
		// descriptions; only a new description is held to it.
		if errors.Is(err, core.ErrDescriptionTooLong) && p.Description == nil {
			return nil
		}
		return err
	})
}

// SetAmount parses raw and stores it as the entry's amount. Input that is not
// a valid amount leaves the entry unchanged and returns core.ErrInvalidAmount.
func (s *Store) SetAmount(ctx context.Context, id, raw string) (core.BudgetEntry, error) {
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return core.BudgetEntry{}, err
	}
	return s.Update(ctx, id, Patch{Amount: &amount})
}

// TogglePaid flips the paid flag of an expense.
func (s *Store) TogglePaid(ctx context.Context, id string) (core.BudgetEntry, error) {
	return s.mutate(ctx, id, log.OpTogglePaid, func(e *core.BudgetEntry) error {
		if !e.IsExpense() {
			return ErrNotExpense
		}
		e.IsPaid = !e.IsPaid
		return nil
	})
}

// Remove deletes the entry with id and returns it.
func (s *Store) Remove(ctx context.Context, id string) (core.BudgetEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return core.BudgetEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := s.entries[i]

	next := make([]core.BudgetEntry, 0, len(s.entries)-1)
	next = append(next, s.entries[:i]...)
	next = append(next, s.entries[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return core.BudgetEntry{}, err
	}

	s.logger.InfoContext(ctx, "Entry deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldEntryID, id)
	s.publish(ctx, events.OpDeleted, removed)
	return removed, nil
}

func (s *Store) mutate(ctx context.Context, id, op string, apply func(*core.BudgetEntry) error) (core.BudgetEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return core.BudgetEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := s.entries[i]
	if err := apply(&updated); err != nil {
		return core.BudgetEntry{}, err
	}

	next := append([]core.BudgetEntry(nil), s.entries...)
	next[i] = updated
	if err := s.commit(ctx, next); err != nil {
		return core.BudgetEntry{}, err
	}

	s.logger.InfoContext(ctx, "Entry updated",
		log.FieldOperation, op,
		log.FieldEntryID, id,
		log.FieldAmountCents, updated.Amount.Cents,
		"is_paid", updated.IsPaid)
	s.publish(ctx, events.OpUpdated, updated)
	return updated, nil
}

// commit persists next and only then swaps it in, so a failed write leaves
// memory and storage in agreement. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []core.BudgetEntry) error {
	if next == nil {
		next = []core.BudgetEntry{}
	}
	body, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode entries: %w", err)
	}
	if err := s.docs.Save(ctx, DocumentKey, body); err != nil {
		s.logger.Failure(ctx, "Failed to persist entries", err, log.FieldOperation, log.OpSave)
		return fmt.Errorf("save entries: %w", err)
	}
	s.entries = next
	if s.views != nil {
		s.views.Purge()
	}
	return nil
}

// publish never fails the mutation: the document is already saved.
func (s *Store) publish(ctx context.Context, op events.Op, e core.BudgetEntry) {
	if err := s.publisher.Publish(ctx, events.NewEntryEvent(op, e, s.now())); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish entry event",
			log.FieldOperation, log.OpPublish,
			log.FieldEntryID, e.ID,
			log.FieldError, err)
	}
}

func (s *Store) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}
