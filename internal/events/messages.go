// Package events carries entry-change notifications over AMQP so that
// out-of-process consumers (the sheets export worker) can react to mutations.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orcamento/internal/core"
)

type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

func (o Op) IsValid() bool {
	switch o {
	case OpCreated, OpUpdated, OpDeleted:
		return true
	}
	return false
}

// EntryEvent is deliberately small: consumers re-read the document for the
// current state of the entry list.
type EntryEvent struct {
	Op        Op            `json:"op"`
	ID        string        `json:"id"`
	MonthKey  core.MonthKey `json:"monthKey"`
	Category  core.Category `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewEntryEvent(op Op, e core.BudgetEntry, now time.Time) EntryEvent {
	return EntryEvent{
		Op:        op,
		ID:        e.ID,
		MonthKey:  e.MonthKey,
		Category:  e.Category,
		Timestamp: now.UTC(),
	}
}

func (m EntryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

var ErrInvalidEvent = errors.New("invalid entry event")

// EntryEventFromJSON decodes and sanity-checks a delivery body.
func EntryEventFromJSON(data []byte) (*EntryEvent, error) {
	var msg EntryEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Op.IsValid() {
		return nil, fmt.Errorf("%w: op %q", ErrInvalidEvent, msg.Op)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if _, err := core.ParseMonthKey(string(msg.MonthKey)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return &msg, nil
}

// Publisher is what the entry store needs from the event transport.
type Publisher interface {
	Publish(ctx context.Context, ev EntryEvent) error
}

// NopPublisher drops every event. Used when AMQP is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, EntryEvent) error { return nil }
