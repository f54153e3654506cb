package backend

import (
	"context"
	"errors"

	"orcamento/internal/events"
	"orcamento/internal/storage"
)

// Type names a document storage backend.
type Type string

const (
	SQLiteBackend Type = "sqlite"
	FileBackend   Type = "file"
	MemoryBackend Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, FileBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{SQLiteBackend, FileBackend, MemoryBackend}
}

// CleanupFunc releases the resources held by a Result.
type CleanupFunc func() error

// Result is everything the entry store needs from the outside world.
type Result struct {
	Docs      storage.DocumentStore
	Publisher events.Publisher
	// Ping reports whether the storage is reachable. Nil for backends
	// that cannot fail.
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Ready runs Ping when the backend has one.
func (r *Result) Ready(ctx context.Context) error {
	if r.Ping == nil {
		return nil
	}
	return r.Ping(ctx)
}

// Close runs every cleanup step and joins their errors.
func (r *Result) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

var errNilConfig = errors.New("app config is nil")
