// Package storage persists opaque documents under fixed keys. The budget keeps
// its whole entry list in one document, so the backends only need Load/Save.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no document exists under the key.
var ErrNotFound = errors.New("document not found")

// DocumentStore is the durable storage port used by the entry store.
type DocumentStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, body []byte) error
}
