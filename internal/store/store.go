// Package store defines the document store every repository persists to.
// Records live in named collections and are addressed by a generated id;
// bodies are JSON objects. Implementations exist for MySQL (sqlstore),
// MongoDB (mongostore) and process memory (this package).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names used by the application.
const (
	Platos     = "platos"
	Reservas   = "reservas"
	Usuarios   = "usuarios"
	Mesas      = "mesas"
	Pedidos    = "pedidos"
	Inventario = "inventario"
)

// Collections lists every collection the service owns.
var Collections = []string{Platos, Reservas, Usuarios, Mesas, Pedidos, Inventario}

// ErrNotFound is returned by Get, Update and Delete when the id does not
// exist in the collection.
var ErrNotFound = errors.New("store: record not found")

// Record is one document of a collection.
type Record struct {
	ID   string
	Data json.RawMessage
}

// Store is the persistence contract shared by all backends.
//
// Update applies a merge patch: top-level keys in patch overwrite the
// stored ones and a nil value removes the key. UpdateIf applies the patch
// only when every key of cond equals the stored value, atomically with
// respect to other writers, and reports whether it did.
//
// Subscribe emits the current snapshot of the collection and then a fresh
// one after each mutation. Slow readers only see the latest snapshot. The
// channel is closed once ctx is cancelled.
type Store interface {
	List(ctx context.Context, coll string) ([]Record, error)
	Get(ctx context.Context, coll, id string) (Record, error)
	FindBy(ctx context.Context, coll, field, value string) ([]Record, error)
	Push(ctx context.Context, coll string, doc json.RawMessage) (string, error)
	Update(ctx context.Context, coll, id string, patch map[string]any) error
	UpdateIf(ctx context.Context, coll, id string, cond, patch map[string]any) (bool, error)
	Delete(ctx context.Context, coll, id string) error
	Subscribe(ctx context.Context, coll string) (<-chan []Record, error)
}

// CheckCollection rejects names outside Collections.
func CheckCollection(coll string) error {
	for _, c := range Collections {
		if c == coll {
			return nil
		}
	}
	return fmt.Errorf("store: unknown collection %q", coll)
}
