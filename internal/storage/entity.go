package storage

import (
	"context"
	"iter"
	"time"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/hlc"
)

// ModifyFunc receives the stored entity (nil when absent) and returns the
// entity to write, or ErrSkipWrite. It runs under the store's writer lock
// and must not perform I/O.
type ModifyFunc func(current *crdt.Entity) (*crdt.Entity, error)

// Change одна запись журнала изменений узла
type Change struct {
	Entity *crdt.Entity  // Entity версия сущности на момент чтения
	Table  string        // Table имя таблицы
	Stamp  hlc.Timestamp // Stamp локальная метка последней записи строки
}

// Key адрес строки
type Key struct {
	Table string
	ID    string
}

// EntityStore defines the local document store. Every write stamps the
// row with a fresh clock value under a single writer lock, so the order of
// change stamps equals commit order.
type EntityStore interface {
	// Insert stores a new entity. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, table string, e *crdt.Entity) error

	// Get returns ErrEntityNotFound if the row doesn't exist.
	Get(ctx context.Context, table, id string) (*crdt.Entity, error)

	// Update replaces the whole row. Returns ErrEntityNotFound if missing.
	Update(ctx context.Context, table string, e *crdt.Entity) error

	// Modify performs read-modify-write of one row in one transaction and
	// returns the stored entity.
	Modify(ctx context.Context, table, id string, fn ModifyFunc) (*crdt.Entity, error)

	// Query returns a lazy sequence; each range over it re-runs the query.
	Query(ctx context.Context, table string, q Query) iter.Seq2[*crdt.Entity, error]

	// Count returns the number of rows matching q, ignoring paging.
	Count(ctx context.Context, table string, q Query) (int, error)

	// EnsureIndex creates an expression index on a document path.
	EnsureIndex(ctx context.Context, table, path string) error

	// BatchInsert stores all entities or none.
	BatchInsert(ctx context.Context, table string, entities []*crdt.Entity) error

	// ChangesSince returns rows with a change stamp greater than after,
	// ascending, across all tables.
	ChangesSince(ctx context.Context, after hlc.Timestamp, limit int) ([]Change, error)

	// LastChange returns the greatest change stamp, zero for an empty store.
	LastChange(ctx context.Context) (hlc.Timestamp, error)

	// PurgeTombstones removes deleted rows whose change stamp is at most
	// before and whose tombstone was written before deletedBefore.
	PurgeTombstones(ctx context.Context, before hlc.Timestamp, deletedBefore time.Time) ([]Key, error)

	Close() error
}
