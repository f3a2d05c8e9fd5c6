package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/storage"
	"github.com/iudanet/ledgersync/internal/validation"
)

// querier общий интерфейс *sql.DB и *sql.Tx для чтения одной строки
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Insert stores a new entity. Returns ErrDuplicateKey if the id exists.
func (s *Storage) Insert(ctx context.Context, table string, e *crdt.Entity) error {
	return s.BatchInsert(ctx, table, []*crdt.Entity{e})
}

// BatchInsert stores all entities in one transaction or none of them.
func (s *Storage) BatchInsert(ctx context.Context, table string, entities []*crdt.Entity) error {
	if err := validation.ValidateTableName(table); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Fail("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, e := range entities {
		existing, err := getRow(ctx, tx, table, e.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s/%s", storage.ErrDuplicateKey, table, e.ID)
		}
		if err := s.write(ctx, tx, table, e, false); err != nil {
			return err
		}
	}

	return storage.Fail("commit", tx.Commit())
}

// Get retrieves a single entity, deleted or not.
// Returns ErrEntityNotFound if the row doesn't exist.
func (s *Storage) Get(ctx context.Context, table, id string) (*crdt.Entity, error) {
	if err := validation.ValidateTableName(table); err != nil {
		return nil, err
	}

	e, err := getRow(ctx, s.db, table, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrEntityNotFound, table, id)
	}
	return e, nil
}

// Update replaces the whole row. Returns ErrEntityNotFound if missing.
func (s *Storage) Update(ctx context.Context, table string, e *crdt.Entity) error {
	_, err := s.Modify(ctx, table, e.ID, func(current *crdt.Entity) (*crdt.Entity, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrEntityNotFound, table, e.ID)
		}
		return e, nil
	})
	return err
}

// Modify performs read-modify-write of one row inside one write
// transaction. fn receives nil when the row is absent. When fn returns
// ErrSkipWrite the current row (possibly nil) is returned unchanged.
func (s *Storage) Modify(ctx context.Context, table, id string, fn storage.ModifyFunc) (*crdt.Entity, error) {
	if err := validation.ValidateTableName(table); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.Fail("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := getRow(ctx, tx, table, id)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if errors.Is(err, storage.ErrSkipWrite) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}
	if next.ID != id {
		return nil, &crdt.ValidationError{EntityID: next.ID, Field: "id", Reason: "modify of " + id + " returned another entity"}
	}

	if err := s.write(ctx, tx, table, next, current != nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storage.Fail("commit", err)
	}
	return next, nil
}

// write кодирует сущность и пишет строку со свежей меткой изменения.
// Вызывается только под s.mu.
func (s *Storage) write(ctx context.Context, tx *sql.Tx, table string, e *crdt.Entity, exists bool) error {
	doc, err := crdt.Encode(e)
	if err != nil {
		return err
	}

	stamp := s.clock.Now()
	deleted := boolToInt(e.Deleted())

	if exists {
		_, err = tx.ExecContext(ctx, `
			UPDATE entities
			SET doc = ?, changed_ms = ?, changed_lc = ?, deleted = ?
			WHERE tbl = ? AND id = ?
		`, string(doc), stamp.PhysicalTimeMs, stamp.LogicalCounter, deleted, table, e.ID)
		return storage.Fail("update", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (tbl, id, doc, changed_ms, changed_lc, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
	`, table, e.ID, string(doc), stamp.PhysicalTimeMs, stamp.LogicalCounter, deleted)
	return storage.Fail("insert", err)
}

// getRow возвращает nil, nil если строки нет
func getRow(ctx context.Context, q querier, table, id string) (*crdt.Entity, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM entities WHERE tbl = ? AND id = ?`, table, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Fail("get", err)
	}
	return decodeDoc(doc)
}

// decodeDoc разбирает сохраненный документ; битая строка считается сбоем хранилища
func decodeDoc(doc string) (*crdt.Entity, error) {
	e, err := crdt.Decode([]byte(doc))
	if err != nil {
		return nil, storage.Fail("decode", err)
	}
	return e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
