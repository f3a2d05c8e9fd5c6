// Package models содержит типизированные обертки над сущностями бизнес-таблиц.
// Прикладной код читает поля через методы оберток и не работает с путями
// документа напрямую.
package models

import (
	"context"
	"time"

	"github.com/iudanet/ledgersync/internal/crdt"
)

//go:generate moq -out writer_mock.go . Writer

// Writer persists entity writes. It is implemented by replica.Service.
type Writer interface {
	Create(ctx context.Context, table string, fields map[string]crdt.Value) (*crdt.Entity, error)
	Mutate(ctx context.Context, table string, e *crdt.Entity, field string, v crdt.Value) (*crdt.Entity, error)
}

// record общая часть всех оберток
type record struct {
	entity *crdt.Entity
	table  string
}

// Entity returns the underlying entity.
func (r *record) Entity() *crdt.Entity {
	return r.entity
}

func (r *record) ID() string {
	return r.entity.ID
}

func (r *record) Deleted() bool {
	return r.entity.Deleted()
}

func (r *record) str(name string) string {
	s, _ := r.entity.Value(name).AsString()
	return s
}

func (r *record) num(name string) float64 {
	f, _ := r.entity.Value(name).AsNumber()
	return f
}

func (r *record) boolean(name string) bool {
	b, _ := r.entity.Value(name).AsBool()
	return b
}

func (r *record) timeOf(name string) (time.Time, bool) {
	return r.entity.Value(name).AsTime()
}

// set persists one field and swaps in the stored entity.
func (r *record) set(ctx context.Context, w Writer, name string, v crdt.Value) error {
	updated, err := w.Mutate(ctx, r.table, r.entity, name, v)
	if err != nil {
		return err
	}
	r.entity = updated
	return nil
}

func timeValue(t time.Time) crdt.Value {
	if t.IsZero() {
		return crdt.Null()
	}
	return crdt.Time(t)
}
