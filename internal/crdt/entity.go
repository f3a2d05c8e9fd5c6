package crdt

import (
	"maps"
	"slices"

	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/validation"
)

// Entity представляет одну бизнес-запись (счет, клиент, сотрудник...)
// как набор независимых LWW регистров. Конфликт затрагивает не больше
// одного поля, удаление хранится как регистр-tombstone.
type Entity struct {
	Fields        map[string]Register // Fields именованные регистры полей
	ID            string              // ID глобально уникальный постоянный идентификатор
	NodeID        string              // NodeID узел, создавший запись
	IsDeleted     Register            // IsDeleted регистр-tombstone (bool)
	CreatedAt     hlc.Timestamp       // CreatedAt метка создания
	UpdatedAt     hlc.Timestamp       // UpdatedAt максимальная метка среди всех регистров
	SchemaVersion int                 // SchemaVersion версия схемы таблицы
}

// NewEntity creates an entity whose registers and tombstone all carry one
// fresh stamp.
func NewEntity(clock *hlc.Clock, id string, schemaVersion int, fields map[string]Value) (*Entity, error) {
	if id == "" {
		return nil, invalid("", "", "id cannot be empty", nil)
	}

	ts := clock.Now()
	e := &Entity{
		ID:            id,
		NodeID:        ts.NodeID,
		CreatedAt:     ts,
		UpdatedAt:     ts,
		SchemaVersion: schemaVersion,
		IsDeleted:     NewRegister(Bool(false), ts),
		Fields:        make(map[string]Register, len(fields)),
	}

	for name, v := range fields {
		if err := validation.ValidateFieldName(name); err != nil {
			return nil, invalid(id, name, "bad field name", err)
		}
		if err := v.Validate(); err != nil {
			return nil, invalid(id, name, "bad value", err)
		}
		e.Fields[name] = NewRegister(v, ts)
	}

	return e, nil
}

// Register returns the register of a field.
func (e *Entity) Register(name string) (Register, bool) {
	r, ok := e.Fields[name]
	return r, ok
}

// Value returns the current value of a field, null when never written.
func (e *Entity) Value(name string) Value {
	return e.Fields[name].Value
}

// FieldNames returns field names in sorted order.
func (e *Entity) FieldNames() []string {
	return slices.Sorted(maps.Keys(e.Fields))
}

// Set re-stamps exactly one register.
func (e *Entity) Set(clock *hlc.Clock, name string, v Value) error {
	if err := validation.ValidateFieldName(name); err != nil {
		return invalid(e.ID, name, "bad field name", err)
	}
	if err := v.Validate(); err != nil {
		return invalid(e.ID, name, "bad value", err)
	}

	r := Set(clock, v)
	if e.Fields == nil {
		e.Fields = make(map[string]Register)
	}
	e.Fields[name] = r
	e.touch(r.Timestamp)
	return nil
}

// Delete sets the tombstone register. The row itself is never removed by a
// delete, so a merge cannot resurrect it by accident.
func (e *Entity) Delete(clock *hlc.Clock) {
	e.IsDeleted = Set(clock, Bool(true))
	e.touch(e.IsDeleted.Timestamp)
}

// Restore clears the tombstone with a fresh stamp.
func (e *Entity) Restore(clock *hlc.Clock) {
	e.IsDeleted = Set(clock, Bool(false))
	e.touch(e.IsDeleted.Timestamp)
}

// Deleted reports the tombstone state.
func (e *Entity) Deleted() bool {
	deleted, _ := e.IsDeleted.Value.AsBool()
	return deleted
}

func (e *Entity) touch(ts hlc.Timestamp) {
	e.UpdatedAt = hlc.Max(e.UpdatedAt, ts)
}

// Clone creates a deep copy.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Fields = maps.Clone(e.Fields)
	if c.Fields == nil {
		c.Fields = make(map[string]Register)
	}
	return &c
}

// Validate checks structural invariants of an entity received from the
// wire or from disk.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return invalid("", "", "id cannot be empty", nil)
	}
	if e.SchemaVersion < 0 {
		return invalid(e.ID, "", "schema_version cannot be negative", nil)
	}
	if e.CreatedAt.IsZero() {
		return invalid(e.ID, "created_at", "timestamp is missing", nil)
	}
	if e.IsDeleted.IsZero() {
		return invalid(e.ID, "is_deleted", "register was never written", nil)
	}
	if e.IsDeleted.Value.Kind() != KindBool {
		return invalid(e.ID, "is_deleted", "tombstone must hold a bool, got "+e.IsDeleted.Value.Kind().String(), nil)
	}

	latest := hlc.Max(e.CreatedAt, e.IsDeleted.Timestamp)
	for name, r := range e.Fields {
		if err := validation.ValidateFieldName(name); err != nil {
			return invalid(e.ID, name, "bad field name", err)
		}
		if r.IsZero() {
			return invalid(e.ID, name, "register was never written", nil)
		}
		if err := r.Value.Validate(); err != nil {
			return invalid(e.ID, name, "bad value", err)
		}
		latest = hlc.Max(latest, r.Timestamp)
	}

	if e.UpdatedAt.Before(latest) {
		return invalid(e.ID, "updated_at", "older than its newest register "+latest.String(), nil)
	}
	return nil
}
