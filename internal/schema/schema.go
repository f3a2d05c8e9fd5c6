// Package schema описывает таблицы, их поля и версии. Реестр используется
// для проверки входящих сущностей и для апгрейда записей, созданных
// старой версией кода.
package schema

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/validation"
)

var (
	// ErrUnknownTable indicates a table the registry does not declare
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownField indicates a field the table does not declare
	ErrUnknownField = errors.New("unknown field")

	// ErrVersionAhead indicates an entity written by newer code
	ErrVersionAhead = errors.New("schema version is ahead of this node")
)

// Field описывает одно поле таблицы.
type Field struct {
	Default crdt.Value // Default значение для записей, созданных до Since
	Name    string     // Name имя поля (оно же ключ регистра)
	Kind    crdt.Kind  // Kind тип значения; null допустим всегда
	Since   int        // Since версия схемы, в которой поле появилось
	Indexed bool       // Indexed нужен ли индекс по пути <name>.value
}

// Path returns the document path of the field value.
func (f Field) Path() string {
	return f.Name + ".value"
}

// Table описывает одну таблицу.
type Table struct {
	fields  map[string]Field
	Name    string
	Version int
}

// NewTable validates the declaration and builds a table.
func NewTable(name string, version int, fields ...Field) (*Table, error) {
	if err := validation.ValidateTableName(name); err != nil {
		return nil, err
	}
	if version < 1 {
		return nil, fmt.Errorf("table %s: version must be positive", name)
	}

	t := &Table{Name: name, Version: version, fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		if err := validation.ValidateFieldName(f.Name); err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		if _, dup := t.fields[f.Name]; dup {
			return nil, fmt.Errorf("table %s: field %s declared twice", name, f.Name)
		}
		if f.Since < 1 || f.Since > version {
			return nil, fmt.Errorf("table %s: field %s has since=%d outside 1..%d", name, f.Name, f.Since, version)
		}
		if !f.Default.IsNull() && f.Default.Kind() != f.Kind {
			return nil, fmt.Errorf("table %s: field %s default is %s, want %s", name, f.Name, f.Default.Kind(), f.Kind)
		}
		t.fields[f.Name] = f
	}
	return t, nil
}

// MustTable is NewTable for static declarations.
func MustTable(name string, version int, fields ...Field) *Table {
	t, err := NewTable(name, version, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Field returns a field declaration.
func (t *Table) Field(name string) (Field, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// Fields returns declarations sorted by name.
func (t *Table) Fields() []Field {
	result := make([]Field, 0, len(t.fields))
	for _, name := range slices.Sorted(maps.Keys(t.fields)) {
		result = append(result, t.fields[name])
	}
	return result
}

// IndexedPaths returns document paths that deserve an expression index.
func (t *Table) IndexedPaths() []string {
	var paths []string
	for _, f := range t.Fields() {
		if f.Indexed {
			paths = append(paths, f.Path())
		}
	}
	return paths
}

// Defaults returns the initial value of every field of the current version.
func (t *Table) Defaults() map[string]crdt.Value {
	result := make(map[string]crdt.Value, len(t.fields))
	for name, f := range t.fields {
		result[name] = f.Default
	}
	return result
}

// CheckValue validates one write against the declaration.
func (t *Table) CheckValue(entityID, name string, v crdt.Value) error {
	f, ok := t.fields[name]
	if !ok {
		return &crdt.ValidationError{
			EntityID: entityID, Field: name,
			Reason: "not declared in table " + t.Name, Err: ErrUnknownField,
		}
	}
	if !v.IsNull() && v.Coerce(f.Kind).Kind() != f.Kind {
		return &crdt.ValidationError{
			EntityID: entityID, Field: name,
			Reason: fmt.Sprintf("expected %s, got %s", f.Kind, v.Kind()),
		}
	}
	return nil
}

// Validate checks an entity against the table. Fields that appear in a
// later version than the entity's own are rejected, as are versions this
// node does not know yet.
func (t *Table) Validate(e *crdt.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.SchemaVersion > t.Version {
		return &crdt.ValidationError{
			EntityID: e.ID, Field: "schema_version",
			Reason: fmt.Sprintf("version %d, table %s knows up to %d", e.SchemaVersion, t.Name, t.Version),
			Err:    ErrVersionAhead,
		}
	}
	for _, name := range e.FieldNames() {
		if err := t.CheckValue(e.ID, name, e.Value(name)); err != nil {
			return err
		}
		if f := t.fields[name]; f.Since > e.SchemaVersion {
			return &crdt.ValidationError{
				EntityID: e.ID, Field: name,
				Reason: fmt.Sprintf("field appears in version %d, entity is version %d", f.Since, e.SchemaVersion),
			}
		}
	}
	return nil
}

// Normalize restores the declared kind of every field value in place. A
// decoded document cannot tell a string that looks like a time from a time.
func (t *Table) Normalize(e *crdt.Entity) {
	for name, r := range e.Fields {
		f, ok := t.fields[name]
		if !ok {
			continue
		}
		if v := r.Value.Coerce(f.Kind); v.Kind() != r.Value.Kind() {
			r.Value = v
			e.Fields[name] = r
		}
	}
}

// Upgrade returns a copy of e at the table's current version. Registers for
// fields added after the entity's version get the declared default stamped
// with the entity's own created_at, so that every replica upgrading the
// same entity produces identical registers, and any real write wins.
func (t *Table) Upgrade(e *crdt.Entity) (*crdt.Entity, error) {
	if e.SchemaVersion > t.Version {
		return nil, &crdt.ValidationError{
			EntityID: e.ID, Field: "schema_version",
			Reason: fmt.Sprintf("cannot downgrade version %d to %d", e.SchemaVersion, t.Version),
			Err:    ErrVersionAhead,
		}
	}

	out := e.Clone()
	t.Normalize(out)
	if e.SchemaVersion == t.Version {
		return out, nil
	}

	for name, f := range t.fields {
		if f.Since <= e.SchemaVersion {
			continue
		}
		if _, exists := out.Fields[name]; exists {
			continue
		}
		out.Fields[name] = crdt.NewRegister(f.Default, e.CreatedAt)
	}
	out.SchemaVersion = t.Version
	return out, nil
}

// Registry хранит объявления всех таблиц узла.
type Registry struct {
	tables map[string]*Table
}

// NewRegistry builds a registry from table declarations.
func NewRegistry(tables ...*Table) (*Registry, error) {
	r := &Registry{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, dup := r.tables[t.Name]; dup {
			return nil, fmt.Errorf("table %s declared twice", t.Name)
		}
		r.tables[t.Name] = t
	}
	return r, nil
}

// Table returns a table or a ValidationError wrapping ErrUnknownTable.
func (r *Registry) Table(name string) (*Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, &crdt.ValidationError{Reason: "table " + name + " is not declared", Err: ErrUnknownTable}
	}
	return t, nil
}

// Names returns table names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.tables))
}
