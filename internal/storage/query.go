package storage

import (
	"fmt"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/validation"
)

// Op оператор сравнения в предикате
type Op string

const (
	OpEq      Op = "="
	OpNe      Op = "!="
	OpLt      Op = "<"
	OpLe      Op = "<="
	OpGt      Op = ">"
	OpGe      Op = ">="
	OpIn      Op = "IN"
	OpLike    Op = "LIKE"
	OpIsNull  Op = "IS NULL"
	OpNotNull Op = "IS NOT NULL"
)

var knownOps = map[Op]struct{}{
	OpEq: {}, OpNe: {}, OpLt: {}, OpLe: {}, OpGt: {}, OpGe: {},
	OpIn: {}, OpLike: {}, OpIsNull: {}, OpNotNull: {},
}

// ParseOp accepts the textual operators used on the command line.
func ParseOp(s string) (Op, error) {
	op := Op(s)
	if _, ok := knownOps[op]; !ok {
		return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, s)
	}
	return op, nil
}

// Predicate условие по пути документа, например status.value = "paid".
type Predicate struct {
	Value  crdt.Value   // Value операнд для бинарных операторов
	Path   string       // Path путь в документе (status.value, updated_at.physical_time_ms, id)
	Op     Op           // Op оператор
	Values []crdt.Value // Values операнды для IN
}

// Order сортировка по пути.
type Order struct {
	Path string
	Desc bool
}

// Query describes a predicate query over one table. Results are always
// ordered by id last, so pages are deterministic.
type Query struct {
	Where          []Predicate
	OrderBy        []Order
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// Where is a shorthand for a single equality query.
func Where(path string, op Op, v crdt.Value) Query {
	return Query{Where: []Predicate{{Path: path, Op: op, Value: v}}}
}

// Validate checks paths, operators and paging arguments.
func (q Query) Validate() error {
	for _, p := range q.Where {
		if err := validation.ValidatePath(p.Path); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		if _, ok := knownOps[p.Op]; !ok {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, p.Op)
		}
		if p.Op == OpIn && len(p.Values) == 0 {
			return fmt.Errorf("%w: IN on %s needs at least one value", ErrInvalidQuery, p.Path)
		}
		if p.Op == OpLike {
			if _, ok := p.Value.AsString(); !ok {
				return fmt.Errorf("%w: LIKE on %s needs a string pattern", ErrInvalidQuery, p.Path)
			}
		}
	}
	for _, o := range q.OrderBy {
		if err := validation.ValidatePath(o.Path); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalidQuery)
	}
	return nil
}
