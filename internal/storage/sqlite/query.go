package sqlite

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/storage"
	"github.com/iudanet/ledgersync/internal/validation"
)

// pathExpr переводит путь документа в SQL выражение. Путь проверен
// validation.ValidatePath, поэтому его можно подставить литералом: так
// выражение совпадает с выражением индекса из EnsureIndex.
func pathExpr(path string) string {
	if path == "id" {
		return "id"
	}
	return "json_extract(doc, '$." + path + "')"
}

// sqlArg приводит значение к тому, что возвращает json_extract
func sqlArg(v crdt.Value) any {
	switch v.Kind() {
	case crdt.KindString, crdt.KindTime:
		s, _ := v.AsString()
		return s
	case crdt.KindNumber:
		f, _ := v.AsNumber()
		return f
	case crdt.KindBool:
		b, _ := v.AsBool()
		return boolToInt(b)
	}
	return nil
}

func buildWhere(table string, q storage.Query) (string, []any) {
	conds := []string{"tbl = ?"}
	args := []any{table}
	if !q.IncludeDeleted {
		conds = append(conds, "deleted = 0")
	}

	for _, p := range q.Where {
		expr := pathExpr(p.Path)
		switch {
		case p.Op == storage.OpIsNull, p.Op == storage.OpNotNull:
			conds = append(conds, expr+" "+string(p.Op))
		case p.Op == storage.OpEq && p.Value.IsNull():
			conds = append(conds, expr+" IS NULL")
		case p.Op == storage.OpNe && p.Value.IsNull():
			conds = append(conds, expr+" IS NOT NULL")
		case p.Op == storage.OpIn:
			marks := make([]string, len(p.Values))
			for i, v := range p.Values {
				marks[i] = "?"
				args = append(args, sqlArg(v))
			}
			conds = append(conds, expr+" IN ("+strings.Join(marks, ", ")+")")
		default:
			conds = append(conds, expr+" "+string(p.Op)+" ?")
			args = append(args, sqlArg(p.Value))
		}
	}

	return strings.Join(conds, " AND "), args
}

func buildSelect(table string, q storage.Query) (string, []any) {
	where, args := buildWhere(table, q)

	var b strings.Builder
	b.WriteString("SELECT doc FROM entities WHERE ")
	b.WriteString(where)

	order := make([]string, 0, len(q.OrderBy)+1)
	byID := false
	for _, o := range q.OrderBy {
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		order = append(order, pathExpr(o.Path)+dir)
		byID = byID || o.Path == "id"
	}
	if !byID {
		order = append(order, "id ASC")
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))

	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit == 0 {
			limit = -1
		}
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, q.Offset)
	}

	return b.String(), args
}

// Query returns a lazy sequence of entities matching q. Each range over
// the sequence runs the query again; breaking out closes the cursor.
func (s *Storage) Query(ctx context.Context, table string, q storage.Query) iter.Seq2[*crdt.Entity, error] {
	return func(yield func(*crdt.Entity, error) bool) {
		if err := validation.ValidateTableName(table); err != nil {
			yield(nil, err)
			return
		}
		if err := q.Validate(); err != nil {
			yield(nil, err)
			return
		}

		query, args := buildSelect(table, q)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, storage.Fail("query", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var doc string
			if err := rows.Scan(&doc); err != nil {
				yield(nil, storage.Fail("query", err))
				return
			}
			e, err := decodeDoc(doc)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, storage.Fail("query", err))
		}
	}
}

// Count returns the number of rows matching q, ignoring paging and order.
func (s *Storage) Count(ctx context.Context, table string, q storage.Query) (int, error) {
	if err := validation.ValidateTableName(table); err != nil {
		return 0, err
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}

	where, args := buildWhere(table, q)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities WHERE "+where, args...).Scan(&n); err != nil {
		return 0, storage.Fail("count", err)
	}
	return n, nil
}

// EnsureIndex creates an expression index on (tbl, path). The index is
// shared by all tables; the tbl column keeps lookups selective.
func (s *Storage) EnsureIndex(ctx context.Context, table, path string) error {
	if err := validation.ValidateTableName(table); err != nil {
		return err
	}
	if err := validation.ValidatePath(path); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if path == "id" {
		return nil
	}

	name := "idx_doc_" + strings.ReplaceAll(path, ".", "_")
	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON entities (tbl, %s)`, name, pathExpr(path))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return storage.Fail("ensure index", err)
	}
	return nil
}
