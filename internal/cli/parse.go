package cli

import (
	"fmt"
	"strings"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/schema"
	"github.com/iudanet/ledgersync/internal/storage"
)

// nullLiteral записывает null в поле любого типа
const nullLiteral = "null"

// parseAssignments разбирает аргументы вида field=value по типам полей таблицы
func parseAssignments(t *schema.Table, args []string) (map[string]crdt.Value, error) {
	fields := make(map[string]crdt.Value, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected field=value", arg)
		}
		if _, dup := fields[name]; dup {
			return nil, fmt.Errorf("field %s assigned twice", name)
		}
		f, ok := t.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownField, t.Name, name)
		}
		v, err := parseFieldValue(f, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = v
	}
	return fields, nil
}

func parseFieldValue(f schema.Field, raw string) (crdt.Value, error) {
	if raw == nullLiteral {
		return crdt.Null(), nil
	}
	return crdt.ParseValue(f.Kind, raw)
}

// parsePredicate разбирает условие "path op value".
// Примеры: "status.value = paid", "amount.value >= 100",
// "status.value IN draft,sent", "due_date.value IS NULL".
func parsePredicate(t *schema.Table, s string) (storage.Predicate, error) {
	path, rest, ok := strings.Cut(strings.TrimSpace(s), " ")
	rest = strings.TrimSpace(rest)
	if !ok || rest == "" {
		return storage.Predicate{}, fmt.Errorf("invalid condition %q: expected \"path op value\"", s)
	}

	switch upper := strings.ToUpper(rest); upper {
	case string(storage.OpIsNull), string(storage.OpNotNull):
		return storage.Predicate{Path: path, Op: storage.Op(upper)}, nil
	}

	opText, raw, ok := strings.Cut(rest, " ")
	if !ok {
		return storage.Predicate{}, fmt.Errorf("invalid condition %q: missing value", s)
	}
	op, err := storage.ParseOp(strings.ToUpper(opText))
	if err != nil {
		return storage.Predicate{}, err
	}
	raw = strings.TrimSpace(raw)
	kind := pathKind(t, path)

	if op == storage.OpIn {
		var values []crdt.Value
		for _, part := range strings.Split(raw, ",") {
			v, err := crdt.ParseValue(kind, strings.TrimSpace(part))
			if err != nil {
				return storage.Predicate{}, fmt.Errorf("condition on %s: %w", path, err)
			}
			values = append(values, v)
		}
		return storage.Predicate{Path: path, Op: op, Values: values}, nil
	}

	if op == storage.OpLike {
		kind = crdt.KindString
	}
	v, err := crdt.ParseValue(kind, raw)
	if err != nil {
		return storage.Predicate{}, fmt.Errorf("condition on %s: %w", path, err)
	}
	return storage.Predicate{Path: path, Op: op, Value: v}, nil
}

// pathKind тип операнда по пути документа
func pathKind(t *schema.Table, path string) crdt.Kind {
	if path == "is_deleted.value" {
		return crdt.KindBool
	}
	if name, ok := strings.CutSuffix(path, ".value"); ok {
		if f, ok := t.Field(name); ok {
			return f.Kind
		}
	}
	if strings.HasSuffix(path, ".physical_time_ms") || strings.HasSuffix(path, ".logical_counter") ||
		path == "schema_version" {
		return crdt.KindNumber
	}
	return crdt.KindString
}

// parseOrder разбирает "path" или "path:desc"
func parseOrder(s string) (storage.Order, error) {
	path, dir, _ := strings.Cut(s, ":")
	switch strings.ToLower(dir) {
	case "", "asc":
		return storage.Order{Path: path}, nil
	case "desc":
		return storage.Order{Path: path, Desc: true}, nil
	}
	return storage.Order{}, fmt.Errorf("invalid order %q: direction must be asc or desc", s)
}
