package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/iocli"
)

// printJSON пишет v с отступами
func printJSON(out iocli.IO, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	out.Printf("%s\n", data)
	return nil
}

// printEntity выводит запись целиком: метаданные и все регистры
func printEntity(out iocli.IO, format, table string, e *crdt.Entity) error {
	if format == "json" {
		return printJSON(out, entityDoc{Table: table, Entity: e})
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Table:\t%s\n", table)
	fmt.Fprintf(tw, "ID:\t%s\n", e.ID)
	fmt.Fprintf(tw, "Created:\t%s (node %s)\n", e.CreatedAt, e.NodeID)
	fmt.Fprintf(tw, "Updated:\t%s\n", e.UpdatedAt)
	fmt.Fprintf(tw, "Schema version:\t%d\n", e.SchemaVersion)
	fmt.Fprintf(tw, "Deleted:\t%t\n", e.Deleted())
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "FIELD\tVALUE\tWRITTEN AT")
	for _, name := range e.FieldNames() {
		r := e.Fields[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, r.Value, r.Timestamp)
	}
	return tw.Flush()
}

// printEntities выводит список: id и значения полей в порядке columns
func printEntities(out iocli.IO, format, table string, columns []string, entities []*crdt.Entity) error {
	if format == "json" {
		docs := make([]entityDoc, 0, len(entities))
		for _, e := range entities {
			docs = append(docs, entityDoc{Table: table, Entity: e})
		}
		return printJSON(out, docs)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "ID")
	for _, c := range columns {
		fmt.Fprintf(tw, "\t%s", c)
	}
	fmt.Fprintln(tw)
	for _, e := range entities {
		fmt.Fprint(tw, e.ID)
		for _, c := range columns {
			fmt.Fprintf(tw, "\t%s", e.Value(c))
		}
		if e.Deleted() {
			fmt.Fprint(tw, "\t(deleted)")
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	out.Printf("\n%d record(s)\n", len(entities))
	return nil
}

type entityDoc struct {
	Table  string       `json:"table"`
	Entity *crdt.Entity `json:"entity"`
}
