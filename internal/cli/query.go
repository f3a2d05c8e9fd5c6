package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/node"
	"github.com/iudanet/ledgersync/internal/storage"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Where          []string
	OrderBy        []string
	Limit          int
	Offset         int
	IncludeDeleted bool
	CountOnly      bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Query records by document path",
		Long: `Query records of a table. Conditions take the form "path op value"
and are combined with AND. Field values live at <field>.value.

Operators: = != < <= > >= IN LIKE, IS NULL, IS NOT NULL

Example:
  ledgersync query invoices --where "status.value = sent" --where "amount.value >= 100" --order amount.value:desc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				return runQuery(ctx, opts, n, args[0])
			})
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, `condition "path op value", repeatable`)
	cmd.Flags().StringArrayVar(&opts.OrderBy, "order", nil, "order by path[:desc], repeatable")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records (0 = all)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "skip records")
	cmd.Flags().BoolVar(&opts.IncludeDeleted, "include-deleted", false, "include deleted records")
	cmd.Flags().BoolVar(&opts.CountOnly, "count", false, "print only the number of matching records")

	return cmd
}

func runQuery(ctx context.Context, opts *QueryOptions, n *node.Node, table string) error {
	t, err := n.Service().Registry().Table(table)
	if err != nil {
		return err
	}

	q := storage.Query{
		Limit:          opts.Limit,
		Offset:         opts.Offset,
		IncludeDeleted: opts.IncludeDeleted,
	}
	for _, w := range opts.Where {
		p, err := parsePredicate(t, w)
		if err != nil {
			return err
		}
		q.Where = append(q.Where, p)
	}
	for _, o := range opts.OrderBy {
		order, err := parseOrder(o)
		if err != nil {
			return err
		}
		q.OrderBy = append(q.OrderBy, order)
	}

	if opts.CountOnly {
		count, err := n.Service().Count(ctx, t.Name, q)
		if err != nil {
			return err
		}
		opts.io.Printf("%d\n", count)
		return nil
	}

	var entities []*crdt.Entity
	for e, err := range n.Service().Query(ctx, t.Name, q) {
		if err != nil {
			return err
		}
		entities = append(entities, e)
	}

	columns := make([]string, 0, len(t.Fields()))
	for _, f := range t.Fields() {
		columns = append(columns, f.Name)
	}
	return printEntities(opts.io, opts.Format, t.Name, columns, entities)
}
