package cli

import (
	"context"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/node"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "create <table> [field=value...]",
		Short: "Create a record",
		Long: `Create a record in a table. Fields that are not given get the table
defaults. Values are parsed by the declared field type; times use RFC 3339
and the literal null clears a field.

Example:
  ledgersync create invoices number=2024-001 customer_id=C-1 amount=120.50`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				t, err := n.Service().Registry().Table(args[0])
				if err != nil {
					return err
				}
				fields, err := parseAssignments(t, args[1:])
				if err != nil {
					return err
				}

				var e *crdt.Entity
				if id != "" {
					e, err = n.Service().CreateWithID(ctx, t.Name, id, fields)
				} else {
					e, err = n.Service().Create(ctx, t.Name, fields)
				}
				if err != nil {
					return err
				}
				return printEntity(rootOpts.io, rootOpts.Format, t.Name, e)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "record id (default: generated uuid)")

	return cmd
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <table> <id> field=value...",
		Short: "Update fields of a record",
		Long: `Update fields of a record. Every field is written with its own
timestamp, so concurrent edits of other fields on other nodes survive.

Example:
  ledgersync set invoices INV-1 status=paid paid_at=2024-03-01T10:00:00Z`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				t, err := n.Service().Registry().Table(args[0])
				if err != nil {
					return err
				}
				fields, err := parseAssignments(t, args[2:])
				if err != nil {
					return err
				}

				e := &crdt.Entity{ID: args[1]}
				for _, name := range slices.Sorted(maps.Keys(fields)) {
					if e, err = n.Service().Mutate(ctx, t.Name, e, name, fields[name]); err != nil {
						return err
					}
				}
				return printEntity(rootOpts.io, rootOpts.Format, t.Name, e)
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete a record (tombstone)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				if _, err := n.Service().Delete(ctx, args[0], &crdt.Entity{ID: args[1]}); err != nil {
					return err
				}
				rootOpts.io.Printf("Deleted %s/%s\n", args[0], args[1])
				return nil
			})
		},
	}
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <table> <id>",
		Short: "Restore a deleted record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				if _, err := n.Service().Restore(ctx, args[0], &crdt.Entity{ID: args[1]}); err != nil {
					return err
				}
				rootOpts.io.Printf("Restored %s/%s\n", args[0], args[1])
				return nil
			})
		},
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Show a record with every field timestamp",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				e, err := n.Service().Get(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printEntity(rootOpts.io, rootOpts.Format, args[0], e)
			})
		},
	}
}
