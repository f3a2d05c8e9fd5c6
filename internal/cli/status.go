package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iudanet/ledgersync/internal/node"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node identity, record counts and sync progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				st, err := n.Status(ctx)
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return printJSON(rootOpts.io, st)
				}
				return printStatus(rootOpts, st)
			})
		},
	}
}

func printStatus(opts *RootOptions, st *node.Status) error {
	out := opts.io
	out.Println("=== Node Status ===")
	out.Println()
	out.Printf("Node ID:     %s\n", st.NodeID)
	out.Printf("Clock:       %s\n", st.Clock)
	out.Printf("Last change: %s\n", st.LastChange)
	if st.Sealed {
		out.Println("Peer traffic: authenticated and encrypted")
	} else {
		out.Println("⚠️  Peer traffic: open (no cluster passphrase)")
	}
	out.Println()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tLIVE\tDELETED")
	for _, t := range st.Tables {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Name, t.Live, t.Deleted)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	out.Printf("Purged ids:  %d\n", st.Graveyard)
	out.Println()

	if db := st.Database; db != nil {
		out.Println("=== Database ===")
		out.Printf("Integrity:     %s\n", db.Integrity)
		out.Printf("Size:          %d bytes (%d pages of %d)\n", db.Size(), db.PageCount, db.PageSize)
		out.Printf("Fragmentation: %.1f%%\n", db.Fragmentation())
		out.Printf("WAL size:      %d bytes\n", db.WALSize)
		out.Printf("Response time: %s\n", db.ResponseTime)
		for _, w := range db.Warnings() {
			out.Printf("⚠️  %s\n", w)
		}
		out.Println()
	}

	if len(st.Peers) == 0 {
		out.Println("No peers synchronized yet.")
		return nil
	}
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PEER\tCURSOR\tACK")
	for _, p := range st.Peers {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.NodeID, p.Cursor, p.Ack)
	}
	return tw.Flush()
}
