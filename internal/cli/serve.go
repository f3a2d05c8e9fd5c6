package cli

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/ledgersync/internal/node"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the node: answer peers and synchronize periodically",
		Long: `Run the node until interrupted. The node answers sync requests on
the listen address, synchronizes with known peers every sync.interval,
purges acknowledged tombstones every gc.interval and, with
discovery.mdns enabled, finds peers of the same cluster on the LAN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				addr := n.ListenAddr()
				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return fmt.Errorf("failed to listen on %s: %w", addr, err)
				}
				rootOpts.io.Printf("Node %s listening on %s\n", n.NodeID(), ln.Addr())
				return n.Serve(ctx, ln)
			})
		},
	}
}
