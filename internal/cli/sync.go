package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/iudanet/ledgersync/internal/node"
	"github.com/iudanet/ledgersync/internal/sync"
)

// ErrNoPeers indicates a sync without any peer address.
var ErrNoPeers = errors.New("no peers: pass addresses or set peers in config")

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [host:port...]",
		Short: "Synchronize once with peers",
		Long: `Run one synchronization session with every given peer, or with the
configured peers when none are given. Peers must run "ledgersync serve".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				if len(args) == 0 && len(n.Syncer().Peers()) == 0 {
					return ErrNoPeers
				}
				results, failures := n.SyncOnce(ctx, args...)
				return printSyncResults(rootOpts, results, failures)
			})
		},
	}
}

type syncReport struct {
	Peer   string       `json:"peer"`
	Result *sync.Result `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func printSyncResults(opts *RootOptions, results map[string]*sync.Result, failures map[string]error) error {
	addrs := slices.Sorted(maps.Keys(results))
	addrs = append(addrs, slices.Sorted(maps.Keys(failures))...)

	if opts.Format == "json" {
		reports := make([]syncReport, 0, len(addrs))
		for _, addr := range addrs {
			r := syncReport{Peer: addr, Result: results[addr]}
			if err := failures[addr]; err != nil {
				r.Error = err.Error()
			}
			reports = append(reports, r)
		}
		if err := printJSON(opts.io, reports); err != nil {
			return err
		}
	} else {
		for _, addr := range addrs {
			if err := failures[addr]; err != nil {
				opts.io.Printf("✗ %s: %v\n", addr, err)
				continue
			}
			r := results[addr]
			opts.io.Printf("✓ %s (node %s): pushed %d, pulled %d, merged %d, unchanged %d, discarded %d, conflicts %d\n",
				addr, r.PeerID, r.Pushed, r.Pulled, r.Merged, r.Unchanged, r.Discarded, r.Conflicts)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("sync failed for %d of %d peer(s)", len(failures), len(addrs))
	}
	return nil
}

// NewGCCommand creates the gc command.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Purge tombstones every peer has acknowledged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withNode(cmd, func(ctx context.Context, n *node.Node) error {
				purged, err := n.CollectGarbage(ctx)
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return printJSON(rootOpts.io, map[string]int{"purged": purged})
				}
				rootOpts.io.Printf("Purged %d record(s)\n", purged)
				return nil
			})
		},
	}
}
