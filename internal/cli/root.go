// Package cli реализует команды ledgersync поверх узла.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/iudanet/ledgersync/internal/config"
	"github.com/iudanet/ledgersync/internal/iocli"
	"github.com/iudanet/ledgersync/internal/node"
	"github.com/iudanet/ledgersync/internal/validation"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// VersionInfo заполняется через ldflags в cmd/ledgersync
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	io            iocli.IO
	ConfigPath    string
	DataDir       string
	NodeID        string
	ListenAddr    string
	LogLevel      string
	Format        string // "json" | "text"
	Peers         []string
	AskPassphrase bool
}

// NewRootCommand creates the root command of the ledgersync CLI.
func NewRootCommand(io iocli.IO, info VersionInfo) *cobra.Command {
	opts := &RootOptions{io: io}

	cmd := &cobra.Command{
		Use:   "ledgersync",
		Short: "Offline-first ledger replica",
		Long: `ledgersync keeps business records (invoices, customers, employees,
payroll runs) on every node and merges them conflict-free when nodes meet.

Configuration is read from --config (YAML); flags override the file and
the LEDGERSYNC_PASSPHRASE environment variable overrides the passphrase.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}
	cmd.SetOut(io)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config")
	flags.StringVar(&opts.DataDir, "data-dir", "", "data directory (overrides config)")
	flags.StringVar(&opts.NodeID, "node-id", "", "node id (overrides config)")
	flags.StringVar(&opts.ListenAddr, "listen", "", "sync listen address (overrides config)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringSliceVar(&opts.Peers, "peer", nil, "peer address host:port, repeatable (adds to config)")
	flags.BoolVar(&opts.AskPassphrase, "ask-passphrase", false, "prompt for the cluster passphrase")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts, info))

	return cmd
}

// loadConfig читает файл и применяет флаги поверх него
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	if o.NodeID != "" {
		cfg.NodeID = o.NodeID
	}
	if o.ListenAddr != "" {
		cfg.ListenAddr = o.ListenAddr
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	cfg.Peers = append(cfg.Peers, o.Peers...)

	if o.AskPassphrase {
		passphrase, err := o.io.ReadPassword("Cluster passphrase: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
		if err := validation.ValidatePassphrase(passphrase); err != nil {
			return nil, fmt.Errorf("invalid passphrase: %w", err)
		}
		cfg.Cluster.Passphrase = passphrase
	}

	return cfg, nil
}

// logger пишет в stderr команды, чтобы не смешиваться с выводом
func (o *RootOptions) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	return config.NewLogger(cfg.Log, cmd.ErrOrStderr())
}

// withNode открывает узел на время выполнения fn
func (o *RootOptions) withNode(cmd *cobra.Command, fn func(ctx context.Context, n *node.Node) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	logger, err := o.logger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	n, err := node.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error("Failed to close node", "error", err)
		}
	}()

	return fn(ctx, n)
}
