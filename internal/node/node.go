// Package node собирает узел ledgersync из настроек: хранилища, часы,
// сервис сущностей, синхронизацию, HTTP сервер и mDNS.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/ledgersync/internal/config"
	"github.com/iudanet/ledgersync/internal/crypto"
	"github.com/iudanet/ledgersync/internal/discovery"
	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/replica"
	"github.com/iudanet/ledgersync/internal/schema"
	"github.com/iudanet/ledgersync/internal/storage"
	"github.com/iudanet/ledgersync/internal/storage/boltdb"
	"github.com/iudanet/ledgersync/internal/storage/sqlite"
	"github.com/iudanet/ledgersync/internal/sync"
	"github.com/iudanet/ledgersync/internal/transport/httpsync"
	"github.com/iudanet/ledgersync/internal/validation"
)

// ErrNodeIDMismatch indicates a configured node id that differs from the
// one the data directory was created with.
var ErrNodeIDMismatch = errors.New("node id does not match data directory")

const shutdownTimeout = 5 * time.Second

// Node is an opened replica with its sync machinery.
type Node struct {
	cfg       *config.Config
	logger    *slog.Logger
	state     *boltdb.Storage
	store     *sqlite.Storage
	svc       *replica.Service
	keys      *crypto.ClusterKeys
	session   *sync.Session
	responder *sync.Responder
	gc        *sync.GC
	syncer    *sync.Syncer
}

// Open opens (or creates) the node stored in cfg.DataDir.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	var keys *crypto.ClusterKeys
	if cfg.Cluster.Passphrase != "" {
		k, err := crypto.DeriveClusterKeys(cfg.Cluster.Passphrase, cfg.Cluster.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to derive cluster keys: %w", err)
		}
		keys = k
	}

	state, err := boltdb.New(ctx, cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open node state: %w", err)
	}

	nodeID, err := resolveNodeID(ctx, state, cfg.NodeID)
	if err != nil {
		state.Close()
		return nil, err
	}

	clock := hlc.NewClockWithNodeID(nodeID,
		hlc.WithMaxSkew(cfg.Clock.MaxSkew),
		hlc.WithLogger(logger),
	)
	checkpoint, err := state.ClockCheckpoint(ctx)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("failed to read clock checkpoint: %w", err)
	}
	clock.Restore(checkpoint)

	store, err := sqlite.New(ctx, cfg.LedgerPath(), clock)
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	n := &Node{
		cfg:    cfg,
		logger: logger,
		state:  state,
		store:  store,
		keys:   keys,
	}

	// Checkpoint мог не сохраниться при аварийном завершении
	last, err := store.LastChange(ctx)
	if err != nil {
		n.closeStores()
		return nil, fmt.Errorf("failed to read last change: %w", err)
	}
	clock.Restore(last)

	n.svc = replica.NewService(store, state, schema.Default(), clock, logger)
	if err := n.svc.EnsureIndexes(ctx); err != nil {
		n.closeStores()
		return nil, err
	}

	n.session = sync.NewSession(n.svc, state, logger, sync.WithBatchSize(cfg.Sync.BatchSize))
	n.responder = sync.NewResponder(n.svc, state, logger)
	n.gc = sync.NewGC(store, state, clock, cfg.GC.Retention, logger)
	n.syncer = sync.NewSyncer(n.session, n.gc,
		httpsync.Dialer(nodeID, keys, cfg.Sync.Timeout),
		sync.SyncerConfig{
			Interval:   cfg.Sync.Interval,
			GCInterval: cfg.GC.Interval,
			Timeout:    cfg.Sync.Timeout,
		}, logger)
	for _, p := range cfg.Peers {
		n.syncer.AddPeer(p)
	}

	logger.Debug("Node opened", "node_id", nodeID, "data_dir", cfg.DataDir, "sealed", keys != nil)
	return n, nil
}

// resolveNodeID берет id из настроек, из node state или генерирует новый.
// Id записан в каждой метке узла, поэтому сменить его нельзя.
func resolveNodeID(ctx context.Context, state storage.NodeState, configured string) (string, error) {
	saved, err := state.NodeID(ctx)
	switch {
	case err == nil:
		if configured != "" && configured != saved {
			return "", fmt.Errorf("%w: configured %q, stored %q", ErrNodeIDMismatch, configured, saved)
		}
		return saved, nil
	case !errors.Is(err, storage.ErrEntityNotFound):
		return "", fmt.Errorf("failed to read node id: %w", err)
	}

	nodeID := configured
	if nodeID == "" {
		nodeID = uuid.New().String()
	}
	if err := validation.ValidateNodeID(nodeID); err != nil {
		return "", err
	}
	if err := state.SaveNodeID(ctx, nodeID); err != nil {
		return "", fmt.Errorf("failed to save node id: %w", err)
	}
	return nodeID, nil
}

// NodeID returns the id of this node.
func (n *Node) NodeID() string {
	return n.svc.NodeID()
}

// ListenAddr returns the configured sync listen address.
func (n *Node) ListenAddr() string {
	return n.cfg.ListenAddr
}

// Service returns the entity API.
func (n *Node) Service() *replica.Service {
	return n.svc
}

// Syncer returns the anti-entropy loop.
func (n *Node) Syncer() *sync.Syncer {
	return n.syncer
}

// Sealed reports whether peer traffic is authenticated and encrypted.
func (n *Node) Sealed() bool {
	return n.keys != nil
}

// SyncOnce синхронизируется с addrs, а без них - с известными узлами.
func (n *Node) SyncOnce(ctx context.Context, addrs ...string) (map[string]*sync.Result, map[string]error) {
	for _, addr := range addrs {
		n.syncer.AddPeer(addr)
	}
	return n.syncer.SyncOnce(ctx)
}

// CollectGarbage runs one tombstone GC pass.
func (n *Node) CollectGarbage(ctx context.Context) (int, error) {
	return n.gc.Run(ctx)
}

// Serve answers peers on ln and runs anti-entropy and discovery until ctx
// is done. The listener is closed on return.
func (n *Node) Serve(ctx context.Context, ln net.Listener) error {
	srv, err := httpsync.NewServer(n.responder, n.NodeID(), n.keys, n.logger,
		httpsync.WithRateLimit(n.cfg.Sync.RateLimit, time.Minute))
	if err != nil {
		ln.Close()
		return err
	}
	defer srv.Close()

	fp := ""
	if n.keys != nil {
		if fp, err = crypto.Fingerprint(n.keys.TokenKey); err != nil {
			ln.Close()
			return err
		}
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		n.logger.Info("Sync server started", "node_id", n.NodeID(), "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if n.cfg.Discovery.MDNS {
		mdns, err := discovery.New(n.NodeID(), ln.Addr().String(), fp, n.syncer.AddPeer, n.logger)
		if err != nil {
			// Без mDNS узел работает со статическим списком
			n.logger.Warn("mDNS discovery disabled", "error", err)
		} else {
			defer mdns.Stop()
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		n.syncer.Run(loopCtx)
		close(loopDone)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	cancel()
	<-loopDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		n.logger.Error("Failed to shut down sync server", "error", shutdownErr)
	}
	n.logger.Info("Sync server stopped", "node_id", n.NodeID())

	if err != nil {
		return fmt.Errorf("sync server failed: %w", err)
	}
	return nil
}

// Close persists the clock checkpoint and closes both stores.
func (n *Node) Close() error {
	var errs []error
	if err := n.svc.Checkpoint(context.Background()); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, n.closeStores())
	return errors.Join(errs...)
}

func (n *Node) closeStores() error {
	var errs []error
	if err := n.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close ledger: %w", err))
	}
	if err := n.state.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close node state: %w", err))
	}
	return errors.Join(errs...)
}
