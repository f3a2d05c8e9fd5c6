package sync

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	stdsync "sync"
	"time"
)

// Dialer opens a peer for an address.
type Dialer func(addr string) (Peer, error)

// Syncer runs periodic anti-entropy against a changing set of peers and
// tombstone GC on its own schedule.
type Syncer struct {
	session    *Session
	gc         *GC
	dial       Dialer
	logger     *slog.Logger
	peers      map[string]struct{}
	interval   time.Duration
	gcInterval time.Duration
	timeout    time.Duration
	mu         stdsync.Mutex
	running    stdsync.Mutex
}

// SyncerConfig параметры фонового цикла
type SyncerConfig struct {
	Interval   time.Duration // Interval период синхронизации
	GCInterval time.Duration // GCInterval период сборки tombstone, 0 отключает GC
	Timeout    time.Duration // Timeout ограничение одной сессии
}

// NewSyncer creates an anti-entropy loop. gc may be nil.
func NewSyncer(session *Session, gc *GC, dial Dialer, cfg SyncerConfig, logger *slog.Logger) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Syncer{
		session:    session,
		gc:         gc,
		dial:       dial,
		logger:     logger,
		peers:      make(map[string]struct{}),
		interval:   cfg.Interval,
		gcInterval: cfg.GCInterval,
		timeout:    cfg.Timeout,
	}
}

// AddPeer adds an address to the gossip set.
func (s *Syncer) AddPeer(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.peers[addr]; !ok {
		s.peers[addr] = struct{}{}
		s.logger.Info("Peer added", "addr", addr)
	}
}

// RemovePeer removes an address from the gossip set.
func (s *Syncer) RemovePeer(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, addr)
}

// Peers returns the current addresses in sorted order.
func (s *Syncer) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.peers))
}

// SyncOnce synchronizes with every known peer in turn. A failing peer does
// not stop the round; errors are returned per address.
func (s *Syncer) SyncOnce(ctx context.Context) (map[string]*Result, map[string]error) {
	// Одна сессия за раз: Session хранит текущую стадию
	s.running.Lock()
	defer s.running.Unlock()

	results := make(map[string]*Result)
	failures := make(map[string]error)

	for _, addr := range s.Peers() {
		if ctx.Err() != nil {
			failures[addr] = ctx.Err()
			continue
		}

		peer, err := s.dial(addr)
		if err != nil {
			failures[addr] = err
			continue
		}

		sessionCtx, cancel := context.WithTimeout(ctx, s.timeout)
		res, err := s.session.Run(sessionCtx, peer)
		cancel()
		if err != nil {
			s.logger.Warn("Synchronization failed", "addr", addr, "error", err)
			failures[addr] = err
			continue
		}
		results[addr] = res
	}

	return results, failures
}

// Run loops until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	syncTicker := time.NewTicker(s.interval)
	defer syncTicker.Stop()

	var gcTick <-chan time.Time
	if s.gc != nil && s.gcInterval > 0 {
		gcTicker := time.NewTicker(s.gcInterval)
		defer gcTicker.Stop()
		gcTick = gcTicker.C
	}

	s.logger.Info("Anti-entropy loop started",
		"interval", s.interval.String(),
		"gc_interval", s.gcInterval.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Anti-entropy loop stopped")
			return
		case <-syncTicker.C:
			s.SyncOnce(ctx)
		case <-gcTick:
			if _, err := s.gc.Run(ctx); err != nil {
				s.logger.Warn("Tombstone GC failed", "error", err)
			}
		}
	}
}
