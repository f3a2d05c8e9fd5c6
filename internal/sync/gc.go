package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/storage"
)

// DefaultRetention минимальный возраст tombstone перед удалением
const DefaultRetention = 30 * 24 * time.Hour

// GC physically removes tombstoned rows once every known peer has
// acknowledged them and they are older than the retention window. Purged
// ids go to the graveyard so stale copies are discarded on merge.
type GC struct {
	store     storage.EntityStore
	state     storage.NodeState
	clock     *hlc.Clock
	logger    *slog.Logger
	now       func() time.Time
	retention time.Duration
}

// NewGC creates a tombstone collector.
func NewGC(store storage.EntityStore, state storage.NodeState, clock *hlc.Clock, retention time.Duration, logger *slog.Logger) *GC {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &GC{
		store:     store,
		state:     state,
		clock:     clock,
		logger:    logger,
		now:       time.Now,
		retention: retention,
	}
}

// Run purges eligible tombstones and returns their number. Nothing is
// purged until at least one peer has acknowledged our changes.
func (g *GC) Run(ctx context.Context) (int, error) {
	acks, err := g.state.Acks(ctx)
	if err != nil {
		return 0, err
	}
	if len(acks) == 0 {
		g.logger.Debug("Tombstone GC skipped, no peer acks yet")
		return 0, nil
	}

	var horizon hlc.Timestamp
	first := true
	for _, ack := range acks {
		if first || ack.Before(horizon) {
			horizon = ack
			first = false
		}
	}

	keys, err := g.store.PurgeTombstones(ctx, horizon, g.now().Add(-g.retention))
	if err != nil {
		return 0, fmt.Errorf("failed to purge tombstones: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	if err := g.state.Bury(ctx, keys, g.clock.Now()); err != nil {
		return 0, fmt.Errorf("failed to record purged ids: %w", err)
	}

	g.logger.Info("Tombstones purged",
		"count", len(keys),
		"horizon", horizon.String(),
		"peers", len(acks))

	return len(keys), nil
}
