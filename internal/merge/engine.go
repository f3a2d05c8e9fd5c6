// Package merge сверяет входящую версию сущности с локальной копией.
package merge

import (
	"fmt"
	"log/slog"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/schema"
)

// Outcome describes what a reconcile did to the local copy.
type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeInserted
	OutcomeUpdated
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unchanged"
	}
}

// Result результат сверки одной сущности
type Result struct {
	Entity    *crdt.Entity // Entity итоговая версия для записи на диск
	Outcome   Outcome      // Outcome что произошло с локальной копией
	Conflicts int          // Conflicts число регистров, где одна из записей проиграла
}

// Engine сливает удаленные версии сущностей с локальными.
type Engine struct {
	clock    *hlc.Clock
	registry *schema.Registry
	logger   *slog.Logger
}

// NewEngine creates a merge engine.
func NewEngine(clock *hlc.Clock, registry *schema.Registry, logger *slog.Logger) *Engine {
	return &Engine{
		clock:    clock,
		registry: registry,
		logger:   logger,
	}
}

// Reconcile validates remote (and local, when present) against the table
// declaration, upgrades the older side and merges. local may be nil when
// the entity is not stored yet. The remote stamps are observed by the clock
// before the result is returned, so any later local write is newer.
func (e *Engine) Reconcile(table string, local, remote *crdt.Entity) (Result, error) {
	t, err := e.registry.Table(table)
	if err != nil {
		return Result{}, err
	}
	if err := t.Validate(remote); err != nil {
		return Result{}, fmt.Errorf("remote %s/%s: %w", table, remote.ID, err)
	}

	e.clock.Observe(crdt.LatestStamp(remote))
	e.clock.Observe(remote.UpdatedAt)

	upRemote, err := t.Upgrade(remote)
	if err != nil {
		return Result{}, err
	}

	if local == nil {
		e.logger.Debug("Entity inserted from remote",
			"table", table,
			"id", remote.ID,
			"node_id", remote.NodeID)
		return Result{Entity: upRemote, Outcome: OutcomeInserted}, nil
	}

	if err := t.Validate(local); err != nil {
		return Result{}, fmt.Errorf("local %s/%s: %w", table, local.ID, err)
	}
	upLocal, err := t.Upgrade(local)
	if err != nil {
		return Result{}, err
	}

	merged, err := crdt.MergeEntity(upLocal, upRemote)
	if err != nil {
		return Result{}, err
	}

	before, err := crdt.Digest(local)
	if err != nil {
		return Result{}, err
	}
	after, err := crdt.Digest(merged)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Entity:    merged,
		Outcome:   OutcomeUpdated,
		Conflicts: crdt.Conflicts(upLocal, upRemote),
	}
	if before == after {
		res.Outcome = OutcomeUnchanged
	}

	if res.Conflicts > 0 {
		e.logger.Debug("Concurrent writes resolved",
			"table", table,
			"id", local.ID,
			"conflicts", res.Conflicts)
	}

	return res, nil
}
