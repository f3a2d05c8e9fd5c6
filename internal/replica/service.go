// Package replica is the entity API of a node: every local write and every
// merge of a remote version goes through it.
package replica

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/merge"
	"github.com/iudanet/ledgersync/internal/schema"
	"github.com/iudanet/ledgersync/internal/storage"
)

// ErrDeleted indicates a local write to an entity that carries a tombstone.
// Restore it first.
var ErrDeleted = errors.New("entity is deleted")

// Service handles local entity operations of one node
type Service struct {
	store    storage.EntityStore
	state    storage.NodeState
	registry *schema.Registry
	engine   *merge.Engine
	clock    *hlc.Clock
	logger   *slog.Logger
}

// NewService creates a new replica service
func NewService(
	store storage.EntityStore,
	state storage.NodeState,
	registry *schema.Registry,
	clock *hlc.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		state:    state,
		registry: registry,
		engine:   merge.NewEngine(clock, registry, logger),
		clock:    clock,
		logger:   logger,
	}
}

// NodeID returns the id of this node.
func (s *Service) NodeID() string {
	return s.clock.NodeID()
}

// Clock returns the node clock.
func (s *Service) Clock() *hlc.Clock {
	return s.clock
}

// Registry returns the table declarations.
func (s *Service) Registry() *schema.Registry {
	return s.registry
}

// EnsureIndexes creates expression indexes for every indexed field.
func (s *Service) EnsureIndexes(ctx context.Context) error {
	for _, name := range s.registry.Names() {
		t, err := s.registry.Table(name)
		if err != nil {
			return err
		}
		for _, path := range t.IndexedPaths() {
			if err := s.store.EnsureIndex(ctx, name, path); err != nil {
				return fmt.Errorf("failed to index %s.%s: %w", name, path, err)
			}
		}
	}
	return nil
}

// Create stores a new entity with a fresh uuid. Fields missing from
// fields get the table defaults.
func (s *Service) Create(ctx context.Context, table string, fields map[string]crdt.Value) (*crdt.Entity, error) {
	return s.CreateWithID(ctx, table, uuid.New().String(), fields)
}

// CreateWithID is Create with a caller-chosen id. Ids are never reused, so
// ids purged by tombstone GC are rejected as duplicates.
func (s *Service) CreateWithID(ctx context.Context, table, id string, fields map[string]crdt.Value) (*crdt.Entity, error) {
	t, err := s.registry.Table(table)
	if err != nil {
		return nil, err
	}

	values := t.Defaults()
	for name, v := range fields {
		if err := t.CheckValue(id, name, v); err != nil {
			return nil, err
		}
		values[name] = v
	}

	buried, err := s.state.IsBuried(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if buried {
		return nil, fmt.Errorf("%w: %s/%s was purged", storage.ErrDuplicateKey, table, id)
	}

	e, err := crdt.NewEntity(s.clock, id, t.Version, values)
	if err != nil {
		return nil, err
	}

	if err := s.store.Insert(ctx, table, e); err != nil {
		return nil, fmt.Errorf("failed to save entity: %w", err)
	}

	s.logger.Debug("Entity created",
		"table", table,
		"id", e.ID)

	return e, nil
}

// Mutate re-stamps exactly one register of the stored entity. Only the id
// of e is used; the write is applied to the current stored version.
func (s *Service) Mutate(ctx context.Context, table string, e *crdt.Entity, field string, v crdt.Value) (*crdt.Entity, error) {
	t, err := s.registry.Table(table)
	if err != nil {
		return nil, err
	}
	if err := t.CheckValue(e.ID, field, v); err != nil {
		return nil, err
	}

	return s.modify(ctx, t, e.ID, func(next *crdt.Entity) error {
		if next.Deleted() {
			return fmt.Errorf("%w: %s/%s", ErrDeleted, table, e.ID)
		}
		return next.Set(s.clock, field, v)
	})
}

// Delete sets the tombstone register.
func (s *Service) Delete(ctx context.Context, table string, e *crdt.Entity) (*crdt.Entity, error) {
	t, err := s.registry.Table(table)
	if err != nil {
		return nil, err
	}
	return s.modify(ctx, t, e.ID, func(next *crdt.Entity) error {
		next.Delete(s.clock)
		return nil
	})
}

// Restore clears the tombstone register with a fresh stamp.
func (s *Service) Restore(ctx context.Context, table string, e *crdt.Entity) (*crdt.Entity, error) {
	t, err := s.registry.Table(table)
	if err != nil {
		return nil, err
	}
	return s.modify(ctx, t, e.ID, func(next *crdt.Entity) error {
		next.Restore(s.clock)
		return nil
	})
}

// modify применяет локальную запись к сохраненной версии, обновив ее
// до текущей схемы
func (s *Service) modify(ctx context.Context, t *schema.Table, id string, fn func(next *crdt.Entity) error) (*crdt.Entity, error) {
	return s.store.Modify(ctx, t.Name, id, func(current *crdt.Entity) (*crdt.Entity, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrEntityNotFound, t.Name, id)
		}
		next, err := t.Upgrade(current)
		if err != nil {
			return nil, err
		}
		if err := fn(next); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// Get returns the stored entity, deleted or not.
func (s *Service) Get(ctx context.Context, table, id string) (*crdt.Entity, error) {
	t, err := s.registry.Table(table)
	if err != nil {
		return nil, err
	}
	e, err := s.store.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}
	t.Normalize(e)
	return e, nil
}

// Query returns a lazy sequence of entities matching q.
func (s *Service) Query(ctx context.Context, table string, q storage.Query) iter.Seq2[*crdt.Entity, error] {
	t, err := s.registry.Table(table)
	if err != nil {
		return func(yield func(*crdt.Entity, error) bool) {
			yield(nil, err)
		}
	}
	return func(yield func(*crdt.Entity, error) bool) {
		for e, err := range s.store.Query(ctx, table, q) {
			if err == nil {
				t.Normalize(e)
			}
			if !yield(e, err) {
				return
			}
		}
	}
}

// Count returns the number of entities matching q.
func (s *Service) Count(ctx context.Context, table string, q storage.Query) (int, error) {
	if _, err := s.registry.Table(table); err != nil {
		return 0, err
	}
	return s.store.Count(ctx, table, q)
}

// BatchInsert validates and stores all entities or none of them. Ids
// purged by tombstone GC are rejected as in CreateWithID.
func (s *Service) BatchInsert(ctx context.Context, table string, entities []*crdt.Entity) error {
	t, err := s.registry.Table(table)
	if err != nil {
		return err
	}
	for _, e := range entities {
		if err := t.Validate(e); err != nil {
			return err
		}
		buried, err := s.state.IsBuried(ctx, table, e.ID)
		if err != nil {
			return err
		}
		if buried {
			return fmt.Errorf("%w: %s/%s was purged", storage.ErrDuplicateKey, table, e.ID)
		}
	}
	return s.store.BatchInsert(ctx, table, entities)
}

// Apply merges a remote version into the store. Versions of ids purged by
// tombstone GC are discarded.
func (s *Service) Apply(ctx context.Context, table string, remote *crdt.Entity) (merge.Result, error) {
	buried, err := s.state.IsBuried(ctx, table, remote.ID)
	if err != nil {
		return merge.Result{}, err
	}
	if buried {
		s.logger.Debug("Discarded version of purged entity",
			"table", table,
			"id", remote.ID)
		return merge.Result{Outcome: merge.OutcomeDiscarded}, nil
	}

	var res merge.Result
	_, err = s.store.Modify(ctx, table, remote.ID, func(current *crdt.Entity) (*crdt.Entity, error) {
		var err error
		res, err = s.engine.Reconcile(table, current, remote)
		if err != nil {
			return nil, err
		}
		if res.Outcome == merge.OutcomeUnchanged {
			return nil, storage.ErrSkipWrite
		}
		return res.Entity, nil
	})
	if err != nil {
		return merge.Result{}, err
	}

	return res, nil
}

// ChangesSince returns the local change journal after the given stamp.
func (s *Service) ChangesSince(ctx context.Context, after hlc.Timestamp, limit int) ([]storage.Change, error) {
	return s.store.ChangesSince(ctx, after, limit)
}

// LastChange returns the newest local change stamp.
func (s *Service) LastChange(ctx context.Context) (hlc.Timestamp, error) {
	return s.store.LastChange(ctx)
}

// Checkpoint persists the clock high-water mark.
func (s *Service) Checkpoint(ctx context.Context) error {
	if err := s.state.SaveClockCheckpoint(ctx, s.clock.Last()); err != nil {
		return fmt.Errorf("failed to checkpoint clock: %w", err)
	}
	return nil
}
