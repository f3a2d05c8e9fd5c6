// Package sync реализует протокол синхронизации двух узлов, ответную
// сторону, сборку мусора tombstone и фоновый цикл anti-entropy.
package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/merge"
	"github.com/iudanet/ledgersync/internal/storage"
	"github.com/iudanet/ledgersync/internal/validation"
	"github.com/iudanet/ledgersync/pkg/api"
)

//go:generate moq -out peer_mock.go . Peer

// Peer is the remote side of a session. The HTTP client implements it;
// Responder implements it in-process.
type Peer interface {
	Handshake(ctx context.Context, hello api.Hello) (api.Hello, error)
	Push(ctx context.Context, req api.PushRequest) (api.PushResponse, error)
	Pull(ctx context.Context, req api.PullRequest) (api.PullResponse, error)
	Ack(ctx context.Context, req api.AckRequest) error
}

// Replica is the local node as seen by the protocol. replica.Service
// implements it.
type Replica interface {
	NodeID() string
	Clock() *hlc.Clock
	Apply(ctx context.Context, table string, remote *crdt.Entity) (merge.Result, error)
	ChangesSince(ctx context.Context, after hlc.Timestamp, limit int) ([]storage.Change, error)
}

// checkHello validates the hello of the other side.
func checkHello(self string, hello api.Hello) error {
	if hello.ProtocolVersion != api.ProtocolVersion {
		return protocolError(StateHandshake,
			fmt.Sprintf("protocol version %d, want %d", hello.ProtocolVersion, api.ProtocolVersion), nil)
	}
	return checkNodeID(StateHandshake, self, hello.NodeID)
}

func checkNodeID(stage State, self, nodeID string) error {
	if nodeID == "" {
		return protocolError(stage, "empty node id", nil)
	}
	if err := validation.ValidateNodeID(nodeID); err != nil {
		return protocolError(stage, "bad node id", err)
	}
	if nodeID == self {
		return protocolError(stage, "peer has our own node id "+self, nil)
	}
	return nil
}

// envelopes упаковывает изменения журнала для отправки
func envelopes(changes []storage.Change) []api.EntityEnvelope {
	result := make([]api.EntityEnvelope, 0, len(changes))
	for _, c := range changes {
		result = append(result, api.EntityEnvelope{Table: c.Table, Entity: c.Entity})
	}
	return result
}

// batchStats счетчики применения одной пачки
type batchStats struct {
	merged    int
	unchanged int
	discarded int
	conflicts int
}

// applyBatch сливает пачку в локальную реплику. Повторы одной сущности
// внутри пачки сначала схлопываются в памяти.
func applyBatch(ctx context.Context, r Replica, stage State, batch []api.EntityEnvelope) (batchStats, error) {
	var stats batchStats

	sets := make(map[string]*crdt.EntitySet)
	var tables []string
	for i, env := range batch {
		if env.Entity == nil {
			return stats, protocolError(stage, fmt.Sprintf("entity %d is missing", i), nil)
		}
		if err := validation.ValidateTableName(env.Table); err != nil {
			return stats, protocolError(stage, "bad table name", err)
		}
		set, ok := sets[env.Table]
		if !ok {
			set = crdt.NewEntitySet()
			sets[env.Table] = set
			tables = append(tables, env.Table)
		}
		if _, err := set.Add(env.Entity); err != nil {
			return stats, protocolError(stage, "conflicting versions of "+env.Entity.ID, err)
		}
	}

	for _, table := range tables {
		for _, e := range sets[table].All() {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			res, err := r.Apply(ctx, table, e)
			if errors.Is(err, crdt.ErrValidation) {
				return stats, protocolError(stage, fmt.Sprintf("invalid entity %s/%s", table, e.ID), err)
			}
			if err != nil {
				return stats, fmt.Errorf("failed to apply %s/%s: %w", table, e.ID, err)
			}
			switch res.Outcome {
			case merge.OutcomeInserted, merge.OutcomeUpdated:
				stats.merged++
			case merge.OutcomeDiscarded:
				stats.discarded++
			default:
				stats.unchanged++
			}
			stats.conflicts += res.Conflicts
		}
	}

	return stats, nil
}
