package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iudanet/ledgersync/internal/storage"
	"github.com/iudanet/ledgersync/pkg/api"
)

// MaxPageSize upper bound of a pull page served to a peer
const MaxPageSize = 1000

var _ Peer = (*Responder)(nil)

// Responder serves the passive side of a session over the local replica.
// It keeps no per-session state, so it can sit behind a stateless
// transport.
type Responder struct {
	replica Replica
	state   storage.NodeState
	logger  *slog.Logger
}

// NewResponder creates a responder.
func NewResponder(replica Replica, state storage.NodeState, logger *slog.Logger) *Responder {
	return &Responder{
		replica: replica,
		state:   state,
		logger:  logger,
	}
}

// Handshake validates the initiator and returns our hello carrying our
// cursor for the initiator.
func (r *Responder) Handshake(ctx context.Context, hello api.Hello) (api.Hello, error) {
	self := r.replica.NodeID()
	if err := checkHello(self, hello); err != nil {
		return api.Hello{}, err
	}

	clock := r.replica.Clock()
	clock.Observe(hello.Clock)

	cursor, err := r.state.Cursor(ctx, hello.NodeID)
	if err != nil {
		return api.Hello{}, fmt.Errorf("failed to load cursor: %w", err)
	}

	r.logger.Info("Peer connected", "peer", hello.NodeID, "cursor", cursor.String())

	return api.Hello{
		ProtocolVersion: api.ProtocolVersion,
		NodeID:          self,
		Cursor:          cursor,
		Clock:           clock.Now(),
	}, nil
}

// Push merges a batch of the initiator's changes. The cursor for the
// initiator moves only on the final batch.
func (r *Responder) Push(ctx context.Context, req api.PushRequest) (api.PushResponse, error) {
	if err := checkNodeID(StateExchange, r.replica.NodeID(), req.NodeID); err != nil {
		return api.PushResponse{}, err
	}

	stats, err := applyBatch(ctx, r.replica, StateMerge, req.Entities)
	if err != nil {
		return api.PushResponse{}, err
	}

	resp := api.PushResponse{
		Merged:    stats.merged,
		Unchanged: stats.unchanged,
		Conflicts: stats.conflicts,
	}

	if req.Final {
		if err := r.state.SaveCursor(ctx, req.NodeID, req.Upto); err != nil {
			return api.PushResponse{}, fmt.Errorf("failed to save cursor: %w", err)
		}
		acked, err := r.state.Cursor(ctx, req.NodeID)
		if err != nil {
			return api.PushResponse{}, fmt.Errorf("failed to load cursor: %w", err)
		}
		resp.Acked = acked
	}

	r.logger.Debug("Applied pushed batch",
		"peer", req.NodeID,
		"entities", len(req.Entities),
		"merged", stats.merged,
		"final", req.Final)

	return resp, nil
}

// Pull returns a page of local changes after req.After.
func (r *Responder) Pull(ctx context.Context, req api.PullRequest) (api.PullResponse, error) {
	if err := checkNodeID(StateExchange, r.replica.NodeID(), req.NodeID); err != nil {
		return api.PullResponse{}, err
	}

	limit := req.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	changes, err := r.replica.ChangesSince(ctx, req.After, limit)
	if err != nil {
		return api.PullResponse{}, fmt.Errorf("failed to collect changes: %w", err)
	}

	resp := api.PullResponse{
		Entities: envelopes(changes),
		Upto:     req.After,
		Final:    len(changes) < limit,
	}
	if len(changes) > 0 {
		resp.Upto = changes[len(changes)-1].Stamp
	}
	return resp, nil
}

// Ack records how far the initiator absorbed our changes.
func (r *Responder) Ack(ctx context.Context, req api.AckRequest) error {
	if err := checkNodeID(StateAck, r.replica.NodeID(), req.NodeID); err != nil {
		return err
	}
	if err := r.state.SaveAck(ctx, req.NodeID, req.Upto); err != nil {
		return fmt.Errorf("failed to save ack: %w", err)
	}
	return nil
}
