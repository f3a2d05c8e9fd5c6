package storage

import (
	"context"

	"github.com/iudanet/ledgersync/internal/hlc"
)

// NodeState defines per-node bookkeeping that lives outside the document
// store: identity, clock checkpoint, sync cursors, acks and the graveyard
// of purged ids.
type NodeState interface {
	// NodeID returns ErrEntityNotFound when no id was saved yet
	NodeID(ctx context.Context) (string, error)
	SaveNodeID(ctx context.Context, nodeID string) error

	// ClockCheckpoint returns the zero timestamp when none was saved
	ClockCheckpoint(ctx context.Context) (hlc.Timestamp, error)
	SaveClockCheckpoint(ctx context.Context, ts hlc.Timestamp) error

	// Cursor is the highest change stamp of peer already absorbed here
	Cursor(ctx context.Context, peer string) (hlc.Timestamp, error)
	// SaveCursor never moves a cursor backwards
	SaveCursor(ctx context.Context, peer string, ts hlc.Timestamp) error

	// Ack is the highest local change stamp peer confirmed to have absorbed
	Ack(ctx context.Context, peer string) (hlc.Timestamp, error)
	// SaveAck never moves an ack backwards
	SaveAck(ctx context.Context, peer string, ts hlc.Timestamp) error
	Acks(ctx context.Context) (map[string]hlc.Timestamp, error)

	// Bury records purged ids so that stale copies are not re-inserted
	Bury(ctx context.Context, keys []Key, at hlc.Timestamp) error
	IsBuried(ctx context.Context, table, id string) (bool, error)

	Close() error
}
