package crdt

import (
	"fmt"

	"github.com/iudanet/ledgersync/internal/hlc"
)

// MergeEntity reconciles two representations of the same entity.
// Every named register and the tombstone are merged independently; a
// register present on only one side wins over the absent one. The result
// does not depend on argument order or on how often it is replayed.
//
// Both sides must share a schema version; see merge.Engine for upgrades.
func MergeEntity(local, remote *Entity) (*Entity, error) {
	if local.ID != remote.ID {
		return nil, fmt.Errorf("%w: %q vs %q", ErrIDMismatch, local.ID, remote.ID)
	}
	if local.SchemaVersion != remote.SchemaVersion {
		return nil, fmt.Errorf("%w: entity %s has %d vs %d",
			ErrSchemaMismatch, local.ID, local.SchemaVersion, remote.SchemaVersion)
	}

	result := &Entity{
		ID:            local.ID,
		SchemaVersion: local.SchemaVersion,
		CreatedAt:     hlc.Min(local.CreatedAt, remote.CreatedAt),
		UpdatedAt:     hlc.Max(local.UpdatedAt, remote.UpdatedAt),
		IsDeleted:     Merge(local.IsDeleted, remote.IsDeleted),
		Fields:        make(map[string]Register, max(len(local.Fields), len(remote.Fields))),
	}

	// Узел-создатель берется со стороны с меньшей меткой создания
	result.NodeID = local.NodeID
	if remote.CreatedAt.Before(local.CreatedAt) {
		result.NodeID = remote.NodeID
	}

	for name, r := range local.Fields {
		result.Fields[name] = r
	}
	for name, r := range remote.Fields {
		if existing, ok := result.Fields[name]; ok {
			result.Fields[name] = Merge(existing, r)
			continue
		}
		result.Fields[name] = r
	}

	return result, nil
}

// Conflicts counts fields written on both sides with different values,
// i.e. the fields where merge had to drop one write.
func Conflicts(local, remote *Entity) int {
	n := 0
	for name, l := range local.Fields {
		r, ok := remote.Fields[name]
		if !ok {
			continue
		}
		if l.Timestamp != r.Timestamp && !l.Value.Equal(r.Value) {
			n++
		}
	}
	if local.IsDeleted.Timestamp != remote.IsDeleted.Timestamp && !local.IsDeleted.Value.Equal(remote.IsDeleted.Value) {
		n++
	}
	return n
}
