package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/storage"
)

// ChangesSince returns rows whose change stamp is greater than after,
// ascending by stamp. Stamps come from this node's clock, so only the
// physical and logical parts of after are compared. limit <= 0 means all.
func (s *Storage) ChangesSince(ctx context.Context, after hlc.Timestamp, limit int) ([]storage.Change, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tbl, doc, changed_ms, changed_lc
		FROM entities
		WHERE changed_ms > ? OR (changed_ms = ? AND changed_lc > ?)
		ORDER BY changed_ms ASC, changed_lc ASC
		LIMIT ?
	`, after.PhysicalTimeMs, after.PhysicalTimeMs, after.LogicalCounter, limit)
	if err != nil {
		return nil, storage.Fail("changes", err)
	}
	defer rows.Close()

	nodeID := s.clock.NodeID()
	var changes []storage.Change
	for rows.Next() {
		var (
			table, doc string
			ms         int64
			lc         uint32
		)
		if err := rows.Scan(&table, &doc, &ms, &lc); err != nil {
			return nil, storage.Fail("changes", err)
		}
		e, err := decodeDoc(doc)
		if err != nil {
			return nil, err
		}
		changes = append(changes, storage.Change{
			Table:  table,
			Entity: e,
			Stamp:  hlc.Timestamp{PhysicalTimeMs: ms, LogicalCounter: lc, NodeID: nodeID},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Fail("changes", err)
	}

	return changes, nil
}

// LastChange returns the greatest change stamp, zero for an empty store.
func (s *Storage) LastChange(ctx context.Context) (hlc.Timestamp, error) {
	var (
		ms int64
		lc uint32
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT changed_ms, changed_lc FROM entities
		ORDER BY changed_ms DESC, changed_lc DESC
		LIMIT 1
	`).Scan(&ms, &lc)
	if errors.Is(err, sql.ErrNoRows) {
		return hlc.Timestamp{}, nil
	}
	if err != nil {
		return hlc.Timestamp{}, storage.Fail("last change", err)
	}
	return hlc.Timestamp{PhysicalTimeMs: ms, LogicalCounter: lc, NodeID: s.clock.NodeID()}, nil
}

// PurgeTombstones physically removes deleted rows whose change stamp is at
// most before and whose tombstone was written before deletedBefore.
// Returns the removed keys.
func (s *Storage) PurgeTombstones(ctx context.Context, before hlc.Timestamp, deletedBefore time.Time) ([]storage.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.Fail("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT tbl, id FROM entities
		WHERE deleted = 1
		  AND (changed_ms < ? OR (changed_ms = ? AND changed_lc <= ?))
		  AND json_extract(doc, '$.is_deleted.timestamp.physical_time_ms') < ?
		ORDER BY tbl, id
	`, before.PhysicalTimeMs, before.PhysicalTimeMs, before.LogicalCounter, deletedBefore.UnixMilli())
	if err != nil {
		return nil, storage.Fail("purge", err)
	}

	var keys []storage.Key
	for rows.Next() {
		var k storage.Key
		if err := rows.Scan(&k.Table, &k.ID); err != nil {
			rows.Close()
			return nil, storage.Fail("purge", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storage.Fail("purge", err)
	}
	rows.Close()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE tbl = ? AND id = ?`, k.Table, k.ID); err != nil {
			return nil, storage.Fail("purge", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storage.Fail("commit", err)
	}
	return keys, nil
}
