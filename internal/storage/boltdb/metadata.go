package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/storage"
)

const (
	keyNodeID          = "node_id"
	keyClockCheckpoint = "clock_checkpoint"
)

// encodeStamp: 8 байт physical, 4 байта logical, затем node id
func encodeStamp(ts hlc.Timestamp) []byte {
	buf := make([]byte, 12+len(ts.NodeID))
	binary.BigEndian.PutUint64(buf[0:8], uint64(ts.PhysicalTimeMs))
	binary.BigEndian.PutUint32(buf[8:12], ts.LogicalCounter)
	copy(buf[12:], ts.NodeID)
	return buf
}

func decodeStamp(data []byte) (hlc.Timestamp, error) {
	if len(data) < 12 {
		return hlc.Timestamp{}, fmt.Errorf("corrupted timestamp: %d bytes", len(data))
	}
	return hlc.Timestamp{
		PhysicalTimeMs: int64(binary.BigEndian.Uint64(data[0:8])),
		LogicalCounter: binary.BigEndian.Uint32(data[8:12]),
		NodeID:         string(data[12:]),
	}, nil
}

// NodeID returns the persisted node id.
// Returns ErrEntityNotFound if none was saved yet.
func (s *Storage) NodeID(ctx context.Context) (string, error) {
	var nodeID string

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMeta)
		if err != nil {
			return err
		}
		value := b.Get([]byte(keyNodeID))
		if value == nil {
			return storage.ErrEntityNotFound
		}
		nodeID = string(value)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to get node id: %w", err)
	}

	return nodeID, nil
}

// SaveNodeID stores the node id.
func (s *Storage) SaveNodeID(ctx context.Context, nodeID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMeta)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(keyNodeID), []byte(nodeID)); err != nil {
			return fmt.Errorf("failed to save node id: %w", err)
		}
		return nil
	})
}

// ClockCheckpoint returns the last saved clock high-water mark, zero if
// none was saved yet.
func (s *Storage) ClockCheckpoint(ctx context.Context) (hlc.Timestamp, error) {
	return s.getStamp(bucketMeta, keyClockCheckpoint)
}

// SaveClockCheckpoint stores the clock high-water mark. An older value
// never replaces a newer one.
func (s *Storage) SaveClockCheckpoint(ctx context.Context, ts hlc.Timestamp) error {
	return s.putStampMax(bucketMeta, keyClockCheckpoint, ts)
}

func (s *Storage) getStamp(name []byte, key string) (hlc.Timestamp, error) {
	var ts hlc.Timestamp

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		value := b.Get([]byte(key))
		if value == nil {
			return nil
		}
		ts, err = decodeStamp(value)
		return err
	})
	if err != nil {
		return hlc.Timestamp{}, fmt.Errorf("failed to get %s/%s: %w", name, key, err)
	}

	return ts, nil
}

// putStampMax сохраняет метку, только если она больше текущей
func (s *Storage) putStampMax(name []byte, key string, ts hlc.Timestamp) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}

		if value := b.Get([]byte(key)); value != nil {
			current, err := decodeStamp(value)
			if err != nil {
				return err
			}
			if !ts.After(current) {
				return nil
			}
		}

		if err := b.Put([]byte(key), encodeStamp(ts)); err != nil {
			return fmt.Errorf("failed to save %s/%s: %w", name, key, err)
		}
		return nil
	})
}
