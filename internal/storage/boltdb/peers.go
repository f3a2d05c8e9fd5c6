package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/ledgersync/internal/hlc"
)

// Cursor returns the highest change stamp of peer already absorbed here.
func (s *Storage) Cursor(ctx context.Context, peer string) (hlc.Timestamp, error) {
	return s.getStamp(bucketCursors, peer)
}

// SaveCursor advances the cursor for peer. It never moves backwards.
func (s *Storage) SaveCursor(ctx context.Context, peer string, ts hlc.Timestamp) error {
	return s.putStampMax(bucketCursors, peer, ts)
}

// Ack returns the highest local change stamp peer confirmed.
func (s *Storage) Ack(ctx context.Context, peer string) (hlc.Timestamp, error) {
	return s.getStamp(bucketAcks, peer)
}

// SaveAck advances the ack of peer. It never moves backwards.
func (s *Storage) SaveAck(ctx context.Context, peer string, ts hlc.Timestamp) error {
	return s.putStampMax(bucketAcks, peer, ts)
}

// Acks returns the acks of all peers ever synced with.
func (s *Storage) Acks(ctx context.Context) (map[string]hlc.Timestamp, error) {
	acks := make(map[string]hlc.Timestamp)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAcks)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			ts, err := decodeStamp(v)
			if err != nil {
				return fmt.Errorf("ack of %s: %w", k, err)
			}
			acks[string(k)] = ts
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list acks: %w", err)
	}

	return acks, nil
}
