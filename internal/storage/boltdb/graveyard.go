package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/storage"
)

// graveKey: имя таблицы, нулевой байт, id
func graveKey(table, id string) []byte {
	key := make([]byte, 0, len(table)+1+len(id))
	key = append(key, table...)
	key = append(key, 0)
	return append(key, id...)
}

// Bury records purged ids together with the purge stamp.
func (s *Storage) Bury(ctx context.Context, keys []storage.Key, at hlc.Timestamp) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketGraveyard)
		if err != nil {
			return err
		}
		value := encodeStamp(at)
		for _, k := range keys {
			if err := b.Put(graveKey(k.Table, k.ID), value); err != nil {
				return fmt.Errorf("failed to bury %s/%s: %w", k.Table, k.ID, err)
			}
		}
		return nil
	})
}

// IsBuried reports whether table/id was purged by tombstone GC.
func (s *Storage) IsBuried(ctx context.Context, table, id string) (bool, error) {
	var buried bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketGraveyard)
		if err != nil {
			return err
		}
		buried = b.Get(graveKey(table, id)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check graveyard: %w", err)
	}

	return buried, nil
}

// GraveyardSize returns the number of buried ids.
func (s *Storage) GraveyardSize(ctx context.Context) (int, error) {
	var n int

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketGraveyard)
		if err != nil {
			return err
		}
		n = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count graveyard: %w", err)
	}

	return n, nil
}
