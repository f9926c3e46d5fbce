package boltdb

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/HolyWalley/money-sub000/internal/client/storage"
)

var (
	documentStateKey = []byte("state")
	keySyncCursor    = []byte("sync_cursor")
	keyDeviceID      = []byte("device_id")
)

// SaveDocumentState persists the full document state
func (s *Storage) SaveDocumentState(ctx context.Context, state []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDocument)
		if bucket == nil {
			return fmt.Errorf("document bucket not found")
		}

		if err := bucket.Put(documentStateKey, state); err != nil {
			return fmt.Errorf("failed to save document state: %w", err)
		}
		return nil
	})
}

// GetDocumentState returns the persisted document state, nil if none
func (s *Storage) GetDocumentState(ctx context.Context) ([]byte, error) {
	var state []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDocument)
		if bucket == nil {
			return fmt.Errorf("document bucket not found")
		}

		if data := bucket.Get(documentStateKey); data != nil {
			state = make([]byte, len(data))
			copy(state, data)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document state: %w", err)
	}

	return state, nil
}

// EnqueuePending appends a delta to the outbound queue
func (s *Storage) EnqueuePending(ctx context.Context, delta []byte, timestamp int64) (uint64, error) {
	var seq uint64

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		if bucket == nil {
			return fmt.Errorf("pending bucket not found")
		}

		var err error
		seq, err = bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		pending := storage.PendingDelta{
			Seq:       seq,
			Delta:     delta,
			Timestamp: timestamp,
		}
		data, err := json.Marshal(pending)
		if err != nil {
			return fmt.Errorf("failed to marshal pending delta: %w", err)
		}

		// Big-endian ключ сохраняет порядок очереди при обходе
		if err := bucket.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("failed to save pending delta: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return seq, nil
}

// GetPending returns queued deltas in enqueue order
func (s *Storage) GetPending(ctx context.Context) ([]storage.PendingDelta, error) {
	var pending []storage.PendingDelta

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		if bucket == nil {
			return fmt.Errorf("pending bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			var p storage.PendingDelta
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("failed to unmarshal pending delta: %w", err)
			}
			pending = append(pending, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending deltas: %w", err)
	}

	return pending, nil
}

// DeletePendingUpTo removes queued deltas with seq <= upTo
func (s *Storage) DeletePendingUpTo(ctx context.Context, upTo uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		if bucket == nil {
			return fmt.Errorf("pending bucket not found")
		}

		c := bucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if binary.BigEndian.Uint64(k) > upTo {
				break
			}
			if err := c.Delete(); err != nil {
				return fmt.Errorf("failed to delete pending delta: %w", err)
			}
		}
		return nil
	})
}

// SaveSyncCursor persists the server created_at cursor
func (s *Storage) SaveSyncCursor(ctx context.Context, cursor int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		cursorBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(cursorBytes, uint64(cursor))
		if err := bucket.Put(keySyncCursor, cursorBytes); err != nil {
			return fmt.Errorf("failed to save sync cursor: %w", err)
		}
		return nil
	})
}

// GetSyncCursor returns the persisted cursor, nil if no sync happened yet
func (s *Storage) GetSyncCursor(ctx context.Context) (*int64, error) {
	var cursor *int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		if data := bucket.Get(keySyncCursor); data != nil {
			value := int64(binary.BigEndian.Uint64(data))
			cursor = &value
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sync cursor: %w", err)
	}

	return cursor, nil
}

// DeviceID returns a stable random device identifier
func (s *Storage) DeviceID(ctx context.Context) (string, error) {
	var deviceID string

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		if data := bucket.Get(keyDeviceID); data != nil {
			deviceID = string(data)
			return nil
		}

		// Первый запуск: генерируем и сохраняем
		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			return fmt.Errorf("failed to generate device id: %w", err)
		}
		deviceID = hex.EncodeToString(raw)

		if err := bucket.Put(keyDeviceID, []byte(deviceID)); err != nil {
			return fmt.Errorf("failed to save device id: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return deviceID, nil
}

// ResetDocument drops document state, pending queue and sync cursor.
// Device id переживает reset: это идентичность реплики, а не данных.
func (s *Storage) ResetDocument(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocument, bucketPending} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("failed to delete %s bucket: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to recreate %s bucket: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}
		if err := meta.Delete(keySyncCursor); err != nil {
			return fmt.Errorf("failed to delete sync cursor: %w", err)
		}
		return nil
	})
}

// seqKey кодирует sequence в big-endian ключ
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
