package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/HolyWalley/money-sub000/internal/client/storage"
)

// ApplyRows applies the whole change set in one bbolt transaction.
// Частично применённый батч невозможен: commit либо целиком, либо откат.
func (s *Storage) ApplyRows(ctx context.Context, changes []storage.RowChange) error {
	if len(changes) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketProjection)
		if root == nil {
			return fmt.Errorf("projection bucket not found")
		}

		for _, change := range changes {
			if change.Delete {
				bucket := root.Bucket([]byte(change.Collection))
				if bucket == nil {
					continue
				}
				if err := bucket.Delete([]byte(change.EntityID)); err != nil {
					return fmt.Errorf("failed to delete row %s/%s: %w", change.Collection, change.EntityID, err)
				}
				continue
			}

			bucket, err := root.CreateBucketIfNotExists([]byte(change.Collection))
			if err != nil {
				return fmt.Errorf("failed to create collection bucket: %w", err)
			}

			data, err := json.Marshal(change.Fields)
			if err != nil {
				return fmt.Errorf("failed to marshal row %s/%s: %w", change.Collection, change.EntityID, err)
			}
			if err := bucket.Put([]byte(change.EntityID), data); err != nil {
				return fmt.Errorf("failed to save row %s/%s: %w", change.Collection, change.EntityID, err)
			}
		}
		return nil
	})
}

// PutRow stores generic entity fields for a collection row.
// Строки лежат во вложенных buckets: projection/<collection>/<entityID>.
func (s *Storage) PutRow(ctx context.Context, collection, entityID string, fields map[string]any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketProjection)
		if root == nil {
			return fmt.Errorf("projection bucket not found")
		}

		bucket, err := root.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("failed to create collection bucket: %w", err)
		}

		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal row: %w", err)
		}

		if err := bucket.Put([]byte(entityID), data); err != nil {
			return fmt.Errorf("failed to save row: %w", err)
		}
		return nil
	})
}

// DeleteRow removes a projection row; missing row is not an error
func (s *Storage) DeleteRow(ctx context.Context, collection, entityID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketProjection)
		if root == nil {
			return fmt.Errorf("projection bucket not found")
		}

		bucket := root.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}

		if err := bucket.Delete([]byte(entityID)); err != nil {
			return fmt.Errorf("failed to delete row: %w", err)
		}
		return nil
	})
}

// GetRow returns fields of a single row
func (s *Storage) GetRow(ctx context.Context, collection, entityID string) (map[string]any, error) {
	var fields map[string]any

	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketProjection)
		if root == nil {
			return fmt.Errorf("projection bucket not found")
		}

		bucket := root.Bucket([]byte(collection))
		if bucket == nil {
			return storage.ErrRowNotFound
		}

		data := bucket.Get([]byte(entityID))
		if data == nil {
			return storage.ErrRowNotFound
		}

		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("failed to unmarshal row: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return fields, nil
}

// ListRows returns all rows of a collection as map[entityID]fields
func (s *Storage) ListRows(ctx context.Context, collection string) (map[string]map[string]any, error) {
	rows := make(map[string]map[string]any)

	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketProjection)
		if root == nil {
			return fmt.Errorf("projection bucket not found")
		}

		bucket := root.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var fields map[string]any
			if err := json.Unmarshal(v, &fields); err != nil {
				return fmt.Errorf("failed to unmarshal row %s: %w", k, err)
			}
			rows[string(k)] = fields
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rows: %w", err)
	}

	return rows, nil
}

// ClearProjection drops all projection rows
func (s *Storage) ClearProjection(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketProjection); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to delete projection bucket: %w", err)
		}
		if _, err := tx.CreateBucket(bucketProjection); err != nil {
			return fmt.Errorf("failed to recreate projection bucket: %w", err)
		}
		return nil
	})
}
