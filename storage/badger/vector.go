package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docchat/storage"
)

// VectorIndex implements storage.VectorIndex by scanning a namespace prefix
// and scoring every record with cosine similarity.
type VectorIndex struct {
	backend *Backend
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a VectorIndex on the backend.
func NewVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{backend: backend}
}

// Upsert writes records into a namespace in transactions of writeBatchSize records.
// Every vector must match the dimension of the records already stored.
func (v *VectorIndex) Upsert(ctx context.Context, namespace string, records []storage.VectorRecord) error {
	if namespace == "" {
		return fmt.Errorf("%w: empty namespace", storage.ErrInvalidQuery)
	}
	if len(records) == 0 {
		return nil
	}

	dim, err := v.dimension(namespace)
	if err != nil {
		return err
	}
	if dim == 0 {
		dim = len(records[0].Vector)
	}
	for i := range records {
		if len(records[i].Vector) == 0 || len(records[i].Vector) != dim {
			return fmt.Errorf("%w: chunk %d has %d dimensions, namespace %s uses %d",
				storage.ErrDimensionMismatch, records[i].Ordinal, len(records[i].Vector), namespace, dim)
		}
	}

	for start := 0; start < len(records); start += writeBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+writeBatchSize, len(records))
		err := v.backend.WithTx(func(tx *badger.Txn) error {
			for i := range records[start:end] {
				rec := &records[start+i]
				if err := tx.Set(makeVectorKey(namespace, rec.Ordinal), storage.MarshalVectorRecord(rec)); err != nil {
					return err
				}
			}
			return commit(tx)
		}, true)
		if err != nil {
			return fmt.Errorf("upserting namespace %s: %w", namespace, err)
		}
	}
	return nil
}

// Query returns the topK records of the namespace closest to vector.
func (v *VectorIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]storage.VectorMatch, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	var matches []storage.VectorMatch
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialVectorKey(namespace)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec *storage.VectorRecord
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				rec, err = storage.UnmarshalVectorRecord(val)
				return err
			}); err != nil {
				return err
			}
			if len(rec.Vector) != len(vector) {
				return fmt.Errorf("%w: query has %d dimensions, namespace %s uses %d",
					storage.ErrDimensionMismatch, len(vector), namespace, len(rec.Vector))
			}
			matches = append(matches, storage.VectorMatch{
				Record: *rec,
				Score:  storage.CosineSimilarity(vector, rec.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return storage.TopK(matches, topK), nil
}

// Delete removes every record in the namespace.
func (v *VectorIndex) Delete(ctx context.Context, namespace string) error {
	keys, err := v.backend.collectKeys(makePartialVectorKey(namespace))
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		v.backend.logger.Debug("deleting namespace", "namespace", namespace, "records", len(keys))
	}
	return v.backend.deleteKeys(keys)
}

// dimension returns the vector length used by a namespace, 0 if it is empty.
func (v *VectorIndex) dimension(namespace string) (int, error) {
	dim := 0
	err := v.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialVectorKey(namespace)
		opts.PrefetchSize = 1
		iter := tx.NewIterator(opts)
		defer iter.Close()

		iter.Rewind()
		if !iter.Valid() {
			return nil
		}
		return iter.Item().Value(func(val []byte) error {
			rec, err := storage.UnmarshalVectorRecord(val)
			if err != nil {
				return err
			}
			dim = len(rec.Vector)
			return nil
		})
	}, false)
	return dim, err
}
