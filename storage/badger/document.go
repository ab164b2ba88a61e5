package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	idSeq, err := backend.GetSequence(documentIDSeq)
	if err != nil {
		return nil, err
	}

	return &DocumentRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *DocumentRepository) Close() error {
	return r.idSeq.Release()
}

// CreateDocument stores a new document and its raw content.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *core.Document, raw []byte) (*core.Document, error) {
	doc.Status = core.StatusCreated
	doc.ContentHash = core.ContentHash(raw)
	doc.Size = int64(len(raw))
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := nextID(r.idSeq)
		if err != nil {
			return err
		}
		doc.ID = id
		doc.CreatedAt = time.Now().UTC()
		doc.UpdatedAt = doc.CreatedAt

		if err := tx.Set(makeDocumentKey(doc.ID), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Set(makeDocumentRawKey(doc.ID), raw); err != nil {
			return err
		}
		if err := tx.Set(makeDocumentStatusKey(doc.Status, doc.ID), storage.MarshalID(doc.ID)); err != nil {
			return err
		}
		return commit(tx)
	}, true)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: document %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// ListDocuments returns all documents ordered by ID.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				results = append(results, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return results, err
}

// ListDocumentsByStatus returns documents currently in the given status, ordered by ID.
func (r *DocumentRepository) ListDocumentsByStatus(ctx context.Context, status core.DocumentStatus) ([]*core.Document, error) {
	if err := core.ValidateStatus(status); err != nil {
		return nil, err
	}

	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialDocumentStatusKey(status)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			doc, err := readDocument(tx, id)
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// TransitionStatus atomically checks and applies a status change.
func (r *DocumentRepository) TransitionStatus(ctx context.Context, id core.ID, to core.DocumentStatus, mutate storage.DocumentMutator) (*core.Document, error) {
	var updated *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: document %d", storage.ErrNotFound, id)
		}

		from := doc.Status
		if err := core.CheckTransition(from, to); err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}

		if mutate != nil {
			mutate(doc)
		}
		doc.Status = to
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(makeDocumentKey(id), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Delete(makeDocumentStatusKey(from, id)); err != nil {
			return err
		}
		if err := tx.Set(makeDocumentStatusKey(to, id), storage.MarshalID(id)); err != nil {
			return err
		}
		if err := commit(tx); err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}
		updated = doc
		return nil
	}, true)
	return updated, err
}

// GetContent returns the raw bytes of a document after verifying their digest.
func (r *DocumentRepository) GetContent(ctx context.Context, id core.ID) ([]byte, error) {
	var raw []byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: document %d", storage.ErrNotFound, id)
		}

		item, err := tx.Get(makeDocumentRawKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: raw content missing for document %d", core.ErrInvariantViolation, id)
			}
			return err
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if core.ContentHash(raw) != doc.ContentHash {
			return fmt.Errorf("%w: raw content digest mismatch for document %d", core.ErrInvariantViolation, id)
		}
		return nil
	}, false)
	return raw, err
}

// DeleteDocument removes a document with its content, sessions and messages.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID, guard storage.DocumentGuard) error {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: document %d", storage.ErrNotFound, id)
		}
		if guard != nil {
			if err := guard(doc); err != nil {
				return err
			}
		}

		keys := [][]byte{makeDocumentKey(id), makeDocumentRawKey(id)}
		for _, status := range core.Statuses() {
			keys = append(keys, makeDocumentStatusKey(status, id))
		}
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if err := commit(tx); err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}
		return nil
	}, true)
	if err != nil {
		return err
	}

	// The document is gone; sessions are unreachable from here on.
	sessionKeys, err := r.backend.collectKeys(makePartialDocumentSessionKey(id))
	if err != nil {
		return err
	}
	var keys [][]byte
	for _, indexKey := range sessionKeys {
		sessionID := sessionIDFromIndexKey(indexKey)
		msgKeys, err := r.backend.collectKeys(makePartialMessageKey(sessionID))
		if err != nil {
			return err
		}
		keys = append(keys, msgKeys...)
		keys = append(keys, makeMessageCounterKey(sessionID), makeSessionKey(sessionID), indexKey)
	}
	return r.backend.deleteKeys(keys)
}

// readDocument reads a document from the transaction.
// Returns nil, nil if the document doesn't exist.
func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}
