package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
)

// maxAppendAttempts bounds retries of a message append that lost a
// transaction race to a writer outside this process.
const maxAppendAttempts = 8

// SessionRepository implements storage.SessionRepository for BadgerDB.
type SessionRepository struct {
	backend  *Backend
	idSeq    *badger.Sequence
	msgIDSeq *badger.Sequence

	// One mutex per session. Appends to different sessions never contend.
	locks sync.Map
}

var _ storage.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(backend *Backend) (*SessionRepository, error) {
	idSeq, err := backend.GetSequence(sessionIDSeq)
	if err != nil {
		return nil, err
	}
	msgIDSeq, err := backend.GetSequence(messageIDSeq)
	if err != nil {
		idSeq.Release()
		return nil, err
	}

	return &SessionRepository{
		backend:  backend,
		idSeq:    idSeq,
		msgIDSeq: msgIDSeq,
	}, nil
}

// Close releases the ID sequences.
func (r *SessionRepository) Close() error {
	return errors.Join(r.idSeq.Release(), r.msgIDSeq.Release())
}

// CreateSession opens a new session for an existing document.
func (r *SessionRepository) CreateSession(ctx context.Context, documentID core.ID) (*core.Session, error) {
	var session *core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, documentID)
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: document %d", storage.ErrNotFound, documentID)
		}

		id, err := nextID(r.idSeq)
		if err != nil {
			return err
		}
		session = &core.Session{
			ID:         id,
			DocumentID: documentID,
			CreatedAt:  time.Now().UTC(),
		}

		if err := tx.Set(makeSessionKey(id), storage.MarshalSession(session)); err != nil {
			return err
		}
		if err := tx.Set(makeDocumentSessionKey(documentID, id), storage.MarshalID(id)); err != nil {
			return err
		}
		return commit(tx)
	}, true)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id core.ID) (*core.Session, error) {
	var session *core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		session, err = readSession(tx, id)
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("%w: session %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return session, err
}

// ListSessions returns the sessions of a document ordered by ID.
func (r *SessionRepository) ListSessions(ctx context.Context, documentID core.ID) ([]*core.Session, error) {
	var sessions []*core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialDocumentSessionKey(documentID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			session, err := readSession(tx, sessionIDFromIndexKey(iter.Item().Key()))
			if err != nil {
				return err
			}
			if session != nil {
				sessions = append(sessions, session)
			}
		}
		return nil
	}, false)
	return sessions, err
}

// AppendMessage stores a message with the next sequence number of its session.
func (r *SessionRepository) AppendMessage(ctx context.Context, msg *core.Message) (*core.Message, error) {
	if msg != nil && msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if err := core.ValidateMessage(msg); err != nil {
		return nil, err
	}

	unlock := r.lockSession(msg.SessionID)
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stored, err := r.appendOnce(msg)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, core.ErrConflict) {
			return nil, err
		}
		lastErr = err
		r.backend.logger.Debug("message append conflicted, retrying",
			"session", msg.SessionID, "attempt", attempt)
	}
	return nil, lastErr
}

func (r *SessionRepository) appendOnce(msg *core.Message) (*core.Message, error) {
	var stored *core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		session, err := readSession(tx, msg.SessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("%w: session %d", storage.ErrNotFound, msg.SessionID)
		}

		last, err := readCounter(tx, msg.SessionID)
		if err != nil {
			return err
		}
		if err := checkTail(tx, msg.SessionID, last); err != nil {
			return err
		}

		id, err := nextID(r.msgIDSeq)
		if err != nil {
			return err
		}
		next := *msg
		next.ID = id
		next.Sequence = last + 1

		if err := tx.Set(makeMessageKey(next.SessionID, next.Sequence), storage.MarshalMessage(&next)); err != nil {
			return err
		}
		counter := make([]byte, 8)
		binary.BigEndian.PutUint64(counter, next.Sequence)
		if err := tx.Set(makeMessageCounterKey(next.SessionID), counter); err != nil {
			return err
		}
		if err := commit(tx); err != nil {
			return err
		}
		stored = &next
		return nil
	}, true)
	return stored, err
}

// ListMessages returns the messages of a session ordered by sequence.
func (r *SessionRepository) ListMessages(ctx context.Context, sessionID core.ID) ([]*core.Message, error) {
	var messages []*core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		session, err := readSession(tx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("%w: session %d", storage.ErrNotFound, sessionID)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialMessageKey(sessionID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var msg *core.Message
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				msg, err = storage.UnmarshalMessage(val)
				return err
			}); err != nil {
				return err
			}
			want := uint64(len(messages) + 1)
			if msg.Sequence != want {
				return fmt.Errorf("%w: session %d expected sequence %d, found %d",
					core.ErrInvariantViolation, sessionID, want, msg.Sequence)
			}
			messages = append(messages, msg)
		}
		return nil
	}, false)
	if errors.Is(err, core.ErrInvariantViolation) {
		r.backend.logger.Error("message history corrupted", "session", sessionID, "err", err)
	}
	return messages, err
}

// lockSession serializes appends for one session and returns the unlock function.
func (r *SessionRepository) lockSession(id core.ID) func() {
	v, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// readSession reads a session from the transaction.
// Returns nil, nil if the session doesn't exist.
func readSession(tx *badger.Txn, id core.ID) (*core.Session, error) {
	item, err := tx.Get(makeSessionKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var session *core.Session
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		session, unmarshalErr = storage.UnmarshalSession(val)
		return unmarshalErr
	})
	return session, err
}

// readCounter returns the last assigned sequence number of a session, 0 if none.
func readCounter(tx *badger.Txn, sessionID core.ID) (uint64, error) {
	item, err := tx.Get(makeMessageCounterKey(sessionID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var last uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("%w: malformed sequence counter for session %d", core.ErrInvariantViolation, sessionID)
		}
		last = binary.BigEndian.Uint64(val)
		return nil
	})
	return last, err
}

// checkTail verifies that the counter points at the newest stored message.
func checkTail(tx *badger.Txn, sessionID core.ID, last uint64) error {
	if last > 0 {
		if _, err := tx.Get(makeMessageKey(sessionID, last)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: session %d missing message %d", core.ErrInvariantViolation, sessionID, last)
			}
			return err
		}
	}
	if _, err := tx.Get(makeMessageKey(sessionID, last+1)); err == nil {
		return fmt.Errorf("%w: session %d has message %d beyond counter", core.ErrInvariantViolation, sessionID, last+1)
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

// sessionIDFromIndexKey extracts the session ID from a document -> session index key.
func sessionIDFromIndexKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}
