package storage

import (
	"context"

	"github.com/poiesic/docchat/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// DocumentMutator adjusts a document while its status changes.
// It runs inside the same transaction as the status check.
type DocumentMutator func(doc *core.Document)

// DocumentGuard vetoes a deletion by returning an error.
// It runs inside the same transaction that removes the document record.
type DocumentGuard func(doc *core.Document) error

// DocumentRepository provides operations for managing documents and their raw content.
type DocumentRepository interface {
	Repository

	// CreateDocument stores a new document in the created status together with its
	// raw content. The document ID, ContentHash and timestamps are assigned here.
	CreateDocument(ctx context.Context, doc *core.Document, raw []byte) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// ListDocuments returns all documents ordered by ID.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// ListDocumentsByStatus returns documents currently in the given status.
	ListDocumentsByStatus(ctx context.Context, status core.DocumentStatus) ([]*core.Document, error)

	// TransitionStatus atomically moves a document to a new status.
	// Illegal edges and lost races return an error wrapping core.ErrConflict.
	// The optional mutator runs before the document is written.
	TransitionStatus(ctx context.Context, id core.ID, to core.DocumentStatus, mutate DocumentMutator) (*core.Document, error)

	// GetContent returns the raw bytes stored for a document.
	// A digest mismatch returns core.ErrInvariantViolation.
	GetContent(ctx context.Context, id core.ID) ([]byte, error)

	// DeleteDocument removes the document, its raw content, its sessions and
	// every message of those sessions. The document record goes first, in one
	// transaction with the optional guard, so a concurrent TransitionStatus
	// either lands before the guard sees it or fails with core.ErrConflict.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID, guard DocumentGuard) error
}

// SessionRepository provides operations for chat sessions and their messages.
type SessionRepository interface {
	Repository

	// CreateSession opens a new session for an existing document.
	// Returns ErrNotFound if the document doesn't exist.
	CreateSession(ctx context.Context, documentID core.ID) (*core.Session, error)

	// GetSession retrieves a session by ID.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id core.ID) (*core.Session, error)

	// ListSessions returns the sessions of a document ordered by ID.
	ListSessions(ctx context.Context, documentID core.ID) ([]*core.Session, error)

	// AppendMessage stores a message with the next sequence number of its session.
	// Sequence numbers start at 1 and never skip, even under concurrent appends.
	// Returns the stored message with ID and Sequence populated.
	AppendMessage(ctx context.Context, msg *core.Message) (*core.Message, error)

	// ListMessages returns the messages of a session ordered by sequence.
	// A gap in the stored sequence returns core.ErrInvariantViolation.
	ListMessages(ctx context.Context, sessionID core.ID) ([]*core.Message, error)
}

// VectorRecord is a chunk stored in a vector index namespace.
type VectorRecord struct {
	ChunkID    string
	DocumentID core.ID
	Ordinal    int
	Text       string
	Vector     []float32
	Metadata   map[string]string
}

// VectorMatch is a record returned by a similarity query.
type VectorMatch struct {
	Record VectorRecord
	Score  float32
}

// VectorIndex stores embedded chunks partitioned by namespace.
// Implementations must be thread-safe.
type VectorIndex interface {
	// Upsert writes records into a namespace, replacing records with the same ordinal.
	Upsert(ctx context.Context, namespace string, records []VectorRecord) error

	// Query returns up to topK records of the namespace most similar to vector,
	// ordered by RankMatches.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]VectorMatch, error)

	// Delete removes every record in the namespace. Deleting an empty namespace is not an error.
	Delete(ctx context.Context, namespace string) error
}
